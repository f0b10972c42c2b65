package waterfall

import "time"

// Cache confidence bounds: a fresh entry is almost as trustworthy as a
// live fetch, an entry near expiry is noticeably less so.
const (
	cacheConfidenceMax = 0.85
	cacheConfidenceMin = 0.75
)

// CacheConfidence maps an entry's age onto [0.75, 0.85], decaying linearly
// over the cache TTL.
func CacheConfidence(age, ttl time.Duration) float64 {
	if ttl <= 0 || age <= 0 {
		return cacheConfidenceMax
	}
	frac := float64(age) / float64(ttl)
	if frac > 1 {
		frac = 1
	}
	return cacheConfidenceMax - (cacheConfidenceMax-cacheConfidenceMin)*frac
}
