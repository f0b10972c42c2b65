package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultStatic_IsValid(t *testing.T) {
	sc := DefaultStatic()
	require.NoError(t, sc.Validate())
	assert.Len(t, sc.Regions, 9)
	assert.Len(t, sc.Tiers, 4)
	assert.Len(t, sc.Catalysts, 2)
}

func TestLoadStatic_MissingFileFallsBack(t *testing.T) {
	sc, err := LoadStatic(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Len(t, sc.Regions, len(DefaultStatic().Regions))
}

func TestLoadStatic_ParsesFile(t *testing.T) {
	raw := `
regions:
  - id: test_region
    name: Test Region
    tier: 2
    centroid: {lat: -8.5, lng: 115.2}
`
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	sc, err := LoadStatic(path)
	require.NoError(t, err)
	require.Len(t, sc.Regions, 1)
	assert.Equal(t, "test_region", sc.Regions[0].ID)
	// Tier benchmarks and the override fraction fall back to the defaults.
	assert.Len(t, sc.Tiers, 4)
	assert.Equal(t, 0.1875, sc.OverridePct)
}

func TestLoadStatic_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.yaml")
	require.NoError(t, os.WriteFile(path, []byte("regions: [not closed"), 0o644))

	_, err := LoadStatic(path)
	assert.Error(t, err)
}

func TestValidate_Errors(t *testing.T) {
	t.Run("missing tier benchmark", func(t *testing.T) {
		sc := DefaultStatic()
		delete(sc.Tiers, 3)
		assert.Error(t, sc.Validate())
	})

	t.Run("non-positive base price", func(t *testing.T) {
		sc := DefaultStatic()
		tc := sc.Tiers[1]
		tc.BasePriceM2 = 0
		sc.Tiers[1] = tc
		assert.Error(t, sc.Validate())
	})

	t.Run("tolerance band out of range", func(t *testing.T) {
		sc := DefaultStatic()
		tc := sc.Tiers[2]
		tc.ToleranceBand = 1.0
		sc.Tiers[2] = tc
		assert.Error(t, sc.Validate())
	})

	t.Run("duplicate region id", func(t *testing.T) {
		sc := DefaultStatic()
		sc.Regions = append(sc.Regions, sc.Regions[0])
		assert.Error(t, sc.Validate())
	})

	t.Run("empty region id", func(t *testing.T) {
		sc := DefaultStatic()
		sc.Regions = append(sc.Regions, RegionConfig{Tier: 1})
		assert.Error(t, sc.Validate())
	})

	t.Run("unknown tier reference", func(t *testing.T) {
		sc := DefaultStatic()
		sc.Regions = append(sc.Regions, RegionConfig{ID: "x", Tier: 9})
		assert.Error(t, sc.Validate())
	})
}

func TestRegionLookup(t *testing.T) {
	sc := DefaultStatic()

	r, ok := sc.Region("canggu")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Tier)

	_, ok = sc.Region("atlantis")
	assert.False(t, ok)
}

func TestIsUltraPremium(t *testing.T) {
	sc := DefaultStatic()
	assert.True(t, sc.IsUltraPremium("canggu"))
	assert.True(t, sc.IsUltraPremium("uluwatu"))
	assert.False(t, sc.IsUltraPremium("ubud"))
}
