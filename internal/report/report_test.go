package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

func testRun() *model.Run {
	return &model.Run{
		ID:     "run-1",
		Status: model.RunStatusComplete,
		Results: []model.ScoringResult{
			{
				RegionID:       "ubud",
				RegionName:     "Ubud",
				Tier:           2,
				BaseScore:      20,
				FinalScore:     42.5,
				Recommendation: model.RecommendWatch,
				Infra:          model.InfraResult{Score: 55, Multiplier: 1.02, Source: "cache"},
				Market: model.MarketResult{
					Multiplier:  1.0,
					PriceSource: "live",
					Valuation: &model.ValuationBreakdown{
						TierLabel:     "2",
						RVI:           0.95,
						ExpectedPrice: 5_250_000,
						ActualPrice:   5_000_000,
					},
				},
				Confidence: model.ConfidenceBreakdown{Overall: 0.78, Multiplier: 0.93},
			},
			{
				RegionID:       "canggu",
				RegionName:     "Canggu",
				Tier:           1,
				BaseScore:      30,
				FinalScore:     63.1,
				Recommendation: model.RecommendBuy,
				Infra:          model.InfraResult{Score: 72, Multiplier: 1.11, Source: "live"},
				Market:         model.MarketResult{Multiplier: 1.25, PriceSource: "benchmark", TrendOnly: true},
				Confidence:     model.ConfidenceBreakdown{Overall: 0.82, Multiplier: 0.96},
			},
		},
		Skipped: []model.SkippedRegion{
			{RegionID: "atlantis", Reason: "unknown region"},
		},
	}
}

func TestRank_OrderAndTiebreak(t *testing.T) {
	results := []model.ScoringResult{
		{RegionID: "b", FinalScore: 50},
		{RegionID: "a", FinalScore: 50},
		{RegionID: "c", FinalScore: 70},
	}

	ranked := Rank(results)
	assert.Equal(t, "c", ranked[0].RegionID)
	assert.Equal(t, "a", ranked[1].RegionID)
	assert.Equal(t, "b", ranked[2].RegionID)

	// Input order is untouched.
	assert.Equal(t, "b", results[0].RegionID)
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, testRun()))
	out := buf.String()

	assert.Contains(t, out, "RANK")
	assert.Contains(t, out, "Canggu")
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "WATCH")
	// Trend-only rows have no expected price.
	assert.Contains(t, out, "-")
	// Indonesian digit grouping for the valued row.
	assert.Contains(t, out, "Rp 5.250.000")
	assert.Contains(t, out, "SKIPPED")
	assert.Contains(t, out, "unknown region")

	// Canggu ranks above Ubud.
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Canggu")), bytes.Index(buf.Bytes(), []byte("Ubud")))
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteXLSX(testRun(), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 2)

	scores := f.Sheets[0]
	assert.Equal(t, "Scores", scores.Name)
	// Header plus two result rows.
	require.Len(t, scores.Rows, 3)
	assert.Equal(t, "Rank", scores.Rows[0].Cells[0].String())
	assert.Equal(t, "Canggu", scores.Rows[1].Cells[1].String())
	assert.Equal(t, "BUY", scores.Rows[1].Cells[11].String())

	skipped := f.Sheets[1]
	assert.Equal(t, "Skipped", skipped.Name)
	require.Len(t, skipped.Rows, 2)
	assert.Equal(t, "atlantis", skipped.Rows[1].Cells[0].String())
}
