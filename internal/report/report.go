// Package report renders batch run results as console tables and XLSX
// workbooks.
package report

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MIFUNEKINSKi/cloudclearing/internal/model"
)

// idr formats rupiah amounts with Indonesian digit grouping.
var idr = message.NewPrinter(language.Indonesian)

// Rank returns the results sorted by final score, highest first. Ties break
// on region ID so output order is stable.
func Rank(results []model.ScoringResult) []model.ScoringResult {
	ranked := make([]model.ScoringResult, len(results))
	copy(ranked, results)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		return ranked[i].RegionID < ranked[j].RegionID
	})
	return ranked
}

// WriteConsole renders the run as a ranked table.
func WriteConsole(w io.Writer, run *model.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RANK\tREGION\tTIER\tBASE\tINFRA\tMARKET\tCONF\tFINAL\tCALL\tEXPECTED PRICE")
	for i, r := range Rank(run.Results) {
		expected := "-"
		if r.Market.Valuation != nil {
			expected = idr.Sprintf("Rp %.0f", r.Market.Valuation.ExpectedPrice)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.1f\t%.2f\t%.2f\t%.2f\t%.1f\t%s\t%s\n",
			i+1,
			r.RegionName,
			tierLabel(r),
			r.BaseScore,
			r.Infra.Multiplier,
			r.Market.Multiplier,
			r.Confidence.Overall,
			r.FinalScore,
			r.Recommendation,
			expected,
		)
	}

	if len(run.Skipped) > 0 {
		fmt.Fprintln(tw, "\nSKIPPED\tREASON")
		for _, s := range run.Skipped {
			fmt.Fprintf(tw, "%s\t%s\n", s.RegionID, s.Reason)
		}
	}

	return tw.Flush()
}

func tierLabel(r model.ScoringResult) string {
	if r.Market.Valuation != nil && r.Market.Valuation.TierLabel != "" {
		return r.Market.Valuation.TierLabel
	}
	return fmt.Sprintf("%d", r.Tier)
}

// WriteXLSX writes the run to an XLSX workbook: one ranked summary sheet
// and one sheet of skipped regions.
func WriteXLSX(run *model.Run, path string) error {
	f := xlsx.NewFile()

	sheet, err := f.AddSheet("Scores")
	if err != nil {
		return eris.Wrap(err, "report: add scores sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"Rank", "Region", "Tier", "Base Score", "Infra Score", "Infra Multiplier",
		"RVI", "Market Multiplier", "Confidence", "Confidence Multiplier",
		"Final Score", "Recommendation", "Expected Price (IDR/m2)", "Actual Price (IDR/m2)",
		"Price Source", "Feature Source", "Out of Band",
	} {
		header.AddCell().SetString(h)
	}

	for i, r := range Rank(run.Results) {
		row := sheet.AddRow()
		row.AddCell().SetInt(i + 1)
		row.AddCell().SetString(r.RegionName)
		row.AddCell().SetString(tierLabel(r))
		row.AddCell().SetFloat(r.BaseScore)
		row.AddCell().SetFloat(r.Infra.Score)
		row.AddCell().SetFloat(r.Infra.Multiplier)
		if v := r.Market.Valuation; v != nil {
			row.AddCell().SetFloat(v.RVI)
		} else {
			row.AddCell().SetString("-")
		}
		row.AddCell().SetFloat(r.Market.Multiplier)
		row.AddCell().SetFloat(r.Confidence.Overall)
		row.AddCell().SetFloat(r.Confidence.Multiplier)
		row.AddCell().SetFloat(r.FinalScore)
		row.AddCell().SetString(string(r.Recommendation))
		if v := r.Market.Valuation; v != nil {
			row.AddCell().SetFloat(v.ExpectedPrice)
			row.AddCell().SetFloat(v.ActualPrice)
		} else {
			row.AddCell().SetString("-")
			row.AddCell().SetString("-")
		}
		row.AddCell().SetString(r.Market.PriceSource)
		row.AddCell().SetString(r.Infra.Source)
		row.AddCell().SetBool(r.Market.Valuation != nil && r.Market.Valuation.OutOfBand)
	}

	if len(run.Skipped) > 0 {
		skippedSheet, err := f.AddSheet("Skipped")
		if err != nil {
			return eris.Wrap(err, "report: add skipped sheet")
		}
		h := skippedSheet.AddRow()
		h.AddCell().SetString("Region")
		h.AddCell().SetString("Reason")
		for _, s := range run.Skipped {
			row := skippedSheet.AddRow()
			row.AddCell().SetString(s.RegionID)
			row.AddCell().SetString(s.Reason)
		}
	}

	return eris.Wrapf(f.Save(path), "report: save %s", path)
}
