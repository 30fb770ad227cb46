package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"liftsync/internal"
)

const (
	exportCompetitionSheet = "Competition"
	exportLiftsSheet       = "Lifts"
)

var exportLiftHeaders = []string{
	"first_name", "last_name", "yearborn", "lottery_number",
	"snatch_first", "snatch_first_weight", "snatch_second", "snatch_second_weight",
	"snatch_third", "snatch_third_weight", "cnj_first", "cnj_first_weight",
	"cnj_second", "cnj_second_weight", "cnj_third", "cnj_third_weight",
	"bodyweight", "weight_category", "team", "session_number", "source",
}

// ExportResultToXLSX writes the competition and one row per lift.
func ExportResultToXLSX(result internal.Result, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), exportCompetitionSheet); err != nil {
		return err
	}
	comp := [][]any{
		{"dialect", string(result.Dialect)},
		{"name", result.Competition.Name},
		{"location", result.Competition.Location},
		{"date_start", result.Competition.DateStart.String()},
		{"date_end", result.Competition.DateEnd.String()},
	}
	for r, row := range comp {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
			_ = f.SetCellValue(exportCompetitionSheet, cell, v)
		}
	}

	if _, err := f.NewSheet(exportLiftsSheet); err != nil {
		return err
	}
	for i, h := range exportLiftHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(exportLiftsSheet, cell, h)
	}
	for i, lift := range result.Lifts {
		r := i + 2
		col := 0
		set := func(value any) {
			col++
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(exportLiftsSheet, cell, value)
		}

		set(lift.Athlete.FirstName)
		set(lift.Athlete.LastName)
		set(lift.Athlete.YearBorn)
		set(lift.LotteryNumber)
		for _, attempt := range lift.Attempts() {
			set(string(attempt.Outcome))
			set(attempt.Weight)
		}
		set(lift.Bodyweight)
		set(lift.WeightCategory)
		set(lift.Team)
		set(lift.SessionNumber)
		set(lift.Source.String())
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}
