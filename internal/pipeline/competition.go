package pipeline

import (
	"errors"
	"strings"

	"liftsync/internal"
	"liftsync/internal/util"
)

const weighInMarker = "Weigh-in"

// Fixed offsets (0-based; row offsets count data rows below the header).
const (
	owlcmsNameCol     = 1
	owlcmsValueCol    = 1
	owlcmsLocationRow = 0
	owlcmsStartRow    = 1
	owlcmsWeighInCol  = 3

	macroNameCol     = 0
	macroDateCol     = 1
	macroLocationCol = 8
)

func extractOwlcmsCompetition(wb *Workbook, sheet string) (internal.Competition, error) {
	if sheet == "" {
		sheet = owlcmsCompetitionSheet
	}
	table, err := wb.Extract(sheet)
	if err != nil {
		return internal.Competition{}, err
	}

	comp := internal.Competition{
		Name: util.NormalizeSpaces(table.HeaderAt(owlcmsNameCol).String()),
	}
	if comp.Name == "" {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: sheet, Field: "name"}
	}
	if len(table.Rows) > owlcmsLocationRow {
		comp.Location = util.NormalizeSpaces(table.Rows[owlcmsLocationRow].At(owlcmsValueCol).String())
	}
	if len(table.Rows) <= owlcmsStartRow || table.Rows[owlcmsStartRow].At(owlcmsValueCol).IsEmpty() {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: sheet, Field: "date_start"}
	}
	startRow := table.Rows[owlcmsStartRow]
	comp.DateStart, err = cellDate(startRow.At(owlcmsValueCol))
	if err != nil {
		return internal.Competition{}, atRow(err, startRow, "date_start")
	}

	// The last weigh-in announced on the sheet is the last competition day.
	var latest internal.Date
	for _, row := range table.Rows {
		cell := row.At(owlcmsWeighInCol)
		if cell.Kind != CellString || !strings.Contains(cell.Text, weighInMarker) {
			continue
		}
		for _, d := range util.FindDates(cell.Text) {
			if d.After(latest.Time) {
				latest = d
			}
		}
	}
	if latest.IsZero() {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: sheet, Field: "date_end"}
	}
	comp.DateEnd = latest
	return comp, nil
}

// extractMacroCompetition reads the competition from the concatenated
// excelmacro table: the name is the first header cell, the start date
// and location sit in the first data row, and the end date is the
// latest native date in the date column.
func extractMacroCompetition(table Table) (internal.Competition, error) {
	if len(table.Rows) == 0 {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Field: "date_start"}
	}
	first := table.Rows[0]
	comp := internal.Competition{
		Name:     util.NormalizeSpaces(table.HeaderAt(macroNameCol).String()),
		Location: util.NormalizeSpaces(first.At(macroLocationCol).String()),
	}
	if comp.Name == "" {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: first.Sheet, Field: "name"}
	}

	var latest internal.Date
	for _, row := range table.Rows {
		cell := row.At(macroDateCol)
		if cell.Kind != CellDate {
			continue
		}
		d := internal.NewDate(cell.Time)
		if d.After(latest.Time) {
			latest = d
		}
	}
	if latest.IsZero() {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: first.Sheet, Field: "date_end"}
	}
	comp.DateEnd = latest

	start := first.At(macroDateCol)
	if start.IsEmpty() {
		return internal.Competition{}, &internal.MissingCompetitionDataError{Sheet: first.Sheet, Field: "date_start"}
	}
	d, err := cellDate(start)
	if err != nil {
		return internal.Competition{}, atRow(err, first, "date_start")
	}
	comp.DateStart = d
	return comp, nil
}

func cellDate(cell Cell) (internal.Date, error) {
	switch cell.Kind {
	case CellDate:
		return util.ConvertDate(cell.Time)
	case CellString:
		return util.ConvertDate(cell.Text)
	default:
		return internal.Date{}, &internal.ParseError{Value: cell.String(), Err: errors.New("not a date")}
	}
}

// atRow attaches sheet/row/field context to a ParseError.
func atRow(err error, row Row, field string) error {
	var parseErr *internal.ParseError
	if errors.As(err, &parseErr) {
		parseErr.At(row.Sheet, row.Number, field)
	}
	return err
}
