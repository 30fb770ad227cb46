package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"liftsync/internal"
	"liftsync/internal/util"
)

// dialectExtractor isolates the layout rules of one spreadsheet dialect.
type dialectExtractor interface {
	liftSheets(wb *Workbook) []string
	competition(wb *Workbook, lifts Table) (internal.Competition, error)
	lifts(table Table) ([]internal.Lift, error)
}

func extractorFor(dialect internal.Dialect, competitionSheet string) (dialectExtractor, error) {
	switch dialect {
	case internal.DialectOwlcms:
		return owlcmsExtractor{competitionSheet: competitionSheet}, nil
	case internal.DialectExcelMacro:
		return macroExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported dialect: %q", dialect)
	}
}

type owlcmsExtractor struct {
	competitionSheet string
}

func (owlcmsExtractor) liftSheets(wb *Workbook) []string {
	return DefaultLiftSheets(wb, internal.DialectOwlcms)
}

func (e owlcmsExtractor) competition(wb *Workbook, _ Table) (internal.Competition, error) {
	return extractOwlcmsCompetition(wb, e.competitionSheet)
}

type owlcmsColumns struct {
	lot, first, last, born, snatch, cnj, bodyweight, category, team int
}

var owlcmsHeaders = map[string]string{
	"lot":        "Lot",
	"first":      "First Name",
	"last":       "Last Name",
	"born":       "Born",
	"snatch":     "Snatch",
	"cnj":        "Clean&Jerk",
	"bodyweight": "B.W.",
	"category":   "Cat.",
	"team":       "Team",
}

func resolveOwlcmsColumns(table Table) (owlcmsColumns, error) {
	idx := table.HeaderIndex()
	find := func(key string) (int, error) {
		label := owlcmsHeaders[key]
		col, ok := idx[strings.ToLower(label)]
		if !ok {
			sheet := ""
			if len(table.Rows) > 0 {
				sheet = table.Rows[0].Sheet
			}
			return -1, &internal.ValidationError{Sheet: sheet, Row: 1, Field: label, Message: "missing column"}
		}
		return col, nil
	}

	var cols owlcmsColumns
	var err error
	targets := []struct {
		key string
		dst *int
	}{
		{"lot", &cols.lot}, {"first", &cols.first}, {"last", &cols.last}, {"born", &cols.born},
		{"snatch", &cols.snatch}, {"cnj", &cols.cnj}, {"bodyweight", &cols.bodyweight},
		{"category", &cols.category}, {"team", &cols.team},
	}
	for _, t := range targets {
		if *t.dst, err = find(t.key); err != nil {
			return owlcmsColumns{}, err
		}
	}
	return cols, nil
}

// lifts emits one lift per row whose Lot cell holds an integer. Rows
// are independent; no state carries between them.
func (owlcmsExtractor) lifts(table Table) ([]internal.Lift, error) {
	cols, err := resolveOwlcmsColumns(table)
	if err != nil {
		return nil, err
	}

	out := []internal.Lift{}
	for _, row := range table.Rows {
		lot := row.At(cols.lot)
		if !lot.IsInteger() {
			continue
		}

		born, err := cellInt(row.At(cols.born))
		if err != nil {
			return nil, atRow(err, row, "yearborn")
		}
		lift := internal.Lift{
			Athlete: internal.Athlete{
				FirstName: util.NormalizeSpaces(row.At(cols.first).String()),
				LastName:  util.NormalizeSpaces(row.At(cols.last).String()),
				YearBorn:  born,
			},
			LotteryNumber: int(lot.Number),
			Team:          util.NormalizeSpaces(row.At(cols.team).String()),
			Source:        internal.RowRef{Sheet: row.Sheet, Row: row.Number},
		}
		if err := readAttempts(row, &lift, [6]int{
			cols.snatch, cols.snatch + 1, cols.snatch + 2,
			cols.cnj, cols.cnj + 1, cols.cnj + 2,
		}); err != nil {
			return nil, err
		}
		if lift.Bodyweight, err = cellBodyweight(row.At(cols.bodyweight)); err != nil {
			return nil, atRow(err, row, "bodyweight")
		}
		if lift.WeightCategory, err = util.ParseWeightCategory(row.At(cols.category).String()); err != nil {
			return nil, categoryAt(err, row)
		}
		out = append(out, lift)
	}
	return out, nil
}

type macroExtractor struct{}

func (macroExtractor) liftSheets(wb *Workbook) []string {
	return DefaultLiftSheets(wb, internal.DialectExcelMacro)
}

func (macroExtractor) competition(_ *Workbook, lifts Table) (internal.Competition, error) {
	return extractMacroCompetition(lifts)
}

func (macroExtractor) lifts(table Table) ([]internal.Lift, error) {
	out := []internal.Lift{}
	state := scanState{}
	for _, row := range table.Rows {
		next, lift, err := scanRow(state, row)
		if err != nil {
			return nil, err
		}
		state = next
		if lift != nil {
			out = append(out, *lift)
		}
	}
	return out, nil
}

var attemptFields = [6]string{"snatch_first", "snatch_second", "snatch_third", "cnj_first", "cnj_second", "cnj_third"}

func readAttempts(row Row, lift *internal.Lift, cols [6]int) error {
	dst := [6]*internal.Attempt{
		&lift.SnatchFirst, &lift.SnatchSecond, &lift.SnatchThird,
		&lift.CnjFirst, &lift.CnjSecond, &lift.CnjThird,
	}
	for i, col := range cols {
		value, err := cellAttempt(row.At(col))
		if err != nil {
			return atRow(err, row, attemptFields[i])
		}
		*dst[i] = util.ParseAttempt(value)
	}
	return nil
}

func cellAttempt(cell Cell) (float64, error) {
	value, ok := cell.Float()
	if !ok {
		return 0, &internal.ParseError{Value: cell.String(), Err: errors.New("not an attempt weight")}
	}
	return value, nil
}

func cellBodyweight(cell Cell) (float64, error) {
	value, ok := cell.Float()
	if !ok || cell.IsEmpty() {
		return 0, &internal.ParseError{Value: cell.String(), Err: errors.New("not a bodyweight")}
	}
	return value, nil
}

// cellInt reads whole numbers such as birth years and session numbers.
// A native date contributes its year.
func cellInt(cell Cell) (int, error) {
	switch cell.Kind {
	case CellDate:
		return cell.Time.Year(), nil
	case CellNumber, CellString:
		value, ok := cell.Float()
		if ok && util.IsWholeNumber(value) {
			return int(value), nil
		}
	}
	return 0, &internal.ParseError{Value: cell.String(), Err: errors.New("not a whole number")}
}

func categoryAt(err error, row Row) error {
	var unknown *internal.UnknownCategoryError
	if errors.As(err, &unknown) {
		unknown.Sheet = row.Sheet
		unknown.Row = row.Number
	}
	return err
}
