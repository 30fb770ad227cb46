package pipeline

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"liftsync/internal"
	"liftsync/internal/util"
)

const (
	sessionMarker = "Session"
	nameHeader    = "Name"
)

// Fixed columns of the excelmacro layout (0-based).
const (
	macroLotCol        = 0
	macroAthleteCol    = 1
	macroBornCol       = 2
	macroTeamCol       = 3
	macroBodyweightCol = 4
	macroSnatchCol     = 5
	macroCnjCol        = 8

	macroSessionMarkerCol = 3
	macroSessionNumberCol = 4
)

var reDigits = regexp.MustCompile(`\d+`)

// scanState is the state carried between excelmacro rows. It belongs
// to a single extraction run.
type scanState struct {
	session     int
	weightClass string
}

type rowKind int

const (
	rowOther rowKind = iota
	rowWeightClass
	rowAthlete
)

func isSessionHeader(row Row) bool {
	marker := row.At(macroSessionMarkerCol)
	return marker.Kind == CellString && strings.Contains(marker.Text, sessionMarker)
}

func classifyNameCell(row Row) (rowKind, string) {
	cell := row.At(macroAthleteCol)
	if cell.Kind != CellString {
		return rowOther, ""
	}
	text := util.NormalizeSpaces(cell.Text)
	if text == "" || text == nameHeader {
		return rowOther, ""
	}
	if unicode.IsDigit([]rune(text)[0]) {
		return rowWeightClass, text
	}
	return rowAthlete, text
}

// scanRow advances the excelmacro state machine by one row. Session
// headers reset the weight class; weight-class rows set it; athlete
// rows emit a lift tagged with the current session and class.
func scanRow(state scanState, row Row) (scanState, *internal.Lift, error) {
	if isSessionHeader(row) {
		session, err := sessionNumber(row.At(macroSessionNumberCol))
		if err != nil {
			return state, nil, atRow(err, row, "session_number")
		}
		state.session = session
		state.weightClass = ""
	}

	kind, name := classifyNameCell(row)
	switch kind {
	case rowWeightClass:
		state.weightClass = name
		return state, nil, nil
	case rowAthlete:
		if state.weightClass == "" {
			return state, nil, &internal.MissingWeightClassError{Sheet: row.Sheet, Row: row.Number, Session: state.session}
		}
		if util.IsAmbiguousCategory(state.weightClass) {
			return state, nil, &internal.AmbiguousWeightClassError{Sheet: row.Sheet, Row: row.Number, Token: state.weightClass}
		}
		lift, err := macroLift(state, row, name)
		if err != nil {
			return state, nil, err
		}
		return state, &lift, nil
	default:
		return state, nil, nil
	}
}

func macroLift(state scanState, row Row, name string) (internal.Lift, error) {
	born, err := cellInt(row.At(macroBornCol))
	if err != nil {
		return internal.Lift{}, atRow(err, row, "yearborn")
	}
	person := util.SplitPersonName(name)
	lift := internal.Lift{
		Athlete: internal.Athlete{
			FirstName: person.FirstName,
			LastName:  person.LastName,
			YearBorn:  born,
		},
		Team:          util.NormalizeSpaces(row.At(macroTeamCol).String()),
		SessionNumber: state.session,
		Source:        internal.RowRef{Sheet: row.Sheet, Row: row.Number},
	}
	if lot := row.At(macroLotCol); lot.IsInteger() {
		lift.LotteryNumber = int(lot.Number)
	}
	if err := readAttempts(row, &lift, [6]int{
		macroSnatchCol, macroSnatchCol + 1, macroSnatchCol + 2,
		macroCnjCol, macroCnjCol + 1, macroCnjCol + 2,
	}); err != nil {
		return internal.Lift{}, err
	}
	if lift.Bodyweight, err = cellBodyweight(row.At(macroBodyweightCol)); err != nil {
		return internal.Lift{}, atRow(err, row, "bodyweight")
	}
	if lift.WeightCategory, err = util.ParseWeightCategoryFromTable(state.weightClass); err != nil {
		return internal.Lift{}, categoryAt(err, row)
	}
	return lift, nil
}

// sessionNumber accepts 3, "3" or "Session 3".
func sessionNumber(cell Cell) (int, error) {
	if n, err := cellInt(cell); err == nil {
		return n, nil
	}
	if cell.Kind == CellString {
		if digits := reDigits.FindString(cell.Text); digits != "" {
			if n, err := cellInt(Cell{Kind: CellString, Text: digits}); err == nil {
				return n, nil
			}
		}
	}
	return 0, &internal.ParseError{Value: cell.String(), Err: errors.New("not a session number")}
}
