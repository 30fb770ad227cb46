package internal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoLiftSheets = errors.New("no lift sheets selected")
	ErrEmptyTable   = errors.New("table has no rows")
)

func location(sheet string, row int, field string) string {
	parts := make([]string, 0, 3)
	if sheet != "" {
		parts = append(parts, fmt.Sprintf("sheet=%q", sheet))
	}
	if row > 0 {
		parts = append(parts, fmt.Sprintf("row=%d", row))
	}
	if field != "" {
		parts = append(parts, "field="+field)
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, " ") + ")"
}

// ParseError reports a cell that could not be read as a date or number.
type ParseError struct {
	Sheet string
	Row   int
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cannot parse %q", e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + location(e.Sheet, e.Row, e.Field)
}

func (e *ParseError) Unwrap() error { return e.Err }

// At fills in the row context if it is missing.
func (e *ParseError) At(sheet string, row int, field string) *ParseError {
	if e.Sheet == "" {
		e.Sheet = sheet
	}
	if e.Row == 0 {
		e.Row = row
	}
	if e.Field == "" {
		e.Field = field
	}
	return e
}

type UnknownCategoryError struct {
	Token string
	Sheet string
	Row   int
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown weight category %q", e.Token) + location(e.Sheet, e.Row, "weight_category")
}

// MissingWeightClassError is raised when an athlete row precedes every
// weight-class row of its session.
type MissingWeightClassError struct {
	Sheet   string
	Row     int
	Session int
}

func (e *MissingWeightClassError) Error() string {
	return fmt.Sprintf("no weight class set for session %d", e.Session) + location(e.Sheet, e.Row, "")
}

type AmbiguousWeightClassError struct {
	Sheet string
	Row   int
	Token string
}

func (e *AmbiguousWeightClassError) Error() string {
	return fmt.Sprintf("weight class %q is ambiguous: change it to '69kgm' or '69kgw' to mark male or female", e.Token) +
		location(e.Sheet, e.Row, "weight_category")
}

type MissingCompetitionDataError struct {
	Sheet string
	Field string
}

func (e *MissingCompetitionDataError) Error() string {
	return "missing competition data" + location(e.Sheet, 0, e.Field)
}

// ValidationError identifies the first assembled record that breaks an invariant.
type ValidationError struct {
	Sheet   string
	Row     int
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	msg := e.Message
	if e.Value != "" {
		msg += fmt.Sprintf(" (value %q)", e.Value)
	}
	return "invalid record: " + msg + location(e.Sheet, e.Row, e.Field)
}

type UnsupportedFormatError struct {
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return "unsupported spreadsheet: " + e.Reason
}

// ErrorKind is a short label for metrics and logs.
func ErrorKind(err error) string {
	var (
		parseErr    *ParseError
		categoryErr *UnknownCategoryError
		missingWC   *MissingWeightClassError
		ambiguousWC *AmbiguousWeightClassError
		missingComp *MissingCompetitionDataError
		validation  *ValidationError
		format      *UnsupportedFormatError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &categoryErr):
		return "unknown_category"
	case errors.As(err, &missingWC):
		return "missing_weight_class"
	case errors.As(err, &ambiguousWC):
		return "ambiguous_weight_class"
	case errors.As(err, &missingComp):
		return "missing_competition_data"
	case errors.As(err, &validation):
		return "validation"
	case errors.As(err, &format):
		return "unsupported_format"
	default:
		return "other"
	}
}
