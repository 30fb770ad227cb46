package util

import (
	"fmt"
	"strings"
	"time"

	"liftsync/internal"
)

// Day-first layouts only: results sheets are written as D/MM/YYYY and
// a month-first reading silently produces wrong dates.
var dateLayouts = []string{
	"2/1/2006",
	"2-1-2006",
	"2.1.2006",
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
}

// ConvertDate turns a native date cell or a D/MM/YYYY string into a
// calendar date.
func ConvertDate(v any) (internal.Date, error) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return internal.Date{}, &internal.ParseError{Value: "", Err: fmt.Errorf("empty date")}
		}
		return internal.NewDate(t), nil
	case internal.Date:
		return t, nil
	case string:
		s := NormalizeSpaces(t)
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return internal.NewDate(parsed), nil
			}
		}
		return internal.Date{}, &internal.ParseError{Value: t, Err: fmt.Errorf("expected D/MM/YYYY")}
	default:
		return internal.Date{}, &internal.ParseError{Value: fmt.Sprint(v), Err: fmt.Errorf("unsupported date value %T", v)}
	}
}

// FindDates returns every token of text that reads as a date.
func FindDates(text string) []internal.Date {
	out := []internal.Date{}
	for _, token := range strings.Fields(text) {
		token = strings.Trim(token, ",;()")
		if d, err := ConvertDate(token); err == nil {
			out = append(out, d)
		}
	}
	return out
}
