package pipeline

import (
	"math"
	"strconv"

	"liftsync/internal"
	"liftsync/internal/util"
)

// Assemble merges the competition and its lifts into one result and
// validates it. Athletes are listed in lift order without dedupe; the
// first offending lift is reported.
func Assemble(dialect internal.Dialect, comp internal.Competition, lifts []internal.Lift) (internal.Result, error) {
	if err := validateCompetition(comp); err != nil {
		return internal.Result{}, err
	}

	athletes := make([]internal.Athlete, 0, len(lifts))
	for _, lift := range lifts {
		if err := validateLift(lift); err != nil {
			return internal.Result{}, err
		}
		athletes = append(athletes, lift.Athlete)
	}
	if lifts == nil {
		lifts = []internal.Lift{}
	}
	return internal.Result{
		Dialect:     dialect,
		Competition: comp,
		Athletes:    athletes,
		Lifts:       lifts,
	}, nil
}

func validateCompetition(comp internal.Competition) error {
	if comp.Name == "" {
		return &internal.ValidationError{Field: "name", Message: "competition has no name"}
	}
	if comp.DateStart.IsZero() {
		return &internal.ValidationError{Field: "date_start", Message: "competition has no start date"}
	}
	if comp.DateEnd.IsZero() {
		return &internal.ValidationError{Field: "date_end", Message: "competition has no end date"}
	}
	if comp.DateStart.After(comp.DateEnd.Time) {
		return &internal.ValidationError{
			Field:   "date_end",
			Value:   comp.DateEnd.String(),
			Message: "competition ends before it starts (" + comp.DateStart.String() + ")",
		}
	}
	return nil
}

func validateLift(lift internal.Lift) error {
	invalid := func(field, value, message string) error {
		return &internal.ValidationError{
			Sheet:   lift.Source.Sheet,
			Row:     lift.Source.Row,
			Field:   field,
			Value:   value,
			Message: message,
		}
	}

	if lift.Athlete.FirstName == "" && lift.Athlete.LastName == "" {
		return invalid("athlete", "", "lift has no athlete")
	}
	if math.IsNaN(lift.Bodyweight) || lift.Bodyweight <= 0 {
		return invalid("bodyweight", strconv.FormatFloat(lift.Bodyweight, 'f', -1, 64), "bodyweight must be positive")
	}
	if !util.IsValidCategory(lift.WeightCategory) {
		return invalid("weight_category", lift.WeightCategory, "unknown weight category")
	}
	for i, attempt := range lift.Attempts() {
		if attempt.Weight < 0 {
			return invalid(attemptFields[i], strconv.Itoa(attempt.Weight), "attempt weight must not be negative")
		}
		if attempt.Outcome == internal.OutcomeDNA && attempt.Weight != 0 {
			return invalid(attemptFields[i], strconv.Itoa(attempt.Weight), "missed attempt carries a weight")
		}
	}
	if lift.SessionNumber < 0 {
		return invalid("session_number", strconv.Itoa(lift.SessionNumber), "session number must not be negative")
	}
	return nil
}
