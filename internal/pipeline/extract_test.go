package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"liftsync/internal"
)

var owlcmsLiftHeader = []any{"Lot", "First Name", "Last Name", "Born", "Snatch", nil, nil, "Clean&Jerk", nil, nil, "B.W.", "Cat.", "Team"}

func owlcmsSheets() []sheetSpec {
	return []sheetSpec{
		{name: "Competition", rows: [][]any{
			{"Competition", "Spring Open"},
			{"Location", "Oslo"},
			{"Date", "5/06/2022"},
			{"Session", "A", nil, "Weigh-in 5/06/2022 08:00"},
			{"Session", "B", nil, "Weigh-in 6/06/2022 08:00"},
		}},
		{name: "Men's Results", rows: [][]any{
			owlcmsLiftHeader,
			{2, "Ole", "Hansen", 1990, 120, 125, -130, 150, -155, -155, 88.4, "M 89", "Bergen"},
			{nil, "Total"},
		}},
		{name: "Women's Results", rows: [][]any{
			owlcmsLiftHeader,
			{1, "Anna", "Berg", 1995, 70, -75, 75, 90, 95, nil, 62.5, "F 63", "Oslo AK"},
		}},
	}
}

func owlcmsWorkbook(t *testing.T) *Workbook {
	t.Helper()
	return mkWorkbook(t, owlcmsSheets()...)
}

func macroWorkbook(t *testing.T) *Workbook {
	t.Helper()
	return mkWorkbook(t,
		sheetSpec{name: "Day 1", rows: [][]any{
			{"Norwegian Championship"},
			{nil, day(2022, time.June, 5), nil, nil, nil, nil, nil, nil, "Trondheim"},
			{nil, nil, nil, "Session", 1},
			{"Lot", "Name", "Born", "Team", "BW", "Sn1", "Sn2", "Sn3", "CJ1", "CJ2", "CJ3"},
			{nil, "56kg"},
			{3, "Kari Te Moana", 1998, "Tromso", 55.2, 60, -63, 63, 75, 78, -80},
			{nil, "69kgw"},
			{nil, "Lise Olsen", 2000, "Oslo", 68.1, 80, 83, -85, 100, nil, nil},
		}},
		sheetSpec{name: "Day 2", rows: [][]any{
			{"Norwegian Championship"},
			{nil, day(2022, time.June, 6)},
			{nil, nil, nil, "Session 2", 2},
			{nil, "105+kg"},
			{1, "Per Nilsen", 1985, "Bergen", 120.3, 150, 155, 160, 190, -200, 200},
		}},
	)
}

func attempt(outcome internal.Outcome, weight int) internal.Attempt {
	return internal.Attempt{Outcome: outcome, Weight: weight}
}

func TestExtractOwlcms(t *testing.T) {
	res, err := Extract(context.Background(), owlcmsWorkbook(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dialect != internal.DialectOwlcms {
		t.Fatalf("dialect=%q", res.Dialect)
	}

	comp := res.Competition
	if comp.Name != "Spring Open" || comp.Location != "Oslo" {
		t.Fatalf("competition=%+v", comp)
	}
	if comp.DateStart.String() != "2022-06-05" || comp.DateEnd.String() != "2022-06-06" {
		t.Fatalf("dates=%s..%s", comp.DateStart, comp.DateEnd)
	}

	if len(res.Lifts) != 2 || len(res.Athletes) != 2 {
		t.Fatalf("lifts=%d athletes=%d", len(res.Lifts), len(res.Athletes))
	}
	ole := res.Lifts[0]
	if ole.Athlete != (internal.Athlete{FirstName: "Ole", LastName: "Hansen", YearBorn: 1990}) {
		t.Fatalf("athlete=%+v", ole.Athlete)
	}
	want := [6]internal.Attempt{
		attempt(internal.OutcomeLift, 120), attempt(internal.OutcomeLift, 125), attempt(internal.OutcomeNoLift, 130),
		attempt(internal.OutcomeLift, 150), attempt(internal.OutcomeNoLift, 155), attempt(internal.OutcomeNoLift, 155),
	}
	if ole.Attempts() != want {
		t.Fatalf("attempts=%+v", ole.Attempts())
	}
	if ole.LotteryNumber != 2 || ole.Bodyweight != 88.4 || ole.WeightCategory != "M89" || ole.Team != "Bergen" || ole.SessionNumber != 0 {
		t.Fatalf("lift=%+v", ole)
	}
	if ole.Source != (internal.RowRef{Sheet: "Men's Results", Row: 2}) {
		t.Fatalf("source=%+v", ole.Source)
	}

	anna := res.Lifts[1]
	if anna.WeightCategory != "W63" || anna.CnjThird != attempt(internal.OutcomeDNA, 0) || anna.SnatchSecond != attempt(internal.OutcomeNoLift, 75) {
		t.Fatalf("lift=%+v", anna)
	}
	if res.Athletes[1] != anna.Athlete {
		t.Fatalf("athletes out of lift order: %+v", res.Athletes)
	}
}

func TestExtractOwlcmsUnknownCategory(t *testing.T) {
	wb := mkWorkbook(t,
		sheetSpec{name: "Competition", rows: [][]any{
			{"Competition", "Spring Open"},
			{"Location", "Oslo"},
			{"Date", "5/06/2022"},
			{nil, nil, nil, "Weigh-in 5/06/2022"},
		}},
		sheetSpec{name: "Men's Results", rows: [][]any{
			owlcmsLiftHeader,
			{2, "Ole", "Hansen", 1990, 120, 125, -130, 150, -155, -155, 88.4, "M 90", "Bergen"},
		}},
	)
	_, err := Extract(context.Background(), wb, Options{})
	var unknown *internal.UnknownCategoryError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCategoryError, got %v", err)
	}
	if unknown.Sheet != "Men's Results" || unknown.Row != 2 {
		t.Fatalf("context=%+v", unknown)
	}
}

func TestExtractOwlcmsMissingWeighIn(t *testing.T) {
	wb := mkWorkbook(t,
		sheetSpec{name: "Competition", rows: [][]any{
			{"Competition", "Spring Open"},
			{"Location", "Oslo"},
			{"Date", "5/06/2022"},
		}},
		sheetSpec{name: "Men's Results", rows: [][]any{owlcmsLiftHeader}},
		sheetSpec{name: "Women's Results", rows: [][]any{owlcmsLiftHeader, {1, "A", "B", 1990, 1, 1, 1, 1, 1, 1, 50, "F 55", ""}}},
	)
	_, err := Extract(context.Background(), wb, Options{})
	var missing *internal.MissingCompetitionDataError
	if !errors.As(err, &missing) || missing.Field != "date_end" {
		t.Fatalf("expected missing date_end, got %v", err)
	}
}

func TestExtractExcelMacro(t *testing.T) {
	res, err := Extract(context.Background(), macroWorkbook(t), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if res.Dialect != internal.DialectExcelMacro {
		t.Fatalf("dialect=%q", res.Dialect)
	}

	comp := res.Competition
	if comp.Name != "Norwegian Championship" || comp.Location != "Trondheim" {
		t.Fatalf("competition=%+v", comp)
	}
	if comp.DateStart.String() != "2022-06-05" || comp.DateEnd.String() != "2022-06-06" {
		t.Fatalf("dates=%s..%s", comp.DateStart, comp.DateEnd)
	}

	if len(res.Lifts) != 3 {
		t.Fatalf("lifts=%d", len(res.Lifts))
	}
	kari := res.Lifts[0]
	if kari.Athlete != (internal.Athlete{FirstName: "Kari", LastName: "Te Moana", YearBorn: 1998}) {
		t.Fatalf("athlete=%+v", kari.Athlete)
	}
	if kari.WeightCategory != "M56" || kari.SessionNumber != 1 || kari.LotteryNumber != 3 || kari.Team != "Tromso" {
		t.Fatalf("lift=%+v", kari)
	}
	if kari.SnatchSecond != attempt(internal.OutcomeNoLift, 63) || kari.CnjThird != attempt(internal.OutcomeNoLift, 80) {
		t.Fatalf("attempts=%+v", kari.Attempts())
	}

	lise := res.Lifts[1]
	if lise.WeightCategory != "W69" || lise.LotteryNumber != 0 || lise.CnjSecond != attempt(internal.OutcomeDNA, 0) {
		t.Fatalf("lift=%+v", lise)
	}

	per := res.Lifts[2]
	if per.WeightCategory != "M105+" || per.SessionNumber != 2 || per.Source != (internal.RowRef{Sheet: "Day 2", Row: 5}) {
		t.Fatalf("lift=%+v", per)
	}
}

func TestExtractExcelMacroSessionResetsWeightClass(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{
		{"Cup"},
		{nil, day(2022, time.June, 5)},
		{nil, nil, nil, "Session", 1},
		{nil, "56kg"},
		{1, "Kari Moana", 1998, "Tromso", 55.2, 60, 63, 65, 75, 78, 80},
		{nil, nil, nil, "Session", 2},
		{2, "Per Nilsen", 1985, "Bergen", 120.3, 150, 155, 160, 190, 200, 205},
	}})
	_, err := Extract(context.Background(), wb, Options{})
	var missing *internal.MissingWeightClassError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingWeightClassError, got %v", err)
	}
	if missing.Session != 2 || missing.Row != 7 || missing.Sheet != "Day 1" {
		t.Fatalf("error=%+v", missing)
	}
}

func TestExtractExcelMacroAmbiguousClass(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{
		{"Cup"},
		{nil, day(2022, time.June, 5)},
		{nil, nil, nil, "Session", 1},
		{nil, "69kg"},
		{1, "Kari Moana", 1998, "Tromso", 68.2, 60, 63, 65, 75, 78, 80},
	}})
	_, err := Extract(context.Background(), wb, Options{})
	var ambiguous *internal.AmbiguousWeightClassError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousWeightClassError, got %v", err)
	}
	if ambiguous.Token != "69kg" {
		t.Fatalf("token=%q", ambiguous.Token)
	}
}

func TestExtractExcelMacroUnknownClass(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{
		{"Cup"},
		{nil, day(2022, time.June, 5)},
		{nil, "59kg"},
		{1, "Kari Moana", 1998, "Tromso", 58.2, 60, 63, 65, 75, 78, 80},
	}})
	_, err := Extract(context.Background(), wb, Options{})
	var unknown *internal.UnknownCategoryError
	if !errors.As(err, &unknown) || unknown.Token != "59kg" || unknown.Row != 4 {
		t.Fatalf("expected UnknownCategoryError for 59kg, got %v", err)
	}
}

func TestExtractExcelMacroBadAttempt(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{
		{"Cup"},
		{nil, day(2022, time.June, 5)},
		{nil, "56kg"},
		{1, "Kari Moana", 1998, "Tromso", 55.2, "x", 63, 65, 75, 78, 80},
	}})
	_, err := Extract(context.Background(), wb, Options{})
	var parseErr *internal.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Field != "snatch_first" || parseErr.Row != 4 {
		t.Fatalf("context=%+v", parseErr)
	}
}

func TestExtractMacroWithoutDates(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{
		{"Cup"},
		{nil, "not a date"},
		{nil, "56kg"},
	}})
	_, err := Extract(context.Background(), wb, Options{})
	var missing *internal.MissingCompetitionDataError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingCompetitionDataError, got %v", err)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	for name, build := range map[string]func(*testing.T) *Workbook{
		"owlcms":     owlcmsWorkbook,
		"excelmacro": macroWorkbook,
	} {
		wb := build(t)
		first, err := Extract(context.Background(), wb, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		second, err := Extract(context.Background(), wb, Options{})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		a, _ := json.Marshal(first)
		b, _ := json.Marshal(second)
		if !bytes.Equal(a, b) {
			t.Fatalf("%s: results differ between runs", name)
		}
	}
}

func TestExtractCompetitionOverrideAndSheets(t *testing.T) {
	override := &internal.Competition{
		Name:      "Override",
		DateStart: internal.NewDate(day(2023, time.May, 1)),
		DateEnd:   internal.NewDate(day(2023, time.May, 2)),
	}
	res, err := Extract(context.Background(), macroWorkbook(t), Options{
		LiftSheets:  []string{"Day 2"},
		Competition: override,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Competition.Name != "Override" {
		t.Fatalf("competition=%+v", res.Competition)
	}
	if len(res.Lifts) != 1 || res.Lifts[0].Athlete.LastName != "Nilsen" {
		t.Fatalf("lifts=%+v", res.Lifts)
	}
}

func TestExtractHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Extract(ctx, macroWorkbook(t), Options{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
