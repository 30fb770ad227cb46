package pipeline

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"liftsync/internal"
)

type sheetSpec struct {
	name string
	rows [][]any
}

func mkXLSX(t *testing.T, sheets ...sheetSpec) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.name); err != nil {
				t.Fatal(err)
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			t.Fatal(err)
		}
		for r, row := range s.rows {
			for c, v := range row {
				if v == nil {
					continue
				}
				cell, _ := excelize.CoordinatesToCellName(c+1, r+1)
				if err := f.SetCellValue(s.name, cell, v); err != nil {
					t.Fatal(err)
				}
			}
		}
	}
	buf := bytes.NewBuffer(nil)
	if _, err := f.WriteTo(buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func mkWorkbook(t *testing.T, sheets ...sheetSpec) *Workbook {
	t.Helper()
	wb, err := OpenWorkbookBytes("test.xlsx", mkXLSX(t, sheets...))
	if err != nil {
		t.Fatal(err)
	}
	return wb
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestOpenWorkbookTypesCells(t *testing.T) {
	wb := mkWorkbook(t, sheetSpec{name: "Data", rows: [][]any{
		{"Header", "Value"},
		{"text", 62.5},
		{"date", day(2022, time.June, 5)},
		{"int", 1998},
		{"neg", -105},
	}})

	table, err := wb.Extract("Data")
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows) != 4 {
		t.Fatalf("rows=%d", len(table.Rows))
	}
	if got := table.HeaderAt(1).String(); got != "Value" {
		t.Fatalf("header=%q", got)
	}
	if c := table.Rows[0].At(1); c.Kind != CellNumber || c.Number != 62.5 {
		t.Fatalf("number cell=%+v", c)
	}
	if c := table.Rows[0].At(0); c.Kind != CellString || c.Text != "text" {
		t.Fatalf("string cell=%+v", c)
	}
	c := table.Rows[1].At(1)
	if c.Kind != CellDate || !c.Time.Equal(day(2022, time.June, 5)) {
		t.Fatalf("date cell=%+v", c)
	}
	if !table.Rows[2].At(1).IsInteger() {
		t.Fatalf("expected integer cell")
	}
	if v, ok := table.Rows[3].At(1).Float(); !ok || v != -105 {
		t.Fatalf("negative=%v ok=%v", v, ok)
	}
	if table.Rows[2].Sheet != "Data" || table.Rows[2].Number != 4 {
		t.Fatalf("row ref=%s!%d", table.Rows[2].Sheet, table.Rows[2].Number)
	}
	if !table.Rows[0].At(7).IsEmpty() {
		t.Fatalf("out of range cell should be empty")
	}
}

func TestExtractConcatenatesSheetsInOrder(t *testing.T) {
	wb := mkWorkbook(t,
		sheetSpec{name: "One", rows: [][]any{{"H1"}, {"a"}, {"b"}}},
		sheetSpec{name: "Two", rows: [][]any{{"H2"}, {"c"}}},
	)
	if got := wb.SheetNames(); len(got) != 2 || got[0] != "One" || got[1] != "Two" {
		t.Fatalf("sheets=%v", got)
	}

	table, err := wb.Extract("One", "Two")
	if err != nil {
		t.Fatal(err)
	}
	if table.HeaderAt(0).String() != "H1" {
		t.Fatalf("header=%q", table.HeaderAt(0).String())
	}
	var got []string
	for _, row := range table.Rows {
		got = append(got, row.At(0).String())
	}
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Fatalf("rows=%v", got)
	}
	if table.Rows[2].Sheet != "Two" || table.Rows[2].Number != 2 {
		t.Fatalf("ref=%+v", table.Rows[2])
	}

	if _, err := wb.Extract(); !errors.Is(err, internal.ErrNoLiftSheets) {
		t.Fatalf("expected ErrNoLiftSheets, got %v", err)
	}
	if _, err := wb.Extract("Missing"); err == nil {
		t.Fatal("expected missing sheet error")
	}
}

func TestOpenWorkbookRejectsUnknownFormat(t *testing.T) {
	_, err := OpenWorkbookBytes("notes.txt", []byte("lot;name\n1;x\n"))
	var format *internal.UnsupportedFormatError
	if !errors.As(err, &format) {
		t.Fatalf("expected UnsupportedFormatError, got %v", err)
	}
}

func TestLooksLikeDateFormat(t *testing.T) {
	cases := map[string]bool{
		"dd/mm/yyyy":     true,
		"yyyy-mm-dd":     true,
		"0.00":           false,
		`0.0" days"`:     false,
		"[h]:mm":         false,
		"#,##0":          false,
		`[$-414]d. mmmm`: true,
	}
	for format, want := range cases {
		if got := looksLikeDateFormat(format); got != want {
			t.Fatalf("%q: got %v want %v", format, got, want)
		}
	}
}

func TestXLSCellTyping(t *testing.T) {
	if c := xlsCell("62.5"); c.Kind != CellNumber || c.Number != 62.5 {
		t.Fatalf("number=%+v", c)
	}
	if c := xlsCell("2022-06-05"); c.Kind != CellDate || c.Time.Day() != 5 {
		t.Fatalf("date=%+v", c)
	}
	if c := xlsCell("56kg"); c.Kind != CellString {
		t.Fatalf("string=%+v", c)
	}
	if c := xlsCell("  "); !c.IsEmpty() {
		t.Fatalf("blank=%+v", c)
	}
}

func TestDetectDialect(t *testing.T) {
	owl := mkWorkbook(t,
		sheetSpec{name: "Competition", rows: [][]any{{"x"}}},
		sheetSpec{name: "Men's Results", rows: [][]any{{"x"}}},
	)
	macro := mkWorkbook(t, sheetSpec{name: "Day 1", rows: [][]any{{"x"}}})

	if got := DetectDialect(owl, internal.DialectAuto); got != internal.DialectOwlcms {
		t.Fatalf("owlcms detected as %q", got)
	}
	if got := DetectDialect(macro, internal.DialectAuto); got != internal.DialectExcelMacro {
		t.Fatalf("macro detected as %q", got)
	}
	if got := DetectDialect(owl, internal.DialectExcelMacro); got != internal.DialectExcelMacro {
		t.Fatalf("hint ignored: %q", got)
	}
	if got := DefaultLiftSheets(owl, internal.DialectOwlcms); len(got) != 1 || got[0] != "Men's Results" {
		t.Fatalf("owlcms sheets=%v", got)
	}
	if got := DefaultLiftSheets(macro, internal.DialectExcelMacro); len(got) != 1 || got[0] != "Day 1" {
		t.Fatalf("macro sheets=%v", got)
	}
}
