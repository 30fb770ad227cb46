package pipeline

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"liftsync/internal"
	"liftsync/internal/util"
)

type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellDate
	CellBool
)

// Cell is one typed spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number float64
	Time   time.Time
}

func (c Cell) IsEmpty() bool { return c.Kind == CellEmpty }

// IsInteger mirrors "the cell holds an int": a number with no fraction.
func (c Cell) IsInteger() bool {
	return c.Kind == CellNumber && util.IsWholeNumber(c.Number)
}

// Float returns the numeric value of the cell; empty cells are NaN.
func (c Cell) Float() (float64, bool) {
	switch c.Kind {
	case CellEmpty:
		return math.NaN(), true
	case CellNumber:
		return c.Number, true
	case CellString:
		return util.ParseNumber(c.Text)
	default:
		return 0, false
	}
}

func (c Cell) String() string {
	switch c.Kind {
	case CellEmpty:
		return ""
	case CellNumber:
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	case CellDate:
		return internal.NewDate(c.Time).String()
	default:
		return c.Text
	}
}

type Row struct {
	Sheet string
	// Number is the 1-based row number inside its sheet.
	Number int
	Cells  []Cell
}

// At returns the cell at a 0-based column, or an empty cell.
func (r Row) At(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[col]
}

func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}

// Table is a row-oriented view over one or more concatenated sheets.
// The first row of each sheet is its header; Header holds the first
// sheet's header and Rows the data rows of every sheet in order.
type Table struct {
	Header []Cell
	Rows   []Row
}

func (t Table) HeaderAt(col int) Cell {
	if col < 0 || col >= len(t.Header) {
		return Cell{}
	}
	return t.Header[col]
}

// HeaderIndex maps lower-cased header labels to their column.
func (t Table) HeaderIndex() map[string]int {
	idx := map[string]int{}
	for i, h := range t.Header {
		key := strings.ToLower(util.NormalizeSpaces(h.String()))
		if key == "" {
			continue
		}
		if _, exists := idx[key]; !exists {
			idx[key] = i
		}
	}
	return idx
}

type sheetData struct {
	name  string
	cells [][]Cell
}

// Workbook holds every sheet of a spreadsheet in memory.
type Workbook struct {
	Name   string
	sheets []sheetData
}

func OpenWorkbook(path string) (*Workbook, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return OpenWorkbookBytes(filepath.Base(path), blob)
}

var (
	zipMagic = []byte("PK\x03\x04")
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}
)

// OpenWorkbookBytes reads an .xlsx or legacy .xls workbook. The format
// is taken from the content, not the name.
func OpenWorkbookBytes(name string, content []byte) (*Workbook, error) {
	switch {
	case bytes.HasPrefix(content, zipMagic):
		return readXLSX(name, content)
	case bytes.HasPrefix(content, oleMagic):
		return readXLS(name, content)
	default:
		return nil, &internal.UnsupportedFormatError{Reason: fmt.Sprintf("%s is neither xlsx nor xls", name)}
	}
}

func (w *Workbook) SheetNames() []string {
	out := make([]string, 0, len(w.sheets))
	for _, s := range w.sheets {
		out = append(out, s.name)
	}
	return out
}

func (w *Workbook) HasSheet(name string) bool {
	for _, s := range w.sheets {
		if s.name == name {
			return true
		}
	}
	return false
}

// Extract concatenates the named sheets into one table, keeping the
// original row order.
func (w *Workbook) Extract(names ...string) (Table, error) {
	if len(names) == 0 {
		return Table{}, internal.ErrNoLiftSheets
	}
	table := Table{}
	for i, name := range names {
		var sheet *sheetData
		for j := range w.sheets {
			if w.sheets[j].name == name {
				sheet = &w.sheets[j]
				break
			}
		}
		if sheet == nil {
			return Table{}, fmt.Errorf("sheet %q not found in %s", name, w.Name)
		}
		if len(sheet.cells) == 0 {
			continue
		}
		if i == 0 || table.Header == nil {
			table.Header = sheet.cells[0]
		}
		for r := 1; r < len(sheet.cells); r++ {
			table.Rows = append(table.Rows, Row{Sheet: sheet.name, Number: r + 1, Cells: sheet.cells[r]})
		}
	}
	return table, nil
}

func readXLSX(name string, content []byte) (*Workbook, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &internal.UnsupportedFormatError{Reason: err.Error()}
	}
	defer f.Close()

	wb := &Workbook{Name: name}
	dateStyles := map[int]bool{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		data := sheetData{name: sheet, cells: make([][]Cell, 0, len(rows))}
		for r, row := range rows {
			cells := make([]Cell, 0, len(row))
			for c, raw := range row {
				ref, _ := excelize.CoordinatesToCellName(c+1, r+1)
				cells = append(cells, xlsxCell(f, sheet, ref, raw, dateStyles))
			}
			data.cells = append(data.cells, cells)
		}
		wb.sheets = append(wb.sheets, data)
	}
	return wb, nil
}

func xlsxCell(f *excelize.File, sheet, ref, raw string, dateStyles map[int]bool) Cell {
	if strings.TrimSpace(raw) == "" {
		return Cell{}
	}
	typ, _ := f.GetCellType(sheet, ref)
	switch typ {
	case excelize.CellTypeSharedString, excelize.CellTypeInlineString, excelize.CellTypeFormula, excelize.CellTypeError:
		return Cell{Kind: CellString, Text: raw}
	case excelize.CellTypeBool:
		return Cell{Kind: CellBool, Text: raw}
	case excelize.CellTypeDate:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return Cell{Kind: CellDate, Time: t, Text: raw}
			}
		}
		return Cell{Kind: CellString, Text: raw}
	}

	number, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Cell{Kind: CellString, Text: raw}
	}
	if styleID, err := f.GetCellStyle(sheet, ref); err == nil && isDateStyle(f, styleID, dateStyles) {
		if t, err := excelize.ExcelDateToTime(number, false); err == nil {
			return Cell{Kind: CellDate, Time: t, Text: raw}
		}
	}
	return Cell{Kind: CellNumber, Number: number, Text: raw}
}

// Built-in number formats that render a date.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

func isDateStyle(f *excelize.File, styleID int, cache map[int]bool) bool {
	if styleID <= 0 {
		return false
	}
	if v, ok := cache[styleID]; ok {
		return v
	}
	isDate := false
	if style, err := f.GetStyle(styleID); err == nil && style != nil {
		if builtinDateFormats[style.NumFmt] {
			isDate = true
		} else if style.CustomNumFmt != nil {
			isDate = looksLikeDateFormat(*style.CustomNumFmt)
		}
	}
	cache[styleID] = isDate
	return isDate
}

// looksLikeDateFormat ignores quoted literals and [..] sections and
// looks for day or year tokens.
func looksLikeDateFormat(format string) bool {
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(format) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		case r == 'd' || r == 'y':
			return true
		}
	}
	return false
}

// xls cells only come back as formatted text, so types are inferred.
var xlsDateLayouts = []string{"2006-01-02", "2006-01-02T15:04:05Z", "2006-01-02 15:04:05", "2006.01.02", "02-Jan-2006", "02-Jan-06"}

func readXLS(name string, content []byte) (*Workbook, error) {
	book, err := xls.OpenReader(bytes.NewReader(content), "utf-8")
	if err != nil {
		return nil, &internal.UnsupportedFormatError{Reason: err.Error()}
	}

	wb := &Workbook{Name: name}
	for i := 0; i < book.NumSheets(); i++ {
		sheet := book.GetSheet(i)
		if sheet == nil {
			continue
		}
		data := sheetData{name: sheet.Name}
		for r := 0; r <= int(sheet.MaxRow); r++ {
			row := sheet.Row(r)
			if row == nil {
				data.cells = append(data.cells, nil)
				continue
			}
			cells := make([]Cell, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = xlsCell(row.Col(c))
			}
			data.cells = append(data.cells, cells)
		}
		wb.sheets = append(wb.sheets, data)
	}
	return wb, nil
}

func xlsCell(raw string) Cell {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Cell{}
	}
	if number, err := strconv.ParseFloat(text, 64); err == nil {
		return Cell{Kind: CellNumber, Number: number, Text: raw}
	}
	for _, layout := range xlsDateLayouts {
		if t, err := time.Parse(layout, text); err == nil {
			return Cell{Kind: CellDate, Time: t, Text: raw}
		}
	}
	return Cell{Kind: CellString, Text: raw}
}
