package pipeline

import "liftsync/internal"

const (
	owlcmsCompetitionSheet = "Competition"
)

var owlcmsLiftSheets = []string{"Men's Results", "Women's Results"}

// DetectDialect picks the layout of wb. A hint always wins; otherwise a
// sheet named exactly "Competition" marks the owlcms layout.
func DetectDialect(wb *Workbook, hint internal.Dialect) internal.Dialect {
	if hint != internal.DialectAuto {
		return hint
	}
	if wb.HasSheet(owlcmsCompetitionSheet) {
		return internal.DialectOwlcms
	}
	return internal.DialectExcelMacro
}

// DefaultLiftSheets lists the sheets that hold lift rows for a dialect.
func DefaultLiftSheets(wb *Workbook, dialect internal.Dialect) []string {
	if dialect == internal.DialectOwlcms {
		out := []string{}
		for _, name := range owlcmsLiftSheets {
			if wb.HasSheet(name) {
				out = append(out, name)
			}
		}
		return out
	}
	return wb.SheetNames()
}
