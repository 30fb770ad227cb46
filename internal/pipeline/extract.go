package pipeline

import (
	"context"
	"fmt"

	"liftsync/internal"
)

// Options steer one extraction run. Zero values mean auto-detect and
// default sheets.
type Options struct {
	Dialect          internal.Dialect
	CompetitionSheet string
	LiftSheets       []string
	// Mapping replaces the dialect's lift layout when set.
	Mapping ColumnMapping
	// Competition replaces the extracted competition when set.
	Competition *internal.Competition
}

// Extract turns a workbook into the canonical result. It holds no state
// between calls; the same workbook and options give the same result.
func Extract(ctx context.Context, wb *Workbook, opts Options) (internal.Result, error) {
	if err := ctx.Err(); err != nil {
		return internal.Result{}, err
	}

	dialect := DetectDialect(wb, opts.Dialect)
	extractor, err := extractorFor(dialect, opts.CompetitionSheet)
	if err != nil {
		return internal.Result{}, err
	}

	sheets := opts.LiftSheets
	if len(sheets) == 0 {
		sheets = extractor.liftSheets(wb)
	}
	if len(sheets) == 0 {
		return internal.Result{}, internal.ErrNoLiftSheets
	}
	table, err := wb.Extract(sheets...)
	if err != nil {
		return internal.Result{}, err
	}
	if len(table.Rows) == 0 {
		return internal.Result{}, fmt.Errorf("%s: %w", wb.Name, internal.ErrEmptyTable)
	}

	var comp internal.Competition
	if opts.Competition != nil {
		comp = *opts.Competition
	} else if comp, err = extractor.competition(wb, table); err != nil {
		return internal.Result{}, err
	}

	if err := ctx.Err(); err != nil {
		return internal.Result{}, err
	}

	var lifts []internal.Lift
	if opts.Mapping != nil {
		lifts, err = ExtractMapped(table, opts.Mapping)
	} else {
		lifts, err = extractor.lifts(table)
	}
	if err != nil {
		return internal.Result{}, err
	}
	return Assemble(dialect, comp, lifts)
}
