package pipeline

import (
	"context"

	"liftsync/internal"
)

// ExtractFromPath opens a spreadsheet and runs one extraction over it.
func ExtractFromPath(ctx context.Context, path string, opts Options) (internal.Result, error) {
	wb, err := OpenWorkbook(path)
	if err != nil {
		return internal.Result{}, err
	}
	return Extract(ctx, wb, opts)
}
