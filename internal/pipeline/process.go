package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/logging"
	"liftsync/internal/metrics"
	"liftsync/internal/reconcile"
	"liftsync/internal/storage"
)

var ErrSyncNotConfigured = errors.New("sync requested but no results store is configured")

// Syncer pushes an extracted result to the results store.
type Syncer interface {
	Sync(ctx context.Context, result internal.Result, opts reconcile.SyncOptions) (reconcile.Report, error)
}

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	syncer  Syncer
	metrics *metrics.Manager
}

// NewProcessingService wires the ledger to extraction. syncer may be
// nil when files are only extracted.
func NewProcessingService(db *storage.DB, cfg config.Config, syncer Syncer, m *metrics.Manager) *ProcessingService {
	return &ProcessingService{db: db, cfg: cfg, syncer: syncer, metrics: m}
}

type ProcessResult struct {
	FileID  int
	TraceID string
	Status  internal.FileStatus
	Dialect internal.Dialect
	Lifts   int
	Report  *reconcile.Report
	Output  string
}

type BatchResult struct {
	Processed int
	Failed    int
	Lifts     int
}

// ProcessPending works through fetched files oldest first. A file that
// fails extraction or sync is marked failed and the batch goes on;
// ledger errors stop it.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, sync bool) (BatchResult, error) {
	var batch BatchResult
	pending, err := s.db.ListFiles(internal.FileFetched, limit)
	if err != nil {
		return batch, err
	}
	for _, file := range pending {
		if err := ctx.Err(); err != nil {
			return batch, err
		}
		res, err := s.ProcessFile(ctx, file, sync)
		if err != nil && res.Status != internal.FileFailed {
			return batch, err
		}
		batch.Processed++
		batch.Lifts += res.Lifts
		if res.Status == internal.FileFailed {
			batch.Failed++
		}
	}
	if n, err := s.db.CountFiles(internal.FileFetched); err == nil {
		s.metrics.SetFilesPending(n)
	}
	return batch, nil
}

// ProcessFile extracts one registered file and, when sync is set,
// pushes it to the results store. The returned status is always set
// once the file has been touched; a failed status comes with the
// extraction or sync error.
func (s *ProcessingService) ProcessFile(ctx context.Context, file internal.FileRow, sync bool) (ProcessResult, error) {
	res := ProcessResult{FileID: file.ID, TraceID: uuid.NewString()}
	ctx = logging.WithTrace(ctx, res.TraceID)
	log := logging.With(ctx, "file_id", file.ID, "file", file.Name)

	if sync && s.syncer == nil {
		return res, ErrSyncNotConfigured
	}

	start := time.Now()
	timings := map[string]float64{}
	counts := map[string]int{}

	result, err := ExtractFromPath(ctx, file.Path, Options{})
	timings["extractMs"] = float64(time.Since(start).Milliseconds())
	if err != nil {
		s.metrics.RecordExtractionError(internal.ErrorKind(err))
		return s.fail(ctx, res, file, "", err, timings, counts, start)
	}
	res.Dialect = result.Dialect
	res.Lifts = len(result.Lifts)
	counts["athletes"] = len(result.Athletes)
	counts["lifts"] = len(result.Lifts)
	s.metrics.RecordExtraction(string(result.Dialect), len(result.Lifts), time.Since(start))
	log.Info("extracted", "dialect", result.Dialect, "competition", result.Competition.Name, "lifts", len(result.Lifts))

	if s.cfg.OutputDir != "" {
		out, err := s.writeResult(file, result)
		if err != nil {
			return res, err
		}
		res.Output = out
	}

	res.Status = internal.FileExtracted
	if sync {
		syncStart := time.Now()
		report, err := s.syncer.Sync(ctx, result, reconcile.SyncOptions{})
		timings["syncMs"] = float64(time.Since(syncStart).Milliseconds())
		for k, v := range report.Counts() {
			counts[k] = v
		}
		if err != nil {
			return s.fail(ctx, res, file, result.Dialect, err, timings, counts, start)
		}
		res.Report = &report
		res.Status = internal.FileSynced
		log.Info("synced", "competition_id", report.CompetitionID, "lifts_created", report.LiftsCreated, "lifts_skipped", report.LiftsSkipped)
	}

	if err := s.db.UpdateFileStatus(file.ID, res.Status, result.Dialect, ""); err != nil {
		return res, err
	}
	timings["totalMs"] = float64(time.Since(start).Milliseconds())
	if err := s.db.InsertRun(res.TraceID, file.ID, timings, counts); err != nil {
		return res, err
	}
	s.metrics.RecordFile(string(res.Status))
	return res, nil
}

func (s *ProcessingService) fail(ctx context.Context, res ProcessResult, file internal.FileRow, dialect internal.Dialect, cause error, timings map[string]float64, counts map[string]int, start time.Time) (ProcessResult, error) {
	logging.With(ctx, "file_id", file.ID).Warn("file failed", "error", cause, "kind", internal.ErrorKind(cause))

	if err := s.db.UpdateFileStatus(file.ID, internal.FileFailed, dialect, cause.Error()); err != nil {
		return res, err
	}
	timings["totalMs"] = float64(time.Since(start).Milliseconds())
	if err := s.db.InsertRun(res.TraceID, file.ID, timings, counts); err != nil {
		return res, err
	}
	s.metrics.RecordFile(string(internal.FileFailed))
	res.Status = internal.FileFailed
	return res, cause
}

// writeResult stores the canonical record next to other outputs.
func (s *ProcessingService) writeResult(file internal.FileRow, result internal.Result) (string, error) {
	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		return "", err
	}
	base := strings.TrimSuffix(file.Name, filepath.Ext(file.Name))
	path := filepath.Join(s.cfg.OutputDir, fmt.Sprintf("%d-%s.json", file.ID, base))
	blob, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", err
	}
	return path, os.WriteFile(path, blob, 0o644)
}
