package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/reconcile"
	"liftsync/internal/storage"
)

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) Sync(_ context.Context, result internal.Result, _ reconcile.SyncOptions) (reconcile.Report, error) {
	f.calls++
	if f.err != nil {
		return reconcile.Report{}, f.err
	}
	return reconcile.Report{CompetitionID: "c1", CompetitionCreated: true, LiftsCreated: len(result.Lifts)}, nil
}

func processFixture(t *testing.T, syncer Syncer) (*ProcessingService, *storage.DB, *storage.Inbox, config.Config) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{OutputDir: filepath.Join(dir, "out")}
	return NewProcessingService(db, cfg, syncer, nil), db, storage.NewInbox(db, filepath.Join(dir, "inbox")), cfg
}

func TestProcessPendingExtractsAndMarksFiles(t *testing.T) {
	svc, db, inbox, cfg := processFixture(t, nil)

	good, _, err := inbox.Add(internal.FileSourceLocal, "good", "spring.xlsx", mkXLSX(t, owlcmsSheets()...))
	if err != nil {
		t.Fatal(err)
	}
	bad, _, err := inbox.Add(internal.FileSourceLocal, "bad", "notes.xlsx", []byte("not a spreadsheet"))
	if err != nil {
		t.Fatal(err)
	}

	batch, err := svc.ProcessPending(context.Background(), 10, false)
	if err != nil {
		t.Fatal(err)
	}
	if batch.Processed != 2 || batch.Failed != 1 || batch.Lifts != 2 {
		t.Fatalf("batch=%+v", batch)
	}

	row, _ := db.MustFile(good.ID)
	if row.Status != internal.FileExtracted || row.Dialect != internal.DialectOwlcms {
		t.Fatalf("good=%+v", row)
	}
	row, _ = db.MustFile(bad.ID)
	if row.Status != internal.FileFailed || row.Error == "" {
		t.Fatalf("bad=%+v", row)
	}

	runs, err := db.ListRuns(good.ID)
	if err != nil || len(runs) != 1 {
		t.Fatalf("runs=%+v err=%v", runs, err)
	}
	if runs[0].Counts["lifts"] != 2 || runs[0].TraceID == "" {
		t.Fatalf("run=%+v", runs[0])
	}

	entries, err := os.ReadDir(cfg.OutputDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("outputs=%v err=%v", entries, err)
	}
}

func TestProcessFileSync(t *testing.T) {
	syncer := &fakeSyncer{}
	svc, db, inbox, _ := processFixture(t, syncer)
	file, _, err := inbox.Add(internal.FileSourceEmail, "imap:1", "spring.xlsx", mkXLSX(t, owlcmsSheets()...))
	if err != nil {
		t.Fatal(err)
	}

	res, err := svc.ProcessFile(context.Background(), file, true)
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != internal.FileSynced || res.Report == nil || res.Report.LiftsCreated != 2 {
		t.Fatalf("res=%+v", res)
	}
	row, _ := db.MustFile(file.ID)
	if row.Status != internal.FileSynced {
		t.Fatalf("row=%+v", row)
	}
}

func TestProcessFileSyncFailureMarksFailed(t *testing.T) {
	syncer := &fakeSyncer{err: reconcile.ErrAthleteNeedsReview}
	svc, db, inbox, _ := processFixture(t, syncer)
	file, _, _ := inbox.Add(internal.FileSourceEmail, "imap:1", "spring.xlsx", mkXLSX(t, owlcmsSheets()...))

	res, err := svc.ProcessFile(context.Background(), file, true)
	if !errors.Is(err, reconcile.ErrAthleteNeedsReview) || res.Status != internal.FileFailed {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	row, _ := db.MustFile(file.ID)
	if row.Status != internal.FileFailed || row.Dialect != internal.DialectOwlcms {
		t.Fatalf("row=%+v", row)
	}
}

func TestProcessFileSyncWithoutStore(t *testing.T) {
	svc, _, inbox, _ := processFixture(t, nil)
	file, _, _ := inbox.Add(internal.FileSourceLocal, "x", "spring.xlsx", mkXLSX(t, owlcmsSheets()...))
	if _, err := svc.ProcessFile(context.Background(), file, true); !errors.Is(err, ErrSyncNotConfigured) {
		t.Fatalf("err=%v", err)
	}
}
