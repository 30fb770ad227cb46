package listener

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jhillyerd/enmime"
	"github.com/xuri/excelize/v2"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/connectors"
	"liftsync/internal/metrics"
	"liftsync/internal/pipeline"
	"liftsync/internal/storage"
)

type staticConnector []internal.FetchedMailMessage

func (c staticConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return c, nil
}

func resultsWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	_ = f.SetSheetName("Sheet1", "Competition")
	for ref, v := range map[string]any{"A1": "Competition", "B1": "Club Cup", "A2": "Location", "B2": "Bergen", "A3": "Date", "B3": "1/10/2022", "D4": "Weigh-in 1/10/2022 09:00"} {
		_ = f.SetCellValue("Competition", ref, v)
	}
	_, _ = f.NewSheet("Women's Results")
	header := []any{"Lot", "First Name", "Last Name", "Born", "Snatch", nil, nil, "Clean&Jerk", nil, nil, "B.W.", "Cat.", "Team"}
	_ = f.SetSheetRow("Women's Results", "A1", &header)
	lift := []any{1, "Eva", "Lund", 2001, 60, 63, -65, 75, 78, 80, 58.3, "F 59", "Bergen"}
	_ = f.SetSheetRow("Women's Results", "A2", &lift)
	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func resultsMail(t *testing.T, sheet []byte) []byte {
	t.Helper()
	part, err := enmime.Builder().
		From("Secretary", "results@example.test").
		To("Inbox", "inbox@example.test").
		Subject("Club Cup results").
		Text([]byte("see attached")).
		AddAttachment(sheet, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "clubcup.xlsx").
		Build()
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func fixture(t *testing.T) (*Service, *storage.DB, *metrics.Manager) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	cfg := config.Config{
		RawMailDir:           filepath.Join(dir, "raw"),
		InboxDir:             filepath.Join(dir, "inbox"),
		ListenerProvider:     "imap",
		ListenerLabel:        "INBOX",
		ListenerFetchMax:     10,
		ListenerProcessBatch: 10,
	}
	m := metrics.NewManager()
	svc := NewService(db, cfg, pipeline.NewProcessingService(db, cfg, nil, m))
	return svc, db, m
}

func TestRunCycleFetchesAndProcesses(t *testing.T) {
	svc, db, _ := fixture(t)
	mail := resultsMail(t, resultsWorkbook(t))
	svc.connect = func(context.Context, string) (connectors.MailConnector, error) {
		return staticConnector{{Provider: "imap", MessageID: "<cup@x>", Raw: mail}}, nil
	}

	res, err := svc.RunCycle(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Fetched != 1 || res.NewFiles != 1 || res.Processed != 1 || res.Failed != 0 {
		t.Fatalf("res=%+v", res)
	}
	files, _ := db.ListFiles(internal.FileExtracted, 10)
	if len(files) != 1 || files[0].Dialect != internal.DialectOwlcms {
		t.Fatalf("files=%+v", files)
	}

	// the same mail again brings nothing new
	res, err = svc.RunCycle(context.Background())
	if err != nil || res.NewFiles != 0 || res.Processed != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
}

func TestRunCycleRejectsUnknownProvider(t *testing.T) {
	svc, _, _ := fixture(t)
	svc.cfg.ListenerProvider = "pop3"
	if _, err := svc.RunCycle(context.Background()); err == nil || !strings.Contains(err.Error(), "pop3") {
		t.Fatalf("err=%v", err)
	}
}

func TestStatusServer(t *testing.T) {
	_, db, m := fixture(t)
	inbox := storage.NewInbox(db, t.TempDir())
	if _, _, err := inbox.Add(internal.FileSourceWeb, "https://x/a.xlsx", "a.xlsx", []byte("a")); err != nil {
		t.Fatal(err)
	}
	m.RecordFile("failed")
	srv := NewStatusServer(":0", db, m)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files?status=fetched", nil))
	var files []fileView
	if err := json.Unmarshal(rec.Body.Bytes(), &files); err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Source != "web" || files[0].Status != "fetched" {
		t.Fatalf("files=%+v", files)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/files?limit=-1", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `liftsync_files_processed_total{status="failed"} 1`) {
		t.Fatalf("metrics=%s", rec.Body.String())
	}
}
