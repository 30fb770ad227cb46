package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"liftsync/internal"
	"liftsync/internal/config"
	"liftsync/internal/connectors"
	gmailconnector "liftsync/internal/connectors/gmail"
	imapconnector "liftsync/internal/connectors/imap"
	"liftsync/internal/lifter"
	"liftsync/internal/listener"
	"liftsync/internal/logging"
	"liftsync/internal/metrics"
	"liftsync/internal/pipeline"
	"liftsync/internal/reconcile"
	"liftsync/internal/results"
	"liftsync/internal/storage"
)

func main() {
	cfg, err := config.Load()
	must(err)
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	m := metrics.NewManager()

	cmd := os.Args[1]
	switch cmd {
	case "extract":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "spreadsheet path (.xls or .xlsx)")
		opts := extractFlags(fs)
		out := fs.String("out", "", "write the result to this xlsx path")
		asJSON := fs.Bool("json", false, "print the result as JSON")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		result, err := pipeline.ExtractFromPath(ctx, *input, opts())
		must(err)
		if *out != "" {
			must(pipeline.ExportResultToXLSX(result, *out))
		}
		if *asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			must(enc.Encode(result))
			return
		}
		printSummary(result)
	case "sheets":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "spreadsheet path")
		_ = fs.Parse(os.Args[2:])
		wb, err := pipeline.OpenWorkbook(*input)
		must(err)
		dialect := pipeline.DetectDialect(wb, internal.DialectAuto)
		fmt.Printf("dialect=%s\n", dialect)
		lifts := map[string]bool{}
		for _, name := range pipeline.DefaultLiftSheets(wb, dialect) {
			lifts[name] = true
		}
		for _, name := range wb.SheetNames() {
			marker := " "
			if lifts[name] {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, name)
		}
	case "file:add":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "spreadsheet path; further paths may follow as arguments")
		_ = fs.Parse(os.Args[2:])
		paths := fs.Args()
		if *input != "" {
			paths = append([]string{*input}, paths...)
		}
		if len(paths) == 0 {
			must(fmt.Errorf("--input is required"))
		}
		db := openDB(cfg)
		defer db.Close()
		inbox := storage.NewInbox(db, cfg.InboxDir)
		for _, p := range paths {
			row, created, err := inbox.AddPath(p)
			must(err)
			state := "known"
			if created {
				state = "added"
			}
			fmt.Printf("%s id=%d status=%s %s\n", state, row.ID, row.Status, row.Name)
		}
	case "files:list":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		status := fs.String("status", "", "fetched|extracted|synced|failed; empty lists all")
		limit := fs.Int("limit", 50, "max rows")
		_ = fs.Parse(os.Args[2:])
		db := openDB(cfg)
		defer db.Close()
		files, err := db.ListFiles(internal.FileStatus(*status), *limit)
		must(err)
		for _, f := range files {
			fmt.Printf("%d\t%s\t%s\t%s\t%s\t%s\n", f.ID, f.Status, f.Dialect, f.Source, f.Name, f.Error)
		}
	case "files:process":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		id := fs.Int("id", 0, "process a single file id, whatever its status")
		batch := fs.Int("batch", 20, "batch size")
		sync := fs.Bool("sync", false, "push extracted results to the results store")
		_ = fs.Parse(os.Args[2:])
		db := openDB(cfg)
		defer db.Close()
		processor := newProcessor(db, cfg, m, *sync)
		if *id != 0 {
			file, err := db.MustFile(*id)
			must(err)
			res, err := processor.ProcessFile(ctx, file, *sync)
			must(err)
			fmt.Printf("processed file id=%d status=%s dialect=%s lifts=%d trace=%s\n", res.FileID, res.Status, res.Dialect, res.Lifts, res.TraceID)
			return
		}
		res, err := processor.ProcessPending(ctx, *batch, *sync)
		must(err)
		fmt.Printf("processed pending files=%d failed=%d lifts=%d\n", res.Processed, res.Failed, res.Lifts)
	case "sync":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		input := fs.String("input", "", "spreadsheet path")
		opts := extractFlags(fs)
		force := fs.Bool("force-create", false, "create the competition even if one starts the same day")
		_ = fs.Parse(os.Args[2:])
		if strings.TrimSpace(*input) == "" {
			must(fmt.Errorf("--input is required"))
		}
		must(cfg.Require("LIFTSYNC_API_REFRESH_TOKEN", cfg.APIRefreshToken))
		result, err := pipeline.ExtractFromPath(ctx, *input, opts())
		must(err)
		db := openDB(cfg)
		defer db.Close()
		svc := reconcile.NewService(lifter.NewClient(cfg, m), db, cfg, m)
		report, err := svc.Sync(ctx, result, reconcile.SyncOptions{ForceCreate: *force})
		must(err)
		fmt.Printf("sync done competition=%s created=%v athletes_created=%d athletes_reused=%d lifts_created=%d lifts_skipped=%d\n",
			report.CompetitionID, report.CompetitionCreated, report.AthletesCreated, report.AthletesReused, report.LiftsCreated, report.LiftsSkipped)
	case "mail:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		provider := fs.String("provider", cfg.ListenerProvider, "gmail|imap")
		label := fs.String("label", cfg.ListenerLabel, "mailbox/label")
		max := fs.Int("max", 50, "max messages")
		_ = fs.Parse(os.Args[2:])
		conn, err := makeConnector(ctx, cfg, *provider)
		must(err)
		db := openDB(cfg)
		defer db.Close()
		fetch := connectors.NewFetchService(db, cfg.RawMailDir, cfg.InboxDir, conn)
		result, err := fetch.FetchAndStore(ctx, *label, *max)
		must(err)
		fmt.Printf("mail fetch done provider=%s fetched=%d stored=%d files=%d\n", *provider, result.Fetched, result.Stored, result.Files)
	case "results:fetch":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		pageURL := fs.String("url", cfg.ResultsPageURL, "results page to scan for spreadsheets")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("--url or LIFTSYNC_RESULTS_PAGE_URL", *pageURL))
		db := openDB(cfg)
		defer db.Close()
		scraper := results.NewScraper(storage.NewInbox(db, cfg.InboxDir), time.Duration(cfg.APITimeoutMs)*time.Millisecond)
		res, err := scraper.Fetch(ctx, *pageURL)
		must(err)
		fmt.Printf("results fetch done found=%d new=%d failed=%d\n", res.Found, res.New, res.Failed)
	case "store:purge":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		what := fs.String("what", "", "athletes|competitions")
		confirm := fs.Bool("confirm", false, "really delete")
		_ = fs.Parse(os.Args[2:])
		must(cfg.Require("LIFTSYNC_API_REFRESH_TOKEN", cfg.APIRefreshToken))
		db := openDB(cfg)
		defer db.Close()
		n, err := reconcile.Purge(ctx, lifter.NewClient(cfg, m), db, *what, *confirm)
		must(err)
		fmt.Printf("purged %s=%d\n", *what, n)
	case "listen":
		db := openDB(cfg)
		defer db.Close()
		must(listen(ctx, db, cfg, m))
	default:
		usage()
		os.Exit(1)
	}
}

// extractFlags registers the flags shared by extract and sync.
func extractFlags(fs *flag.FlagSet) func() pipeline.Options {
	dialect := fs.String("dialect", "", "owlcms|excelmacro; detected when empty")
	sheets := fs.String("sheets", "", "comma separated lift sheets")
	compSheet := fs.String("competition-sheet", "", "owlcms competition sheet name")
	mapping := fs.String("mapping", "", "column mapping field=col,... or @file.json")
	return func() pipeline.Options {
		d, err := internal.ParseDialect(*dialect)
		must(err)
		opts := pipeline.Options{Dialect: d, CompetitionSheet: *compSheet}
		for _, s := range strings.Split(*sheets, ",") {
			if s = strings.TrimSpace(s); s != "" {
				opts.LiftSheets = append(opts.LiftSheets, s)
			}
		}
		if *mapping != "" {
			opts.Mapping, err = pipeline.ParseColumnMapping(*mapping)
			must(err)
		}
		return opts
	}
}

func newProcessor(db *storage.DB, cfg config.Config, m *metrics.Manager, sync bool) *pipeline.ProcessingService {
	var syncer pipeline.Syncer
	if sync {
		must(cfg.Require("LIFTSYNC_API_REFRESH_TOKEN", cfg.APIRefreshToken))
		syncer = reconcile.NewService(lifter.NewClient(cfg, m), db, cfg, m)
	}
	return pipeline.NewProcessingService(db, cfg, syncer, m)
}

func listen(ctx context.Context, db *storage.DB, cfg config.Config, m *metrics.Manager) error {
	processor := newProcessor(db, cfg, m, cfg.ListenerSync)
	status := listener.NewStatusServer(cfg.StatusAddr, db, m)
	go func() {
		if err := status.Serve(ctx); err != nil {
			logging.FromContext(ctx).Error("status server stopped", "error", err)
		}
	}()
	return listener.NewService(db, cfg, processor).Run(ctx)
}

func makeConnector(ctx context.Context, cfg config.Config, provider string) (connectors.MailConnector, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "gmail":
		return gmailconnector.NewConnector(ctx, cfg)
	case "imap":
		return imapconnector.NewConnector(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

func openDB(cfg config.Config) *storage.DB {
	db, err := storage.Open(cfg.DBPath)
	must(err)
	return db
}

func printSummary(result internal.Result) {
	c := result.Competition
	fmt.Printf("dialect=%s competition=%q location=%q dates=%s..%s\n", result.Dialect, c.Name, c.Location, c.DateStart, c.DateEnd)
	fmt.Printf("athletes=%d lifts=%d\n", len(result.Athletes), len(result.Lifts))
	for _, l := range result.Lifts {
		fmt.Printf("  %-28s %-6s bw=%-6.2f session=%d  %s\n", l.Athlete.FullName(), l.WeightCategory, l.Bodyweight, l.SessionNumber, l.Source)
	}
}

func usage() {
	fmt.Println("usage: liftsync <command>")
	fmt.Println("commands:")
	fmt.Println("  extract --input=sheet.xlsx [--dialect=owlcms|excelmacro] [--sheets=A,B] [--competition-sheet=...] [--mapping=...] [--out=result.xlsx] [--json]")
	fmt.Println("  sheets --input=sheet.xlsx")
	fmt.Println("  file:add --input=sheet.xlsx [more.xlsx ...]")
	fmt.Println("  files:list [--status=fetched] [--limit=50]")
	fmt.Println("  files:process [--id=1] [--batch=20] [--sync]")
	fmt.Println("  sync --input=sheet.xlsx [--force-create]")
	fmt.Println("  mail:fetch --provider=gmail|imap --label=INBOX --max=50")
	fmt.Println("  results:fetch [--url=...]")
	fmt.Println("  store:purge --what=athletes|competitions --confirm")
	fmt.Println("  listen")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
