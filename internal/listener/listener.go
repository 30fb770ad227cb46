// Package listener polls a mailbox for result spreadsheets and
// processes them as they arrive.
package listener

import (
	"context"
	"fmt"
	"strings"
	"time"

	"liftsync/internal/config"
	"liftsync/internal/connectors"
	gmailconnector "liftsync/internal/connectors/gmail"
	imapconnector "liftsync/internal/connectors/imap"
	"liftsync/internal/logging"
	"liftsync/internal/pipeline"
	"liftsync/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	// connect builds the mailbox connector for each cycle.
	connect func(ctx context.Context, provider string) (connectors.MailConnector, error)
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService) *Service {
	s := &Service{db: db, cfg: cfg, processor: processor}
	s.connect = s.makeConnector
	return s
}

type CycleResult struct {
	Fetched   int
	NewFiles  int
	Processed int
	Failed    int
}

// Run repeats cycles until ctx is done. A failed cycle is logged and
// retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	for {
		if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			logging.FromContext(ctx).Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	var res CycleResult
	provider := strings.ToLower(strings.TrimSpace(s.cfg.ListenerProvider))
	mailConnector, err := s.connect(ctx, provider)
	if err != nil {
		return res, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, s.cfg.InboxDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.ListenerLabel, s.cfg.ListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched = fetchResult.Fetched
	res.NewFiles = fetchResult.Files

	batch, err := s.processor.ProcessPending(ctx, s.cfg.ListenerProcessBatch, s.cfg.ListenerSync)
	if err != nil {
		return res, err
	}
	res.Processed = batch.Processed
	res.Failed = batch.Failed

	logging.FromContext(ctx).Info("listener cycle done",
		"provider", provider,
		"fetched", res.Fetched,
		"new_files", res.NewFiles,
		"processed", res.Processed,
		"failed", res.Failed,
	)
	return res, nil
}

func (s *Service) makeConnector(ctx context.Context, provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(ctx, s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}
