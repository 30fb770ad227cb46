package connectors

import (
	"context"

	"liftsync/internal/logging"
	"liftsync/internal/storage"
)

type FetchService struct {
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	Files   int
}

func NewFetchService(db *storage.DB, rawMailDir, inboxDir string, connector MailConnector) *FetchService {
	return &FetchService{
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir, inboxDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		stored, err := s.store.Store(msg)
		if err != nil {
			return res, err
		}
		res.Stored++
		res.Files += stored.New
		logging.FromContext(ctx).Debug("mail stored", "provider", msg.Provider, "message_id", msg.MessageID, "attachments", len(stored.Files))
	}
	return res, nil
}
