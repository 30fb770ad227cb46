// Package connectors pulls result mails from a mailbox and turns their
// spreadsheet attachments into ledger files.
package connectors

import (
	"context"

	"liftsync/internal"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
