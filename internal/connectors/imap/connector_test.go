package imap

import (
	"testing"
	"time"

	"github.com/emersion/go-imap"
)

func TestToFetched(t *testing.T) {
	msg := &imap.Message{
		Uid:          42,
		InternalDate: time.Date(2022, 6, 5, 18, 0, 0, 0, time.FixedZone("CEST", 2*3600)),
		Envelope: &imap.Envelope{
			Subject: "Results",
			From: []*imap.Address{
				{PersonalName: "Meet Secretary", MailboxName: "results", HostName: "example.test"},
				{MailboxName: "copy", HostName: "example.test"},
			},
		},
	}
	got := toFetched(msg, []byte("raw"))
	if got.MessageID != "imap-42" {
		t.Fatalf("message id=%s", got.MessageID)
	}
	if got.From != "Meet Secretary <results@example.test>, copy@example.test" {
		t.Fatalf("from=%s", got.From)
	}
	if got.ReceivedAt != "2022-06-05T16:00:00Z" {
		t.Fatalf("received=%s", got.ReceivedAt)
	}
}
