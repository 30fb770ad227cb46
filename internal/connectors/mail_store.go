package connectors

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"

	"liftsync/internal"
	"liftsync/internal/storage"
)

const (
	emailFetched = "fetched"
	emailStored  = "stored"
	emailSkipped = "skipped"
)

var spreadsheetTypes = map[string]bool{
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
}

type MailStoreService struct {
	db         *storage.DB
	inbox      *storage.Inbox
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir, inboxDir string) *MailStoreService {
	return &MailStoreService{db: db, inbox: storage.NewInbox(db, inboxDir), rawMailDir: rawMailDir}
}

type StoredMail struct {
	Email internal.EmailRow
	Files []internal.FileRow
	// New counts files seen for the first time.
	New int
}

// Store keeps the raw message and registers every spreadsheet attached
// to it. Mails without spreadsheets are kept but marked skipped.
func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (StoredMail, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return StoredMail{}, err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return StoredMail{}, err
		}
	}

	email, err := s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, emailFetched)
	if err != nil {
		return StoredMail{}, err
	}
	out := StoredMail{Email: email}

	attachments, err := SpreadsheetAttachments(msg.Raw)
	if err != nil {
		return out, fmt.Errorf("parse message %s: %w", msg.MessageID, err)
	}
	for _, a := range attachments {
		ref := fmt.Sprintf("%s:%s/%s", msg.Provider, msg.MessageID, a.Name)
		file, created, err := s.inbox.Add(internal.FileSourceEmail, ref, a.Name, a.Content)
		if err != nil {
			return out, err
		}
		out.Files = append(out.Files, file)
		if created {
			out.New++
		}
	}

	status := emailStored
	if len(attachments) == 0 {
		status = emailSkipped
	}
	if err := s.db.UpdateEmailStatus(email.ID, status); err != nil {
		return out, err
	}
	out.Email.Status = status
	return out, nil
}

type Attachment struct {
	Name        string
	ContentType string
	Content     []byte
}

// SpreadsheetAttachments returns the .xls and .xlsx parts of a raw
// message, including ones a mailer marked inline.
func SpreadsheetAttachments(raw []byte) ([]Attachment, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	parts := make([]*enmime.Part, 0, len(env.Attachments)+len(env.Inlines))
	parts = append(parts, env.Attachments...)
	parts = append(parts, env.Inlines...)
	parts = append(parts, env.OtherParts...)

	out := make([]Attachment, 0, len(parts))
	for _, p := range parts {
		if !isSpreadsheet(p.FileName, p.ContentType) || len(p.Content) == 0 {
			continue
		}
		name := p.FileName
		if name == "" {
			name = "attachment.xlsx"
			if p.ContentType == "application/vnd.ms-excel" {
				name = "attachment.xls"
			}
		}
		out = append(out, Attachment{Name: name, ContentType: p.ContentType, Content: p.Content})
	}
	return out, nil
}

func isSpreadsheet(name, contentType string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xls", ".xlsx":
		return true
	}
	return spreadsheetTypes[strings.ToLower(contentType)]
}
