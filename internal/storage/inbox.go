package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"liftsync/internal"
)

var reUnsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Inbox keeps a content-addressed copy of every incoming spreadsheet
// and registers it in the ledger.
type Inbox struct {
	db  *DB
	dir string
}

func NewInbox(db *DB, dir string) *Inbox {
	return &Inbox{db: db, dir: dir}
}

// Add stores content under the inbox and registers it. A file whose
// content is already known is not stored again; created is false then.
func (b *Inbox) Add(source internal.FileSource, ref, name string, content []byte) (internal.FileRow, bool, error) {
	sum := sha256.Sum256(content)
	hash := hex.EncodeToString(sum[:])

	if existing, err := b.db.GetFileByHash(hash); err != nil || existing != nil {
		if existing != nil {
			return *existing, false, nil
		}
		return internal.FileRow{}, false, err
	}

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		return internal.FileRow{}, false, err
	}
	path := filepath.Join(b.dir, hash[:16]+"-"+safeName(name))
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return internal.FileRow{}, false, err
		}
	}
	return b.db.RegisterFile(source, ref, name, hash, path)
}

// AddPath registers a spreadsheet already on disk.
func (b *Inbox) AddPath(path string) (internal.FileRow, bool, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return internal.FileRow{}, false, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return b.Add(internal.FileSourceLocal, abs, filepath.Base(path), content)
}

func safeName(name string) string {
	name = reUnsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "sheet"
	}
	return name
}
