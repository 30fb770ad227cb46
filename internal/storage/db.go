package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"liftsync/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS files (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  source TEXT NOT NULL,
  ref TEXT NOT NULL,
  name TEXT NOT NULL,
  hash TEXT NOT NULL UNIQUE,
  path TEXT NOT NULL,
  dialect TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'fetched',
  error TEXT NOT NULL DEFAULT '',
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_files_status ON files(status);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  fileId INTEGER,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(fileId) REFERENCES files(id)
);

CREATE TABLE IF NOT EXISTS remote_refs (
  kind TEXT NOT NULL,
  key TEXT NOT NULL,
  remoteId TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  PRIMARY KEY(kind, key)
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

const fileColumns = `id, source, ref, name, hash, path, dialect, status, error, createdAt, updatedAt`

type scanner interface {
	Scan(dest ...any) error
}

func scanFile(s scanner) (internal.FileRow, error) {
	var row internal.FileRow
	var source, dialect, status string
	err := s.Scan(&row.ID, &source, &row.Ref, &row.Name, &row.Hash, &row.Path, &dialect, &status, &row.Error, &row.CreatedAt, &row.UpdatedAt)
	row.Source = internal.FileSource(source)
	row.Dialect = internal.Dialect(dialect)
	row.Status = internal.FileStatus(status)
	return row, err
}

// RegisterFile records a spreadsheet once per content hash. The bool
// reports whether the row is new.
func (d *DB) RegisterFile(source internal.FileSource, ref, name, hash, path string) (internal.FileRow, bool, error) {
	result, err := d.conn.Exec(`
INSERT INTO files (source, ref, name, hash, path, status)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING
`, string(source), ref, name, hash, path, string(internal.FileFetched))
	if err != nil {
		return internal.FileRow{}, false, err
	}
	affected, _ := result.RowsAffected()

	row, err := d.GetFileByHash(hash)
	if err != nil {
		return internal.FileRow{}, false, err
	}
	if row == nil {
		return internal.FileRow{}, false, errors.New("failed to register file")
	}
	return *row, affected > 0, nil
}

func (d *DB) GetFileByHash(hash string) (*internal.FileRow, error) {
	row, err := scanFile(d.conn.QueryRow(`SELECT `+fileColumns+` FROM files WHERE hash = ?`, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetFile(id int) (*internal.FileRow, error) {
	row, err := scanFile(d.conn.QueryRow(`SELECT `+fileColumns+` FROM files WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) MustFile(id int) (internal.FileRow, error) {
	row, err := d.GetFile(id)
	if err != nil {
		return internal.FileRow{}, err
	}
	if row == nil {
		return internal.FileRow{}, fmt.Errorf("file not found: id=%d", id)
	}
	return *row, nil
}

// ListFiles returns files with the given status, oldest first. An
// empty status lists every file.
func (d *DB) ListFiles(status internal.FileStatus, limit int) ([]internal.FileRow, error) {
	query := `SELECT ` + fileColumns + ` FROM files`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.FileRow
	for rows.Next() {
		row, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) CountFiles(status internal.FileStatus) (int, error) {
	var n int
	err := d.conn.QueryRow(`SELECT COUNT(*) FROM files WHERE status = ?`, string(status)).Scan(&n)
	return n, err
}

func (d *DB) UpdateFileStatus(id int, status internal.FileStatus, dialect internal.Dialect, message string) error {
	_, err := d.conn.Exec(`
UPDATE files SET status = ?, dialect = ?, error = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?
`, string(status), string(dialect), message, id)
	return err
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) InsertRun(traceID string, fileID int, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, fileId, timingsJson, countsJson) VALUES (?, ?, ?, ?)`, traceID, fileID, string(timingsJSON), string(countsJSON))
	return err
}

func (d *DB) ListRuns(fileID int) ([]internal.RunRow, error) {
	rows, err := d.conn.Query(`
SELECT id, traceId, fileId, timingsJson, countsJson, createdAt
FROM runs WHERE fileId = ? ORDER BY id ASC
`, fileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.RunRow
	for rows.Next() {
		var row internal.RunRow
		var timingsJSON, countsJSON string
		if err := rows.Scan(&row.ID, &row.TraceID, &row.FileID, &timingsJSON, &countsJSON, &row.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(timingsJSON), &row.Timings)
		_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
		out = append(out, row)
	}
	return out, rows.Err()
}

// PutRemoteRef remembers the store id of a local entity key.
func (d *DB) PutRemoteRef(kind, key, remoteID string) error {
	_, err := d.conn.Exec(`
INSERT INTO remote_refs (kind, key, remoteId) VALUES (?, ?, ?)
ON CONFLICT(kind, key) DO UPDATE SET remoteId = excluded.remoteId
`, kind, key, remoteID)
	return err
}

func (d *DB) GetRemoteRef(kind, key string) (string, bool, error) {
	var id string
	err := d.conn.QueryRow(`SELECT remoteId FROM remote_refs WHERE kind = ? AND key = ?`, kind, key).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func (d *DB) DeleteRemoteRefs(kind string) (int64, error) {
	result, err := d.conn.Exec(`DELETE FROM remote_refs WHERE kind = ?`, kind)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
