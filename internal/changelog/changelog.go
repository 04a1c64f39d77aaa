// Package changelog maintains the authority's append-only record of file
// changes, keyed by a strictly increasing sequence number.
//
// The log is single-writer. Readers always see a consistent suffix for any
// sequence value the log has previously handed out, because entries are never
// mutated in place.
package changelog

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Operation is the kind of change an entry records.
type Operation string

const (
	OpAdd    Operation = "add"
	OpModify Operation = "modify"
	OpDelete Operation = "delete"
)

// Entry is one observed change. Fingerprint is empty for deletes. IsDir
// marks directory creation entries, which carry no fingerprint either.
type Entry struct {
	Sequence     int64     `json:"sequence" db:"seq"`
	Op           Operation `json:"operation" db:"op"`
	Path         string    `json:"path" db:"path"`
	Fingerprint  string    `json:"fingerprint,omitempty" db:"fingerprint"`
	IsDir        bool      `json:"is_dir,omitempty" db:"is_dir"`
	Size         int64     `json:"size,omitempty" db:"size"`
	LastModified time.Time `json:"last_modified" db:"-"`
	Timestamp    time.Time `json:"timestamp" db:"-"`
}

const schema = `
CREATE TABLE IF NOT EXISTS changelog (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	op            TEXT NOT NULL,
	path          TEXT NOT NULL,
	fingerprint   TEXT NOT NULL DEFAULT '',
	is_dir        INTEGER NOT NULL DEFAULT 0,
	size          INTEGER NOT NULL DEFAULT 0,
	last_modified TEXT NOT NULL,
	ts            TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_changelog_path ON changelog(path);
`

// Log is the sqlite-backed changelog.
type Log struct {
	db *sqlx.DB
}

// Open initializes the changelog schema on db.
func Open(db *sqlx.DB) (*Log, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("init changelog schema: %w", err)
	}
	return &Log{db: db}, nil
}

// Append records one change and returns its assigned sequence number.
// AUTOINCREMENT guarantees monotonic sequence values that are never reused,
// even across deletes and restarts.
func (l *Log) Append(e Entry) (int64, error) {
	now := time.Now().UTC()
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	if e.LastModified.IsZero() {
		e.LastModified = now
	}

	res, err := l.db.Exec(
		`INSERT INTO changelog (op, path, fingerprint, is_dir, size, last_modified, ts) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Op, e.Path, e.Fingerprint, e.IsDir, e.Size,
		e.LastModified.UTC().Format(time.RFC3339Nano),
		e.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("append changelog entry for %s: %w", e.Path, err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read assigned sequence: %w", err)
	}
	return seq, nil
}

// CurrentSequence returns the last assigned sequence number, 0 when the log
// is empty.
func (l *Log) CurrentSequence() (int64, error) {
	var seq int64
	if err := l.db.Get(&seq, `SELECT COALESCE(MAX(seq), 0) FROM changelog`); err != nil {
		return 0, fmt.Errorf("query current sequence: %w", err)
	}
	return seq, nil
}

// ChangesSince returns the current sequence and every entry with a sequence
// strictly greater than since, in ascending order. The suffix is
// deterministic for a given since value.
func (l *Log) ChangesSince(since int64) (int64, []Entry, error) {
	current, err := l.CurrentSequence()
	if err != nil {
		return 0, nil, err
	}

	rows, err := l.db.Queryx(
		`SELECT seq, op, path, fingerprint, is_dir, size, last_modified, ts
		 FROM changelog WHERE seq > ? ORDER BY seq ASC`, since)
	if err != nil {
		return 0, nil, fmt.Errorf("query changes since %d: %w", since, err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return 0, nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate changes: %w", err)
	}

	return current, entries, nil
}

// LastUpdated returns the timestamp of the newest entry, zero when empty.
func (l *Log) LastUpdated() (time.Time, error) {
	var ts string
	err := l.db.Get(&ts, `SELECT COALESCE(MAX(ts), '') FROM changelog`)
	if err != nil {
		return time.Time{}, fmt.Errorf("query last updated: %w", err)
	}
	if ts == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, ts)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var e Entry
	var lastModified, ts string
	if err := row.Scan(&e.Sequence, &e.Op, &e.Path, &e.Fingerprint, &e.IsDir, &e.Size, &lastModified, &ts); err != nil {
		return Entry{}, fmt.Errorf("scan changelog entry: %w", err)
	}

	var err error
	if e.LastModified, err = time.Parse(time.RFC3339Nano, lastModified); err != nil {
		return Entry{}, fmt.Errorf("parse last_modified for %s: %w", e.Path, err)
	}
	if e.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return Entry{}, fmt.Errorf("parse ts for %s: %w", e.Path, err)
	}
	return e, nil
}
