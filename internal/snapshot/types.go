// Package snapshot models file-system state as maps of canonical relative
// paths and computes the difference between a local tree and an authoritative
// remote tree.
package snapshot

import "time"

// FileRecord describes one entry of a snapshot. Directories carry an empty
// fingerprint - their "content" is their existence.
type FileRecord struct {
	Fingerprint  string    `json:"fingerprint"`
	IsDir        bool      `json:"is_dir,omitempty"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Snapshot is a point-in-time view of the files under the configured sync
// paths. Keys are forward-slash relative paths, unique, unordered.
type Snapshot struct {
	Files     map[string]FileRecord `json:"files"`
	Sequence  int64                 `json:"sequence"`
	Timestamp time.Time             `json:"timestamp"`
}

func NewSnapshot(sequence int64) *Snapshot {
	return &Snapshot{
		Files:     make(map[string]FileRecord),
		Sequence:  sequence,
		Timestamp: time.Now().UTC(),
	}
}
