// Package manifest models the ordered list of deferred file operations a
// sync pass leaves behind for the updater, plus the sidecar files living next
// to it in the staging area.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
)

// OpType tags an update operation.
type OpType string

const (
	OpCopyFile       OpType = "copy_file"
	OpCreateDir      OpType = "create_directory"
	OpDeleteFile     OpType = "delete_file"
	OpMoveFile       OpType = "move_file"
	OpExtractArchive OpType = "extract_archive"
	OpDecryptFile    OpType = "decrypt_file"
)

// Operation is one deferred file operation. Source is relative to the
// staging area, Destination relative to the target root. Params carries
// per-kind extras (e.g. a key id for decrypt_file) for forward
// compatibility.
type Operation struct {
	Type        OpType            `json:"type"`
	Source      string            `json:"source,omitempty"`
	Destination string            `json:"destination,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// Validate enforces the per-kind required fields.
func (op Operation) Validate() error {
	switch op.Type {
	case OpCopyFile, OpMoveFile, OpExtractArchive, OpDecryptFile:
		if op.Source == "" || op.Destination == "" {
			return fmt.Errorf("%s requires source and destination", op.Type)
		}
	case OpCreateDir, OpDeleteFile:
		if op.Destination == "" {
			return fmt.Errorf("%s requires a destination", op.Type)
		}
		if op.Source != "" {
			return fmt.Errorf("%s takes no source", op.Type)
		}
	default:
		return fmt.Errorf("unknown operation type %q", op.Type)
	}
	return nil
}

// Manifest is the persisted unit of deferred work. RemoteSyncData is the
// remote snapshot to record as "previously synced" once every operation has
// been applied.
type Manifest struct {
	ID             string             `json:"id"`
	CreatedAt      time.Time          `json:"created_at"`
	Operations     []Operation        `json:"operations"`
	RemoteSyncData *snapshot.Snapshot `json:"remote_sync_data,omitempty"`
}

func New() *Manifest {
	return &Manifest{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
	}
}

// Add appends an operation, validating it first.
func (m *Manifest) Add(op Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}
	m.Operations = append(m.Operations, op)
	return nil
}

// Save persists the manifest as JSON.
func (m *Manifest) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and validates a persisted manifest. A manifest with a malformed
// operation is rejected whole - partially applying a bad manifest is worse
// than failing the run.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	for i, op := range m.Operations {
		if err := op.Validate(); err != nil {
			return nil, fmt.Errorf("manifest %s operation %d: %w", path, i, err)
		}
	}
	return &m, nil
}

// Archive renames the manifest aside with a timestamp suffix so a consumed
// manifest is never replayed but remains inspectable.
func Archive(path string) error {
	stamp := time.Now().UTC().Format("20060102T150405Z")
	return os.Rename(path, fmt.Sprintf("%s.applied-%s", path, stamp))
}

// LoadRemovedFiles reads the removed-files list: a JSON array of relative
// paths. A missing file is an empty list, not an error.
func LoadRemovedFiles(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var removed []string
	if err := json.Unmarshal(data, &removed); err != nil {
		return nil, fmt.Errorf("parse removed list %s: %w", path, err)
	}
	return removed, nil
}

// SaveRemovedFiles persists the removed-files list.
func SaveRemovedFiles(path string, removed []string) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	data, err := json.Marshal(removed)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadLastSync reads the previously-synced snapshot. Missing file -> nil.
func LoadLastSync(path string) (*snapshot.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var snap snapshot.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse last-sync snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// SaveLastSync persists the previously-synced snapshot.
func SaveLastSync(path string, snap *snapshot.Snapshot) error {
	if err := utils.EnsureParent(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
