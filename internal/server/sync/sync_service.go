// Package sync is the authority-side sync service. It watches one content
// directory, records every observed change in the changelog and answers
// state queries for clients.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"
	"time"

	"github.com/modforge/modsync/internal/changelog"
	"github.com/modforge/modsync/internal/fingerprint"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
)

const (
	DefaultRescanInterval = 30 * time.Second
	fingerprintCacheSize  = 8192
)

type SyncService struct {
	contentDir string
	interval   time.Duration
	log        *changelog.Log
	cache      *fingerprint.Cache

	mu    gosync.RWMutex
	state map[string]snapshot.FileRecord
}

type Option func(*SyncService)

func WithRescanInterval(d time.Duration) Option {
	return func(s *SyncService) {
		if d > 0 {
			s.interval = d
		}
	}
}

func NewSyncService(contentDir string, log *changelog.Log, opts ...Option) *SyncService {
	s := &SyncService{
		contentDir: contentDir,
		interval:   DefaultRescanInterval,
		log:        log,
		cache:      fingerprint.NewCache(fingerprintCacheSize),
		state:      make(map[string]snapshot.FileRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start reconstructs the last known state from the changelog, runs one scan
// to catch offline edits, then rescans periodically until ctx is done.
func (s *SyncService) Start(ctx context.Context) error {
	if ok, err := dirExists(s.contentDir); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("content dir %s does not exist", s.contentDir)
	}

	_, entries, err := s.log.ChangesSince(0)
	if err != nil {
		return fmt.Errorf("replay changelog: %w", err)
	}
	s.mu.Lock()
	s.state = changelog.Fold(nil, entries)
	s.mu.Unlock()

	changed, err := s.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	slog.Info("sync service start", "dir", s.contentDir, "tracked", s.trackedCount(), "changes", changed)

	go s.rescanLoop(ctx)
	return nil
}

func (s *SyncService) Shutdown(ctx context.Context) error {
	slog.Info("sync service stop")
	return nil
}

func (s *SyncService) rescanLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			changed, err := s.Rescan(ctx)
			if err != nil {
				slog.Error("rescan", "error", err)
				continue
			}
			if changed > 0 {
				slog.Info("rescan", "changes", changed)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Rescan walks the content directory, appends one changelog entry per
// difference against the tracked state and returns the number of entries
// written. Deletes are emitted deepest-first so a replay never removes a
// directory before its children.
func (s *SyncService) Rescan(ctx context.Context) (int, error) {
	observed, err := s.scan(ctx)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := 0
	appendEntry := func(e changelog.Entry) error {
		if _, err := s.log.Append(e); err != nil {
			return err
		}
		changed++
		return nil
	}

	for path, rec := range observed {
		prev, tracked := s.state[path]

		var op changelog.Operation
		switch {
		case !tracked:
			op = changelog.OpAdd
		case prev.Fingerprint != rec.Fingerprint || prev.IsDir != rec.IsDir:
			op = changelog.OpModify
		default:
			continue
		}

		err := appendEntry(changelog.Entry{
			Op: op, Path: path,
			Fingerprint: rec.Fingerprint, IsDir: rec.IsDir,
			Size: rec.Size, LastModified: rec.LastModified,
		})
		if err != nil {
			return changed, err
		}
	}

	var removed []string
	for path := range s.state {
		if _, ok := observed[path]; !ok {
			removed = append(removed, path)
		}
	}
	sort.Slice(removed, func(i, j int) bool {
		return strings.Count(removed[i], "/") > strings.Count(removed[j], "/")
	})
	for _, path := range removed {
		wasDir := s.state[path].IsDir
		if err := appendEntry(changelog.Entry{Op: changelog.OpDelete, Path: path, IsDir: wasDir}); err != nil {
			return changed, err
		}
		s.cache.Forget(filepath.Join(s.contentDir, filepath.FromSlash(path)))
	}

	s.state = observed
	return changed, nil
}

// scan builds the observed state map: every directory and file under the
// content root, keyed by forward-slash relative path.
func (s *SyncService) scan(ctx context.Context) (map[string]snapshot.FileRecord, error) {
	observed := make(map[string]snapshot.FileRecord)

	err := filepath.WalkDir(s.contentDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path == s.contentDir {
			return nil
		}

		rel, err := filepath.Rel(s.contentDir, path)
		if err != nil {
			return err
		}
		rel = utils.ToSlashPath(rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			observed[rel] = snapshot.FileRecord{IsDir: true, LastModified: info.ModTime().UTC()}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fp, err := s.cache.File(path, info)
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", rel, err)
		}
		observed[rel] = snapshot.FileRecord{
			Fingerprint:  fp,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return observed, nil
}

func (s *SyncService) CurrentSequence() (int64, error) {
	return s.log.CurrentSequence()
}

// LastUpdated returns the timestamp of the newest changelog entry, zero when
// nothing has ever been recorded.
func (s *SyncService) LastUpdated() (time.Time, error) {
	return s.log.LastUpdated()
}

func (s *SyncService) ChangesSince(since int64) (int64, []changelog.Entry, error) {
	return s.log.ChangesSince(since)
}

// Snapshot returns a copy of the full tracked state stamped with the current
// sequence.
func (s *SyncService) Snapshot() (*snapshot.Snapshot, error) {
	seq, err := s.log.CurrentSequence()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := snapshot.NewSnapshot(seq)
	for path, rec := range s.state {
		snap.Files[path] = rec
	}
	return snap, nil
}

// Hashes returns the tracked records whose path equals prefix or lives
// below it. An empty prefix returns everything.
func (s *SyncService) Hashes(prefix string) map[string]snapshot.FileRecord {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")

	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make(map[string]snapshot.FileRecord)
	for path, rec := range s.state {
		if prefix == "" || path == prefix || strings.HasPrefix(path, prefix+"/") {
			files[path] = rec
		}
	}
	return files
}

// Resolve maps a slash-relative path to its absolute location under the
// content root. Paths escaping the root are rejected.
func (s *SyncService) Resolve(rel string) (string, error) {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}

	abs := filepath.Join(s.contentDir, filepath.FromSlash(rel))
	if abs != s.contentDir && !strings.HasPrefix(abs, s.contentDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes content dir", rel)
	}
	return abs, nil
}

func (s *SyncService) trackedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state)
}

func dirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
