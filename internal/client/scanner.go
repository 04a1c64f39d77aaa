package client

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/modforge/modsync/internal/fingerprint"
	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/pathglob"
	"github.com/modforge/modsync/internal/snapshot"
	"github.com/modforge/modsync/internal/utils"
)

const scanCacheSize = 4096

// Scanner builds the local state of the configured sync paths. Keys are
// namespaced: "<label>/<relative path>", matching the authority's layout.
type Scanner struct {
	workDir      string
	cache        *fingerprint.Cache
	excludes     *ignore.GitIgnore
	excludeGlobs []string
}

func NewScanner(workDir string, excludePatterns, excludeGlobs []string) *Scanner {
	return &Scanner{
		workDir:      workDir,
		cache:        fingerprint.NewCache(scanCacheSize),
		excludes:     ignore.CompileIgnoreLines(excludePatterns...),
		excludeGlobs: excludeGlobs,
	}
}

func (s *Scanner) excluded(rel string) bool {
	return s.excludes.MatchesPath(rel) || pathglob.MatchesAny(rel, s.excludeGlobs)
}

// Scan walks every sync path root and returns the local state map. A sync
// path whose root does not exist yet contributes nothing - the diff will
// then classify all its remote content as added.
func (s *Scanner) Scan(ctx context.Context, paths []snapshot.SyncPath) (map[string]snapshot.FileRecord, error) {
	local := make(map[string]snapshot.FileRecord)

	for _, sp := range paths {
		if err := s.scanPath(ctx, sp, local); err != nil {
			return nil, fmt.Errorf("scan %s: %w", sp.Label(), err)
		}
	}
	return local, nil
}

func (s *Scanner) scanPath(ctx context.Context, sp snapshot.SyncPath, local map[string]snapshot.FileRecord) error {
	root := filepath.Join(s.workDir, filepath.FromSlash(sp.Path))
	label := sp.Label()

	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				// absent root: nothing local to record
				return fs.SkipAll
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// never descend into our own data directory
		if d.IsDir() && d.Name() == manifest.DataDirName {
			return fs.SkipDir
		}

		key := label
		if p != root {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				return err
			}
			key = path.Join(label, utils.ToSlashPath(rel))
		}

		if s.excluded(strings.TrimPrefix(key, label+"/")) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		if d.IsDir() {
			local[key] = snapshot.FileRecord{IsDir: true, LastModified: info.ModTime().UTC()}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fp, err := s.cache.File(p, info)
		if err != nil {
			return fmt.Errorf("fingerprint %s: %w", key, err)
		}
		local[key] = snapshot.FileRecord{
			Fingerprint:  fp,
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		}
		return nil
	})
}
