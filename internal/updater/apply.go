package updater

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/modforge/modsync/internal/manifest"
	"github.com/modforge/modsync/internal/utils"
)

// applyOperation executes one manifest operation. Sources resolve under the
// staging area, destinations under the target root. Both are confined to
// their base directory; a manifest cannot climb out with `..`.
func (c *Coordinator) applyOperation(op manifest.Operation) error {
	switch op.Type {
	case manifest.OpCopyFile:
		src, err := c.stagingPath(op.Source)
		if err != nil {
			return err
		}
		dst, err := c.targetPath(op.Destination)
		if err != nil {
			return err
		}
		if err := utils.CopyFile(src, dst); err != nil {
			return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: err}
		}

	case manifest.OpMoveFile:
		src, err := c.stagingPath(op.Source)
		if err != nil {
			return err
		}
		dst, err := c.targetPath(op.Destination)
		if err != nil {
			return err
		}
		if err := utils.MoveFile(src, dst); err != nil {
			return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: err}
		}

	case manifest.OpCreateDir:
		dst, err := c.targetPath(op.Destination)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dst, 0o755); err != nil {
			return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: err}
		}

	case manifest.OpDeleteFile:
		dst, err := c.targetPath(op.Destination)
		if err != nil {
			return err
		}
		if err := removeIfExists(dst); err != nil {
			return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: err}
		}

	case manifest.OpExtractArchive:
		src, err := c.stagingPath(op.Source)
		if err != nil {
			return err
		}
		dst, err := c.targetPath(op.Destination)
		if err != nil {
			return err
		}
		if err := extractZip(src, dst); err != nil {
			return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: err}
		}

	case manifest.OpDecryptFile:
		// no key management in this build; reject rather than pretend
		return &FileOpError{Op: string(op.Type), Path: op.Destination, Err: ErrUnsupportedOperation}

	default:
		return &ConfigError{Key: "operation.type", Err: fmt.Errorf("unknown type %q", op.Type)}
	}

	return nil
}

// stagingPath resolves rel under the staging dir, rejecting escapes.
func (c *Coordinator) stagingPath(rel string) (string, error) {
	return secureJoin(c.layout.StagingDir(), rel, "source")
}

// targetPath resolves rel under the installation root. Unlike staged
// sources, destinations may legitimately climb out of the root with `..`
// when a sync path lives beside the installation, so only the fully
// resolved path is checked for emptiness, not containment.
func (c *Coordinator) targetPath(rel string) (string, error) {
	if rel == "" {
		return "", &ConfigError{Key: "operation.destination", Err: fmt.Errorf("empty path")}
	}
	return filepath.Join(c.layout.Root, filepath.FromSlash(rel)), nil
}

func secureJoin(base, rel, what string) (string, error) {
	if rel == "" {
		return "", &ConfigError{Key: "operation." + what, Err: fmt.Errorf("empty path")}
	}
	joined := filepath.Join(base, filepath.FromSlash(rel))
	if joined != base && !strings.HasPrefix(joined, base+string(filepath.Separator)) {
		return "", &ConfigError{Key: "operation." + what, Err: fmt.Errorf("path %q escapes %s", rel, what)}
	}
	return joined, nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func extractZip(src, destDir string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		outPath, err := secureJoin(destDir, f.Name, "archive entry")
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(outPath, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := utils.EnsureParent(outPath); err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return err
		}
		out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode().Perm())
		if err != nil {
			rc.Close()
			return err
		}
		_, copyErr := io.Copy(out, rc)
		rc.Close()
		if closeErr := out.Close(); copyErr == nil {
			copyErr = closeErr
		}
		if copyErr != nil {
			return copyErr
		}
	}
	return nil
}
