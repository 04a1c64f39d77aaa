package utils

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// ResolvePath expands `~` and returns a cleaned absolute path.
func ResolvePath(path string) (string, error) {
	if path == "" {
		return "", errors.New("path cannot be empty")
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", errors.New("failed to retrieve home directory")
		}
		path = strings.Replace(path, "~", homeDir, 1)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	return filepath.Clean(absPath), nil
}

func EnsureParent(path string) error {
	return EnsureDir(filepath.Dir(path))
}

func EnsureDir(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.MkdirAll(path, 0o755)
}

func DirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// ToSlashPath normalizes a relative path to canonical forward-slash form.
func ToSlashPath(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// EncodePathSegments percent-encodes each segment of a forward-slash path
// individually. Literal `..` segments survive unescaped, while any slash
// embedded in a segment becomes %2F, so the segment boundaries of the
// original path are unambiguous in the encoded form.
func EncodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	encoded := make([]string, len(segments))
	for i, seg := range segments {
		encoded[i] = url.PathEscape(seg)
	}
	return strings.Join(encoded, "/")
}

// DecodePathSegments reverses EncodePathSegments. Segments that fail to
// decode are kept as-is rather than dropping the path.
func DecodePathSegments(path string) string {
	segments := strings.Split(path, "/")
	decoded := make([]string, len(segments))
	for i, seg := range segments {
		d, err := url.PathUnescape(seg)
		if err != nil {
			d = seg
		}
		decoded[i] = d
	}
	return strings.Join(decoded, "/")
}
