package utils

import (
	"errors"
	"io"
	"os"
	"syscall"
)

// CopyFile copies a file from src to dst, creating parent directories as
// needed. The destination is truncated if it already exists.
func CopyFile(src, dst string) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return err
	}

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}

	return dstFile.Close()
}

// MoveFile renames src to dst, falling back to copy+remove when the rename
// crosses filesystem boundaries.
func MoveFile(src, dst string) error {
	if err := EnsureParent(dst); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		if err := CopyFile(src, dst); err != nil {
			return err
		}
		return os.Remove(src)
	}

	return err
}
