package updater

import (
	"errors"
	"fmt"
)

// Typed errors carrying structured context. Retryability is decided by the
// retry package's classifiers on the wrapped cause, never by inspecting
// these wrapper types.

// ValidationError means the working directory is not a usable host
// installation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("environment validation failed: %s", e.Reason)
}

// FileOpError is a failed manifest operation with its path context.
type FileOpError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileOpError) Error() string {
	return fmt.Sprintf("file operation %s failed for %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileOpError) Unwrap() error {
	return e.Err
}

// ProcessError is a failure querying or waiting on the host process.
type ProcessError struct {
	PID int32
	Err error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process monitoring failed for pid %d: %v", e.PID, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// ConfigError is a malformed manifest or sync-path entry.
type ConfigError struct {
	Key string
	Err error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %v", e.Key, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ErrUnsupportedOperation marks manifest operation kinds this build cannot
// execute.
var ErrUnsupportedOperation = errors.New("unsupported update operation")
