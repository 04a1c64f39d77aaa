// Package retry wraps fallible work with exponential backoff and jitter.
//
// It exists for exactly one hard problem in this system: the brief window
// right after the host process exits, when its files may still be locked or
// permission-denied while handles drain. Those failures are transient;
// everything else should fail fast.
package retry

import (
	"context"
	"errors"
	"io/fs"
	"math/rand"
	"os"
	"time"
)

const (
	DefaultMaxAttempts  = 3
	DefaultInitialDelay = 500 * time.Millisecond
	DefaultMaxJitter    = time.Second
)

// Classifier reports whether an error is worth retrying.
type Classifier func(error) bool

// IsTransientIO matches wrapped path/link errors, the usual shape of a
// filesystem operation that hit a locked or busy file.
func IsTransientIO(err error) bool {
	var pathErr *fs.PathError
	var linkErr *os.LinkError
	return errors.As(err, &pathErr) || errors.As(err, &linkErr)
}

// IsPermission matches permission-denied failures.
func IsPermission(err error) bool {
	return errors.Is(err, fs.ErrPermission)
}

// IsTimeout matches deadline and timeout failures.
func IsTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded) || os.IsTimeout(err)
}

// Policy retries an action on classified-transient failures with
// exponentially growing, jittered delays between attempts.
type Policy struct {
	maxAttempts  int
	initialDelay time.Duration
	maxJitter    time.Duration
	classifiers  []Classifier
}

// Option configures a Policy.
type Option func(*Policy)

func WithMaxAttempts(n int) Option {
	return func(p *Policy) {
		p.maxAttempts = n
	}
}

func WithInitialDelay(d time.Duration) Option {
	return func(p *Policy) {
		p.initialDelay = d
	}
}

func WithMaxJitter(d time.Duration) Option {
	return func(p *Policy) {
		p.maxJitter = d
	}
}

// WithClassifier adds an extra retryable-error classifier to the default
// set.
func WithClassifier(c Classifier) Option {
	return func(p *Policy) {
		p.classifiers = append(p.classifiers, c)
	}
}

// WithClassifiers replaces the classifier set entirely.
func WithClassifiers(cs ...Classifier) Option {
	return func(p *Policy) {
		p.classifiers = cs
	}
}

// NewPolicy builds a Policy. Defaults: 3 attempts, 500ms initial delay
// doubling per attempt, up to 1s of uniform jitter, retrying I/O,
// permission-denied and timeout failures.
func NewPolicy(opts ...Option) *Policy {
	p := &Policy{
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		maxJitter:    DefaultMaxJitter,
		classifiers:  []Classifier{IsTransientIO, IsPermission, IsTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.maxAttempts < 1 {
		p.maxAttempts = 1
	}
	return p
}

// Execute runs action up to maxAttempts times. Non-retryable errors and the
// final failed attempt propagate unchanged. The backoff sleep honors ctx, so
// cancellation never waits out a pending delay.
func (p *Policy) Execute(ctx context.Context, action func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = action(); err == nil {
			return nil
		}
		if !p.retryable(err) || attempt >= p.maxAttempts {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff(attempt)):
		}
	}
}

func (p *Policy) retryable(err error) bool {
	for _, classify := range p.classifiers {
		if classify(err) {
			return true
		}
	}
	return false
}

// backoff returns the delay after failed attempt n: initial * 2^(n-1) plus
// uniform jitter.
func (p *Policy) backoff(attempt int) time.Duration {
	delay := p.initialDelay << (attempt - 1)
	if p.maxJitter > 0 {
		delay += time.Duration(rand.Int63n(int64(p.maxJitter)))
	}
	return delay
}
