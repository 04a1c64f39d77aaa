package procmon

import (
	"context"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// a pid far above any default pid_max
const bogusPID int32 = 1<<31 - 2

func TestIsAlive(t *testing.T) {
	m := New()

	assert.True(t, m.IsAlive(int32(os.Getpid())))
	assert.False(t, m.IsAlive(0))
	assert.False(t, m.IsAlive(-1))
	assert.False(t, m.IsAlive(bogusPID))
}

func TestWaitForExitDeadPidCompletesImmediately(t *testing.T) {
	m := New()

	start := time.Now()
	err := m.WaitForExit(context.Background(), bogusPID, nil)

	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForExitCancellation(t *testing.T) {
	m := New() // default 1s interval; cancellation must not wait it out

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := m.WaitForExit(ctx, int32(os.Getpid()), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWaitForExitPollCallback(t *testing.T) {
	m := New(WithPollInterval(10 * time.Millisecond))

	var polls atomic.Int32
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := m.WaitForExit(ctx, int32(os.Getpid()), func(iteration int) {
		polls.Add(1)
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestWaitForExitObservesRealExit(t *testing.T) {
	m := New(WithPollInterval(10 * time.Millisecond))

	// a short-lived child process
	proc, err := os.StartProcess("/bin/sleep", []string{"sleep", "0.05"}, &os.ProcAttr{})
	if err != nil {
		t.Skipf("cannot start child process: %v", err)
	}
	// reap promptly so the child doesn't linger as a zombie
	go proc.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = m.WaitForExit(ctx, int32(proc.Pid), nil)
	assert.NoError(t, err)
}
