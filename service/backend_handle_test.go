package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcess struct {
	pid        int
	exitCode   int
	exited     bool
	killed     bool
	killErr    error
	cmdline    string
	hasCmdline bool
}

func (f *fakeProcess) Pid() int { return f.pid }
func (f *fakeProcess) CommandLine() (string, bool) {
	return f.cmdline, f.hasCmdline
}
func (f *fakeProcess) Poll() (int, bool) { return f.exitCode, f.exited }
func (f *fakeProcess) Kill() error {
	f.killed = true
	return f.killErr
}

func TestBackendHandle_ResolvesToProcess(t *testing.T) {
	h := newBackendHandle()
	assert.False(t, h.Ready())

	proc := &fakeProcess{pid: 42}
	h.SetResult(proc)

	assert.True(t, h.Ready())
	err := h.WaitReady(context.Background(), time.Second)
	assert.NoError(t, err)

	exitCode, exited := h.PollExit()
	assert.False(t, exited)
	assert.Equal(t, 0, exitCode)
}

func TestBackendHandle_ResolvesToFailure(t *testing.T) {
	h := newBackendHandle()
	h.SetResult(nil)

	assert.True(t, h.Ready())
	err := h.WaitReady(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrStartupFailed)

	exitCode, exited := h.PollExit()
	assert.True(t, exited)
	assert.Equal(t, -1, exitCode)
}

func TestBackendHandle_SetResultIdempotent(t *testing.T) {
	h := newBackendHandle()
	first := &fakeProcess{pid: 1}
	h.SetResult(first)
	h.SetResult(&fakeProcess{pid: 2}) // should be ignored
	h.SetResult(nil)                  // should be ignored

	require.True(t, h.Ready())
	err := h.WaitReady(context.Background(), time.Second)
	assert.NoError(t, err, "second SetResult(nil) must not flip an already-resolved success")
}

func TestBackendHandle_WaitReadyTimesOut(t *testing.T) {
	h := newBackendHandle()
	err := h.WaitReady(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBackendHandle_WaitReadyContextCancelled(t *testing.T) {
	h := newBackendHandle()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := h.WaitReady(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBackendHandle_ForceKill(t *testing.T) {
	h := newBackendHandle()
	// No-op before resolution.
	assert.NoError(t, h.ForceKill())

	proc := &fakeProcess{pid: 7}
	h.SetResult(proc)
	assert.NoError(t, h.ForceKill())
	assert.True(t, proc.killed)
}

func TestBackendHandle_ForceKillNoopAfterFailure(t *testing.T) {
	h := newBackendHandle()
	h.SetResult(nil)
	assert.NoError(t, h.ForceKill())
}

func TestBackendHandle_PollExitBeforeResolution(t *testing.T) {
	h := newBackendHandle()
	_, exited := h.PollExit()
	assert.False(t, exited)
}
