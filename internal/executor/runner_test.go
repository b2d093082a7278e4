package executor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collectSink struct {
	lines []string
}

func (c *collectSink) Line(line string) {
	c.lines = append(c.lines, line)
}

func TestRun_Success(t *testing.T) {
	r := NewExecRunner()
	sink := &collectSink{}

	result := r.Run(context.Background(), "job-1", 0, "echo", []string{"hi"}, "", sink)

	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, "hi\n", result.Output)
	assert.Equal(t, []string{"hi"}, sink.lines)
	assert.Equal(t, "job-1", result.JobID)
	assert.False(t, result.EndTime.Before(result.StartTime))
}

func TestRun_MergesStderrIntoStdout(t *testing.T) {
	r := NewExecRunner()
	sink := &collectSink{}

	result := r.Run(context.Background(), "job-1", 0, "sh", []string{"-c", "echo out && echo err 1>&2"}, "", sink)

	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "out\n")
	assert.Contains(t, result.Output, "err\n")
	assert.Len(t, sink.lines, 2)
}

func TestRun_NonZeroExit(t *testing.T) {
	r := NewExecRunner()

	result := r.Run(context.Background(), "job-1", 0, "false", nil, "", nil)

	assert.NoError(t, result.Err)
	assert.NotEqual(t, 0, result.ExitCode)
}

func TestRun_SpawnFailure(t *testing.T) {
	r := NewExecRunner()

	result := r.Run(context.Background(), "job-1", 0, "definitely-not-a-real-binary", nil, "", nil)

	require.Error(t, result.Err)
	assert.Equal(t, -1, result.ExitCode)
	assert.NotEmpty(t, result.Output)
}

func TestRun_WorkingDir(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	r := NewExecRunner()
	result := r.Run(context.Background(), "job-1", 0, "pwd", nil, dir, nil)

	require.NoError(t, result.Err)
	assert.Equal(t, 0, result.ExitCode)
	assert.Equal(t, resolved, strings.TrimSpace(result.Output))
}

func TestRun_Timeout(t *testing.T) {
	r := NewExecRunner(WithCommandTimeout(100 * time.Millisecond))

	start := time.Now()
	result := r.Run(context.Background(), "job-1", 0, "sleep", []string{"10"}, "", nil)

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.NotEqual(t, 0, result.ExitCode)
}

func TestCancel_KillsLiveProcess(t *testing.T) {
	r := NewExecRunner()
	done := make(chan *Result, 1)

	go func() {
		done <- r.Run(context.Background(), "job-1", 0, "sleep", []string{"30"}, "", nil)
	}()

	// Cancel reports false until the process is registered, true once the
	// kill was attempted.
	require.Eventually(t, func() bool {
		return r.Cancel("job-1")
	}, 5*time.Second, 10*time.Millisecond)

	select {
	case result := <-done:
		assert.NotEqual(t, 0, result.ExitCode)
	case <-time.After(5 * time.Second):
		t.Fatal("killed process did not exit")
	}

	// Registry entry is gone; a second cancel is a no-op.
	assert.False(t, r.Cancel("job-1"))
}

func TestCancel_NoLiveProcesses(t *testing.T) {
	r := NewExecRunner()
	assert.False(t, r.Cancel("unknown-job"))
}

func TestRegistry(t *testing.T) {
	reg := newProcessRegistry()
	p1, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	p2, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)

	reg.add("job-1", p1)
	reg.add("job-1", p2)
	reg.add("job-2", p1)

	reg.remove("job-1", p1)
	assert.Equal(t, []*os.Process{p2}, reg.take("job-1"))
	// Entry is cleared by take.
	assert.Empty(t, reg.take("job-1"))

	reg.remove("job-2", p1)
	assert.Empty(t, reg.take("job-2"))
}
