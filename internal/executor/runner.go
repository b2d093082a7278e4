package executor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// Result is the terminal outcome of running one command. Err is set for
// spawn and I/O failures; a non-zero exit code alone leaves Err nil.
type Result struct {
	JobID     string
	Index     int
	ExitCode  int
	Output    string
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Err       error
}

// LineSink receives output lines as they are produced. Runner implementations
// call Line synchronously before reading further, so a slow sink applies
// backpressure to the child's output stream.
type LineSink interface {
	Line(line string)
}

type Runner interface {
	// Run executes one command as a child process with stderr merged into
	// stdout, streaming each output line to sink. It never returns an
	// error: failures are reported through Result.Err.
	Run(ctx context.Context, jobID string, index int, program string, args []string, workingDir string, sink LineSink) *Result

	// Cancel forcefully terminates every live process registered for the
	// job and clears its registry entry. It returns true if at least one
	// handle was live.
	Cancel(jobID string) bool
}

// RunnerConfig customizes execution behavior.
type RunnerConfig struct {
	CommandTimeout time.Duration // 0 disables the per-command timeout
	MaxLineSize    int           // scanner buffer for long lines, bytes
}

type RunnerOption func(*execRunner)

func WithCommandTimeout(d time.Duration) RunnerOption {
	return func(r *execRunner) {
		r.config.CommandTimeout = d
	}
}

func WithMaxLineSize(n int) RunnerOption {
	return func(r *execRunner) {
		r.config.MaxLineSize = n
	}
}

func NewExecRunner(opts ...RunnerOption) Runner {
	r := &execRunner{
		config:   RunnerConfig{MaxLineSize: 64 * 1024},
		registry: newProcessRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type execRunner struct {
	config   RunnerConfig
	registry *processRegistry
}

func (er *execRunner) Run(ctx context.Context, jobID string, index int, program string, args []string, workingDir string, sink LineSink) *Result {
	result := &Result{
		JobID:     jobID,
		Index:     index,
		StartTime: time.Now().UTC(),
	}

	if er.config.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, er.config.CommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, program, args...)
	if workingDir != "" {
		cmd.Dir = workingDir
	}

	// Merge stderr into stdout so output arrives as one interleaved
	// stream in emission order.
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return er.fail(result, fmt.Errorf("failed to open output pipe: %w", err))
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return er.fail(result, fmt.Errorf("failed to start command: %w", err))
	}

	er.registry.add(jobID, cmd.Process)
	defer er.registry.remove(jobID, cmd.Process)

	var buf strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, er.config.MaxLineSize), er.config.MaxLineSize)
	for scanner.Scan() {
		line := scanner.Text()
		if sink != nil {
			sink.Line(line)
		}
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	scanErr := scanner.Err()

	waitErr := cmd.Wait()
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.Output = buf.String()

	if scanErr != nil {
		result.Err = fmt.Errorf("failed to read command output: %w", scanErr)
		result.ExitCode = -1
		result.Output += result.Err.Error() + "\n"
		return result
	}

	if waitErr != nil {
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			result.ExitCode = -1
			result.Err = fmt.Errorf("command execution failed: %w", waitErr)
			result.Output += result.Err.Error() + "\n"
		}
		return result
	}

	result.ExitCode = 0
	return result
}

func (er *execRunner) Cancel(jobID string) bool {
	handles := er.registry.take(jobID)
	if len(handles) == 0 {
		return false
	}
	for _, p := range handles {
		if err := p.Kill(); err != nil {
			// One stubborn process must not block termination of
			// the job's other processes.
			slog.Warn("failed to kill process", "job_id", jobID, "pid", p.Pid, "error", err)
		}
	}
	return true
}

func (er *execRunner) fail(result *Result, err error) *Result {
	result.EndTime = time.Now().UTC()
	result.Duration = result.EndTime.Sub(result.StartTime)
	result.ExitCode = -1
	result.Err = err
	result.Output = err.Error() + "\n"
	slog.Error("command execution failed",
		"job_id", result.JobID,
		"command_index", result.Index,
		"error", err,
	)
	return result
}
