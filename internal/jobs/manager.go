package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mustafaguc/command-service/internal/executor"
	"github.com/mustafaguc/command-service/internal/webhook"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobNotCancellable = errors.New("job is not cancellable")
	ErrManagerStopped    = errors.New("manager stopped")
)

// Validator gates commands before execution. IsSafe must be checked against
// the original command; Sanitize runs only after the gate passes.
type Validator interface {
	IsSafe(cmd Command) bool
	Sanitize(cmd Command) Command
}

// Manager owns the job lifecycle state machine. Jobs run concurrently on a
// worker pool; commands within one job run strictly sequentially.
type Manager struct {
	concurrency int
	jobsChan    chan string
	wg          sync.WaitGroup
	mu          sync.RWMutex
	stopped     bool
	store       Store
	sender      webhook.Sender
	runner      executor.Runner
	validator   Validator
	streamer    *LogStreamer
}

func NewManager(poolSize int, store Store, sender webhook.Sender, runner executor.Runner, validator Validator, streamer *LogStreamer) (*Manager, error) {
	if poolSize <= 0 {
		return nil, errors.New("pool size must be > 0")
	}

	m := &Manager{
		concurrency: poolSize,
		jobsChan:    make(chan string, 1024),
		store:       store,
		sender:      sender,
		runner:      runner,
		validator:   validator,
		streamer:    streamer,
	}
	for i := 0; i < m.concurrency; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for id := range m.jobsChan {
				m.safeExecute(id)
			}
		}()
	}
	return m, nil
}

func (m *Manager) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	m.mu.Unlock()
	close(m.jobsChan)
	m.wg.Wait()
}

// Submit persists a PENDING job and schedules it for asynchronous execution.
// It returns immediately; completion ordering relative to the response is
// undefined.
func (m *Manager) Submit(ctx context.Context, req CreateJobRequest) (*Job, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	job := &Job{
		ID:         uuid.NewString(),
		Commands:   req.Commands,
		WebhookURL: req.WebhookURL,
		Metadata:   req.Metadata,
		Status:     JobStatusPending,
		CreatedAt:  time.Now().UTC(),
	}

	// Holding the read lock across persist-and-enqueue keeps Stop from
	// closing the channel between the stopped check and the send, and
	// means a rejected submission never leaves a PENDING record behind.
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}
	if err := m.store.Create(job); err != nil {
		return nil, err
	}
	JobsSubmittedTotal.Inc()
	// Enqueue; may block if the queue is full.
	m.jobsChan <- job.ID
	return job, nil
}

func (m *Manager) Get(id string) (Job, bool) {
	return m.store.Get(id)
}

func (m *Manager) Logs(id string) []CommandLog {
	return m.store.Logs(id)
}

// Cancel forcefully terminates the job's live processes and moves it to
// CANCELLED. Terminal jobs are rejected with ErrJobNotCancellable. The
// in-flight execution observes the new status on its next per-command check
// and stops dispatching.
func (m *Manager) Cancel(id string) (*Job, error) {
	job, ok := m.store.Get(id)
	if !ok {
		return nil, ErrJobNotFound
	}
	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return nil, ErrJobNotCancellable
	}

	// Persist the terminal transition before killing: the worker re-checks
	// the stored status when Run returns, so the status write must land
	// first or the killed command gets a final ERROR log and the next
	// command is dispatched.
	now := time.Now().UTC()
	job.Status = JobStatusCancelled
	job.CompletedAt = &now
	if err := m.store.Update(&job); err != nil {
		return nil, err
	}

	killed := m.runner.Cancel(id)
	slog.Info("job cancelled", "job_id", id, "processes_killed", killed)
	JobsCompletedTotal.WithLabelValues(string(JobStatusCancelled)).Inc()
	m.streamer.Broadcast(id, StreamEvent{Type: "job_status", JobStatus: JobStatusCancelled})
	go m.notify(job)
	return &job, nil
}

func (m *Manager) safeExecute(id string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job execution panicked", "job_id", id, "panic", r)
			if job, ok := m.store.Get(id); ok && !job.Status.Terminal() {
				m.failJob(&job, fmt.Errorf("panic: %v", r))
			}
		}
	}()
	m.execute(id)
}

func (m *Manager) execute(id string) {
	job, ok := m.store.Get(id)
	if !ok {
		slog.Warn("job not found", "job_id", id)
		return
	}
	// Covers cancellation while the job was still queued.
	if job.Status != JobStatusPending {
		return
	}

	now := time.Now().UTC()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	if err := m.store.Update(&job); err != nil {
		m.failJob(&job, err)
		return
	}
	JobsInProgress.Inc()
	defer JobsInProgress.Dec()
	defer m.streamer.Close(id)
	m.streamer.Broadcast(id, StreamEvent{Type: "job_status", JobStatus: JobStatusRunning})

	for i, cmd := range job.Commands {
		if m.isCancelled(id) {
			slog.Info("job cancelled, stopping dispatch", "job_id", id, "next_index", i)
			return
		}

		if !m.validator.IsSafe(cmd) {
			rejected := time.Now().UTC()
			if err := m.persistFinalLog(CommandLog{
				JobID:     id,
				Index:     i,
				Command:   cmd,
				Output:    "command rejected as harmful\n",
				Status:    CommandStatusHarmful,
				StartTime: rejected,
				EndTime:   &rejected,
			}); err != nil {
				m.failJob(&job, err)
				return
			}
			slog.Warn("harmful command skipped", "job_id", id, "command_index", i, "program", cmd.Program)
			continue
		}

		sanitized := m.validator.Sanitize(cmd)
		sink := &progressSink{
			manager:   m,
			jobID:     id,
			index:     i,
			command:   sanitized,
			startTime: time.Now().UTC(),
		}
		result := m.runner.Run(context.Background(), id, i, sanitized.Program, sanitized.Args, sanitized.WorkingDir, sink)

		// A command killed by cancellation keeps its last RUNNING
		// partial log; no final entry is written for it.
		if m.isCancelled(id) {
			slog.Info("job cancelled mid-command", "job_id", id, "command_index", i)
			return
		}

		status := CommandStatusSuccess
		if result.Err != nil || result.ExitCode != 0 {
			status = CommandStatusError
		}
		if err := m.persistFinalLog(CommandLog{
			JobID:     id,
			Index:     i,
			Command:   sanitized,
			Output:    result.Output,
			Status:    status,
			StartTime: result.StartTime,
			EndTime:   &result.EndTime,
		}); err != nil {
			m.failJob(&job, err)
			return
		}
		CommandDuration.Observe(result.Duration.Seconds())
	}

	if m.isCancelled(id) {
		return
	}

	final := classify(m.store.Logs(id))
	done := time.Now().UTC()
	job.Status = final
	job.CompletedAt = &done
	if err := m.store.Update(&job); err != nil {
		m.failJob(&job, err)
		return
	}
	JobsCompletedTotal.WithLabelValues(string(final)).Inc()
	m.streamer.Broadcast(id, StreamEvent{Type: "job_status", JobStatus: final})
	slog.Info("job finished", "job_id", id, "status", final, "commands", len(job.Commands))
	go m.notify(job)
}

func (m *Manager) isCancelled(id string) bool {
	cur, ok := m.store.Get(id)
	return ok && cur.Status == JobStatusCancelled
}

// classify aggregates final per-command statuses into the job outcome. A
// HARMFUL command counts with the successes: it was skipped, not failed.
func classify(logs []CommandLog) JobStatus {
	var errored, ok int
	for _, l := range logs {
		switch l.Status {
		case CommandStatusError:
			errored++
		case CommandStatusSuccess, CommandStatusHarmful:
			ok++
		}
	}
	switch {
	case errored == 0:
		return JobStatusCompleted
	case ok == 0:
		return JobStatusFailed
	default:
		return JobStatusPartiallyCompleted
	}
}

func (m *Manager) persistFinalLog(log CommandLog) error {
	if err := m.store.SaveLog(log); err != nil {
		return fmt.Errorf("failed to persist command log: %w", err)
	}
	CommandsExecutedTotal.WithLabelValues(string(log.Status)).Inc()
	m.streamer.Broadcast(log.JobID, StreamEvent{Type: "command_status", Index: log.Index, Status: log.Status})
	return nil
}

// failJob forces the job to FAILED after an engine-level failure, preserving
// StartedAt. The failure never escapes the worker goroutine.
func (m *Manager) failJob(job *Job, cause error) {
	slog.Error("job failed", "job_id", job.ID, "error", cause)
	now := time.Now().UTC()
	job.Status = JobStatusFailed
	job.CompletedAt = &now
	if err := m.store.Update(job); err != nil {
		slog.Error("failed to persist job failure", "job_id", job.ID, "error", err)
	}
	JobsCompletedTotal.WithLabelValues(string(JobStatusFailed)).Inc()
	m.streamer.Broadcast(job.ID, StreamEvent{Type: "job_status", JobStatus: JobStatusFailed})
	go m.notify(*job)
}

// notify delivers the terminal snapshot to the job's webhook, if configured.
// Delivery failures are logged and never alter persisted job state.
func (m *Manager) notify(job Job) {
	if job.WebhookURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	event := webhook.Event{
		JobID:     job.ID,
		Status:    string(job.Status),
		Timestamp: time.Now().UTC(),
		Job:       job,
		Summary:   Summarize(m.store.Logs(job.ID)),
		Metadata:  job.Metadata,
	}
	if err := m.sender.Notify(ctx, job.WebhookURL, event); err != nil {
		slog.Error("webhook notification failed", "job_id", job.ID, "url", job.WebhookURL, "error", err)
	}
}

// progressSink persists a RUNNING partial log per output line, superseding
// the previous partial for the same index, and mirrors the line to stream
// subscribers.
type progressSink struct {
	manager   *Manager
	jobID     string
	index     int
	command   Command
	startTime time.Time
	buf       strings.Builder
}

func (s *progressSink) Line(line string) {
	s.buf.WriteString(line)
	s.buf.WriteString("\n")
	partial := CommandLog{
		JobID:     s.jobID,
		Index:     s.index,
		Command:   s.command,
		Output:    s.buf.String(),
		Status:    CommandStatusRunning,
		StartTime: s.startTime,
	}
	if err := s.manager.store.SaveLog(partial); err != nil {
		slog.Warn("failed to persist partial log", "job_id", s.jobID, "command_index", s.index, "error", err)
	}
	s.manager.streamer.Broadcast(s.jobID, StreamEvent{Type: "line", Index: s.index, Line: line})
}
