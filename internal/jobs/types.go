package jobs

import (
	"errors"
	"time"
)

type JobStatus string

const (
	JobStatusPending            JobStatus = "pending"
	JobStatusRunning            JobStatus = "running"
	JobStatusCompleted          JobStatus = "completed"
	JobStatusFailed             JobStatus = "failed"
	JobStatusPartiallyCompleted JobStatus = "partially_completed"
	JobStatusCancelled          JobStatus = "cancelled"
)

// Terminal reports whether no further status transition is permitted.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusPartiallyCompleted, JobStatusCancelled:
		return true
	}
	return false
}

type CommandStatus string

const (
	CommandStatusSuccess CommandStatus = "success"
	CommandStatusError   CommandStatus = "error"
	CommandStatusHarmful CommandStatus = "harmful"
	// CommandStatusRunning marks an in-flight partial log entry. It never
	// appears on a command's final persisted log.
	CommandStatusRunning CommandStatus = "running"
)

// Command is one program invocation with arguments and an optional working
// directory.
type Command struct {
	Program    string   `json:"program"`
	Args       []string `json:"args,omitempty"`
	WorkingDir string   `json:"working_dir,omitempty"`
}

type CreateJobRequest struct {
	Commands   []Command         `json:"commands"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Validate checks the request is executable: at least one command, every
// command with a non-empty program name.
func (r CreateJobRequest) Validate() error {
	if len(r.Commands) == 0 {
		return errors.New("at least one command is required")
	}
	for _, c := range r.Commands {
		if c.Program == "" {
			return errors.New("command program must not be empty")
		}
	}
	return nil
}

type Job struct {
	ID         string            `json:"id"`
	Commands   []Command         `json:"commands"`
	WebhookURL string            `json:"webhook_url,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CommandLog is the recorded outcome, partial or final, of executing one
// command within a job. Index is the command's 0-based position in the job.
type CommandLog struct {
	JobID     string        `json:"job_id"`
	Index     int           `json:"index"`
	Command   Command       `json:"command"`
	Output    string        `json:"output"`
	Status    CommandStatus `json:"status"`
	StartTime time.Time     `json:"start_time"`
	EndTime   *time.Time    `json:"end_time,omitempty"`
}

// JobSummary is derived from a job's log set on read; it is never stored.
type JobSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Harmful   int `json:"harmful"`
	Running   int `json:"running"`
}

func Summarize(logs []CommandLog) JobSummary {
	s := JobSummary{Total: len(logs)}
	for _, l := range logs {
		switch l.Status {
		case CommandStatusSuccess:
			s.Succeeded++
		case CommandStatusError:
			s.Failed++
		case CommandStatusHarmful:
			s.Harmful++
		case CommandStatusRunning:
			s.Running++
		}
	}
	return s
}
