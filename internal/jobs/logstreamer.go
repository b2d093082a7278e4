package jobs

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamEvent is one message on a job's live stream: a job status change, an
// output line from a command, or a command's terminal status.
type StreamEvent struct {
	Type      string        `json:"type"` // "job_status", "line", "command_status"
	JobID     string        `json:"job_id"`
	Index     int           `json:"index,omitempty"`
	Line      string        `json:"line,omitempty"`
	JobStatus JobStatus     `json:"job_status,omitempty"`
	Status    CommandStatus `json:"command_status,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// LogStreamer fans job stream events out to websocket subscribers.
type LogStreamer struct {
	mu          sync.Mutex
	subscribers map[string][]*websocket.Conn
}

func NewLogStreamer() *LogStreamer {
	return &LogStreamer{
		subscribers: make(map[string][]*websocket.Conn),
	}
}

// Subscribe adds a subscriber to a job's stream.
func (ls *LogStreamer) Subscribe(jobID string, conn *websocket.Conn) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.subscribers[jobID] = append(ls.subscribers[jobID], conn)
}

// Unsubscribe removes a subscriber from a job's stream.
func (ls *LogStreamer) Unsubscribe(jobID string, conn *websocket.Conn) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	subscribers := ls.subscribers[jobID]
	for i, s := range subscribers {
		if s == conn {
			ls.subscribers[jobID] = append(subscribers[:i], subscribers[i+1:]...)
			break
		}
	}
}

// Broadcast sends an event to all subscribers of a job, pruning connections
// that fail to accept the write.
func (ls *LogStreamer) Broadcast(jobID string, event StreamEvent) {
	event.JobID = jobID
	event.Timestamp = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Error("failed to encode stream event", "job_id", jobID, "error", err)
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()
	subscribers := ls.subscribers[jobID]
	live := subscribers[:0]
	for _, conn := range subscribers {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			_ = conn.Close()
			continue
		}
		live = append(live, conn)
	}
	if len(live) == 0 {
		delete(ls.subscribers, jobID)
		return
	}
	ls.subscribers[jobID] = live
}

// Close closes all connections for a job.
func (ls *LogStreamer) Close(jobID string) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, conn := range ls.subscribers[jobID] {
		_ = conn.Close()
	}
	delete(ls.subscribers, jobID)
}
