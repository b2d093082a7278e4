package jobs

import (
	"sort"
	"sync"
)

// Store is the durability boundary for jobs and their command logs. SaveLog
// upserts by (jobID, index): a RUNNING partial entry is replaced in place by
// later writes for the same index, so a log query returns at most one entry
// per command.
type Store interface {
	Create(job *Job) error
	Update(job *Job) error
	Get(id string) (Job, bool)
	SaveLog(log CommandLog) error
	Logs(jobID string) []CommandLog
}

type InMemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
	logs map[string]map[int]CommandLog
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs: make(map[string]Job),
		logs: make(map[string]map[int]CommandLog),
	}
}

func (s *InMemoryStore) Create(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

func (s *InMemoryStore) Update(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// Get returns a copy; callers mutate their own snapshot and write back via
// Update.
func (s *InMemoryStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

func (s *InMemoryStore) SaveLog(log CommandLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byIndex, ok := s.logs[log.JobID]
	if !ok {
		byIndex = make(map[int]CommandLog)
		s.logs[log.JobID] = byIndex
	}
	byIndex[log.Index] = log
	return nil
}

func (s *InMemoryStore) Logs(jobID string) []CommandLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byIndex := s.logs[jobID]
	out := make([]CommandLog, 0, len(byIndex))
	for _, l := range byIndex {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
