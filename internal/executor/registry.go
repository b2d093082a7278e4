package executor

import (
	"os"
	"sync"
)

// processRegistry tracks live child processes per job so cancellation can
// reach them. Multiple jobs insert and remove concurrently; a job may hold
// several handles at once.
type processRegistry struct {
	mu    sync.Mutex
	procs map[string][]*os.Process
}

func newProcessRegistry() *processRegistry {
	return &processRegistry{procs: make(map[string][]*os.Process)}
}

func (r *processRegistry) add(jobID string, p *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.procs[jobID] = append(r.procs[jobID], p)
}

// remove drops one handle; the job's entry disappears entirely once its
// handle list is empty.
func (r *processRegistry) remove(jobID string, p *os.Process) {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := r.procs[jobID]
	for i, h := range handles {
		if h == p {
			handles = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	if len(handles) == 0 {
		delete(r.procs, jobID)
		return
	}
	r.procs[jobID] = handles
}

// take returns the job's live handles and clears its entry unconditionally.
func (r *processRegistry) take(jobID string) []*os.Process {
	r.mu.Lock()
	defer r.mu.Unlock()
	handles := r.procs[jobID]
	delete(r.procs, jobID)
	return handles
}
