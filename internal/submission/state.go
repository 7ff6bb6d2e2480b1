package submission

import (
	"sync"
)

// record holds the mutable state of one submission.
type record struct {
	state      string
	jobs       int
	completion Completion
}

// stateRepo tracks submission states with thread-safe access. Submissions
// are held in memory only; a restart forgets them, but their jobs continue
// in the engine.
type stateRepo struct {
	mu   sync.RWMutex
	subs map[string]*record
}

// newStateRepo creates a new state repository.
func newStateRepo() *stateRepo {
	return &stateRepo{
		subs: make(map[string]*record),
	}
}

// create registers a new submission in the staging state.
func (r *stateRepo) create(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = &record{state: StateStaging}
}

// setState transitions a submission to a new state.
func (r *stateRepo) setState(id, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.subs[id]; ok {
		rec.state = state
	}
}

// setBatch records the batch size observed at submission time.
func (r *stateRepo) setBatch(id string, jobs int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.subs[id]; ok {
		rec.jobs = jobs
	}
}

// setCompletion records how batch completion was observed.
func (r *stateRepo) setCompletion(id string, c Completion) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.subs[id]; ok {
		rec.completion = c
	}
}

// get retrieves a submission's status.
func (r *stateRepo) get(id string) (Status, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.subs[id]
	if !ok {
		return Status{}, false
	}
	return Status{
		ID:         id,
		State:      rec.state,
		Jobs:       rec.jobs,
		Completion: rec.completion,
	}, true
}
