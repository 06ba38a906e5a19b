package jobs

import (
	"fmt"
	"sort"
	"sync"

	"mediabatch/internal/services"
)

// Registry holds every job known to the process. Jobs are never evicted.
type Registry struct {
	mu      sync.Mutex
	jobs    map[string]*Job
	handles map[string]chan struct{}
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]*Job),
		handles: make(map[string]chan struct{}),
	}
}

// add registers a new job along with the channel closed when its task exits.
func (r *Registry) add(job Job) (chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return nil, fmt.Errorf("job %s already registered", job.ID)
	}
	stored := job.Clone()
	r.jobs[job.ID] = &stored
	done := make(chan struct{})
	r.handles[job.ID] = done
	return done, nil
}

// restore inserts a job loaded from history. It has no running task.
func (r *Registry) restore(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return
	}
	stored := job.Clone()
	r.jobs[job.ID] = &stored
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "get", "job "+id, nil)
	}
	return job.Clone(), nil
}

// List returns snapshots ordered by creation time.
func (r *Registry) List() []Job {
	r.mu.Lock()
	out := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job.Clone())
	}
	r.mu.Unlock()
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// update applies fn to the stored job under the lock and returns a snapshot.
// fn may change Status only along a permitted transition.
func (r *Registry) update(id string, fn func(*Job) error) (Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, services.Wrap(services.ErrNotFound, "jobs", "update", "job "+id, nil)
	}
	working := job.Clone()
	if err := fn(&working); err != nil {
		return Job{}, err
	}
	if working.Status != job.Status && !job.Status.CanTransition(working.Status) {
		return Job{}, fmt.Errorf("job %s: invalid transition %s -> %s", id, job.Status, working.Status)
	}
	*job = working
	return working.Clone(), nil
}

// done returns the channel closed when the job's task exits, or nil for
// restored jobs.
func (r *Registry) done(id string) (chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return nil, false
	}
	return r.handles[id], true
}
