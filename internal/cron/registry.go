package cron

import (
	"context"
	"fmt"
)

// Job is one maintenance task of a cycle. Run reports how many rows it
// changed.
type Job interface {
	Name() string
	Run(ctx context.Context) (int64, error)
}

// Registry holds the jobs of a cycle in run order. Names are unique.
type Registry struct {
	jobs   []Job
	byName map[string]Job
}

// NewRegistry registers jobs in order; nil entries are skipped.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{byName: map[string]Job{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Register(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register appends job. A second job under the same name is rejected.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return fmt.Errorf("nil job")
	}
	if r.byName == nil {
		r.byName = map[string]Job{}
	}
	name := job.Name()
	if name == "" {
		return fmt.Errorf("job name required")
	}
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	r.byName[name] = job
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs in run order.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}

// Select returns the named jobs in run order, or every job when names is
// empty.
func (r *Registry) Select(names ...string) ([]Job, error) {
	if len(names) == 0 {
		return r.Jobs(), nil
	}
	want := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := r.byName[name]; !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		want[name] = true
	}
	var out []Job
	for _, job := range r.jobs {
		if want[job.Name()] {
			out = append(out, job)
		}
	}
	return out, nil
}
