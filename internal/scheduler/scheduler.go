// Package scheduler runs named periodic jobs until cancelled.
package scheduler

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a periodic task. Run is invoked once at startup and then on
// every interval tick until the context is cancelled.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context)
}

// Scheduler drives a fixed set of jobs, each on its own goroutine.
type Scheduler struct {
	jobs []Job
}

// New creates a scheduler for the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs}
}

// Run starts all jobs and blocks until the context is cancelled and
// every job goroutine has returned. A job that is mid-run when the
// context is cancelled finishes its current invocation.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runJob(ctx, job)
		}(job)
	}
	wg.Wait()
}

func (s *Scheduler) runJob(ctx context.Context, job Job) {
	log.Printf("Scheduling %s every %s", job.Name, job.Interval)

	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	job.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Stopping %s", job.Name)
			return
		case <-ticker.C:
			job.Run(ctx)
		}
	}
}
