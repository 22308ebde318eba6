// Package digest sends periodic summary of tracked job applications on a cron schedule
package digest

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/robfig/cron/v3"

	"github.com/umputun/jobtrack/app/backend"
)

// Cron interface defines basic robfig/cron methods used by scheduler
type Cron interface {
	Start()
	Stop() context.Context
	Schedule(schedule cron.Schedule, cmd cron.Job) cron.EntryID
}

// Lister returns all jobs, implemented by tracker.Service
type Lister interface {
	List(ctx context.Context) ([]backend.Job, error)
}

// Notifier delivers the digest, implemented by notify.Service
type Notifier interface {
	SendDigest(ctx context.Context, jobs []backend.Job) error
}

// Scheduler runs digest on the schedule
type Scheduler struct {
	Cron
	Spec     string // standard cron spec, i.e. "0 9 * * 1-5"
	Lister   Lister
	Notifier Notifier
	Timeout  time.Duration // max time of a single digest, default 1m

	sent atomic.Int32
}

// Do runs blocking scheduler until context canceled. Returns immediately with error for invalid spec.
func (s *Scheduler) Do(ctx context.Context) error {
	if s.Spec == "" || s.Notifier == nil {
		log.Print("[DEBUG] digest disabled")
		return nil
	}
	if s.Lister == nil {
		return errors.New("digest requires jobs lister")
	}
	sched, err := cron.ParseStandard(s.Spec)
	if err != nil {
		return fmt.Errorf("can't parse digest schedule %q: %w", s.Spec, err)
	}

	s.Schedule(sched, cron.FuncJob(func() {
		if err := s.Send(ctx); err != nil {
			log.Printf("[WARN] failed to send digest, %v", err)
		}
	}))
	log.Printf("[INFO] digest scheduled %q, first: %s", s.Spec, sched.Next(time.Now()).Format(time.RFC3339))

	s.Start()
	<-ctx.Done()
	log.Print("[DEBUG] digest terminated")
	<-s.Stop().Done()
	return nil
}

// Send makes and sends a single digest
func (s *Scheduler) Send(ctx context.Context) error {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	jobs, err := s.Lister.List(ctx)
	if err != nil {
		return fmt.Errorf("can't list jobs: %w", err)
	}
	if err := s.Notifier.SendDigest(ctx, jobs); err != nil {
		return fmt.Errorf("can't send digest: %w", err)
	}
	s.sent.Add(1)
	log.Printf("[INFO] digest sent, %d jobs", len(jobs))
	return nil
}

// Sent returns number of digests sent successfully
func (s *Scheduler) Sent() int {
	return int(s.sent.Load())
}
