// Package service runs the background reminder scheduler: a cron job that
// scans for bookings past their collection date and sends one notification
// per overdue job.
package service

import (
	"context"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/syncs"
	"github.com/robfig/cron/v3"

	"github.com/postbureau/dispatch/app/store"
	"github.com/postbureau/dispatch/app/store/enums"
)

// JobsProvider loads all bookings, implemented by the store
type JobsProvider interface {
	ListJobs() ([]store.Job, error)
}

// Notifier delivers overdue notifications, implemented by notify.Service
type Notifier interface {
	OnJobOverdue(ctx context.Context, job store.Job) error
}

// Reminders is the overdue-job reminder scheduler
type Reminders struct {
	Jobs          JobsProvider
	Notifier      Notifier
	Schedule      string // cron spec, e.g. "0 8 * * *"
	MaxConcurrent int    // parallel notification sends
	NotifyTimeout time.Duration
}

// Do runs the scheduler until the context is canceled
func (r *Reminders) Do(ctx context.Context) error {
	if r.Schedule == "" {
		r.Schedule = "0 8 * * *"
	}
	if r.MaxConcurrent <= 0 {
		r.MaxConcurrent = 4
	}
	if r.NotifyTimeout <= 0 {
		r.NotifyTimeout = 30 * time.Second
	}

	c := cron.New()
	id, err := c.AddFunc(r.Schedule, func() { r.Check(ctx) })
	if err != nil {
		return err
	}
	c.Start()
	log.Printf("[INFO] overdue reminders scheduled with %q, entry %d", r.Schedule, id)

	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Check scans for overdue jobs and fans out notifications
func (r *Reminders) Check(ctx context.Context) {
	jobs, err := r.Jobs.ListJobs()
	if err != nil {
		log.Printf("[WARN] failed to load jobs for reminders: %v", err)
		return
	}

	overdue := Overdue(jobs, time.Now())
	if len(overdue) == 0 {
		log.Printf("[DEBUG] no overdue jobs")
		return
	}
	log.Printf("[INFO] %d overdue jobs detected", len(overdue))

	gr := syncs.NewSizedGroup(r.MaxConcurrent)
	for _, job := range overdue {
		gr.Go(func(ctx context.Context) {
			notifyCtx, cancel := context.WithTimeout(ctx, r.NotifyTimeout)
			defer cancel()
			if err := r.Notifier.OnJobOverdue(notifyCtx, job); err != nil {
				log.Printf("[WARN] failed to notify about overdue job %s: %v", job.Reference, err)
			}
		})
	}
	gr.Wait()
}

// Overdue returns jobs still open past their collection date. Jobs without
// a collection date are never overdue.
func Overdue(jobs []store.Job, now time.Time) []store.Job {
	res := make([]store.Job, 0, len(jobs))
	for _, job := range jobs {
		if job.CollectionDate.IsZero() {
			continue
		}
		if job.Status != enums.JobStatusPending && job.Status != enums.JobStatusInProgress {
			continue
		}
		if job.CollectionDate.Before(now) {
			res = append(res, job)
		}
	}
	return res
}
