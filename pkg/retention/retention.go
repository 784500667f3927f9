// Package retention prunes the API call log on a cron schedule.
package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxwatt/foxwatt/pkg/log"
	"github.com/foxwatt/foxwatt/pkg/metrics"
	"github.com/levenlabs/go-lflag"
	"github.com/robfig/cron/v3"
)

const (
	DefaultMaxAge   = 7 * 24 * time.Hour
	DefaultSchedule = "0 3 * * *"

	pruneTimeout = time.Minute
)

// Pruner deletes API call log entries older than cutoff.
type Pruner interface {
	DeleteAPICallLogsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Job deletes API call log entries older than maxAge every time schedule
// fires.
type Job struct {
	db       Pruner
	maxAge   time.Duration
	schedule string

	cron *cron.Cron
	now  func() time.Time
}

// Configured registers the retention flags and returns a Job for db.
func Configured(db Pruner) *Job {
	maxAge := lflag.Duration("api-log-retention", DefaultMaxAge, "How long API call log entries are kept, 0 disables pruning")
	schedule := lflag.String("api-log-retention-schedule", DefaultSchedule, "Cron schedule (standard 5 fields) of the API call log pruning")

	j := &Job{db: db, now: time.Now}

	lflag.Do(func() {
		j.maxAge = *maxAge
		j.schedule = *schedule
		if err := j.Validate(); err != nil {
			panic(fmt.Sprintf("retention validation failed: %v", err))
		}
	})

	return j
}

// New returns a Job that has not been started.
func New(db Pruner, maxAge time.Duration, schedule string) (*Job, error) {
	j := &Job{db: db, maxAge: maxAge, schedule: schedule, now: time.Now}
	if err := j.Validate(); err != nil {
		return nil, err
	}
	return j, nil
}

// Validate ensures the configuration is valid.
func (j *Job) Validate() error {
	if j.maxAge < 0 {
		return fmt.Errorf("api-log-retention must not be negative")
	}
	if j.maxAge == 0 {
		return nil
	}
	if _, err := cron.ParseStandard(j.schedule); err != nil {
		return fmt.Errorf("invalid api-log-retention-schedule (%s): %w", j.schedule, err)
	}
	return nil
}

// Prune deletes every entry older than maxAge and returns how many were
// deleted.
func (j *Job) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := j.now().Add(-maxAge)
	deleted, err := j.db.DeleteAPICallLogsBefore(ctx, cutoff)
	metrics.ObserveRetention(deleted, err)
	if err != nil {
		return deleted, fmt.Errorf("failed to delete api call logs: %w", err)
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"pruned api call logs",
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	return deleted, nil
}

// PruneDays is Prune with the age given in days.
func (j *Job) PruneDays(ctx context.Context, days int) (int64, error) {
	if days < 0 {
		return 0, fmt.Errorf("days must not be negative")
	}
	return j.Prune(ctx, time.Duration(days)*24*time.Hour)
}

// Start schedules the pruning. It does nothing when retention is disabled.
func (j *Job) Start(ctx context.Context) error {
	if j.maxAge == 0 {
		log.Ctx(ctx).InfoContext(ctx, "api call log retention disabled")
		return nil
	}
	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.schedule, func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pruneTimeout)
		defer cancel()
		if _, err := j.Prune(ctx, j.maxAge); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to prune api call logs", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule retention: %w", err)
	}
	j.cron.Start()
	return nil
}

// Stop stops the schedule and waits for a running prune to finish.
func (j *Job) Stop() {
	if j.cron == nil {
		return
	}
	<-j.cron.Stop().Done()
}
