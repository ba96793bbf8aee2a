package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rickKoch/actorstate/logging"
	cron "github.com/robfig/cron/v3"
)

// printfAdapter feeds robfig/cron's Printf logging into a structured Logger.
type printfAdapter struct{ l logging.Logger }

func (p printfAdapter) Printf(format string, v ...interface{}) { p.l.Debug(fmt.Sprintf(format, v...)) }

// Job is a recurring task, e.g. checkpointing active actor state.
type Job struct {
	ID             string `mapstructure:"id"`
	CronExpression string `mapstructure:"cron"`
	// TimeZone is an optional IANA time zone name (eg. "America/New_York").
	// If set, the cron expression is interpreted in that zone.
	TimeZone string `mapstructure:"timezone"`
	// Timeout bounds a single invocation. Zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// Func is invoked on every tick of a Job.
type Func func(context.Context, Job) error

type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
	invoke  Func
	log     logging.Logger

	base   context.Context
	cancel context.CancelFunc
}

func NewScheduler(invoke Func, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.Default()
	}
	pad := printfAdapter{l: log}

	// Overlapping runs are delayed, so a slow checkpoint never runs twice at once.
	c := cron.New(
		cron.WithChain(cron.DelayIfStillRunning(cron.VerbosePrintfLogger(pad))),
		cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow|cron.Descriptor)),
	)
	base, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:    c,
		entries: make(map[string]cron.EntryID),
		invoke:  invoke,
		log:     log,
		base:    base,
		cancel:  cancel,
	}
}

// Start the underlying cron scheduler.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts the scheduler and waits for running jobs until ctx is done.
// Jobs still running when ctx expires see their context cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		return ctx.Err()
	}
}

// Len reports the number of scheduled jobs.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// AddOrUpdate registers a job with the cron scheduler. If a job with the
// same ID exists it is replaced. A disabled job is removed.
func (s *Scheduler) AddOrUpdate(job Job) error {
	if job.ID == "" {
		return fmt.Errorf("scheduler: job id is required")
	}
	spec := job.CronExpression
	if job.TimeZone != "" {
		if _, err := time.LoadLocation(job.TimeZone); err != nil {
			return fmt.Errorf("invalid time zone %q: %w", job.TimeZone, err)
		}
		spec = "CRON_TZ=" + job.TimeZone + " " + spec
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[job.ID]; ok {
		s.cron.Remove(id)
		delete(s.entries, job.ID)
	}
	if !job.Enabled {
		return nil
	}

	eid, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		return fmt.Errorf("add cron job: %w", err)
	}
	s.entries[job.ID] = eid
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx := s.base
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	s.log.Debug("scheduler: invoking job", "job_id", job.ID, "expr", job.CronExpression)
	if err := s.invoke(ctx, job); err != nil {
		s.log.Warn("scheduler: job invocation failed", "job_id", job.ID, "err", err)
	}
}

// Remove deletes a job from the cron scheduler.
func (s *Scheduler) Remove(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[jobID]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobID)
	}
}
