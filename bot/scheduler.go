package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cppla/rollcall/ledger"
)

// Job is a scheduled group task.
type Job string

const (
	JobReport  Job = "report"
	JobAwards  Job = "awards"
	JobContent Job = "content"
)

// Runner executes scheduled jobs. *Reporter satisfies it.
type Runner interface {
	Report(ctx context.Context, group ledger.GroupID) error
	Awards(ctx context.Context, group ledger.GroupID) error
	NextContent(ctx context.Context, group ledger.GroupID) error
}

// ScheduleConfig lists the daily times, as HH:MM in the scheduler's zone.
type ScheduleConfig struct {
	ReportTimes []string
	AwardsDelay time.Duration
	// ContentTime is empty when no content is released.
	ContentTime string
}

type scheduled struct {
	job   Job
	group ledger.GroupID
	spec  string
	id    cron.EntryID
}

// Scheduler runs one daily cron entry per job, time and group.
type Scheduler struct {
	cron    *cron.Cron
	runner  Runner
	entries []scheduled
	log     *zap.Logger

	// ctx is set by Run before the cron starts.
	ctx context.Context
}

// NewScheduler validates the times and registers the daily entries for every group.
func NewScheduler(loc *time.Location, runner Runner, groups []ledger.GroupID, sc ScheduleConfig, log *zap.Logger) (*Scheduler, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	type slot struct {
		job    Job
		minute int
	}
	var slots []slot
	for _, t := range sc.ReportTimes {
		m, err := parseMinute(t)
		if err != nil {
			return nil, err
		}
		awards := (m + int(sc.AwardsDelay/time.Minute)) % (24 * 60)
		slots = append(slots, slot{JobReport, m}, slot{JobAwards, awards})
	}
	if sc.ContentTime != "" {
		m, err := parseMinute(sc.ContentTime)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot{JobContent, m})
	}

	cl := cronLogger{log.Sugar()}
	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc), cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		runner: runner,
		log:    log,
		ctx:    context.Background(),
	}
	for _, sl := range slots {
		spec := fmt.Sprintf("%d %d * * *", sl.minute%60, sl.minute/60)
		for _, g := range groups {
			e := scheduled{job: sl.job, group: g, spec: spec}
			id, err := s.cron.AddFunc(spec, s.fire(e.job, e.group))
			if err != nil {
				return nil, fmt.Errorf("schedule %s at %q: %w", e.job, spec, err)
			}
			e.id = id
			s.entries = append(s.entries, e)
		}
	}
	return s, nil
}

// Run starts the cron and blocks until ctx ends, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.entries) == 0 {
		s.log.Info("no allowed groups configured, scheduler idle")
		<-ctx.Done()
		return nil
	}
	s.ctx = ctx
	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("entries", len(s.entries)))
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

func (s *Scheduler) fire(job Job, group ledger.GroupID) func() {
	return func() {
		if err := s.run(s.ctx, job, group); err != nil {
			s.log.Warn("scheduled job failed",
				zap.String("job", string(job)),
				zap.Int64("group", int64(group)),
				zap.Error(err),
			)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, job Job, group ledger.GroupID) error {
	switch job {
	case JobReport:
		return s.runner.Report(ctx, group)
	case JobAwards:
		return s.runner.Awards(ctx, group)
	case JobContent:
		return s.runner.NextContent(ctx, group)
	}
	return fmt.Errorf("unknown job %q", job)
}

func parseMinute(hhmm string) (int, error) {
	t, err := time.Parse(ledger.TimeLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("schedule time %q: want HH:MM", hhmm)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// cronLogger routes cron's own messages to zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
