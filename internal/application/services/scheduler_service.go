package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/marwie0904/shlg-custom-crm-sub002/internal/domain/ports"
	"github.com/marwie0904/shlg-custom-crm-sub002/pkg/logging"
)

const lockPrefix = "scheduler:"

// JobFunc is a recurring background job
type JobFunc func(ctx context.Context) error

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// SchedulerService runs recurring jobs on cron schedules. Each run takes a shared lock so
// only one instance executes a job at a time.
type SchedulerService struct {
	cron    *cron.Cron
	locker  ports.Locker
	log     zerolog.Logger
	mu      sync.Mutex
	running bool
	jobs    map[string]cron.EntryID
}

func NewSchedulerService(locker ports.Locker) *SchedulerService {
	return &SchedulerService{
		cron:   cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
		locker: locker,
		log:    logging.For("scheduler"),
		jobs:   make(map[string]cron.EntryID),
	}
}

// AddJob registers fn under name. timeout bounds a single run and the lock lifetime.
func (s *SchedulerService) AddJob(name, spec string, timeout time.Duration, fn JobFunc) error {
	if _, err := NextRun(spec, time.Now()); err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(name, timeout, fn) })
	if err != nil {
		return fmt.Errorf("job %s: %w", name, err)
	}
	s.jobs[name] = id
	s.log.Debug().Str("job", name).Str("spec", spec).Msg("Job registered")
	return nil
}

// Start begins dispatching jobs. It does not block.
func (s *SchedulerService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.jobs)).Msg("⏰ Scheduler service started")
}

// Stop prevents new runs and waits for running jobs, up to ctx's deadline
func (s *SchedulerService) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.log.Info().Msg("⏰ Scheduler service stopping...")
	select {
	case <-s.cron.Stop().Done():
		s.log.Info().Msg("⏰ Scheduler service stopped")
	case <-ctx.Done():
		s.log.Warn().Msg("⚠️ Scheduler stop timed out with jobs still running")
	}
}

// run executes one job with a lock, a timeout and panic recovery
func (s *SchedulerService) run(name string, timeout time.Duration, fn JobFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	key := lockPrefix + name
	acquired, err := s.locker.TryLock(ctx, key, timeout)
	if err != nil {
		s.log.Warn().Err(err).Str("job", name).Msg("⚠️ Failed to acquire job lock")
		return
	}
	if !acquired {
		s.log.Debug().Str("job", name).Msg("⏭️ Job already running elsewhere, skipping")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("job", name).Interface("panic", r).Msg("🔥 Panic in scheduled job")
		}
		if err := s.locker.Unlock(context.Background(), key); err != nil {
			s.log.Warn().Err(err).Str("job", name).Msg("⚠️ Failed to release job lock")
		}
	}()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.log.Error().Err(err).Str("job", name).Dur("took", time.Since(start)).Msg("❌ Scheduled job failed")
		return
	}
	s.log.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("✅ Scheduled job completed")
}

// NextRun parses a five-field cron expression and returns the next run after from
func NextRun(spec string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(spec)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression: %w", err)
	}
	return schedule.Next(from.UTC()), nil
}
