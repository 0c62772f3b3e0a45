package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"

	"github.com/edgard/checkinbot/internal/bot/tasks"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/logger"
)

// Scheduler runs the configured tasks on gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	clock     clockwork.Clock
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex // To protect access during start/stop
	running   bool

	// jobsCtx is handed to every task and cancelled on Stop.
	jobsCtx    context.Context
	cancelJobs context.CancelFunc
}

// NewScheduler creates a scheduler. A nil clock uses the real clock.
func NewScheduler(base *slog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc, clock clockwork.Clock) (*Scheduler, error) {
	if base == nil {
		base = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := base.With("component", "scheduler")

	s, err := gocron.NewScheduler(
		gocron.WithLogger(logger.NewGocronLogger(base)),
		gocron.WithClock(clock),
	)
	if err != nil {
		log.Error("Failed to create gocron scheduler", "error", err)
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		clock:     clock,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// jobDefinition prefers the interval; otherwise the schedule is a cron
// expression whose seconds field is optional.
func jobDefinition(tc config.TaskConfig) (gocron.JobDefinition, []gocron.JobOption, error) {
	switch {
	case tc.Interval > 0:
		return gocron.DurationJob(tc.Interval), []gocron.JobOption{gocron.WithStartAt(gocron.WithStartImmediately())}, nil
	case tc.Schedule != "":
		return gocron.CronJob(tc.Schedule, true), nil, nil
	default:
		return nil, nil, errors.New("task has neither interval nor schedule")
	}
}

// Start registers every enabled task and starts ticking. A task that fails
// to register is logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}
	s.jobsCtx, s.cancelJobs = context.WithCancel(context.Background())

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.logger.Warn("No scheduler tasks configured.")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		definition, opts, err := jobDefinition(taskConfig)
		if err != nil {
			s.logger.Warn("Scheduled task enabled but not schedulable, skipping", "task_name", taskName, "error", err)
			continue
		}

		opts = append(opts,
			gocron.WithName(taskName),
			// A slow tick is never overlapped by the next one.
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		_, err = s.scheduler.NewJob(definition, gocron.NewTask(s.wrap(taskName, taskFunc), s.jobsCtx), opts...)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "interval", taskConfig.Interval, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule, "interval", taskConfig.Interval)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount)

	return nil
}

func (s *Scheduler) wrap(name string, fn tasks.ScheduledTaskFunc) func(context.Context) {
	return func(ctx context.Context) {
		s.logger.Debug("Running scheduled task", "task_name", name)
		start := s.clock.Now()
		if err := fn(ctx); err != nil {
			s.logger.Error("Scheduled task failed", "task_name", name, "error", err)
		}
		s.logger.Debug("Finished scheduled task", "task_name", name, "duration", s.clock.Since(start))
	}
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	s.cancelJobs()
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}

// Jobs reports the names of the registered jobs.
func (s *Scheduler) Jobs() []string {
	jobs := s.scheduler.Jobs()
	names := make([]string, 0, len(jobs))
	for _, j := range jobs {
		names = append(names, j.Name())
	}
	return names
}
