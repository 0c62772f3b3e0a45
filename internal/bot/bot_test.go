package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/edgard/checkinbot/internal/bot/tasks"
	"github.com/edgard/checkinbot/internal/config"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type blockingListener struct{ returnEarly bool }

func (l blockingListener) Start(ctx context.Context) {
	if l.returnEarly {
		return
	}
	<-ctx.Done()
}

type fakeScheduler struct {
	startErr error
	started  atomic.Bool
	stopped  atomic.Bool
}

func (f *fakeScheduler) Start() error {
	f.started.Store(true)
	return f.startErr
}

func (f *fakeScheduler) Stop() error {
	f.stopped.Store(true)
	return nil
}

func TestBotRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		listener blockingListener
		startErr error
		cancel   bool
		wantErr  bool
	}{
		{name: "graceful shutdown", cancel: true},
		{name: "listener exits on its own", listener: blockingListener{returnEarly: true}, wantErr: true},
		{name: "scheduler fails to start", startErr: errors.New("boom"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sched := &fakeScheduler{startErr: tt.startErr}
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			done := make(chan error, 1)
			go func() { done <- NewBot(discard, tt.listener, sched).Run(ctx) }()

			if tt.cancel {
				require.Eventually(t, sched.started.Load, time.Second, time.Millisecond)
				cancel()
			}

			select {
			case err := <-done:
				if tt.wantErr {
					require.Error(t, err)
				} else {
					require.NoError(t, err)
					require.True(t, sched.stopped.Load())
				}
			case <-time.After(5 * time.Second):
				t.Fatal("Run did not return")
			}
		})
	}
}

func TestScheduler_RunsIntervalTask(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"checkin": func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
		"sql_maintenance": func(context.Context) error { return nil },
	}
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"checkin":         {Enabled: true, Interval: time.Hour},
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
		"disabled":        {Enabled: false, Interval: time.Minute},
		"unregistered":    {Enabled: true, Interval: time.Minute},
		"broken":          {Enabled: true},
	}}
	taskMap["broken"] = func(context.Context) error { return nil }

	s, err := NewScheduler(discard, cfg, taskMap, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(func() { _ = s.Stop() })

	require.Error(t, s.Start(), "starting twice is rejected")
	require.ElementsMatch(t, []string{"checkin", "sql_maintenance"}, s.Jobs())

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("interval task did not run immediately")
	}
}

func TestScheduler_InvalidCronIsSkipped(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "not a cron"},
	}}
	s, err := NewScheduler(discard, cfg, map[string]tasks.ScheduledTaskFunc{
		"sql_maintenance": func(context.Context) error { return nil },
	}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	require.Empty(t, s.Jobs())
	require.NoError(t, s.Stop())
	require.NoError(t, s.Stop(), "stopping twice is a no-op")
}
