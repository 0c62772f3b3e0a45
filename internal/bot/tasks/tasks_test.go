package tasks

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/edgard/checkinbot/internal/ai"
	"github.com/edgard/checkinbot/internal/config"
	"github.com/edgard/checkinbot/internal/database"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64]bool
	sends map[int64][]string
}

func newFakeSender(failing ...int64) *fakeSender {
	f := &fakeSender{fail: map[int64]bool{}, sends: map[int64][]string{}}
	for _, id := range failing {
		f.fail[id] = true
	}
	return f
}

func (f *fakeSender) Send(_ context.Context, chatID int64, text string, _ int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail[chatID] {
		return 0, errors.New("chat not found")
	}
	f.sends[chatID] = append(f.sends[chatID], text)
	return len(f.sends[chatID]), nil
}

type textAI struct {
	reply string
	err   error
}

func (a textAI) GenerateText(context.Context, string) (string, error) { return a.reply, a.err }

func (a textAI) GenerateJSON(context.Context, string, *ai.Schema, any) error {
	return errors.New("not used")
}

func testConfig() *config.Config {
	return &config.Config{
		AI: config.AIConfig{Timeout: time.Second},
		Checkin: config.CheckinConfig{
			DefaultInterval:    time.Hour,
			RetryInterval:      5 * time.Minute,
			DefaultTimezone:    "UTC",
			MaxConcurrentSends: 2,
			SendTimeout:        time.Second,
			StoreTimeout:       time.Second,
		},
		Messages: config.DefaultMessages,
	}
}

func newTestDeps(t *testing.T, sender Sender, client ai.Client) (TaskDeps, *clockwork.FakeClock) {
	t.Helper()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "tasks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	return TaskDeps{
		Logger: log,
		Store:  database.NewStore(db, log, clock),
		Sender: sender,
		AI:     client,
		Config: testConfig(),
		Clock:  clock,
	}, clock
}

func nextCheckin(t *testing.T, store database.Store, userID int64) time.Time {
	t.Helper()
	state, err := store.GetCheckinState(context.Background(), userID)
	require.NoError(t, err)
	require.NotNil(t, state)
	return state.NextCheckinAt
}

func TestCheckinRunner_Tick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sender := newFakeSender(2)
	deps, clock := newTestDeps(t, sender, textAI{reply: "**Hey!** What are you up to?"})
	now := clock.Now()

	require.NoError(t, deps.Store.UpsertCheckinState(ctx, 1, now.Add(-time.Minute), "UTC"))
	require.NoError(t, deps.Store.UpsertCheckinState(ctx, 2, now.Add(-time.Minute), "UTC"))
	require.NoError(t, deps.Store.UpsertCheckinState(ctx, 3, now.Add(-time.Minute), "Asia/Tokyo"))
	require.NoError(t, deps.Store.UpsertCheckinState(ctx, 4, now.Add(time.Hour), "UTC"))

	err := NewCheckinRunner(deps).Tick(ctx)
	require.Error(t, err, "the failed delivery to user 2 is reported")
	require.ErrorContains(t, err, "user 2")

	// Exactly one prompt per due user, none for the user not yet due.
	require.Equal(t, []string{"Hey! What are you up to?"}, sender.sends[1])
	require.Len(t, sender.sends[3], 1)
	require.Empty(t, sender.sends[4])

	require.Equal(t, now.Add(time.Hour), nextCheckin(t, deps.Store, 1))
	require.Equal(t, now.Add(5*time.Minute), nextCheckin(t, deps.Store, 2))
	require.Equal(t, now.Add(time.Hour), nextCheckin(t, deps.Store, 3))
	require.Equal(t, now.Add(time.Hour), nextCheckin(t, deps.Store, 4))

	// A second tick at the same instant finds nothing due.
	require.NoError(t, NewCheckinRunner(deps).Tick(ctx))
	require.Len(t, sender.sends[1], 1)

	// After the retry interval only the failed user is due again.
	clock.Advance(5 * time.Minute)
	sender.fail[2] = false
	require.NoError(t, NewCheckinRunner(deps).Tick(ctx))
	require.Len(t, sender.sends[2], 1)
	require.Len(t, sender.sends[1], 1)
	require.True(t, nextCheckin(t, deps.Store, 2).After(clock.Now()))
}

// gatedSender holds every Send until release is closed.
type gatedSender struct {
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedSender) Send(context.Context, int64, string, int) (int, error) {
	g.calls.Add(1)
	g.entered <- struct{}{}
	<-g.release
	return 1, nil
}

// signalingStore reports every completed due-state query.
type signalingStore struct {
	database.Store
	read chan struct{}
}

func (s signalingStore) DueCheckinStates(ctx context.Context, now time.Time) ([]*database.CheckinState, error) {
	states, err := s.Store.DueCheckinStates(ctx, now)
	s.read <- struct{}{}
	return states, err
}

func TestCheckinRunner_OverlappingTicksSendOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sender := &gatedSender{entered: make(chan struct{}, 2), release: make(chan struct{})}
	deps, clock := newTestDeps(t, sender, textAI{err: errors.New("offline")})
	require.NoError(t, deps.Store.UpsertCheckinState(ctx, 1, clock.Now(), "UTC"))

	store := signalingStore{Store: deps.Store, read: make(chan struct{}, 2)}
	deps.Store = store
	runner := NewCheckinRunner(deps)

	done := make(chan error, 2)
	go func() { done <- runner.Tick(ctx) }()
	<-store.read
	<-sender.entered

	// The second tick still sees the user as due while the first is sending.
	go func() { done <- runner.Tick(ctx) }()
	<-store.read

	require.Never(t, func() bool { return sender.calls.Load() > 1 }, 50*time.Millisecond, time.Millisecond)
	close(sender.release)

	for range 2 {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("tick did not return")
		}
	}
	require.Equal(t, int32(1), sender.calls.Load())
	require.Equal(t, clock.Now().Add(time.Hour), nextCheckin(t, store, 1))
}

func TestCheckinRunner_FallbackMessage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	tests := []struct {
		name   string
		client ai.Client
	}{
		{name: "no model", client: nil},
		{name: "model error", client: textAI{err: errors.New("quota")}},
		{name: "blank reply", client: textAI{reply: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sender := newFakeSender()
			deps, clock := newTestDeps(t, sender, tt.client)
			require.NoError(t, deps.Store.UpsertCheckinState(ctx, 9, clock.Now(), "UTC"))

			require.NoError(t, NewCheckinRunner(deps).Tick(ctx))
			require.Equal(t, []string{config.DefaultMessages.CheckinFallback}, sender.sends[9])
		})
	}
}

func TestCheckinRunner_NothingDue(t *testing.T) {
	t.Parallel()
	sender := newFakeSender()
	deps, _ := newTestDeps(t, sender, nil)

	require.NoError(t, NewCheckinRunner(deps).Tick(context.Background()))
	require.Empty(t, sender.sends)
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	deps, clock := newTestDeps(t, newFakeSender(), nil)

	require.NoError(t, deps.Store.SaveReplyLink(ctx, &database.ReplyLink{ChatID: 1, BotMessageID: 10, Topic: "food", CorrelationID: "5"}))
	clock.Advance(replyLinkRetention + time.Hour)
	require.NoError(t, deps.Store.SaveReplyLink(ctx, &database.ReplyLink{ChatID: 1, BotMessageID: 11, Topic: "food", CorrelationID: "6"}))

	tasks := RegisterAllTasks(deps)
	require.Contains(t, tasks, "checkin")
	require.NoError(t, tasks["sql_maintenance"](ctx))

	old, err := deps.Store.GetReplyLink(ctx, 1, 10)
	require.NoError(t, err)
	require.Nil(t, old)

	recent, err := deps.Store.GetReplyLink(ctx, 1, 11)
	require.NoError(t, err)
	require.NotNil(t, recent)
}
