package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestAgent_Scheduler_StartupPass(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	sched := newTestScheduler(t, clock)

	var mu sync.Mutex
	var fires []string
	fired := make(chan string, 8)
	add := func(name string, interval time.Duration) {
		require.NoError(t, sched.Add(Entry{
			Name:     name,
			Interval: interval,
			Fire: func(ctx context.Context) {
				mu.Lock()
				fires = append(fires, name)
				mu.Unlock()
				fired <- name
			},
		}))
	}
	add("orders", 2*time.Hour)
	add("signups", 30*time.Minute)
	add("exploratory", time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	// Every entry fires once immediately, without any clock advance.
	for i := 0; i < 3; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatal("missing startup fire")
		}
	}
	mu.Lock()
	require.Equal(t, []string{"orders", "signups", "exploratory"}, fires)
	mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestAgent_Scheduler_Refire(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	sched := newTestScheduler(t, clock)

	fired := make(chan struct{}, 8)
	require.NoError(t, sched.Add(Entry{
		Name:     "orders",
		Interval: 2 * time.Second,
		Fire:     func(ctx context.Context) { fired <- struct{}{} },
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("missing startup fire")
	}

	// Two poll ticks before the cadence elapses: still quiet.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("entry fired before its cadence")
	case <-time.After(100 * time.Millisecond):
	}

	// Two more ticks reach the cadence: fires again.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(500 * time.Millisecond)
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("entry did not refire on cadence")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestAgent_Scheduler_NoBackfill(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	sched := newTestScheduler(t, clock)

	fired := make(chan struct{}, 16)
	require.NoError(t, sched.Add(Entry{
		Name:     "orders",
		Interval: time.Second,
		Fire:     func(ctx context.Context) { fired <- struct{}{} },
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("missing startup fire")
	}

	// Jump past five missed cycles at once: exactly one catch-up fire.
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(5 * time.Second)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("overdue entry did not fire")
	}
	select {
	case <-fired:
		t.Fatal("missed cycles were backfilled")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("scheduler did not stop after cancel")
	}
}

func TestAgent_Scheduler_CancelStopsLaunchingFires(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	sched := newTestScheduler(t, clock)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, sched.Add(Entry{
		Name:     "canceller",
		Interval: time.Hour,
		Fire:     func(ctx context.Context) { cancel() },
	}))
	fired := make(chan struct{}, 1)
	require.NoError(t, sched.Add(Entry{
		Name:     "after",
		Interval: time.Hour,
		Fire:     func(ctx context.Context) { fired <- struct{}{} },
	}))

	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(250 * time.Millisecond):
		t.Fatal("scheduler did not stop after cancel")
	}
	select {
	case <-fired:
		t.Fatal("entry fired after cancellation")
	default:
	}
}

func TestAgent_Scheduler_Add(t *testing.T) {
	t.Parallel()

	sched := newTestScheduler(t, clockwork.NewFakeClock())

	t.Run("missing_name", func(t *testing.T) {
		err := sched.Add(Entry{Interval: time.Hour, Fire: func(ctx context.Context) {}})
		require.ErrorContains(t, err, "entry name is required")
	})

	t.Run("non_positive_interval", func(t *testing.T) {
		err := sched.Add(Entry{Name: "x", Fire: func(ctx context.Context) {}})
		require.ErrorContains(t, err, "interval must be greater than 0")
	})

	t.Run("missing_fire_func", func(t *testing.T) {
		err := sched.Add(Entry{Name: "x", Interval: time.Hour})
		require.ErrorContains(t, err, "fire func is required")
	})
}

func TestAgent_Scheduler_Config(t *testing.T) {
	t.Parallel()

	t.Run("missing_logger", func(t *testing.T) {
		t.Parallel()

		_, err := New(&Config{})
		require.ErrorContains(t, err, "logger is required")
	})

	t.Run("defaults_clock_and_poll_interval", func(t *testing.T) {
		t.Parallel()

		cfg := &Config{Logger: newTestLogger(t)}
		require.NoError(t, cfg.Validate())
		require.NotNil(t, cfg.Clock)
		require.Equal(t, defaultPollInterval, cfg.PollInterval)
	})
}

func newTestScheduler(t *testing.T, clock clockwork.Clock) *Scheduler {
	t.Helper()
	sched, err := New(&Config{
		Logger: newTestLogger(t),
		Clock:  clock,
	})
	require.NoError(t, err)
	return sched
}

func newTestLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})).With("test", t.Name())
}
