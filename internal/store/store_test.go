package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "questions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	s, err := New(Config{Logger: newTestLogger(t), DB: db})
	require.NoError(t, err)
	return s
}

func TestAgent_Store_Config(t *testing.T) {
	t.Parallel()

	t.Run("missing_logger", func(t *testing.T) {
		t.Parallel()
		db, err := Open(filepath.Join(t.TempDir(), "questions.db"))
		require.NoError(t, err)
		defer db.Close()

		_, err = New(Config{DB: db})
		require.Error(t, err)
	})

	t.Run("missing_db", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{Logger: newTestLogger(t)})
		require.Error(t, err)
	})
}

func TestAgent_Store_SaveAndExists(t *testing.T) {
	t.Parallel()

	t.Run("save_then_exists", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		exists, err := s.Exists(ctx, "How many orders today?")
		require.NoError(t, err)
		require.False(t, exists)

		saved, err := s.Save(ctx, "How many orders today?")
		require.NoError(t, err)
		require.True(t, saved)

		exists, err = s.Exists(ctx, "How many orders today?")
		require.NoError(t, err)
		require.True(t, exists)
	})

	t.Run("second_save_is_noop", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, "What is the refund rate?")
		require.NoError(t, err)
		require.True(t, saved)

		saved, err = s.Save(ctx, "What is the refund rate?")
		require.NoError(t, err)
		require.False(t, saved)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})

	t.Run("concurrent_saves_only_one_wins", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		const attempts = 8
		var wg sync.WaitGroup
		wins := make(chan bool, attempts)
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				saved, err := s.Save(ctx, "Which product sold most this week?")
				require.NoError(t, err)
				wins <- saved
			}()
		}
		wg.Wait()
		close(wins)

		won := 0
		for saved := range wins {
			if saved {
				won++
			}
		}
		require.Equal(t, 1, won)

		count, err := s.Count(ctx)
		require.NoError(t, err)
		require.Equal(t, int64(1), count)
	})
}

func TestAgent_Store_Recent(t *testing.T) {
	t.Parallel()

	t.Run("most_recent_first", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		for i := 0; i < 5; i++ {
			saved, err := s.Save(ctx, fmt.Sprintf("question %d", i))
			require.NoError(t, err)
			require.True(t, saved)
		}

		recent, err := s.Recent(ctx, 3)
		require.NoError(t, err)
		require.Equal(t, []string{"question 4", "question 3", "question 2"}, recent)
	})

	t.Run("limit_beyond_size", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		saved, err := s.Save(ctx, "only one")
		require.NoError(t, err)
		require.True(t, saved)

		recent, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, []string{"only one"}, recent)
	})

	t.Run("repeated_calls_identical", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)
		ctx := context.Background()

		for i := 0; i < 10; i++ {
			_, err := s.Save(ctx, fmt.Sprintf("question %d", i))
			require.NoError(t, err)
		}

		first, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		second, err := s.Recent(ctx, 10)
		require.NoError(t, err)
		require.Equal(t, first, second)
	})

	t.Run("empty_store", func(t *testing.T) {
		t.Parallel()
		s := newTestStore(t)

		recent, err := s.Recent(context.Background(), 10)
		require.NoError(t, err)
		require.Empty(t, recent)
	})
}

func TestAgent_Store_OpenIsReentrant(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "questions.db")

	db, err := Open(path)
	require.NoError(t, err)
	s, err := New(Config{Logger: newTestLogger(t), DB: db})
	require.NoError(t, err)

	saved, err := s.Save(context.Background(), "survives reopen")
	require.NoError(t, err)
	require.True(t, saved)
	require.NoError(t, db.Close())

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	s, err = New(Config{Logger: newTestLogger(t), DB: db})
	require.NoError(t, err)

	exists, err := s.Exists(context.Background(), "survives reopen")
	require.NoError(t, err)
	require.True(t, exists)

	count, err := s.Count(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(1), count)
}

func newTestLogger(t *testing.T) *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo})).With("test", t.Name())
}
