package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronloop/internal/config"
	"cronloop/internal/journal"
	"cronloop/internal/pause/pausetest"
	"cronloop/internal/scheduler"
	"cronloop/internal/shared"
)

func testConfig(pattern string) config.Config {
	return config.Config{
		Env: "dev",
		Schedule: config.ScheduleConfig{
			Pattern:  pattern,
			Timezone: "UTC",
			Strategy: "parser",
		},
	}
}

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestNewWithConfig_InvalidTimezone(t *testing.T) {
	cfg := testConfig("* * * * *")
	cfg.Schedule.Timezone = "Moon/Base"

	_, err := NewWithConfig(cfg, WithLogger(discard()))
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestPreview(t *testing.T) {
	clk := pausetest.NewClock(time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC))
	var out bytes.Buffer

	a, err := NewWithConfig(testConfig("@hourly"), WithClock(clk), WithOutput(&out), WithLogger(discard()))
	require.NoError(t, err)

	require.NoError(t, a.Preview(3))
	assert.Equal(t,
		"2024-03-01T11:00:00Z\n2024-03-01T12:00:00Z\n2024-03-01T13:00:00Z\n",
		out.String())
}

func TestPreview_InvalidPattern(t *testing.T) {
	a, err := NewWithConfig(testConfig("61 * * * *"), WithLogger(discard()))
	require.NoError(t, err)

	err = a.Preview(1)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestHistory_RequiresJournal(t *testing.T) {
	a, err := NewWithConfig(testConfig("* * * * *"), WithLogger(discard()))
	require.NoError(t, err)

	err = a.History(context.Background(), 5)
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	firedAt := time.Date(2024, 3, 1, 10, 0, 1, 250_000_000, time.UTC)
	j, err := journal.Open(ctx, path, journal.WithNow(func() time.Time { return firedAt }))
	require.NoError(t, err)
	_, err = j.Record(ctx, "* * * * * *", scheduler.Event{
		Moment: time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC),
		RunID:  "run-1",
	})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	cfg := testConfig("* * * * * *")
	cfg.Journal.Path = path
	var out bytes.Buffer
	a, err := NewWithConfig(cfg, WithOutput(&out), WithLogger(discard()))
	require.NoError(t, err)

	require.NoError(t, a.History(ctx, 10))
	assert.Equal(t, "2024-03-01T10:00:01Z\t2024-03-01T10:00:01.250Z\t* * * * * *\trun-1\n", out.String())
}

func TestRun_RecordsMatchesInJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	start := time.Date(2024, 3, 1, 10, 0, 0, 500_000_000, time.UTC)
	clk := pausetest.NewClock(start)

	cfg := testConfig("* * * * * *")
	cfg.Journal.Path = path
	a, err := NewWithConfig(cfg, WithClock(clk), WithLogger(discard()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, 2*time.Second, time.Millisecond)
	clk.Set(time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC))
	require.Eventually(t, func() bool { return clk.Waiters() == 1 }, 2*time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	j, err := journal.Open(context.Background(), path)
	require.NoError(t, err)
	defer j.Close()

	entries, err := j.Recent(context.Background(), 10, nil)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Moment.Equal(time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)))
	assert.NotEmpty(t, entries[0].RunID)
}

func TestRecallLastMoment(t *testing.T) {
	last := time.Date(2024, 3, 1, 10, 0, 1, 0, time.UTC)
	tests := []struct {
		name     string
		err      error
		wantRun  bool
		wantLogs []string
	}{
		{name: "recorded", err: nil, wantRun: true, wantLogs: []string{"previous run recorded"}},
		{name: "empty journal", err: shared.MarkKind(errors.New("no moments"), shared.KindNotFound), wantRun: true},
		{
			name:    "canceled while reading",
			err:     shared.MarkKind(fmt.Errorf("query: %w", context.Canceled), shared.KindDependencyFailure),
			wantRun: false,
		},
		{
			name:     "storage failure",
			err:      shared.MarkKind(errors.New("disk I/O error"), shared.KindDependencyFailure),
			wantRun:  true,
			wantLogs: []string{"journal unavailable", "kind=DependencyFailure"},
		},
		{
			name:     "unclassified",
			err:      errors.New("boom"),
			wantRun:  true,
			wantLogs: []string{"failed to read journal", "kind=Unknown"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			a, err := NewWithConfig(testConfig("* * * * *"),
				WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
			require.NoError(t, err)

			assert.Equal(t, tt.wantRun, a.recallLastMoment(last, tt.err))
			for _, want := range tt.wantLogs {
				assert.Contains(t, buf.String(), want)
			}
			if len(tt.wantLogs) == 0 {
				assert.Empty(t, buf.String())
			}
		})
	}
}
