package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cronloop/internal/config"
	"cronloop/internal/journal"
	"cronloop/internal/moments"
	"cronloop/internal/pattern"
	"cronloop/internal/pause"
	"cronloop/internal/platform/logger"
	"cronloop/internal/scheduler"
	"cronloop/internal/shared"
)

// App wires application components.
type App struct {
	cfg   config.Config
	log   *slog.Logger
	clock pause.Clock
	out   io.Writer
}

// Option configures an App.
type Option func(*App)

// WithClock replaces the system clock.
func WithClock(c pause.Clock) Option {
	return func(a *App) { a.clock = c }
}

// WithOutput redirects preview and history listings. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithLogger replaces the logger built from configuration.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.log = l }
}

// New creates a new App instance and loads configuration.
func New(opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, opts...)
}

// NewWithConfig creates an App from an already loaded configuration.
func NewWithConfig(cfg config.Config, opts ...Option) (*App, error) {
	loc, err := pattern.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, clock: pause.System, out: os.Stdout}
	for _, opt := range opts {
		opt(a)
	}
	if a.log == nil {
		a.log = logger.New(logger.Options{
			Env:          cfg.Env,
			ConsoleLevel: cfg.Log.ConsoleLevel,
			FileLevel:    cfg.Log.FileLevel,
			File:         cfg.Log.File,
			App:          "cronloop",
			Location:     loc,
		})
	}
	return a, nil
}

// Close releases the log file.
func (a *App) Close() error {
	return logger.Close(a.log)
}

func (a *App) newScheduler(ctx context.Context) (*scheduler.Scheduler, error) {
	return scheduler.NewWithContext(ctx, scheduler.Config{
		Pattern:     a.cfg.Schedule.Pattern,
		Timezone:    a.cfg.Schedule.Timezone,
		Autorecover: a.cfg.Schedule.Autorecover,
		Strategy:    moments.Kind(a.cfg.Schedule.Strategy),
		Logger:      a.log,
		Clock:       a.clock,
		Hooks: scheduler.Hooks{
			OnListenerError: func(id scheduler.ListenerID, ev scheduler.Event, err error) {
				a.log.Warn("listener failed",
					"listener", int(id),
					"moment", ev.Moment,
					"run_id", ev.RunID,
					"kind", shared.KindOf(err),
					"error", err)
			},
		},
	})
}

// Run starts the schedule and blocks until SIGINT, SIGTERM or ctx ends.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return a.run(ctx)
}

func (a *App) run(ctx context.Context) error {
	s, err := a.newScheduler(ctx)
	if err != nil {
		return err
	}

	s.AddListener(func(_ context.Context, ev scheduler.Event) error {
		a.log.Info("scheduled time matched", "moment", ev.Moment, "run_id", ev.RunID)
		return nil
	})

	if path := a.cfg.Journal.Path; path != "" {
		j, err := journal.Open(ctx, path, journal.WithLogger(a.log), journal.WithNow(a.clock.Now))
		if err != nil {
			return err
		}
		defer func() {
			if err := j.Close(); err != nil {
				a.log.Warn("failed to close journal", "error", err)
			}
		}()

		if !a.recallLastMoment(j.LastMoment(ctx, s.Expression())) {
			return nil
		}
		s.AddListener(j.Listener(s.Expression()))
	}

	a.log.Info("starting",
		"expression", s.Expression(),
		"timezone", s.Location().String(),
		"autorecover", a.cfg.Schedule.Autorecover,
		"strategy", s.Strategy())

	s.Start()
	<-ctx.Done()
	s.Stop()

	a.log.Info("stopped")
	return nil
}

// recallLastMoment logs what the journal remembers about the previous run.
// Missed moments are never replayed. It returns false when ctx ended during
// the lookup and the run should not start.
func (a *App) recallLastMoment(last time.Time, err error) bool {
	switch {
	case err == nil:
		a.log.Info("previous run recorded", "last_moment", last)
	case shared.IsNotFound(err):
	case shared.IsCanceled(err):
		return false
	case shared.IsDependencyFailure(err):
		a.log.Warn("journal unavailable, moments may not be recorded",
			"kind", shared.KindOf(err), "error", err)
	default:
		a.log.Warn("failed to read journal", "kind", shared.KindOf(err), "error", err)
	}
	return true
}

// Preview prints the next n moments after the current time.
func (a *App) Preview(n int) error {
	s, err := a.newScheduler(context.Background())
	if err != nil {
		return err
	}
	upcoming := s.Upcoming(a.clock.Now(), n)
	for _, t := range upcoming {
		if _, err := fmt.Fprintln(a.out, t.Format(time.RFC3339)); err != nil {
			return err
		}
	}
	if len(upcoming) < n {
		a.log.Warn("pattern has fewer upcoming moments than requested",
			"requested", n, "found", len(upcoming))
	}
	return nil
}

// History prints the last n journal rows, newest first.
func (a *App) History(ctx context.Context, n int) error {
	if a.cfg.Journal.Path == "" {
		return shared.MarkKind(errors.New("JOURNAL_PATH is not set"), shared.KindValidation)
	}
	loc, err := pattern.LoadLocation(a.cfg.Schedule.Timezone)
	if err != nil {
		return err
	}

	j, err := journal.Open(ctx, a.cfg.Journal.Path, journal.WithLogger(a.log))
	if err != nil {
		return err
	}
	defer j.Close()

	entries, err := j.Recent(ctx, n, loc)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if _, err := fmt.Fprintf(a.out, "%s\t%s\t%s\t%s\n",
			e.Moment.Format(time.RFC3339),
			e.FiredAt.Format(logger.MomentLayout),
			e.Expression,
			e.RunID,
		); err != nil {
			return err
		}
	}
	return nil
}
