// Package scheduler fires listeners at the instants described by a cron-style
// pattern, correcting for timer drift and replaying missed instants on demand.
//
// Features:
//   - 5 or 6 field patterns, month/weekday names, @hourly-style descriptors
//   - Optional IANA timezone for evaluating the pattern
//   - Drift-corrected waiting (see package pause)
//   - Autorecover: replay every instant missed during a stall instead of only the earliest
//   - Restartable runs guarded by a generation counter
//   - Per-listener error and panic isolation
//   - Structured logging with slog, optional hooks for observability
//
// Basic usage:
//
//	s, err := scheduler.New(scheduler.Config{
//		Pattern:     "*/10 * * * * *",
//		Timezone:    "Europe/Berlin",
//		Autorecover: true,
//		Logger:      logger,
//	})
//	if err != nil {
//		return err // shared.KindValidation for bad patterns
//	}
//
//	s.AddListener(func(ctx context.Context, ev scheduler.Event) error {
//		log.Printf("matched %s", ev.Moment)
//		return nil
//	})
//
//	s.Start()
//	defer s.Stop()
//
// Run model:
//
// Start launches one goroutine per run. The first pass only records the start
// instant; nothing that predates the run fires. Every later pass examines the
// window (lastCheck, now], dispatches the moments found there, asks for the next
// moment and waits for it. Without autorecover only the earliest moment of a
// window fires and lastCheck moves to the instant dispatch finished, so moments
// that come due while listeners run are skipped. With autorecover every moment
// fires in ascending order.
//
// Stop and Start bump the generation. A run that wakes up and finds a newer
// generation ends without firing. Stop also cancels the run context so an
// abandoned run does not sleep until its deadline.
//
// The scheduler ensures that:
//   - Moments are delivered in ascending order, listeners in registration order
//   - A failing or panicking listener never stops the batch or the run
//   - A wait that elapses after Stop never leads to an event
//   - Start/Stop may be called repeatedly
package scheduler
