// Package journal records dispatched schedule moments in sqlite.
//
// The journal is an audit trail: the scheduler never reads it back, so a
// restarted process does not replay moments it missed while it was down.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cronloop/internal/platform/sqlite"
	"cronloop/internal/scheduler"
	"cronloop/internal/shared"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one recorded moment.
type Entry struct {
	ID         int64
	RunID      string
	Expression string
	Moment     time.Time
	FiredAt    time.Time
}

// Journal appends and lists fired moments.
type Journal struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Journal.
type Option func(*Journal)

// WithNow overrides the clock used for fired_at.
func WithNow(now func() time.Time) Option {
	return func(j *Journal) {
		if now != nil {
			j.now = now
		}
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(j *Journal) {
		if l != nil {
			j.logger = l
		}
	}
}

// Open migrates the database at path and opens it.
func Open(ctx context.Context, path string, opts ...Option) (*Journal, error) {
	if err := sqlite.ApplyMigrations(path, migrations, "migrations"); err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "journal migrations"), shared.KindDependencyFailure)
	}
	db, err := sqlite.NewDB(ctx, path)
	if err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "journal open"), shared.KindDependencyFailure)
	}

	j := &Journal{db: db, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(j)
	}
	j.logger = j.logger.With("component", "journal")
	j.logger.Debug("journal opened", "path", path)
	return j, nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Record appends ev under expression.
func (j *Journal) Record(ctx context.Context, expression string, ev scheduler.Event) (int64, error) {
	res, err := j.db.ExecContext(ctx,
		`INSERT INTO fired_moments (run_id, expression, moment_ms, fired_at_ms) VALUES (?, ?, ?, ?)`,
		ev.RunID, expression, ev.Moment.UnixMilli(), j.now().UnixMilli(),
	)
	if err != nil {
		return 0, shared.MarkKind(fmt.Errorf("record moment %s: %w", ev.Moment.Format(time.RFC3339), err), shared.KindDependencyFailure)
	}
	return res.LastInsertId()
}

// Listener returns a scheduler.Listener that records every event under
// expression. A failed insert is returned to the scheduler, which isolates it
// like any other listener failure.
func (j *Journal) Listener(expression string) scheduler.Listener {
	return func(ctx context.Context, ev scheduler.Event) error {
		id, err := j.Record(ctx, expression, ev)
		if err != nil {
			j.logger.Warn("failed to record moment", "moment", ev.Moment, "error", err)
			return err
		}
		j.logger.Debug("moment recorded", "id", id, "moment", ev.Moment, "run_id", ev.RunID)
		return nil
	}
}

// Recent returns up to limit entries, newest moment first.
// Times are returned in loc; nil means UTC.
func (j *Journal) Recent(ctx context.Context, limit int, loc *time.Location) ([]Entry, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, run_id, expression, moment_ms, fired_at_ms
		   FROM fired_moments
		  ORDER BY moment_ms DESC, id DESC
		  LIMIT ?`, limit)
	if err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "query recent moments"), shared.KindDependencyFailure)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			momentMs, firedMs int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Expression, &momentMs, &firedMs); err != nil {
			return nil, shared.MarkKind(shared.Wrap(err, "scan moment"), shared.KindDependencyFailure)
		}
		e.Moment = inLocation(time.UnixMilli(momentMs), loc)
		e.FiredAt = inLocation(time.UnixMilli(firedMs), loc)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, shared.MarkKind(shared.Wrap(err, "iterate moments"), shared.KindDependencyFailure)
	}
	return out, nil
}

// LastMoment returns the latest recorded moment for expression.
// It fails with shared.ErrNotFound when nothing was recorded yet.
func (j *Journal) LastMoment(ctx context.Context, expression string) (time.Time, error) {
	var ms int64
	err := j.db.QueryRowContext(ctx,
		`SELECT moment_ms FROM fired_moments WHERE expression = ? ORDER BY moment_ms DESC LIMIT 1`,
		expression,
	).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, shared.MarkKind(fmt.Errorf("no moments for %q", expression), shared.KindNotFound)
	}
	if err != nil {
		return time.Time{}, shared.MarkKind(shared.Wrap(err, "query last moment"), shared.KindDependencyFailure)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t.UTC()
	}
	return t.In(loc)
}
