package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite драйвер
)

// DBOptions содержит настройки для SQLite базы данных.
type DBOptions struct {
	// ConnMaxLifetime - максимальное время жизни соединения
	ConnMaxLifetime time.Duration
	// ConnMaxIdleTime - максимальное время простоя соединения
	ConnMaxIdleTime time.Duration
	// MaxOpenConns - максимальное количество открытых соединений
	MaxOpenConns int
	// MaxIdleConns - максимальное количество idle соединений
	MaxIdleConns int
	// PingTimeout - таймаут для проверки соединения при создании БД
	PingTimeout time.Duration
	// WALMode - использовать ли WAL режим
	WALMode bool
	// BusyTimeout - таймаут ожидания при SQLITE_BUSY
	BusyTimeout time.Duration
}

// DefaultDBOptions возвращает настройки по умолчанию для журнала: один процесс,
// редкие записи по одной строке на сработавший момент.
func DefaultDBOptions() DBOptions {
	return DBOptions{
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		PingTimeout:     5 * time.Second,
		WALMode:         true,
		BusyTimeout:     5 * time.Second,
	}
}

// NewDB создает подключение к SQLite базе данных с настройками по умолчанию.
func NewDB(ctx context.Context, dbPath string) (*sql.DB, error) {
	return NewDBWithOptions(ctx, dbPath, DefaultDBOptions())
}

// NewDBWithOptions создает подключение к SQLite с заданными параметрами.
// Директория файла создаётся при необходимости.
func NewDBWithOptions(ctx context.Context, dbPath string, opts DBOptions) (*sql.DB, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath, opts))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	db.SetConnMaxLifetime(opts.ConnMaxLifetime)
	db.SetConnMaxIdleTime(opts.ConnMaxIdleTime)
	db.SetMaxOpenConns(opts.MaxOpenConns)
	db.SetMaxIdleConns(opts.MaxIdleConns)

	pingTimeout := opts.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = DefaultDBOptions().PingTimeout
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

// NewInMemoryDB создает in-memory SQLite базу данных для тестов.
// Пул ограничен одним соединением: у каждого соединения своя in-memory БД.
func NewInMemoryDB(ctx context.Context) (*sql.DB, error) {
	opts := DefaultDBOptions()
	opts.WALMode = false
	opts.MaxOpenConns = 1
	opts.MaxIdleConns = 1
	return NewDBWithOptions(ctx, ":memory:", opts)
}

// buildDSN строит DSN для modernc.org/sqlite. PRAGMA передаются через
// параметры _pragma, драйвер выполняет их на каждом новом соединении пула.
func buildDSN(dbPath string, opts DBOptions) string {
	var params []string

	if opts.BusyTimeout > 0 {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", opts.BusyTimeout.Milliseconds()))
	}
	if opts.WALMode {
		params = append(params, "_pragma=journal_mode(WAL)")
	}
	params = append(params, "_pragma=synchronous(NORMAL)")

	return dbPath + "?" + strings.Join(params, "&")
}
