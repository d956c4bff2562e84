package sqlite

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// BuildMigrateURL строит корректный URL для golang-migrate с учётом особенностей ОС.
// На Windows для путей вида "C:\..." создаёт "sqlite:///C:/...",
// на Unix для "/..." создаёт "sqlite:///...".
func BuildMigrateURL(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	urlPath := filepath.ToSlash(absPath)
	if runtime.GOOS == "windows" && len(urlPath) >= 2 && urlPath[1] == ':' {
		urlPath = "/" + urlPath
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	return "sqlite://" + urlPath, nil
}

// ApplyMigrations применяет миграции из fsys/dir к базе по пути dbPath.
// Повторный вызов безопасен: migrate.ErrNoChange не считается ошибкой.
//
// Миграции открывают своё соединение по URL: драйвер golang-migrate
// закрывает базу при Close, поэтому общий *sql.DB ему не передаётся.
func ApplyMigrations(dbPath string, fsys fs.FS, dir string) error {
	m, err := newMigrate(dbPath, fsys, dir)
	if err != nil {
		return err
	}
	defer func() {
		_, _ = m.Close()
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// MigrationVersion возвращает текущую версию схемы.
// Для базы без применённых миграций возвращается 0, false, nil.
func MigrationVersion(dbPath string, fsys fs.FS, dir string) (uint, bool, error) {
	m, err := newMigrate(dbPath, fsys, dir)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		_, _ = m.Close()
	}()

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

func newMigrate(dbPath string, fsys fs.FS, dir string) (*migrate.Migrate, error) {
	databaseURL, err := BuildMigrateURL(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build database URL: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open migrations source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}
