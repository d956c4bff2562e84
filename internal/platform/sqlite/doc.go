// Package sqlite предоставляет инфраструктурные компоненты для работы с SQLite.
//
// Используется журналом сработавших моментов: открытие БД с настройками
// пула и PRAGMA, а также миграции схемы из встроенной файловой системы.
//
// # Быстрый старт
//
//	db, err := sqlite.NewDB(ctx, "data/journal.db")
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// # Миграции
//
// Миграции передаются как fs.FS, обычно через go:embed:
//
//	//go:embed migrations/*.sql
//	var migrations embed.FS
//
//	err = sqlite.ApplyMigrations("data/journal.db", migrations, "migrations")
package sqlite
