package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"cronloop/internal/shared"
)

// ScheduleConfig describes the single schedule the process runs.
type ScheduleConfig struct {
	Pattern     string `env:"CRON_PATTERN" validate:"required"`
	Timezone    string `env:"CRON_TIMEZONE" validate:"omitempty,timezone"`
	Autorecover bool   `env:"CRON_AUTORECOVER, default=false"`
	Strategy    string `env:"CRON_STRATEGY, default=parser" validate:"oneof=parser stepper"`
}

// LogConfig mirrors logger.Options.
type LogConfig struct {
	ConsoleLevel string `env:"LOG_CONSOLE_LEVEL, default=info" validate:"oneof=debug info warn error"`
	FileLevel    string `env:"LOG_FILE_LEVEL, default=debug" validate:"oneof=debug info warn error"`
	File         string `env:"LOG_FILE"`
}

// JournalConfig enables the sqlite journal of dispatched moments.
type JournalConfig struct {
	Path string `env:"JOURNAL_PATH"`
}

// Config holds application configuration values.
type Config struct {
	Env      string `env:"ENV, default=prod" validate:"oneof=dev prod"`
	Schedule ScheduleConfig
	Log      LogConfig
	Journal  JournalConfig
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env file.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return LoadFrom(context.Background(), envconfig.OsLookuper())
}

// LoadFrom reads configuration through an arbitrary lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (Config, error) {
	var c Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &c,
		Lookuper: lookuper,
	}); err != nil {
		return Config{}, shared.MarkKind(fmt.Errorf("process env: %w", err), shared.KindValidation)
	}

	c.Env = strings.ToLower(c.Env)
	c.Schedule.Strategy = strings.ToLower(c.Schedule.Strategy)
	c.Log.ConsoleLevel = strings.ToLower(c.Log.ConsoleLevel)
	c.Log.FileLevel = strings.ToLower(c.Log.FileLevel)

	if err := validate.Struct(c); err != nil {
		return Config{}, shared.MarkKind(err, shared.KindValidation)
	}
	return c, nil
}
