package config

import (
	"context"
	"testing"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cronloop/internal/shared"
)

func TestLoadFrom_Defaults(t *testing.T) {
	c, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"CRON_PATTERN": "*/5 * * * *",
	}))
	require.NoError(t, err)

	assert.Equal(t, "prod", c.Env)
	assert.Equal(t, "*/5 * * * *", c.Schedule.Pattern)
	assert.Empty(t, c.Schedule.Timezone)
	assert.False(t, c.Schedule.Autorecover)
	assert.Equal(t, "parser", c.Schedule.Strategy)
	assert.Equal(t, "info", c.Log.ConsoleLevel)
	assert.Equal(t, "debug", c.Log.FileLevel)
	assert.Empty(t, c.Log.File)
	assert.Empty(t, c.Journal.Path)
}

func TestLoadFrom_Overrides(t *testing.T) {
	c, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{
		"ENV":               "DEV",
		"CRON_PATTERN":      "* * * * * *",
		"CRON_TIMEZONE":     "Europe/Berlin",
		"CRON_AUTORECOVER":  "true",
		"CRON_STRATEGY":     "Stepper",
		"LOG_CONSOLE_LEVEL": "WARN",
		"LOG_FILE":          "data/logs/cronloop.log",
		"JOURNAL_PATH":      "data/journal.db",
	}))
	require.NoError(t, err)

	assert.Equal(t, "dev", c.Env)
	assert.Equal(t, "Europe/Berlin", c.Schedule.Timezone)
	assert.True(t, c.Schedule.Autorecover)
	assert.Equal(t, "stepper", c.Schedule.Strategy)
	assert.Equal(t, "warn", c.Log.ConsoleLevel)
	assert.Equal(t, "data/logs/cronloop.log", c.Log.File)
	assert.Equal(t, "data/journal.db", c.Journal.Path)
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing pattern", env: map[string]string{}},
		{name: "bad env", env: map[string]string{"CRON_PATTERN": "* * * * *", "ENV": "staging"}},
		{name: "bad strategy", env: map[string]string{"CRON_PATTERN": "* * * * *", "CRON_STRATEGY": "guess"}},
		{name: "bad timezone", env: map[string]string{"CRON_PATTERN": "* * * * *", "CRON_TIMEZONE": "Moon/Base"}},
		{name: "bad bool", env: map[string]string{"CRON_PATTERN": "* * * * *", "CRON_AUTORECOVER": "maybe"}},
		{name: "bad log level", env: map[string]string{"CRON_PATTERN": "* * * * *", "LOG_FILE_LEVEL": "trace"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(context.Background(), envconfig.MapLookuper(tt.env))
			require.Error(t, err)
			assert.True(t, shared.IsValidation(err))
		})
	}
}
