package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"PLANNER_CONFIG", "TELEGRAM_TOKEN", "DATABASE_URL", "REPORT_INTERVAL_HOURS",
	"RECONCILE_AT", "HORIZON_MONTHS", "MAX_OCCURRENCES", "PLANNER_TIMEZONE",
	"PLANNER_LOG_LEVEL", "PLANNER_LOG_FORMAT",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Error(t, cfg.ValidateBot())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
	assert.Equal(t, 1, cfg.Materialize().HorizonMonths)
}

func TestLoad_FileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "planner.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
telegram_token: from-file
database_url: data/file.db
horizon_months: 3
timezone: Europe/Berlin
reconcile_at: "04:00"
`), 0o600))

	t.Setenv("PLANNER_CONFIG", path)
	t.Setenv("DATABASE_URL", "env.db")
	t.Setenv("REPORT_INTERVAL_HOURS", "1.5")
	t.Setenv("MAX_OCCURRENCES", "50")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.TelegramToken)
	assert.Equal(t, "env.db", cfg.DatabaseURL)
	assert.Equal(t, 3, cfg.HorizonMonths)
	assert.Equal(t, 50, cfg.MaxOccurrences)
	assert.Equal(t, "04:00", cfg.ReconcileAt)
	assert.Equal(t, 90*time.Minute, cfg.ReportInterval)
	assert.NoError(t, cfg.ValidateBot())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]map[string]string{
		"interval":    {"REPORT_INTERVAL_HOURS": "soon"},
		"negative":    {"REPORT_INTERVAL_HOURS": "-2"},
		"reconcile":   {"RECONCILE_AT": "3am"},
		"horizon":     {"HORIZON_MONTHS": "0"},
		"occurrences": {"MAX_OCCURRENCES": "many"},
		"timezone":    {"PLANNER_TIMEZONE": "Mars/Olympus"},
		"file":        {"PLANNER_CONFIG": "/does/not/exist.yaml"},
	}
	for name, env := range tests {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
