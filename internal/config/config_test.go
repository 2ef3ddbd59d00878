package config

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestValidate checks required fields and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	// Missing resource.
	require.ErrorIs(t, Validate(new(Config)), errResourceRequired)

	// Not HTTP.
	require.ErrorIs(t, Validate(&Config{ResourceURL: "ftp://example.com/latest.json"}), errResourceScheme)

	// Relative resource.
	require.Error(t, Validate(&Config{ResourceURL: "data/latest.json"}))

	// Bad schedule.
	require.Error(t, Validate(&Config{
		ResourceURL: "https://example.com/planning/latest.json",
		Schedule:    "every five minutes",
	}))

	// Bad control address.
	require.Error(t, Validate(&Config{
		ResourceURL:    "https://example.com/planning/latest.json",
		ControlAddress: "bad:address",
	}))

	// Unknown log level.
	require.ErrorIs(t, Validate(&Config{
		ResourceURL: "https://example.com/planning/latest.json",
		LogLevel:    "chatty",
	}), errUnknownLogLevel)

	require.ErrorIs(t, Validate(nil), errConfigIsNotSet)
}

// TestValidate_FillsDefaults verifies defaults derived from the resource URL.
func TestValidate_FillsDefaults(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ResourceURL: "https://example.github.io/planning/latest.json",
		NATS:        NATS{URL: "nats://127.0.0.1:4222"},
	}

	require.NoError(t, Validate(cfg))
	require.Equal(t, "https://example.github.io/planning/", cfg.SiteURL)
	require.Equal(t, DefaultSchedule, cfg.Schedule)
	require.Equal(t, DefaultTimeout, cfg.Timeout)
	require.Equal(t, DefaultStateFilename, cfg.StateFile)
	require.Equal(t, DefaultControlAddress, cfg.ControlAddress)
	require.Equal(t, DefaultHTTPAddress, cfg.HTTPAddress)
	require.Equal(t, DefaultNotificationTag, cfg.Notification.Tag)
	require.Equal(t, DefaultNotificationURL, cfg.Notification.URL)
	require.Equal(t, "/planning/", cfg.Notification.WindowMatch)
	require.Equal(t, DefaultNATSSubject, cfg.NATS.Subject)
	require.Equal(t, []string{"example.github.io"}, cfg.AllowedOrigins)

	target, err := cfg.TargetURL()
	require.NoError(t, err)
	require.Equal(t, "https://example.github.io/planning/", target)
}

// TestValidate_AcceptsCronExpressions covers the schedule formats in use.
func TestValidate_AcceptsCronExpressions(t *testing.T) {
	t.Parallel()

	for _, schedule := range []string{"@every 30s", "@hourly", "*/10 * * * *", "0 8 * * 1-5"} {
		cfg := &Config{
			ResourceURL: "https://example.com/latest.json",
			Schedule:    schedule,
		}

		require.NoError(t, Validate(cfg), schedule)
	}
}

// TestTargetURL_Absolute keeps absolute click targets untouched.
func TestTargetURL_Absolute(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		ResourceURL:  "https://example.com/planning/latest.json",
		Notification: Notification{URL: "https://other.example.com/S12.html"},
	}

	require.NoError(t, Validate(cfg))

	target, err := cfg.TargetURL()
	require.NoError(t, err)
	require.Equal(t, "https://other.example.com/S12.html", target)
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	settings := &Config{
		ResourceURL:    "https://updates.local/planning/latest.json",
		Schedule:       "*/5 * * * *",
		Timeout:        3 * time.Second,
		ControlAddress: "127.0.0.1:50099",
		Notification: Notification{
			Icon:    "icons/icon-192.png",
			Badge:   "icons/badge-72.png",
			Desktop: true,
		},
	}

	require.NoError(t, Save(path, settings))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, settings.ResourceURL, loaded.ResourceURL)
	require.Equal(t, settings.Schedule, loaded.Schedule)
	require.Equal(t, settings.Timeout, loaded.Timeout)
	require.Equal(t, settings.ControlAddress, loaded.ControlAddress)
	require.Equal(t, settings.Notification, loaded.Notification)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(DefaultFilePermissions), info.Mode().Perm())
}

// TestLoad_MissingFile reports a read error.
func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.ErrorIs(t, Save("", nil), errConfigIsNotSet)
}

// TestRead_SkipsValidation lets callers fill the resource after reading.
func TestRead_SkipsValidation(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "partial.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schedule: \"@hourly\"\n"), DefaultFilePermissions))

	cfg, err := Read(path)
	require.NoError(t, err)
	require.Equal(t, "@hourly", cfg.Schedule)
	require.Empty(t, cfg.ResourceURL)

	_, err = Load(path)
	require.ErrorIs(t, err, errResourceRequired)
}
