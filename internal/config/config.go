package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/schedule-watch/internal/logger"
)

// Config holds the settings shared by the schedule-watch daemon and schedule-ctl.
type Config struct {
	// ResourceURL is the absolute URL of the published schedule snapshot (JSON).
	ResourceURL string `yaml:"resource_url"`
	// SiteURL is the base that relative notification URLs resolve against.
	// Defaults to the directory holding ResourceURL.
	SiteURL string `yaml:"site_url,omitempty"`
	// Schedule is a cron expression or descriptor ("@every 5m") driving periodic checks.
	Schedule string `yaml:"schedule"`
	// CheckOnStart runs one check as soon as the daemon starts.
	CheckOnStart bool `yaml:"check_on_start"`
	// Timeout bounds each fetch and each control RPC.
	Timeout time.Duration `yaml:"timeout"`
	// StateFile is where the baseline snapshot survives restarts.
	StateFile string `yaml:"state_file"`
	// ControlAddress is the gRPC control service address.
	ControlAddress string `yaml:"control_addr"`
	// HTTPAddress serves the host WebSocket channel, metrics and health.
	HTTPAddress string `yaml:"http_addr"`
	// AllowedOrigins lists host patterns allowed to open the WebSocket channel.
	// Defaults to the host of SiteURL.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`
	// Notification controls how change notifications look and where clicks lead.
	Notification Notification `yaml:"notification"`
	// NATS optionally mirrors notifications to a broker subject.
	NATS NATS `yaml:"nats,omitempty"`
}

// Notification holds the fixed presentation of change notifications.
type Notification struct {
	Icon  string `yaml:"icon"`
	Badge string `yaml:"badge"`
	// Tag is the deduplication tag shared by every notification.
	Tag string `yaml:"tag"`
	// URL is the click target, usually relative to SiteURL.
	URL string `yaml:"url"`
	// WindowMatch selects an already open window to focus instead of opening a new one.
	WindowMatch string `yaml:"window_match"`
	// Desktop enables OS-level notifications in addition to host windows.
	Desktop bool `yaml:"desktop"`
}

// NATS configures the optional broker sink.
type NATS struct {
	URL     string `yaml:"url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "schedule-watch.yaml"

	// DefaultStateFilename is the default filename for the persisted baseline.
	DefaultStateFilename = "schedule-watch-baseline.json"

	// DefaultSchedule checks the resource every five minutes.
	DefaultSchedule = "@every 5m"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 10 * time.Second

	// DefaultControlAddress is where the gRPC control service listens.
	DefaultControlAddress = "127.0.0.1:50061"

	// DefaultHTTPAddress is where the host channel and metrics listen.
	DefaultHTTPAddress = "127.0.0.1:8061"

	// DefaultNotificationTag replaces rather than stacks repeated notifications.
	DefaultNotificationTag = "schedule-update"

	// DefaultNotificationURL points back at the site root.
	DefaultNotificationURL = "./"

	// DefaultNATSSubject is used when a NATS URL is set without a subject.
	DefaultNATSSubject = "schedule.updates"

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errResourceRequired is returned when the resource URL is missing.
	errResourceRequired = errors.New("resource url must be provided")
	// errResourceScheme is returned for non-HTTP resource URLs.
	errResourceScheme = errors.New("resource url must use http or https")
	// errUnknownLogLevel is returned for log levels zap does not know.
	errUnknownLogLevel = errors.New("unknown log level")
)

// Load reads configuration from the provided path and validates essential fields.
func Load(path string) (*Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return nil, err
	}

	if err = Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Read parses the settings file without validating it,
// so callers can apply command-line overrides first.
func Read(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate checks required fields and fills defaults in place.
//
//nolint:cyclop // A flat list of field checks reads better than helpers.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	resource, err := validateResourceURL(cfg.ResourceURL)
	if err != nil {
		return err
	}

	if cfg.SiteURL == "" {
		cfg.SiteURL = resource.ResolveReference(&url.URL{Path: "./"}).String()
	}

	site, err := url.ParseRequestURI(cfg.SiteURL)
	if err != nil {
		return fmt.Errorf("invalid site url: %w", err)
	}

	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}

	if _, err = cron.ParseStandard(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", cfg.Schedule, err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFilename
	}

	if cfg.ControlAddress == "" {
		cfg.ControlAddress = DefaultControlAddress
	}

	if _, err = net.ResolveTCPAddr("tcp", cfg.ControlAddress); err != nil {
		return fmt.Errorf("invalid control address: %w", err)
	}

	if cfg.HTTPAddress == "" {
		cfg.HTTPAddress = DefaultHTTPAddress
	}

	if _, err = net.ResolveTCPAddr("tcp", cfg.HTTPAddress); err != nil {
		return fmt.Errorf("invalid http address: %w", err)
	}

	if cfg.LogLevel != "" {
		if _, ok := logger.ParseLogLevel(cfg.LogLevel); !ok {
			return fmt.Errorf("%w: %q", errUnknownLogLevel, cfg.LogLevel)
		}
	}

	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{site.Host}
	}

	validateNotification(&cfg.Notification, site)

	if cfg.NATS.URL != "" && cfg.NATS.Subject == "" {
		cfg.NATS.Subject = DefaultNATSSubject
	}

	return nil
}

// TargetURL resolves the notification click target against the site URL.
func (c *Config) TargetURL() (string, error) {
	site, err := url.Parse(c.SiteURL)
	if err != nil {
		return "", fmt.Errorf("parse site url: %w", err)
	}

	target, err := url.Parse(c.Notification.URL)
	if err != nil {
		return "", fmt.Errorf("parse notification url: %w", err)
	}

	return site.ResolveReference(target).String(), nil
}

// validateResourceURL makes sure the resource is an absolute HTTP(S) URL.
func validateResourceURL(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errResourceRequired
	}

	resource, err := url.ParseRequestURI(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid resource url: %w", err)
	}

	if resource.Scheme != "http" && resource.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q", errResourceScheme, raw)
	}

	return resource, nil
}

// validateNotification fills notification defaults.
// The window match defaults to the site path so any page of the site counts as a match.
func validateNotification(n *Notification, site *url.URL) {
	if n.Tag == "" {
		n.Tag = DefaultNotificationTag
	}

	if n.URL == "" {
		n.URL = DefaultNotificationURL
	}

	if n.WindowMatch == "" {
		n.WindowMatch = site.Path
	}

	if n.WindowMatch == "" {
		n.WindowMatch = "/"
	}
}
