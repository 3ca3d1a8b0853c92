package common

import (
	"errors"
	"fmt"
	"github.com/segmentio/ksuid"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultMessageInterval  = 45 * time.Millisecond
	DefaultGeometryInterval = 90 * time.Millisecond
	DefaultTickInterval     = 15 * time.Millisecond
	DefaultStatsInterval    = time.Second
	DefaultSocketPath       = "/tmp/dbridge.sock"
)

// --------------------------------------------------------------------------
// Bridge configuration struct
// --------------------------------------------------------------------------

// Config holds all configuration parameters of one bridge peer.
type Config struct {
	// Role of this peer (simulation or renderer)
	Role Role

	// Transport settings, Transport is "unix" or "tcp"
	Transport string
	Endpoint  string

	// Outbound cadences
	MessageInterval  time.Duration
	GeometryInterval time.Duration

	// Tick loop and interval statistics
	TickInterval  time.Duration
	StatsInterval time.Duration

	// whether the simulation peer runs the clock offset estimator
	ClockSync bool

	// Handshake fields (sent by the renderer)
	APIKey                  string
	AppID                   string
	SessionName             string
	EarlySubscriptionTopics []string

	// Asset manifest files (renderer)
	ManifestPaths []string

	// Metrics endpoint path on the renderer listener, empty disables it
	MetricsPath string

	// Logging configuration
	LogLevel string
}

// DefaultConfig returns a configuration with the default cadences
func DefaultConfig(role Role) *Config {
	return &Config{
		Role:             role,
		Transport:        "unix",
		Endpoint:         DefaultSocketPath,
		MessageInterval:  DefaultMessageInterval,
		GeometryInterval: DefaultGeometryInterval,
		TickInterval:     DefaultTickInterval,
		StatsInterval:    DefaultStatsInterval,
		ClockSync:        true,
		SessionName:      ksuid.New().String(),
		MetricsPath:      "/metrics",
		LogLevel:         "info",
	}
}

// Validate checks the configuration for missing or contradicting values
func (c *Config) Validate() error {
	var errs []error
	if c.Transport != "unix" && c.Transport != "tcp" {
		errs = append(errs, fmt.Errorf("invalid transport %q, must be unix or tcp", c.Transport))
	}
	if c.Endpoint == "" {
		errs = append(errs, errors.New("endpoint must not be empty"))
	}
	if c.MessageInterval <= 0 || c.GeometryInterval <= 0 {
		errs = append(errs, errors.New("message and geometry interval must be positive"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, errors.New("tick interval must be positive"))
	}
	if c.Role == RoleRenderer && c.SessionName == "" {
		errs = append(errs, errors.New("renderer needs a session name"))
	}
	if _, ok := LookupLogLevel(c.LogLevel); !ok {
		errs = append(errs, fmt.Errorf("invalid log level %q, must be one of debug, info, warn, error", c.LogLevel))
	}
	if c.MetricsPath != "" && !strings.HasPrefix(c.MetricsPath, "/") {
		errs = append(errs, fmt.Errorf("metrics path %q must start with /", c.MetricsPath))
	}
	return errors.Join(errs...)
}

// Handshake builds the readyForSession payload from the configuration
func (c *Config) Handshake(manifests []string) Handshake {
	return Handshake{
		APIKey:                  c.APIKey,
		AppID:                   c.AppID,
		SessionName:             c.SessionName,
		AssetManifests:          manifests,
		EarlySubscriptionTopics: c.EarlySubscriptionTopics,
	}
}

// String returns a formatted string representation of the configuration
func (c *Config) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Bridge")
	addField("Role", c.Role.String())
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)

	addSection("Cadence")
	addField("Message Interval", c.MessageInterval.String())
	addField("Geometry Interval", c.GeometryInterval.String())
	addField("Tick Interval", c.TickInterval.String())
	addField("Stats Interval", c.StatsInterval.String())
	if c.Role == RoleSimulation {
		addField("Clock Sync", strconv.FormatBool(c.ClockSync))
	}

	if c.Role == RoleRenderer {
		addSection("Session")
		addField("Session Name", c.SessionName)
		addField("App ID", c.AppID)
		if c.APIKey != "" {
			addField("API Key", "********")
		}
		addField("Early Topics", strings.Join(c.EarlySubscriptionTopics, ", "))

		addSection("Manifests")
		for i, path := range c.ManifestPaths {
			addField(strconv.Itoa(i), path)
		}
		if c.MetricsPath != "" {
			addField("Metrics", c.MetricsPath)
		}
	}

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	return sb.String()
}
