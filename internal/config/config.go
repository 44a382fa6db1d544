package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

type Config struct {
	Logger        LoggerConfig        `mapstructure:"logger"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Platforms     PlatformsConfig     `mapstructure:"platforms"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Sync          SyncConfig          `mapstructure:"sync"`
	Telemetry     TelemetryConfig     `mapstructure:"telemetry"`
	API           APIConfig           `mapstructure:"api"`
}

type LoggerConfig struct {
	Level       string   `mapstructure:"level"`
	Format      string   `mapstructure:"format"`
	OutputPaths []string `mapstructure:"output_paths"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type TelemetryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

// PlatformsConfig holds one section per supported platform.
type PlatformsConfig struct {
	HackerOne PlatformConfig `mapstructure:"hackerone"`
	Bugcrowd  PlatformConfig `mapstructure:"bugcrowd"`
	Intigriti PlatformConfig `mapstructure:"intigriti"`
	YesWeHack PlatformConfig `mapstructure:"yeswehack"`
}

// PlatformConfig configures one platform client. Username is only used by
// HackerOne, which authenticates with username + API token.
type PlatformConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Username          string        `mapstructure:"username"`
	APIToken          string        `mapstructure:"api_token"`
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Exclusions        []string      `mapstructure:"exclusions"`
}

type NotificationsConfig struct {
	DiscordWebhookURL string  `mapstructure:"discord_webhook_url"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
	QueueSize         int     `mapstructure:"queue_size"`
}

type SyncConfig struct {
	HistoryRetention time.Duration `mapstructure:"history_retention"`
	Schedule         string        `mapstructure:"schedule"`
}

// APIConfig configures the read-only query API. An empty APIKey disables
// authentication.
type APIConfig struct {
	Addr              string  `mapstructure:"addr"`
	APIKey            string  `mapstructure:"api_key"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Get returns the section for platform.
func (c PlatformsConfig) Get(platform scope.Platform) (PlatformConfig, bool) {
	switch platform {
	case scope.PlatformHackerOne:
		return c.HackerOne, true
	case scope.PlatformBugcrowd:
		return c.Bugcrowd, true
	case scope.PlatformIntigriti:
		return c.Intigriti, true
	case scope.PlatformYesWeHack:
		return c.YesWeHack, true
	default:
		return PlatformConfig{}, false
	}
}

// Excluded reports whether slug is on the exclusion list of platform.
func (c *Config) Excluded(platform scope.Platform, slug string) bool {
	pc, ok := c.Platforms.Get(platform)
	if !ok {
		return false
	}
	for _, excluded := range pc.Exclusions {
		if strings.EqualFold(strings.TrimSpace(excluded), slug) {
			return true
		}
	}
	return false
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Sync.HistoryRetention <= 0 {
		return fmt.Errorf("sync.history_retention must be positive, got %s", c.Sync.HistoryRetention)
	}
	if raw := c.Notifications.DiscordWebhookURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme != "https" || !strings.Contains(u.Path, "/webhooks/") {
			return fmt.Errorf("notifications.discord_webhook_url is not a discord webhook url")
		}
	}
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:       "info",
			Format:      "console",
			OutputPaths: []string{"stdout"},
		},
		Database: DatabaseConfig{
			Driver:          "sqlite3",
			DSN:             "bountywatch.db",
			MaxConnections:  10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 1 * time.Hour,
		},
		Platforms: PlatformsConfig{
			HackerOne: PlatformConfig{
				BaseURL:           "https://api.hackerone.com/v1",
				Timeout:           30 * time.Second,
				RequestsPerSecond: 5,
			},
			Bugcrowd: PlatformConfig{
				BaseURL:           "https://api.bugcrowd.com",
				Timeout:           30 * time.Second,
				RequestsPerSecond: 2,
			},
			Intigriti: PlatformConfig{
				BaseURL:           "https://api.intigriti.com/external/researcher/v1",
				Timeout:           30 * time.Second,
				RequestsPerSecond: 2,
			},
			YesWeHack: PlatformConfig{
				BaseURL:           "https://api.yeswehack.com",
				Timeout:           30 * time.Second,
				RequestsPerSecond: 2,
			},
		},
		Notifications: NotificationsConfig{
			RequestsPerSecond: 0.5,
			Burst:             5,
			QueueSize:         1024,
		},
		Sync: SyncConfig{
			HistoryRetention: 30 * 24 * time.Hour,
			Schedule:         "@every 1h",
		},
		Telemetry: TelemetryConfig{
			Enabled:     false,
			ServiceName: "bountywatch",
			Endpoint:    "localhost:4318",
			SampleRate:  1.0,
		},
		API: APIConfig{
			Addr:              ":8080",
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}
