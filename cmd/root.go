package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/config"
	"github.com/CodeMonkeyCybersecurity/bountywatch/internal/logger"
	"github.com/CodeMonkeyCybersecurity/bountywatch/pkg/scope"
)

const envPrefix = "BOUNTYWATCH"

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "bountywatch",
	Short: "Track scope changes across bug bounty platforms",
	Long: `bountywatch fetches the programs you can access on HackerOne, Bugcrowd,
Intigriti and YesWeHack, normalizes every scope entry into canonical assets
and records what was added, removed or ignored since the last sync.

USAGE:
  bountywatch sync                      # Sync every enabled platform once
  bountywatch sync --platform bugcrowd  # Sync a single platform
  bountywatch watch                     # Sync on a schedule
  bountywatch serve                     # Query API, optionally with --watch
  bountywatch programs                  # List tracked programs
  bountywatch history --type add_scope  # Show recent changes

CONFIGURATION:
  Settings are read from bountywatch.yaml (or --config), then from
  environment variables prefixed with BOUNTYWATCH_, for example
  BOUNTYWATCH_PLATFORMS_HACKERONE_API_TOKEN. A .env file in the working
  directory is loaded first.`,
	Version:       logger.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return err
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// stdout does not support fsync
			_ = log.Sync()
		}
	},
}

// Execute runs the root command and prints the error, if any.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./bountywatch.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "Log format (console, json)")
	rootCmd.PersistentFlags().String("db-driver", "sqlite3", "Database driver (sqlite3, postgres)")
	rootCmd.PersistentFlags().String("db-dsn", "bountywatch.db", "Database DSN")

	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("database.driver", rootCmd.PersistentFlags().Lookup("db-driver"))
	viper.BindPFlag("database.dsn", rootCmd.PersistentFlags().Lookup("db-dsn"))
}

func initConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	c, err := loadConfig(viper.GetViper(), cfgFile)
	if err != nil {
		return err
	}
	cfg = c
	return nil
}

// loadConfig layers defaults, the config file and the environment into a
// validated Config. An explicit file must exist; the default one may not.
func loadConfig(v *viper.Viper, file string) (*config.Config, error) {
	setDefaults(v, config.DefaultConfig())

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("bountywatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/bountywatch")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	c := config.DefaultConfig()
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return c, nil
}

// setDefaults registers every key so AutomaticEnv can override it during
// Unmarshal.
func setDefaults(v *viper.Viper, d *config.Config) {
	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)
	v.SetDefault("logger.output_paths", d.Logger.OutputPaths)

	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.dsn", d.Database.DSN)
	v.SetDefault("database.max_connections", d.Database.MaxConnections)
	v.SetDefault("database.max_idle_conns", d.Database.MaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", d.Database.ConnMaxLifetime)

	for _, platform := range scope.KnownPlatforms {
		pc, _ := d.Platforms.Get(platform)
		prefix := "platforms." + string(platform) + "."
		v.SetDefault(prefix+"enabled", pc.Enabled)
		v.SetDefault(prefix+"username", pc.Username)
		v.SetDefault(prefix+"api_token", pc.APIToken)
		v.SetDefault(prefix+"base_url", pc.BaseURL)
		v.SetDefault(prefix+"timeout", pc.Timeout)
		v.SetDefault(prefix+"requests_per_second", pc.RequestsPerSecond)
		v.SetDefault(prefix+"exclusions", pc.Exclusions)
	}

	v.SetDefault("notifications.discord_webhook_url", d.Notifications.DiscordWebhookURL)
	v.SetDefault("notifications.requests_per_second", d.Notifications.RequestsPerSecond)
	v.SetDefault("notifications.burst", d.Notifications.Burst)
	v.SetDefault("notifications.queue_size", d.Notifications.QueueSize)

	v.SetDefault("sync.history_retention", d.Sync.HistoryRetention)
	v.SetDefault("sync.schedule", d.Sync.Schedule)

	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	v.SetDefault("api.addr", d.API.Addr)
	v.SetDefault("api.api_key", d.API.APIKey)
	v.SetDefault("api.requests_per_second", d.API.RequestsPerSecond)
	v.SetDefault("api.burst", d.API.Burst)
}
