package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Mail      MailConfig      `mapstructure:"mail"`
	CheckIn   CheckInConfig   `mapstructure:"checkin"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// MailConfig selects and configures the transactional email provider.
type MailConfig struct {
	Provider string `mapstructure:"provider"` // "resend" or "noop"
	APIKey   string `mapstructure:"api_key"`
	From     string `mapstructure:"from"`
	// OverrideRecipient redirects every reminder email to one address
	// (non-production safety valve); it also bypasses per-client email
	// opt-outs so test runs exercise the full dispatch path.
	OverrideRecipient string `mapstructure:"override_recipient"`
}

// CheckInConfig configures the scheduling core.
type CheckInConfig struct {
	// Timezone is the IANA name of the location due dates and check-in
	// windows are computed in, e.g. "Pacific/Auckland".
	Timezone string `mapstructure:"timezone"`
}

// SchedulerConfig controls the in-process cron jobs.
type SchedulerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// OverdueHour is the local hour of day the daily overdue scan runs in.
	OverdueHour int `mapstructure:"overdue_hour"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	// Environment variable handling: server.address -> SERVER_ADDRESS etc.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	viper.SetDefault("server.address", ":8080")
	viper.SetDefault("database.uri", "mongodb://localhost:27017")
	viper.SetDefault("database.name", "checkin_app")
	viper.SetDefault("jwt.expiration", "1h")
	viper.SetDefault("mail.provider", "noop")
	viper.SetDefault("checkin.timezone", "UTC")
	viper.SetDefault("scheduler.enabled", true)
	viper.SetDefault("scheduler.overdue_hour", 7)

	err = viper.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// No config file is fine; env vars and defaults cover everything.
		err = nil
	} else if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
