// Package conf loads and validates the toolkit configuration from file,
// environment and command-line flags via viper.
package conf

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// CDFSettings holds the connection settings for the target CDF project.
type CDFSettings struct {
	Cluster  string // e.g. "westeurope-1"
	Project  string // CDF project name
	BaseURL  string // override; derived from Cluster when empty
	TokenEnv string // name of the environment variable holding the bearer token
}

// MigrateSettings tunes the migration pipeline.
type MigrateSettings struct {
	ChunkSize         int     // items per API call and per pipeline chunk
	MaxQueueSize      int     // bounded queue size between pipeline stages
	CapacityMargin    float64 // fraction of the instance quota kept free
	RequestsPerSecond float64 // client-side rate limit towards the CDF API
	LogDir            string  // directory for per-run issue logs
}

// MainSettings holds process-wide settings.
type MainSettings struct {
	Debug   bool
	Verbose bool
}

// Settings is the root configuration for cdf-tk.
type Settings struct {
	Main    MainSettings
	CDF     CDFSettings
	Migrate MigrateSettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// setDefaultConfig registers default values for every configuration parameter.
func setDefaultConfig() {
	viper.SetDefault("main.debug", false)
	viper.SetDefault("main.verbose", false)
	viper.SetDefault("cdf.cluster", "")
	viper.SetDefault("cdf.project", "")
	viper.SetDefault("cdf.baseurl", "")
	viper.SetDefault("cdf.tokenenv", "CDF_TOKEN")
	viper.SetDefault("migrate.chunksize", 1000)
	viper.SetDefault("migrate.maxqueuesize", 10)
	viper.SetDefault("migrate.capacitymargin", 0.1)
	viper.SetDefault("migrate.requestspersecond", 10)
	viper.SetDefault("migrate.logdir", "logs")
}

// Load reads the configuration file and environment variables into Settings.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// initViper initializes viper with defaults, config paths and env binding.
func initViper() error {
	viper.SetConfigName("cdf-tk")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.cdf-tk")

	viper.SetEnvPrefix("CDF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// No config file is fine, env and flags carry the settings.
			return nil
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

// ValidateSettings checks cross-field constraints the unmarshal step cannot express.
func ValidateSettings(settings *Settings) error {
	if settings.Migrate.ChunkSize <= 0 {
		return fmt.Errorf("migrate.chunksize must be positive, got %d", settings.Migrate.ChunkSize)
	}
	if settings.Migrate.MaxQueueSize <= 0 {
		return fmt.Errorf("migrate.maxqueuesize must be positive, got %d", settings.Migrate.MaxQueueSize)
	}
	if settings.Migrate.CapacityMargin < 0 || settings.Migrate.CapacityMargin >= 1 {
		return fmt.Errorf("migrate.capacitymargin must be in [0, 1), got %g", settings.Migrate.CapacityMargin)
	}
	if settings.Migrate.RequestsPerSecond <= 0 {
		return fmt.Errorf("migrate.requestspersecond must be positive, got %g", settings.Migrate.RequestsPerSecond)
	}
	return nil
}

// GetSettings returns the current settings instance.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// Setting returns the current settings instance, loading them on first use.
func Setting() *Settings {
	settingsMutex.RLock()
	loaded := settingsInstance != nil
	settingsMutex.RUnlock()
	if !loaded {
		if _, err := Load(); err != nil {
			panic(fmt.Sprintf("error loading settings: %v", err))
		}
	}
	return GetSettings()
}

// APIBaseURL returns the effective base URL for the CDF API.
func (c *CDFSettings) APIBaseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return fmt.Sprintf("https://%s.cognitedata.com", c.Cluster)
}
