// Package conf loads the application configuration from a YAML file with
// environment variable overrides.
package conf

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/searchlab/retrieval/internal/pkg/logger"
	"github.com/searchlab/retrieval/internal/retrieval"
)

// Config is the full application configuration.
type Config struct {
	Log       logger.Config    `mapstructure:"log"`
	Retrieval retrieval.Config `mapstructure:"retrieval"`
}

// LoadConfig reads and validates the configuration at path.
func LoadConfig(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("SEARCHRANK")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := &Config{Log: *logger.DefaultConfig()}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Log.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}
	if err := config.Retrieval.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retrieval config: %w", err)
	}

	return config, nil
}
