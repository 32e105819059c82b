package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Port        int    `mapstructure:"port"`
	AdminPort   int    `mapstructure:"admin_port"`
	MaxJobs     int    `mapstructure:"max_jobs"`
	MaxAttempts int    `mapstructure:"max_attempts"`
	ModuleDir   string `mapstructure:"module_dir"`
	DBPath      string `mapstructure:"db_path"`
}

var Default = Config{
	Port:        34048,
	AdminPort:   34049,
	MaxJobs:     10,
	MaxAttempts: 10,
	ModuleDir:   "",
	DBPath:      "portage.db",
}

func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home dir: %w", err)
	}

	configDir := filepath.Join(home, ".portage")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config dir: %w", err)
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)

	viper.SetDefault("port", Default.Port)
	viper.SetDefault("admin_port", Default.AdminPort)
	viper.SetDefault("max_jobs", Default.MaxJobs)
	viper.SetDefault("max_attempts", Default.MaxAttempts)
	viper.SetDefault("module_dir", Default.ModuleDir)
	viper.SetDefault("db_path", filepath.Join(configDir, Default.DBPath))

	viper.SetEnvPrefix("PORTAGE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
