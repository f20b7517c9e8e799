package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// MinCacheSlots covers the superblock, both full bitmaps and a
// double-indirect lookup pinned at the same time.
const MinCacheSlots = 24

// Config holds settings shared by the CLI and the filesystem service
type Config struct {
	CacheSlots  int   `mapstructure:"cache_slots"`
	ReadOnly    bool  `mapstructure:"read_only"`
	Silent      bool  `mapstructure:"silent"`
	DeviceMajor uint8 `mapstructure:"device_major"`
	DeviceMinor uint8 `mapstructure:"device_minor"`
	ImageOffset int64 `mapstructure:"image_offset"`
	// AutoDetect looks for the filesystem inside partitioned images when
	// no explicit offset is set
	AutoDetect bool   `mapstructure:"auto_detect"`
	LogPrefix  string `mapstructure:"log_prefix"`
}

// LoadConfig loads configuration using Viper. An explicit path takes
// precedence over the search path; a missing config file is not an error.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("minixfs-config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.minixfs")
		v.AddConfigPath("/etc/minixfs")
	}

	// Set defaults
	v.SetDefault("cache_slots", 64)
	v.SetDefault("read_only", true)
	v.SetDefault("silent", false)
	v.SetDefault("device_major", 3) // first hard disk
	v.SetDefault("device_minor", 0)
	v.SetDefault("image_offset", 0)
	v.SetDefault("auto_detect", true)
	v.SetDefault("log_prefix", "minix: ")

	// Allow environment variables
	v.SetEnvPrefix("MINIXFS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if config.CacheSlots < MinCacheSlots {
		return nil, fmt.Errorf("cache_slots must be at least %d, got %d", MinCacheSlots, config.CacheSlots)
	}

	return &config, nil
}
