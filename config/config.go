// Package config loads peer runtime settings from worldofwater.yaml plus
// WOW_-prefixed environment overrides, and persists small player
// preferences across runs.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/JayBlankenship/WorldofWater4/shared/netconfig"
)

// Settings is the full runtime configuration for one peer process.
type Settings struct {
	LogLevel string `mapstructure:"logLevel"`

	PeerName string `mapstructure:"peerName"`
	Region   string `mapstructure:"region"`

	// Host mode opens a listener; otherwise HostAddr is dialed.
	Host       bool   `mapstructure:"host"`
	Transport  string `mapstructure:"transport"` // "ws" or "kcp"
	ListenAddr string `mapstructure:"listenAddr"`
	HostAddr   string `mapstructure:"hostAddr"`

	MasterURL string `mapstructure:"masterUrl"` // empty disables lobby registration
	MaxPeers  int    `mapstructure:"maxPeers"`

	TickRate int `mapstructure:"tickRate"`

	// OceanSeed seeds single-simulation weather. Networked sessions take
	// weather from the host instead.
	OceanSeed int64 `mapstructure:"oceanSeed"`
}

// Load reads configuration from configDir, falling back to defaults for
// anything unset. A missing config file is not an error; an unreadable or
// malformed one is.
func Load(configDir string) (*Settings, error) {
	v := viper.New()

	v.SetDefault("logLevel", "info")
	v.SetDefault("peerName", "skipper")
	v.SetDefault("region", "")
	v.SetDefault("host", false)
	v.SetDefault("transport", "ws")
	v.SetDefault("listenAddr", "0.0.0.0:7420")
	v.SetDefault("hostAddr", "127.0.0.1:7420")
	v.SetDefault("masterUrl", "")
	v.SetDefault("maxPeers", 8)
	v.SetDefault("tickRate", netconfig.DefaultTickRate)
	v.SetDefault("oceanSeed", 0)

	v.SetConfigName("worldofwater")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetEnvPrefix("WOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if s.Transport != "ws" && s.Transport != "kcp" {
		return nil, fmt.Errorf("transport must be ws or kcp, got %q", s.Transport)
	}
	if s.TickRate <= 0 {
		return nil, fmt.Errorf("tickRate must be positive, got %d", s.TickRate)
	}
	return &s, nil
}
