// Copyright 2024 The Nakama Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var configValidate = validator.New(validator.WithRequiredStructEnabled())

// Config is the appearance module configuration.
type Config struct {
	Name       string            `yaml:"name" json:"name" validate:"required" usage:"Nakama node name, used to tag metrics and cluster messages."`
	Logger     *LoggerConfig     `yaml:"logger" json:"logger" validate:"required"`
	Metrics    *MetricsConfig    `yaml:"metrics" json:"metrics" validate:"required"`
	Appearance *AppearanceConfig `yaml:"appearance" json:"appearance" validate:"required"`
	Cluster    *ClusterConfig    `yaml:"cluster" json:"cluster" validate:"required"`
}

func NewConfig() *Config {
	return &Config{
		Name:       "nakama",
		Logger:     NewLoggerConfig(),
		Metrics:    NewMetricsConfig(),
		Appearance: NewAppearanceConfig(),
		Cluster:    NewClusterConfig(),
	}
}

func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	return &Config{
		Name:       c.Name,
		Logger:     c.Logger.Clone(),
		Metrics:    c.Metrics.Clone(),
		Appearance: c.Appearance.Clone(),
		Cluster:    c.Cluster.Clone(),
	}
}

func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Cluster.Enabled && c.Cluster.RedisAddress == "" {
		return fmt.Errorf("invalid config: cluster.redis_address is required when cluster is enabled")
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults. An empty path returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type LoggerConfig struct {
	Level      string `yaml:"level" json:"level" validate:"oneof=debug info warn error" usage:"Log level. One of debug, info, warn, error. Default 'info'."`
	Format     string `yaml:"format" json:"format" validate:"oneof=json console" usage:"Log output format. One of json, console. Default 'json'."`
	File       string `yaml:"file" json:"file" usage:"Log to this file in addition to stdout. Rotated when max_size_mb is reached."`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb" validate:"gte=0" usage:"Maximum log file size in megabytes before rotation. Default 100."`
	MaxBackups int    `yaml:"max_backups" json:"max_backups" validate:"gte=0" usage:"Maximum number of rotated log files to retain. Default 0 (all)."`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days" validate:"gte=0" usage:"Maximum days to retain rotated log files. Default 0 (forever)."`
	Compress   bool   `yaml:"compress" json:"compress" usage:"Gzip rotated log files. Default false."`
}

func NewLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     "info",
		Format:    "json",
		MaxSizeMB: 100,
	}
}

func (cfg *LoggerConfig) Clone() *LoggerConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	return &cfgCopy
}

type MetricsConfig struct {
	ReportingFreqSec int    `yaml:"reporting_freq_sec" json:"reporting_freq_sec" validate:"gte=1" usage:"Frequency of metrics exports. Default 60 seconds."`
	Prefix           string `yaml:"prefix" json:"prefix" usage:"Prefix for metric names. Default 'nevr'."`
	PrometheusPort   int    `yaml:"prometheus_port" json:"prometheus_port" validate:"gte=0,lte=65535" usage:"Port to expose Prometheus metrics on. 0 disables the endpoint. Default 0."`
}

func NewMetricsConfig() *MetricsConfig {
	return &MetricsConfig{
		ReportingFreqSec: 60,
		Prefix:           "nevr",
	}
}

func (cfg *MetricsConfig) Clone() *MetricsConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	return &cfgCopy
}

type AppearanceConfig struct {
	PersistDefaults     bool                    `yaml:"persist_defaults" json:"persist_defaults" usage:"Store the default appearance as the user's record when a session starts and no record exists. Default false."`
	ProfileCacheTTLSec  int                     `yaml:"profile_cache_ttl_sec" json:"profile_cache_ttl_sec" validate:"gte=0" usage:"Seconds a cached profile stays valid. 0 caches until the session ends. Default 300."`
	DefaultWearables    []DefaultWearableConfig `yaml:"default_wearables" json:"default_wearables" validate:"dive" usage:"Default worn items by slot. Unlisted slots are empty."`
	InventoryCollection string                  `yaml:"inventory_collection" json:"inventory_collection" validate:"required" usage:"Storage collection holding user inventories. Default 'Inventory'."`
	InventoryKey        string                  `yaml:"inventory_key" json:"inventory_key" validate:"required" usage:"Storage key of the user's wearable inventory. Default 'wearables'."`
	WearingRatePerSec   float64                 `yaml:"wearing_rate_per_sec" json:"wearing_rate_per_sec" validate:"gte=0" usage:"Now-wearing reports handled per second for each session. Excess reports wait. 0 disables pacing. Default 10."`
	WearingBurst        int                     `yaml:"wearing_burst" json:"wearing_burst" validate:"gte=1" usage:"Now-wearing reports a session may send back to back before pacing applies. Default 5."`
}

func NewAppearanceConfig() *AppearanceConfig {
	return &AppearanceConfig{
		PersistDefaults:     false,
		ProfileCacheTTLSec:  300,
		InventoryCollection: StorageCollectionInventory,
		InventoryKey:        StorageKeyInventory,
		WearingRatePerSec:   10,
		WearingBurst:        5,
	}
}

func (cfg *AppearanceConfig) Clone() *AppearanceConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	cfgCopy.DefaultWearables = append([]DefaultWearableConfig(nil), cfg.DefaultWearables...)
	return &cfgCopy
}

func (cfg *AppearanceConfig) GetProfileCacheTTL() time.Duration {
	return time.Duration(cfg.ProfileCacheTTLSec) * time.Second
}

// ClusterConfig is configuration relevant to distributed/clustered operation.
type ClusterConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" usage:"Fan out appearance updates to other nodes. Default false."`

	RedisAddress  string `yaml:"redis_address" json:"redis_address" usage:"Redis server address (host:port). Required when cluster is enabled."`
	RedisPassword string `yaml:"redis_password" json:"redis_password" usage:"Redis server password. Optional."`
	RedisDB       int    `yaml:"redis_db" json:"redis_db" validate:"gte=0" usage:"Redis database number. Default 0."`

	ChannelPrefix string `yaml:"channel_prefix" json:"channel_prefix" usage:"Prefix for Redis pub/sub channels. Default 'nakama'."`
}

func NewClusterConfig() *ClusterConfig {
	return &ClusterConfig{
		Enabled:       false,
		RedisAddress:  "localhost:6379",
		RedisPassword: "",
		RedisDB:       0,
		ChannelPrefix: "nakama",
	}
}

func (cfg *ClusterConfig) Clone() *ClusterConfig {
	if cfg == nil {
		return nil
	}
	cfgCopy := *cfg
	return &cfgCopy
}
