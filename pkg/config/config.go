// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package config

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/collector/ethtool"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/ibdev"
	"github.com/NVIDIA/netdev-exporter/pkg/collector/rdma"
	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
	"github.com/prometheus/procfs/sysfs"
	"gopkg.in/yaml.v3"
)

// Config is the complete exporter configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Collection CollectionConfig `yaml:"collection"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Ethtool    EthtoolConfig    `yaml:"ethtool"`
	Ibdev      IbdevConfig      `yaml:"ibdev"`
	RDMA       RDMAConfig       `yaml:"rdma"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Address              string        `yaml:"bind"`
	Port                 int           `yaml:"port"`
	RateLimit            float64       `yaml:"rate_limit"`
	RateLimitBurst       int           `yaml:"rate_limit_burst"`
	MaxConcurrentScrapes int           `yaml:"max_concurrent_scrapes"`
	ShutdownTimeout      time.Duration `yaml:"shutdown_timeout"`
}

// CollectionConfig controls collection passes and snapshot caching.
type CollectionConfig struct {
	// MaxAge is the oldest snapshot served without a new pass. Zero
	// collects on every scrape.
	MaxAge time.Duration `yaml:"max_age"`
	// RefreshInterval enables the background refresher when positive.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	CommandTimeout  time.Duration `yaml:"command_timeout"`
	Concurrency     int           `yaml:"concurrency"`
}

// DiscoveryConfig selects the polled interfaces.
type DiscoveryConfig struct {
	Sysfs          string          `yaml:"sysfs"`
	Include        filter.Patterns `yaml:"include"`
	Exclude        filter.Patterns `yaml:"exclude"`
	IncludeVirtual bool            `yaml:"include_virtual"`
}

// EthtoolConfig configures the statistics tool.
type EthtoolConfig struct {
	Path    string          `yaml:"path"`
	Include filter.Patterns `yaml:"include"`
	Exclude filter.Patterns `yaml:"exclude"`
}

// IbdevConfig configures the device mapping tool.
type IbdevConfig struct {
	Path string `yaml:"path"`
}

// RDMAConfig configures hw_counters export for mapped interfaces.
type RDMAConfig struct {
	Enabled  bool            `yaml:"enabled"`
	Counters filter.Patterns `yaml:"counters"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:                 defaults.ServerPort,
			RateLimit:            defaults.ServerRateLimit,
			RateLimitBurst:       defaults.ServerRateLimitBurst,
			MaxConcurrentScrapes: defaults.ServerMaxConcurrentScrapes,
			ShutdownTimeout:      defaults.ServerShutdownTimeout,
		},
		Collection: CollectionConfig{
			MaxAge:          defaults.SnapshotMaxAge,
			RefreshInterval: defaults.RefreshInterval,
			CommandTimeout:  defaults.CommandTimeout,
			Concurrency:     defaults.CollectionConcurrency,
		},
		Discovery: DiscoveryConfig{
			Sysfs: sysfs.DefaultMountPoint,
		},
		Ethtool: EthtoolConfig{
			Path: ethtool.DefaultPath,
		},
		Ibdev: IbdevConfig{
			Path: ibdev.DefaultPath,
		},
		RDMA: RDMAConfig{
			Enabled:  true,
			Counters: append(filter.Patterns(nil), rdma.DefaultCounters...),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over Default. Unknown keys are rejected.
// An empty file yields the defaults.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			"failed to open config file", err, map[string]any{"path": path})
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return nil, errors.WrapWithContext(errors.ErrCodeInvalidRequest,
			"failed to load config file", err, map[string]any{"path": path})
	}
	return cfg, nil
}

// Decode reads YAML from r over Default.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !stderrors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode YAML: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(field string, value any, reason string) error {
		return errors.NewWithContext(errors.ErrCodeInvalidRequest,
			fmt.Sprintf("invalid %s: %s", field, reason),
			map[string]any{"field": field, "value": value})
	}

	s := c.Server
	switch {
	case s.Port < 1 || s.Port > 65535:
		return invalid("server.port", s.Port, "must be between 1 and 65535")
	case s.RateLimit <= 0:
		return invalid("server.rate_limit", s.RateLimit, "must be positive")
	case s.RateLimitBurst < 1:
		return invalid("server.rate_limit_burst", s.RateLimitBurst, "must be at least 1")
	case s.MaxConcurrentScrapes < 1:
		return invalid("server.max_concurrent_scrapes", s.MaxConcurrentScrapes, "must be at least 1")
	case s.ShutdownTimeout <= 0:
		return invalid("server.shutdown_timeout", s.ShutdownTimeout, "must be positive")
	}

	col := c.Collection
	switch {
	case col.MaxAge < 0:
		return invalid("collection.max_age", col.MaxAge, "must not be negative")
	case col.RefreshInterval < 0:
		return invalid("collection.refresh_interval", col.RefreshInterval, "must not be negative")
	case col.CommandTimeout <= 0:
		return invalid("collection.command_timeout", col.CommandTimeout, "must be positive")
	case col.Concurrency < 1:
		return invalid("collection.concurrency", col.Concurrency, "must be at least 1")
	}

	if strings.TrimSpace(c.Discovery.Sysfs) == "" {
		return invalid("discovery.sysfs", c.Discovery.Sysfs, "must not be empty")
	}
	if strings.TrimSpace(c.Ethtool.Path) == "" {
		return invalid("ethtool.path", c.Ethtool.Path, "must not be empty")
	}
	if strings.TrimSpace(c.Ibdev.Path) == "" {
		return invalid("ibdev.path", c.Ibdev.Path, "must not be empty")
	}

	patterns := []struct {
		field string
		p     filter.Patterns
	}{
		{"discovery.include", c.Discovery.Include},
		{"discovery.exclude", c.Discovery.Exclude},
		{"ethtool.include", c.Ethtool.Include},
		{"ethtool.exclude", c.Ethtool.Exclude},
		{"rdma.counters", c.RDMA.Counters},
	}
	for _, f := range patterns {
		if err := f.p.Validate(); err != nil {
			return invalid(f.field, []string(f.p), err.Error())
		}
	}

	if c.RDMA.Enabled && len(c.RDMA.Counters) == 0 {
		return invalid("rdma.counters", []string(c.RDMA.Counters),
			"must not be empty; set rdma.enabled to false to export no counters")
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Level)) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return invalid("logging.level", c.Logging.Level, "must be one of debug, info, warn, error")
	}

	return nil
}

// InterfaceSelector returns the discovery name selector.
func (c *Config) InterfaceSelector() filter.Selector {
	return filter.Selector{Include: c.Discovery.Include, Exclude: c.Discovery.Exclude}
}

// StatSelector returns the ethtool statistic selector.
func (c *Config) StatSelector() filter.Selector {
	return filter.Selector{Include: c.Ethtool.Include, Exclude: c.Ethtool.Exclude}
}
