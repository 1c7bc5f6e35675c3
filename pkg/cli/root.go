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


package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/netdev-exporter/pkg/api"
	"github.com/NVIDIA/netdev-exporter/pkg/config"
	"github.com/NVIDIA/netdev-exporter/pkg/filter"
	"github.com/NVIDIA/netdev-exporter/pkg/logging"
)

const envPrefix = "NETDEV_EXPORTER_"

// serve runs the exporter. Replaced in tests.
var serve = api.Serve

// Execute runs the root command with the process arguments.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cli.Command {
	commit, date := api.BuildInfo()

	return &cli.Command{
		Name:    api.Name(),
		Usage:   "Expose Ethernet and InfiniBand interface statistics to Prometheus",
		Version: fmt.Sprintf("%s (commit %s, built %s)", api.Version(), commit, date),
		Description: `Polls ethtool statistics for every physical network interface, maps
InfiniBand-backed interfaces to their device and port with ibdev2netdev, and
serves the result in the Prometheus exposition format on /metrics.

Snapshots are cached for --max-age so concurrent scrapes share one collection
pass. With --refresh-interval the cache is refreshed in the background.`,
		Commands: []*cli.Command{
			newCollectCmd(),
		},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML configuration file",
				Sources: cli.EnvVars(envPrefix + "CONFIG"),
			},
			&cli.IntFlag{
				Name:    "port",
				Usage:   "TCP port to listen on",
				Value:   config.Default().Server.Port,
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "bind",
				Usage:   "Address to bind (default all interfaces)",
				Sources: cli.EnvVars("BIND_ADDRESS"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   config.Default().Logging.Level,
				Sources: cli.EnvVars(logging.EnvLogLevel),
			},
			&cli.DurationFlag{
				Name:    "max-age",
				Usage:   "Serve a cached snapshot younger than this; 0 collects on every scrape",
				Value:   config.Default().Collection.MaxAge,
				Sources: cli.EnvVars(envPrefix + "MAX_AGE"),
			},
			&cli.DurationFlag{
				Name:    "refresh-interval",
				Usage:   "Refresh the snapshot in the background at this interval; 0 disables",
				Value:   config.Default().Collection.RefreshInterval,
				Sources: cli.EnvVars(envPrefix + "REFRESH_INTERVAL"),
			},
			&cli.DurationFlag{
				Name:    "command-timeout",
				Usage:   "Timeout for each ethtool or ibdev2netdev invocation",
				Value:   config.Default().Collection.CommandTimeout,
				Sources: cli.EnvVars(envPrefix + "COMMAND_TIMEOUT"),
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Usage:   "Interfaces polled in parallel",
				Value:   config.Default().Collection.Concurrency,
				Sources: cli.EnvVars(envPrefix + "CONCURRENCY"),
			},
			&cli.IntFlag{
				Name:    "max-concurrent-scrapes",
				Usage:   "Requests served at once; further requests wait",
				Value:   config.Default().Server.MaxConcurrentScrapes,
				Sources: cli.EnvVars(envPrefix + "MAX_CONCURRENT_SCRAPES"),
			},
			&cli.StringFlag{
				Name:    "ethtool-path",
				Usage:   "ethtool binary, looked up on PATH unless absolute",
				Value:   config.Default().Ethtool.Path,
				Sources: cli.EnvVars(envPrefix + "ETHTOOL_PATH"),
			},
			&cli.StringFlag{
				Name:    "ibdev2netdev-path",
				Usage:   "ibdev2netdev binary, looked up on PATH unless absolute",
				Value:   config.Default().Ibdev.Path,
				Sources: cli.EnvVars(envPrefix + "IBDEV2NETDEV_PATH"),
			},
			&cli.StringFlag{
				Name:    "sysfs",
				Usage:   "sysfs mount point",
				Value:   config.Default().Discovery.Sysfs,
				Sources: cli.EnvVars(envPrefix + "SYSFS"),
			},
			&cli.StringSliceFlag{
				Name:    "include",
				Usage:   "Only poll interfaces matching pattern (can be repeated)",
				Sources: cli.EnvVars(envPrefix + "INCLUDE"),
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Usage:   "Skip interfaces matching pattern (can be repeated)",
				Sources: cli.EnvVars(envPrefix + "EXCLUDE"),
			},
			&cli.BoolFlag{
				Name:    "include-virtual",
				Usage:   "Also poll interfaces without a backing device when they are up",
				Sources: cli.EnvVars(envPrefix + "INCLUDE_VIRTUAL"),
			},
			&cli.StringSliceFlag{
				Name:    "stat-include",
				Usage:   "Only export ethtool statistics matching pattern (can be repeated)",
				Sources: cli.EnvVars(envPrefix + "STAT_INCLUDE"),
			},
			&cli.StringSliceFlag{
				Name:    "stat-exclude",
				Usage:   "Skip ethtool statistics matching pattern (can be repeated)",
				Sources: cli.EnvVars(envPrefix + "STAT_EXCLUDE"),
			},
			&cli.StringSliceFlag{
				Name:    "rdma-counters",
				Usage:   "RDMA hw_counters to export for mapped interfaces; '*' exports all",
				Sources: cli.EnvVars(envPrefix + "RDMA_COUNTERS"),
			},
			&cli.BoolFlag{
				Name:    "disable-rdma",
				Usage:   "Do not export RDMA hw_counters",
				Sources: cli.EnvVars(envPrefix + "DISABLE_RDMA"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			logging.SetDefaultStructuredLoggerWithLevel(api.Name(), api.Version(), cfg.Logging.Level)
			slog.Debug("configuration loaded",
				"port", cfg.Server.Port,
				"maxAge", cfg.Collection.MaxAge,
				"refreshInterval", cfg.Collection.RefreshInterval,
				"commandTimeout", cfg.Collection.CommandTimeout,
				"sysfs", cfg.Discovery.Sysfs,
				"rdma", cfg.RDMA.Enabled,
			)

			return serve(ctx, cfg)
		},
	}
}

// loadConfig merges defaults, the optional config file and set flags, then
// validates the result.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg := config.Default()
	if path := cmd.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cmd.IsSet("port") {
		cfg.Server.Port = cmd.Int("port")
	}
	if cmd.IsSet("bind") {
		cfg.Server.Address = cmd.String("bind")
	}
	if cmd.IsSet("max-concurrent-scrapes") {
		cfg.Server.MaxConcurrentScrapes = cmd.Int("max-concurrent-scrapes")
	}
	if cmd.IsSet("log-level") {
		cfg.Logging.Level = cmd.String("log-level")
	}
	if cmd.IsSet("max-age") {
		cfg.Collection.MaxAge = cmd.Duration("max-age")
	}
	if cmd.IsSet("refresh-interval") {
		cfg.Collection.RefreshInterval = cmd.Duration("refresh-interval")
	}
	if cmd.IsSet("command-timeout") {
		cfg.Collection.CommandTimeout = cmd.Duration("command-timeout")
	}
	if cmd.IsSet("concurrency") {
		cfg.Collection.Concurrency = cmd.Int("concurrency")
	}
	if cmd.IsSet("ethtool-path") {
		cfg.Ethtool.Path = cmd.String("ethtool-path")
	}
	if cmd.IsSet("ibdev2netdev-path") {
		cfg.Ibdev.Path = cmd.String("ibdev2netdev-path")
	}
	if cmd.IsSet("sysfs") {
		cfg.Discovery.Sysfs = cmd.String("sysfs")
	}
	if cmd.IsSet("include") {
		cfg.Discovery.Include = filter.Patterns(cmd.StringSlice("include"))
	}
	if cmd.IsSet("exclude") {
		cfg.Discovery.Exclude = filter.Patterns(cmd.StringSlice("exclude"))
	}
	if cmd.IsSet("include-virtual") {
		cfg.Discovery.IncludeVirtual = cmd.Bool("include-virtual")
	}
	if cmd.IsSet("stat-include") {
		cfg.Ethtool.Include = filter.Patterns(cmd.StringSlice("stat-include"))
	}
	if cmd.IsSet("stat-exclude") {
		cfg.Ethtool.Exclude = filter.Patterns(cmd.StringSlice("stat-exclude"))
	}
	if cmd.IsSet("rdma-counters") {
		cfg.RDMA.Counters = filter.Patterns(cmd.StringSlice("rdma-counters"))
	}
	if cmd.IsSet("disable-rdma") {
		cfg.RDMA.Enabled = !cmd.Bool("disable-rdma")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
