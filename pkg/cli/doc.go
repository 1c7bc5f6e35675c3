// Package cli implements the netdev-exporter command line.
//
// # Usage
//
//	netdev-exporter [--config FILE] [--port 9117] [--bind ADDR] [--log-level info]
//	                [--max-age 10s] [--refresh-interval 0s] [--command-timeout 5s]
//	                [--ethtool-path ethtool] [--ibdev2netdev-path ibdev2netdev]
//	                [--sysfs /sys] [--exclude PATTERN ...] [--include-virtual]
//
// Settings are resolved in order of increasing precedence: built-in
// defaults, the YAML file given by --config, environment variables, and
// command-line flags. Every flag has an environment variable; PORT,
// BIND_ADDRESS and LOG_LEVEL keep their conventional names, the rest use
// the NETDEV_EXPORTER_ prefix.
//
// Interface and statistic filters take shell-style wildcard patterns where
// "*" matches any run of characters, for example:
//
//	netdev-exporter --exclude 'docker*' --exclude 'veth*' --stat-exclude '*_phy'
//
// The process runs until SIGINT or SIGTERM and then shuts down gracefully.
//
// The collect subcommand runs a single pass with the same flags and prints
// the snapshot instead of serving it:
//
//	netdev-exporter --exclude 'veth*' collect --format table
package cli
