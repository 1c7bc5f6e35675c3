// Package config defines the exporter configuration.
//
// Values come from three layers, lowest precedence first: Default, an
// optional YAML file read by Load, and command-line flags or environment
// variables applied by the CLI. Validate is called once all layers are
// merged.
//
// Example file:
//
//	server:
//	  port: 9117
//	  max_concurrent_scrapes: 8
//	collection:
//	  max_age: 10s
//	  command_timeout: 5s
//	discovery:
//	  exclude: ["docker*", "veth*"]
//	ethtool:
//	  exclude: ["*_phy"]
//	rdma:
//	  counters: ["*"]
//	logging:
//	  level: debug
package config
