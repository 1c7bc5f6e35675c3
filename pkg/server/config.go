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


package server

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"golang.org/x/time/rate"
)

type Config struct {
	// Server identity
	Name    string
	Version string

	// Additional Handlers to be added to the server
	Handlers map[string]http.HandlerFunc

	// Server configuration
	Address string
	Port    int

	// Rate limiting configuration
	RateLimit      rate.Limit // requests per second
	RateLimitBurst int        // burst size

	// MaxConcurrentRequests bounds how many wrapped handlers run at once.
	// Requests beyond it wait for a slot until their context ends.
	MaxConcurrentRequests int

	// Timeouts
	ReadTimeout       time.Duration
	ReadHeaderTimeout time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	ShutdownTimeout   time.Duration
}

func NewConfig() *Config {
	return parseConfig()
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Address, c.Port)
}

func parseConfig() *Config {
	cfg := &Config{
		Name:                  "server",
		Version:               "undefined",
		Address:               "",
		Port:                  defaults.ServerPort,
		RateLimit:             defaults.ServerRateLimit,
		RateLimitBurst:        defaults.ServerRateLimitBurst,
		MaxConcurrentRequests: defaults.ServerMaxConcurrentScrapes,
		ReadTimeout:           defaults.ServerReadTimeout,
		ReadHeaderTimeout:     defaults.ServerReadHeaderTimeout,
		WriteTimeout:          defaults.ServerWriteTimeout,
		IdleTimeout:           defaults.ServerIdleTimeout,
		ShutdownTimeout:       defaults.ServerShutdownTimeout,
	}

	// Override with environment variables if set
	if portStr := os.Getenv("PORT"); portStr != "" {
		var port int
		if _, err := fmt.Sscanf(portStr, "%d", &port); err == nil && port > 0 && port < 65536 {
			cfg.Port = port
		}
	}

	if addr := os.Getenv("BIND_ADDRESS"); addr != "" {
		cfg.Address = addr
	}

	// Allow customization of shutdown timeout to match the service manager's stop timeout
	if shutdownStr := os.Getenv("SHUTDOWN_TIMEOUT_SECONDS"); shutdownStr != "" {
		var seconds int
		if _, err := fmt.Sscanf(shutdownStr, "%d", &seconds); err == nil && seconds > 0 {
			cfg.ShutdownTimeout = time.Duration(seconds) * time.Second
		}
	}

	return cfg
}
