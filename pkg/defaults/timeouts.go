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

package defaults

import "time"

// Command timeouts for external tool invocations.
const (
	// CommandTimeout is the default timeout for a single external tool run.
	// The child process group is killed and reaped once it expires.
	CommandTimeout = 5 * time.Second

	// CommandWaitDelay bounds how long output pipes are drained after the
	// child has been killed.
	CommandWaitDelay = 1 * time.Second
)

// Collection parameters.
const (
	// SnapshotMaxAge is the default age under which a cached snapshot is
	// served without a new collection pass.
	SnapshotMaxAge = 10 * time.Second

	// RefreshInterval is the default background refresh period.
	// Zero disables the refresher and collection happens on scrape.
	RefreshInterval = 0 * time.Second

	// CollectionConcurrency is the default number of interfaces polled in parallel.
	CollectionConcurrency = 8
)

// Server timeouts for HTTP server configuration.
const (
	// ServerReadTimeout is the maximum duration for reading request headers.
	ServerReadTimeout = 10 * time.Second

	// ServerReadHeaderTimeout prevents slow header attacks.
	ServerReadHeaderTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration for writing a response.
	// Must leave room for one collection pass.
	ServerWriteTimeout = 30 * time.Second

	// ServerIdleTimeout is the maximum duration to wait for the next request.
	ServerIdleTimeout = 120 * time.Second

	// ServerShutdownTimeout is the maximum duration for graceful shutdown.
	ServerShutdownTimeout = 30 * time.Second
)

// Server listen and admission defaults.
const (
	// ServerPort is the default TCP port for the exposition endpoint.
	ServerPort = 9117

	// ServerMaxConcurrentScrapes bounds in-flight requests served at once.
	ServerMaxConcurrentScrapes = 8

	// ServerRateLimit is the sustained request rate allowed per second.
	ServerRateLimit = 100

	// ServerRateLimitBurst is the maximum burst above ServerRateLimit.
	ServerRateLimitBurst = 200
)
