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

// Package defaults provides centralized configuration constants for the exporter.
//
// This package defines timeout values, listen defaults, and collection
// parameters used across the codebase. Centralizing these values ensures
// consistency and makes tuning easier.
//
// # Timeout Categories
//
//   - Command timeouts: For external tool invocations (ethtool, ibdev2netdev)
//   - Collection timeouts: For one full collection pass
//   - Server timeouts: For HTTP server configuration
//
// # Usage
//
// Import and use constants directly:
//
//	import "github.com/NVIDIA/netdev-exporter/pkg/defaults"
//
//	res, err := runner.Run(ctx, "ethtool", []string{"-S", "eth0"}, defaults.CommandTimeout)
//
// # Timeout Guidelines
//
//   - Commands: 5s each, the process group is killed on expiry
//   - Collection pass: bounded by the number of command waves, not by a context
//   - Server shutdown: 30s for graceful shutdown
package defaults
