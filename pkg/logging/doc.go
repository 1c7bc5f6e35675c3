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


// Package logging configures the exporter's slog output.
//
// Records are JSON on stderr and always carry "module" and "version"
// attributes. At debug level each record also names its source file and
// line, which is how a slow ethtool call or a skipped counter file can be
// traced back to the reader that logged it.
//
// The command line takes the level from --log-level or LOG_LEVEL, falling
// back to the logging.level config key. ParseLogLevel is case-insensitive
// and maps unrecognized names to info.
//
//	logging.SetDefaultStructuredLoggerWithLevel(api.Name(), api.Version(), cfg.Logging.Level)
//	slog.Warn("ethtool failed", "interface", "eth0", "error", err)
//
// NewLogLogger adapts the default handler for APIs that still take a
// *log.Logger, such as promhttp.HandlerOpts.ErrorLog.
package logging
