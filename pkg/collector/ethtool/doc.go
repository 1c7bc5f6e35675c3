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

// Package ethtool reads per-interface driver statistics from `ethtool -S`.
//
// The tool prints an optional header followed by one "<name>: <integer>"
// pair per line:
//
//	NIC statistics:
//	     rx_packets: 1203
//	     rx_errors: 3
//
// Malformed lines are skipped and counted as parse warnings. Output with no
// usable pair yields an ErrCodeNoStatistics error. Exit status 94 is how
// ethtool reports a device without statistics and maps to the same code.
package ethtool
