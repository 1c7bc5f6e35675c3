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

// Package snapshot defines the immutable result of one collection pass.
//
// A Snapshot holds every MetricSample produced by a pass together with
// per-interface error markers and parse-warning counts. Snapshots are
// assembled with a Builder and never change once built; all accessors
// return copies, so a *Snapshot can be shared between goroutines and
// swapped atomically by the cache.
//
// Example:
//
//	b := snapshot.NewBuilder()
//	b.AddInterface(snapshot.Interface{Name: "eth0", Kind: snapshot.KindEthernet})
//	b.AddSample(snapshot.Sample{
//	    Name:   "ethtool_rx_errors_total",
//	    Type:   snapshot.Counter,
//	    Source: snapshot.SourceEthtool,
//	    Stat:   "rx_errors",
//	    Labels: snapshot.Labels{snapshot.LabelInterface: "eth0"},
//	    Value:  3,
//	})
//	snap := b.Build(time.Now())
package snapshot
