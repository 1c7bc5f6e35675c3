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

// Package collector runs collection passes that turn host interface state
// into an immutable snapshot.
//
// # Overview
//
// One pass of Collector.Collect:
//
//  1. Lists eligible interfaces (netif).
//  2. Runs the InfiniBand mapping tool once (ibdev).
//  3. Polls ethtool statistics for every interface in parallel (ethtool),
//     recording an error marker for each interface that fails.
//  4. Attaches ib_device and ib_port labels to samples of mapped interfaces
//     and reads their hardware counters (rdma).
//  5. Builds a snapshot.Snapshot stamped with the completion time.
//
// Only a discovery failure aborts a pass. Every other failure is recorded
// in the snapshot as data.
//
// # Factory Pattern
//
// The Factory interface abstracts creation of the per-pass dependencies so
// tests can substitute fakes:
//
//	type Factory interface {
//	    CreateDiscovery() (InterfaceLister, error)
//	    CreateDeviceMapper() DeviceMapper
//	    CreateStatsSource() StatsSource
//	    CreateCounterReader() (CounterReader, error)
//	}
//
// The DefaultFactory wires the production implementations:
//
//	factory := collector.NewDefaultFactory(
//	    collector.WithSysfs("/host/sys"),
//	    collector.WithCommandTimeout(5*time.Second),
//	)
//	c, err := collector.NewFromFactory(factory, collector.WithConcurrency(8))
//	if err != nil {
//	    return err
//	}
//	snap, err := c.Collect(ctx)
package collector
