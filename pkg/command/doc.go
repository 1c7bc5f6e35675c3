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

// Package command runs external diagnostic tools with a bounded timeout.
//
// Every invocation is placed in its own process group. When the timeout
// expires the whole group is killed and reaped, so grandchildren that
// inherited stdout or stderr cannot hold the call open.
//
// Failures are reported as *errors.StructuredError:
//
//   - ErrCodeExecutionTimeout: the deadline passed and the group was killed
//   - ErrCodeExecutionFailure: the binary is missing, exited non-zero,
//     or was terminated by a signal
//
// A non-zero exit still returns the captured Result alongside the error so
// callers can act on specific exit statuses.
//
// Usage:
//
//	r := command.NewExecRunner()
//	res, err := r.Run(ctx, "ethtool", []string{"-S", "eth0"}, 5*time.Second)
//	if command.IsNotFound(err) {
//	    // tool not installed
//	}
package command
