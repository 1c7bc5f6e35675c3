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

package command

import (
	"bytes"
	"context"
	stderrors "errors"
	"io/fs"
	"log/slog"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/NVIDIA/netdev-exporter/pkg/defaults"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
)

// Result holds the outcome of one tool invocation.
type Result struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Duration time.Duration
}

// Runner executes an external binary with a timeout.
type Runner interface {
	Run(ctx context.Context, path string, args []string, timeout time.Duration) (*Result, error)
}

// RunnerFunc adapts an ordinary function to the Runner interface.
type RunnerFunc func(ctx context.Context, path string, args []string, timeout time.Duration) (*Result, error)

// Run calls f(ctx, path, args, timeout).
func (f RunnerFunc) Run(ctx context.Context, path string, args []string, timeout time.Duration) (*Result, error) {
	return f(ctx, path, args, timeout)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct {
	// WaitDelay bounds how long pipes are drained after the process is killed.
	WaitDelay time.Duration
}

// NewExecRunner returns an ExecRunner with default settings.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: defaults.CommandWaitDelay}
}

// Run executes path with args. A zero timeout means only ctx bounds the call.
func (r *ExecRunner) Run(ctx context.Context, path string, args []string, timeout time.Duration) (*Result, error) {
	name := filepath.Base(path)
	errCtx := map[string]any{
		"command": name,
		"args":    args,
	}

	bin, err := exec.LookPath(path)
	if err != nil {
		observe(name, "not_found", 0)
		return nil, errors.WrapWithContext(errors.ErrCodeExecutionFailure,
			name+" not found", err, errCtx)
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(runCtx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	killProcessGroup(cmd)

	start := time.Now()
	err = cmd.Run()
	res := &Result{
		ExitCode: -1,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Duration: time.Since(start),
	}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if runCtx.Err() != nil && err != nil {
		errCtx["timeout"] = timeout.String()
		if stderrors.Is(runCtx.Err(), context.DeadlineExceeded) {
			observe(name, "timeout", res.Duration)
			return res, errors.WrapWithContext(errors.ErrCodeExecutionTimeout,
				name+" timed out", runCtx.Err(), errCtx)
		}
		observe(name, "canceled", res.Duration)
		return res, errors.WrapWithContext(errors.ErrCodeExecutionFailure,
			name+" canceled", runCtx.Err(), errCtx)
	}

	if err != nil {
		errCtx["exitCode"] = res.ExitCode
		if len(res.Stderr) > 0 {
			errCtx["stderr"] = string(bytes.TrimSpace(res.Stderr))
		}
		var exitErr *exec.ExitError
		msg := name + " failed to start"
		switch {
		case stderrors.As(err, &exitErr) && res.ExitCode < 0:
			msg = name + " terminated by signal"
		case stderrors.As(err, &exitErr):
			msg = name + " exited with non-zero status"
		}
		observe(name, "failure", res.Duration)
		slog.Debug("command failed",
			"command", name,
			"exitCode", res.ExitCode,
			"error", err)
		return res, errors.WrapWithContext(errors.ErrCodeExecutionFailure, msg, err, errCtx)
	}

	observe(name, "success", res.Duration)
	return res, nil
}

// IsNotFound reports whether err stems from a missing binary.
func IsNotFound(err error) bool {
	return stderrors.Is(err, exec.ErrNotFound) || stderrors.Is(err, fs.ErrNotExist)
}

// ExitCode returns the exit status carried by a Run error, or -1 when the
// process never exited normally.
func ExitCode(res *Result, err error) int {
	if res != nil && res.ExitCode >= 0 {
		return res.ExitCode
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func observe(command, status string, d time.Duration) {
	commandDuration.WithLabelValues(command, status).Observe(d.Seconds())
}
