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

package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeNotFound, "resource not found")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if err.Code != ErrCodeNotFound {
		t.Errorf("expected code %s, got %s", ErrCodeNotFound, err.Code)
	}
	if err.Message != "resource not found" {
		t.Errorf("expected message 'resource not found', got %s", err.Message)
	}
	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeExecutionFailure, "operation failed", cause)

	if err.Code != ErrCodeExecutionFailure {
		t.Errorf("expected code %s, got %s", ErrCodeExecutionFailure, err.Code)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
}

func TestWrapWithContext(t *testing.T) {
	ctx := map[string]any{
		"command":   "ethtool",
		"interface": "eth0",
	}

	err := WrapWithContext(ErrCodeExecutionTimeout, "ethtool timed out", context.DeadlineExceeded, ctx)

	if err.Code != ErrCodeExecutionTimeout {
		t.Errorf("expected code %s, got %s", ErrCodeExecutionTimeout, err.Code)
	}
	if err.Context == nil {
		t.Fatal("expected context to be set")
	}
	if err.Context["command"] != "ethtool" {
		t.Errorf("expected command to be ethtool")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain")
	}
}

func TestError(t *testing.T) {
	tests := []struct {
		name     string
		err      *StructuredError
		expected string
	}{
		{
			name:     "error without cause",
			err:      New(ErrCodeNoStatistics, "no statistics"),
			expected: "[NO_STATISTICS_AVAILABLE] no statistics",
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeDiscoveryFailure, "failed", errors.New("root cause")),
			expected: "[DISCOVERY_FAILURE] failed: root cause",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ErrCodeInternal, "wrapped", cause)

	unwrapped := err.Unwrap()
	if !errors.Is(unwrapped, cause) {
		t.Errorf("expected unwrapped error to be original cause")
	}

	if !errors.Is(err, cause) {
		t.Errorf("errors.Is should work with Unwrap")
	}
}

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"structured", New(ErrCodeExecutionTimeout, "x"), ErrCodeExecutionTimeout},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(ErrCodeNoStatistics, "x")), ErrCodeNoStatistics},
		{"outermost wins", Wrap(ErrCodeDiscoveryFailure, "outer", New(ErrCodeExecutionFailure, "inner")), ErrCodeDiscoveryFailure},
		{"plain error", errors.New("boom"), ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	inner := New(ErrCodeExecutionTimeout, "inner")
	outer := Wrap(ErrCodeDiscoveryFailure, "outer", inner)

	if !IsCode(outer, ErrCodeDiscoveryFailure) {
		t.Error("expected outer code to match")
	}
	if !IsCode(outer, ErrCodeExecutionTimeout) {
		t.Error("expected inner code to match")
	}
	if IsCode(outer, ErrCodeParseWarning) {
		t.Error("unexpected match for absent code")
	}
	if IsCode(errors.New("plain"), ErrCodeInternal) {
		t.Error("plain errors carry no code")
	}
	if IsCode(nil, ErrCodeInternal) {
		t.Error("nil carries no code")
	}
}

func TestErrorCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrCodeNotFound,
		ErrCodeTimeout,
		ErrCodeInternal,
		ErrCodeInvalidRequest,
		ErrCodeUnavailable,
		ErrCodeExecutionTimeout,
		ErrCodeExecutionFailure,
		ErrCodeParseWarning,
		ErrCodeNoStatistics,
		ErrCodeDiscoveryFailure,
	}

	for _, code := range codes {
		if string(code) == "" {
			t.Errorf("error code should not be empty: %v", code)
		}
	}
}
