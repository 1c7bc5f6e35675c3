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

// Package filter matches names against wildcard patterns.
//
// Patterns support any number of '*' wildcards:
//   - "veth*" matches names starting with "veth"
//   - "*_errors" matches names ending with "_errors"
//   - "*pause*" matches names containing "pause"
//   - "eth0" matches exactly
//
// It is used for interface exclusion during discovery and for selecting
// which ethtool and RDMA counters are exported.
package filter

import (
	"fmt"
	"strings"
)

// Patterns is a list of wildcard patterns. A nil or empty list matches nothing.
type Patterns []string

// Match reports whether name matches any pattern.
func (p Patterns) Match(name string) bool {
	for _, pattern := range p {
		if matchesPattern(name, pattern) {
			return true
		}
	}
	return false
}

// Validate rejects empty patterns.
func (p Patterns) Validate() error {
	for i, pattern := range p {
		if strings.TrimSpace(pattern) == "" {
			return fmt.Errorf("pattern %d is empty", i)
		}
	}
	return nil
}

// Selector combines include and exclude lists. Exclusion wins over inclusion;
// an empty include list admits every name.
type Selector struct {
	Include Patterns
	Exclude Patterns
}

// Allowed reports whether name passes the selector.
func (s Selector) Allowed(name string) bool {
	if s.Exclude.Match(name) {
		return false
	}
	if len(s.Include) == 0 {
		return true
	}
	return s.Include.Match(name)
}

// Validate checks both pattern lists.
func (s Selector) Validate() error {
	if err := s.Include.Validate(); err != nil {
		return fmt.Errorf("include: %w", err)
	}
	if err := s.Exclude.Validate(); err != nil {
		return fmt.Errorf("exclude: %w", err)
	}
	return nil
}

// FilterMap returns a new map holding only the entries whose key passes s.
func FilterMap[V any](m map[string]V, s Selector) map[string]V {
	result := make(map[string]V, len(m))
	for key, value := range m {
		if s.Allowed(key) {
			result[key] = value
		}
	}
	return result
}

// matchesPattern checks if a name matches a wildcard pattern.
// Supports multiple wildcard segments, e.g., "a*b*c" matches "aXbYc".
func matchesPattern(name, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return name == pattern
	}

	segments := strings.Split(pattern, "*")

	pos := 0
	for i, segment := range segments {
		if segment == "" {
			continue // consecutive or leading/trailing wildcards
		}

		// First segment is anchored unless the pattern starts with *
		if i == 0 && pattern[0] != '*' {
			if !strings.HasPrefix(name, segment) {
				return false
			}
			pos = len(segment)
			continue
		}

		// Last segment is anchored unless the pattern ends with *
		if i == len(segments)-1 && pattern[len(pattern)-1] != '*' {
			return len(name)-pos >= len(segment) && strings.HasSuffix(name[pos:], segment)
		}

		idx := strings.Index(name[pos:], segment)
		if idx == -1 {
			return false
		}
		pos += idx + len(segment)
	}

	return true
}
