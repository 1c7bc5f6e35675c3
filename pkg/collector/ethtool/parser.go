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

package ethtool

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/NVIDIA/netdev-exporter/pkg/errors"
)

// Stats maps a statistic name to its value.
type Stats map[string]uint64

// ParseResult holds the parsed statistics and the lines that were skipped.
type ParseResult struct {
	Stats   Stats
	Skipped []string
}

// Warnings returns the number of skipped lines.
func (r *ParseResult) Warnings() int {
	return len(r.Skipped)
}

// Parse parses ethtool statistics output. The first non-empty line is
// treated as a header when it ends with a colon and carries no value.
// A result is always returned; the error is set when no pair was parsed.
func Parse(data []byte) (*ParseResult, error) {
	res := &ParseResult{Stats: make(Stats)}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if isHeader(line) {
				continue
			}
		}

		name, value, err := parseLine(line)
		if err != nil {
			res.Skipped = append(res.Skipped, line)
			continue
		}
		if _, dup := res.Stats[name]; dup {
			res.Skipped = append(res.Skipped, line)
			continue
		}
		res.Stats[name] = value
	}
	if err := sc.Err(); err != nil {
		return res, errors.Wrap(errors.ErrCodeNoStatistics, "failed to read statistics", err)
	}

	if len(res.Stats) == 0 {
		return res, errors.NewWithContext(errors.ErrCodeNoStatistics, "no statistics in output",
			map[string]any{"skipped": len(res.Skipped)})
	}
	return res, nil
}

func isHeader(line string) bool {
	return strings.HasSuffix(line, ":")
}

// parseLine splits "<name>: <value>". The value follows the last colon so
// names containing colons are kept intact.
func parseLine(line string) (string, uint64, error) {
	idx := strings.LastIndexByte(line, ':')
	if idx <= 0 {
		return "", 0, fmt.Errorf("missing separator")
	}

	name := strings.TrimSpace(line[:idx])
	if name == "" || strings.ContainsFunc(name, unicode.IsSpace) {
		return "", 0, fmt.Errorf("invalid name %q", name)
	}

	raw := strings.TrimSpace(line[idx+1:])
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("invalid value %q: %w", raw, err)
	}
	return name, value, nil
}
