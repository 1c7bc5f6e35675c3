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


package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/NVIDIA/netdev-exporter/pkg/api"
	"github.com/NVIDIA/netdev-exporter/pkg/errors"
	"github.com/NVIDIA/netdev-exporter/pkg/logging"
	"github.com/NVIDIA/netdev-exporter/pkg/serializer"
)

// collect runs one collection pass. Replaced in tests.
var collect = api.Collect

func newCollectCmd() *cli.Command {
	return &cli.Command{
		Name:  "collect",
		Usage: "Run one collection pass and print the snapshot",
		Description: `Collects every interface once, using the same configuration as the
exporter, and writes the resulting snapshot without starting the server.

Examples:

  netdev-exporter collect --format table
  netdev-exporter --exclude 'veth*' collect --format yaml --output snapshot.yaml`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Output file; stdout when empty or '-'",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   fmt.Sprintf("Output format (%s)", strings.Join(serializer.SupportedFormats(), ", ")),
				Value:   string(serializer.FormatJSON),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			format := serializer.Format(cmd.String("format"))
			if format.IsUnknown() {
				return errors.NewWithContext(errors.ErrCodeInvalidRequest, "unknown output format",
					map[string]any{"format": string(format)})
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logging.SetDefaultStructuredLoggerWithLevel(api.Name(), api.Version(), cfg.Logging.Level)

			snap, err := collect(ctx, cfg)
			if err != nil {
				return errors.Wrap(errors.CodeOf(err), "collection failed", err)
			}
			slog.Debug("collection complete",
				"interfaces", len(snap.Interfaces()),
				"samples", snap.Len(),
				"duration", snap.Duration(),
			)

			w := serializer.NewFileWriterOrStdout(format, cmd.String("output"))
			defer func() {
				if cerr := w.Close(); cerr != nil {
					slog.Warn("failed to close output", "error", cerr)
				}
			}()
			return w.Serialize(ctx, snap)
		},
	}
}
