/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"gosignprep/internal/bundle"
	"gosignprep/internal/storage"
)

func newPackCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "pack <dir> <bundle.zip>",
		Short: "Bundle the envelope and its document into one zip file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			n, err := bundle.Pack(eh, args[1])
			if err != nil {
				return err
			}
			_ = storage.LogActivity(envCtx(cmd, eh), eh, "pack", eh.Envelope.ID, args[1])
			fmt.Fprintf(cmd.OutOrStdout(), "Packed %d files into %s\n", n, args[1])
			return nil
		},
	}
}

func newUnpackCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "unpack <bundle.zip> <dir>",
		Short: "Restore an envelope from a bundle into a new directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			abs, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			eh, err := bundle.Unpack(args[0], abs)
			if err != nil {
				return err
			}
			ctx := envCtx(cmd, eh)
			if err := storage.BuildIndexIfEmpty(ctx, eh.Root, eh.Envelope); err != nil {
				st.log.Warn("index build failed", slog.Any("err", err))
			}
			_ = storage.LogActivity(ctx, eh, "unpack", eh.Envelope.ID, args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Unpacked %s (%s) to %s\n", eh.Envelope.Title, eh.Envelope.ID, abs)
			return nil
		},
	}
}
