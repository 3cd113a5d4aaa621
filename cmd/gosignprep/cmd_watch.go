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
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gosignprep/internal/export"
	"gosignprep/internal/review"
	"gosignprep/internal/watch"
)

func newWatchCmd(st *cliState) *cobra.Command {
	var preset string
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-export proofs whenever the envelope changes",
		Long: `Exports proofs with the given preset once, then again after every change to
envelope.json, for example while the editor window or other gosignprep
commands modify the envelope. Stops on Ctrl+C.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			refresh := func(ctx context.Context) error {
				cur, err := st.open(eh.Root)
				if err != nil {
					return err
				}
				rep := review.Check(cur.Envelope)
				paths, err := export.BatchExport(ctx, cur, export.BatchOptions{Preset: export.PresetName(preset)})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%s  %d fields, %d errors, %d warnings\n",
					time.Now().Format(time.TimeOnly), len(cur.Envelope.Fields), len(rep.Errors()), len(rep.Warnings()))
				for _, p := range paths {
					fmt.Fprintln(out, "  "+p)
				}
				return nil
			}
			if err := refresh(cmd.Context()); err != nil {
				return err
			}
			w := watch.New(eh.Root, refresh)
			w.Debounce = debounce
			return w.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetReview), "export preset: review or print")
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet time before re-exporting")
	return cmd
}
