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
	"github.com/spf13/cobra"

	"gosignprep/internal/ui"
)

func newUICmd(*cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ui [dir]",
		Short: "Open the placement editor window",
		Long: `Opens the desktop editor. Without a directory the last opened envelope is used.
The window is only available in binaries built with -tags fyne.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return ui.Run(dir)
		},
	}
}
