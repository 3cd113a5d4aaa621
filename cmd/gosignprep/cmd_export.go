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
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"gosignprep/internal/export"
	"gosignprep/internal/storage"
)

func newExportCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write proofs of the field placement",
		Long: `Proofs show every page with its fields drawn in the owner's color. Relative
output paths land under the envelope's exports/ folder.`,
	}
	cmd.AddCommand(newExportPDFCmd(st), newExportPNGCmd(st), newExportBatchCmd(st))
	return cmd
}

// parsePages parses "1,3,5". Empty means all pages.
func parsePages(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid page %q", part)
		}
		out = append(out, n)
	}
	return out, nil
}

func (st *cliState) logExport(cmd *cobra.Command, eh *storage.EnvelopeHandle, format string, paths ...string) {
	_ = storage.LogActivity(envCtx(cmd, eh), eh, "export", eh.Envelope.ID, format)
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
}

func newExportPDFCmd(st *cliState) *cobra.Command {
	var out, pages string
	var noLegend, noOwners bool
	cmd := &cobra.Command{
		Use:   "pdf <dir>",
		Short: "Export a proof PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := parsePages(pages)
			if err != nil {
				return err
			}
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			path, err := export.ExportProofPDF(eh, out, export.PDFOptions{Pages: pp, Legend: !noLegend, Owners: !noOwners})
			if err != nil {
				return err
			}
			st.logExport(cmd, eh, "pdf", path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "proof.pdf", "output file")
	cmd.Flags().StringVar(&pages, "pages", "", "comma-separated pages (default: all)")
	cmd.Flags().BoolVar(&noLegend, "no-legend", false, "omit the recipient legend page")
	cmd.Flags().BoolVar(&noOwners, "no-owners", false, "omit owner names under field captions")
	return cmd
}

func newExportPNGCmd(st *cliState) *cobra.Command {
	var out, pages string
	var dpi, thumb int
	cmd := &cobra.Command{
		Use:   "png <dir>",
		Short: "Export one PNG per page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := parsePages(pages)
			if err != nil {
				return err
			}
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			paths, err := export.ExportProofPNGs(cmd.Context(), eh, out, export.PNGOptions{DPI: dpi, Pages: pp, ThumbWidth: thumb})
			if err != nil {
				return err
			}
			st.logExport(cmd, eh, "png", paths...)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "png", "output directory")
	cmd.Flags().StringVar(&pages, "pages", "", "comma-separated pages (default: all)")
	cmd.Flags().IntVar(&dpi, "dpi", 96, "resolution")
	cmd.Flags().IntVar(&thumb, "thumb", 0, "also write thumbnails of this width")
	return cmd
}

func newExportBatchCmd(st *cliState) *cobra.Command {
	var preset, formats, pages, out string
	var dpi int
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Export several formats using a preset (review, print)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pp, err := parsePages(pages)
			if err != nil {
				return err
			}
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			opt := export.BatchOptions{Preset: export.PresetName(preset), Pages: pp, DPIOverride: dpi, OutDir: out}
			if formats != "" {
				opt.Formats = strings.Split(formats, ",")
			}
			paths, err := export.BatchExport(cmd.Context(), eh, opt)
			if err != nil {
				return err
			}
			st.logExport(cmd, eh, "batch:"+preset, paths...)
			return nil
		},
	}
	cmd.Flags().StringVar(&preset, "preset", string(export.PresetReview), "review or print")
	cmd.Flags().StringVar(&formats, "formats", "", "comma-separated formats overriding the preset (pdf,png)")
	cmd.Flags().StringVar(&pages, "pages", "", "comma-separated pages (default: all)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default: preset name)")
	cmd.Flags().IntVar(&dpi, "dpi", 0, "override the preset resolution")
	return cmd
}
