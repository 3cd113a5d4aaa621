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
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
)

func newFieldCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "field",
		Aliases: []string{"fields"},
		Short:   "Place, move and edit fields",
		Long: `Field geometry is given in percent of the page width and height, with the
origin at the top-left corner. Placement and moves keep the whole field on
the page.`,
	}
	cmd.AddCommand(newFieldAddCmd(st), newFieldDragCmd(st), newFieldSetCmd(st), newFieldRmCmd(st), newFieldLsCmd(st))
	return cmd
}

// parsePair parses "a,b".
func parsePair(s string) (float64, float64, error) {
	as, bs, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected two comma-separated numbers, got %q", s)
	}
	a, err := strconv.ParseFloat(strings.TrimSpace(as), 64)
	if err != nil {
		return 0, 0, err
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(bs), 64)
	if err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

// pointerAt converts a percent position on the page into a surface pointer.
func pointerAt(ed *placement.Editor, x, y float64) placement.Pointer {
	r := ed.Surface().Rect()
	return placement.Pointer{X: r.X + placement.ToPixels(x, r.W), Y: r.Y + placement.ToPixels(y, r.H)}
}

func enterEditor(ed *placement.Editor) error {
	if err := ed.Enter(); err != nil {
		return fmt.Errorf("%w (add recipients first: gosignprep recipient add)", err)
	}
	return nil
}

func newFieldAddCmd(st *cliState) *cobra.Command {
	var (
		kind      string
		page      int
		at        string
		recipient string
		label     string
		required  bool
	)
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Drop a new field centered at a page position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			x, y, err := parsePair(at)
			if err != nil {
				return fmt.Errorf("--at: %w", err)
			}
			k := domain.FieldKind(strings.ToLower(kind))
			if !k.Valid() {
				return fmt.Errorf("unknown field kind %q", kind)
			}
			return st.edit(cmd, args[0], "field.add", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				if err := enterEditor(ed); err != nil {
					return "", err
				}
				owner, err := defaultOwner(ed, recipient)
				if err != nil {
					return "", err
				}
				if got := ed.SetPage(page); got != page {
					return "", fmt.Errorf("page %d is outside the document (1-%d)", page, ed.PageCount())
				}
				f, ok := ed.DropTool(k, owner.ID, pointerAt(ed, x, y))
				if !ok {
					return "", fmt.Errorf("position %s is not on the page", at)
				}
				patch := placement.FieldPatch{}
				if cmd.Flags().Changed("label") {
					patch.Label = &label
				}
				if cmd.Flags().Changed("required") {
					patch.Required = &required
				}
				if !patch.Empty() {
					f, _ = ed.UpdateField(f.ID, patch)
				}
				telemetry.Default().FieldPlaced(string(f.Kind), f.Page)
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", f.ID)
				return f.ID, nil
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", string(domain.KindSignature), "signature, initials, date, text or checkbox")
	cmd.Flags().IntVar(&page, "page", 1, "page number")
	cmd.Flags().StringVar(&at, "at", "50,50", "center position as x,y in percent")
	cmd.Flags().StringVar(&recipient, "recipient", "", "owner id or email (default: first signer)")
	cmd.Flags().StringVar(&label, "label", "", "label for text and checkbox fields")
	cmd.Flags().BoolVar(&required, "required", false, "mark the field required")
	return cmd
}

// defaultOwner resolves ref, or picks the first signer when ref is empty.
func defaultOwner(ed *placement.Editor, ref string) (domain.Recipient, error) {
	rs := ed.Recipients()
	if ref != "" {
		return resolveRecipient(rs, ref)
	}
	for _, r := range rs {
		if r.Role == domain.RoleSigner {
			return r, nil
		}
	}
	if len(rs) > 0 {
		return rs[0], nil
	}
	return domain.Recipient{}, errors.New("envelope has no recipients")
}

func newFieldDragCmd(st *cliState) *cobra.Command {
	var to, by string
	cmd := &cobra.Command{
		Use:   "drag <dir> <field-id>",
		Short: "Move a field the way a pointer drag would",
		Long: `Moves a field by --by dx,dy or to the top-left position --to x,y (percent).
The move is clamped to the page and snaps to guides when snapping is enabled.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (to == "") == (by == "") {
				return errors.New("give exactly one of --to or --by")
			}
			return st.edit(cmd, args[0], "field.drag", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				if err := enterEditor(ed); err != nil {
					return "", err
				}
				f, ok := ed.Registry().Field(args[1])
				if !ok {
					return "", fmt.Errorf("no field %q", args[1])
				}
				tx, ty := f.Rect.X, f.Rect.Y
				if to != "" {
					x, y, err := parsePair(to)
					if err != nil {
						return "", fmt.Errorf("--to: %w", err)
					}
					tx, ty = x, y
				} else {
					dx, dy, err := parsePair(by)
					if err != nil {
						return "", fmt.Errorf("--by: %w", err)
					}
					tx, ty = tx+dx, ty+dy
				}
				ed.SetPage(f.Page)
				// grab the field at its top-left corner
				grab := pointerAt(ed, f.Rect.X, f.Rect.Y)
				if !ed.PointerDownOnField(f.ID, grab) {
					return "", fmt.Errorf("cannot drag %q", f.ID)
				}
				release := pointerAt(ed, tx, ty)
				ed.Host().PointerMove.Emit(release)
				ed.Host().PointerUp.Emit(release)
				f, _ = ed.Registry().Field(f.ID)
				fmt.Fprintf(cmd.OutOrStdout(), "%s at %.2f,%.2f\n", f.ID, f.Rect.X, f.Rect.Y)
				return f.ID, nil
			})
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "new top-left position x,y in percent")
	cmd.Flags().StringVar(&by, "by", "", "offset dx,dy in percent")
	return cmd
}

func newFieldSetCmd(st *cliState) *cobra.Command {
	var (
		x, y, width, height float64
		label, owner        string
		required            bool
	)
	cmd := &cobra.Command{
		Use:   "set <dir> <field-id>",
		Short: "Edit field properties",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.edit(cmd, args[0], "field.set", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				if _, ok := ed.Registry().Field(args[1]); !ok {
					return "", fmt.Errorf("no field %q", args[1])
				}
				var patch placement.FieldPatch
				flags := cmd.Flags()
				if flags.Changed("x") {
					patch.X = &x
				}
				if flags.Changed("y") {
					patch.Y = &y
				}
				if flags.Changed("width") {
					patch.Width = &width
				}
				if flags.Changed("height") {
					patch.Height = &height
				}
				if flags.Changed("label") {
					patch.Label = &label
				}
				if flags.Changed("required") {
					patch.Required = &required
				}
				if flags.Changed("owner") {
					r, err := resolveRecipient(ed.Recipients(), owner)
					if err != nil {
						return "", err
					}
					patch.RecipientID = &r.ID
				}
				if patch.Empty() {
					return "", errors.New("nothing to change")
				}
				f, _ := ed.UpdateField(args[1], patch)
				fmt.Fprintln(cmd.OutOrStdout(), describeField(f))
				return f.ID, nil
			})
		},
	}
	cmd.Flags().Float64Var(&x, "x", 0, "left edge in percent")
	cmd.Flags().Float64Var(&y, "y", 0, "top edge in percent")
	cmd.Flags().Float64Var(&width, "width", 0, "width in percent")
	cmd.Flags().Float64Var(&height, "height", 0, "height in percent")
	cmd.Flags().StringVar(&label, "label", "", "label text")
	cmd.Flags().BoolVar(&required, "required", false, "required flag")
	cmd.Flags().StringVar(&owner, "owner", "", "new owner id or email")
	return cmd
}

func newFieldRmCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <dir> <field-id>",
		Short: "Delete a field",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.edit(cmd, args[0], "field.rm", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				if !ed.Trash(args[1]) {
					return "", fmt.Errorf("no field %q", args[1])
				}
				return args[1], nil
			})
		},
	}
}

func newFieldLsCmd(st *cliState) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "ls <dir>",
		Short: "List fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			env := eh.Envelope
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tKIND\tPAGE\tX\tY\tW\tH\tOWNER\tREQUIRED\tLABEL")
			for _, f := range env.Fields {
				if page > 0 && f.Page != page {
					continue
				}
				owner := f.RecipientID
				if r, ok := env.RecipientByID(f.RecipientID); ok {
					owner = r.Email
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%s\t%t\t%s\n",
					f.ID, f.Kind, f.Page, f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height, owner, f.Required, f.Label)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&page, "page", 0, "only list fields on this page")
	return cmd
}

func describeField(f domain.Field) string {
	return fmt.Sprintf("%s %s p%d at %.2f,%.2f size %.2fx%.2f owner=%s required=%t label=%q",
		f.ID, f.Kind, f.Page, f.Rect.X, f.Rect.Y, f.Rect.Width, f.Rect.Height, f.RecipientID, f.Required, f.Label)
}
