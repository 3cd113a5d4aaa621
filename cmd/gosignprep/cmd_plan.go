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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"gosignprep/internal/placement"
	"gosignprep/internal/plan"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
)

func newApplyCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <dir> <plan-file>",
		Short: "Add the recipients and fields listed in a placement plan",
		Long: `A placement plan is a text file:

  ; comments start with a semicolon
  signer: Ann Lee <ann@example.com>
  cc: Bob Ray <bob@example.com>

  # Page 1
  signature ann@example.com at 50,85 @required
  date - at 75,85
  text - at 30,20 "Company name"

Positions are field centers in percent of the page. "-" assigns the field to
the first signer. Recipients already on the envelope (same email) are reused.
The whole plan is applied as one edit.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			p, perrs := plan.Parse(string(data))
			if len(perrs) > 0 {
				for _, e := range perrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s:%s\n", args[1], e.Error())
				}
				return fmt.Errorf("%s: %d errors", args[1], len(perrs))
			}
			return st.edit(cmd, args[0], "plan.apply", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				added, err := applyPlan(ed, p)
				if err != nil {
					return "", err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %s: %d recipients added, %d fields placed\n", args[1], added, len(p.Fields))
				return args[1], nil
			})
		},
	}
}

// applyPlan adds missing recipients, then drops every field through the
// editor. It returns the number of recipients added.
func applyPlan(ed *placement.Editor, p plan.Plan) (int, error) {
	added := 0
	for _, r := range p.Recipients {
		if _, err := resolveRecipient(ed.Recipients(), r.Email); err == nil {
			continue
		}
		ed.AddRecipient(r.Name, r.Email, r.Role)
		added++
	}
	if len(p.Fields) == 0 {
		return added, nil
	}
	if err := enterEditor(ed); err != nil {
		return added, err
	}
	for _, f := range p.Fields {
		owner, err := defaultOwner(ed, f.Owner)
		if err != nil {
			return added, fmt.Errorf("line %d: %w", f.LineNo, err)
		}
		if got := ed.SetPage(f.Page); got != f.Page {
			return added, fmt.Errorf("line %d: page %d is outside the document (1-%d)", f.LineNo, f.Page, ed.PageCount())
		}
		nf, ok := ed.DropTool(f.Kind, owner.ID, pointerAt(ed, f.X, f.Y))
		if !ok {
			return added, fmt.Errorf("line %d: cannot place %s at %g,%g", f.LineNo, f.Kind, f.X, f.Y)
		}
		var patch placement.FieldPatch
		if f.Label != "" {
			patch.Label = &f.Label
		}
		if f.Required {
			patch.Required = &f.Required
		}
		if !patch.Empty() {
			ed.UpdateField(nf.ID, patch)
		}
		telemetry.Default().FieldPlaced(string(nf.Kind), nf.Page)
	}
	ed.Leave()
	return added, nil
}

// planLines renders the envelope back into plan syntax.
func planLines(ed *placement.Editor) []string {
	var out []string
	for _, r := range ed.Recipients() {
		out = append(out, fmt.Sprintf("%s: %s <%s>", r.Role, r.Name, r.Email))
	}
	env := ed.Envelope()
	page := 0
	for p := 1; p <= ed.PageCount(); p++ {
		for _, f := range env.Fields {
			if f.Page != p {
				continue
			}
			if page != p {
				out = append(out, "", fmt.Sprintf("# Page %d", p))
				page = p
			}
			owner := "-"
			if r, ok := env.RecipientByID(f.RecipientID); ok {
				owner = r.Email
			}
			line := fmt.Sprintf("%s %s at %.2f,%.2f", f.Kind, owner, f.Rect.X+f.Rect.Width/2, f.Rect.Y+f.Rect.Height/2)
			if f.Label != "" {
				line += fmt.Sprintf(" %q", f.Label)
			}
			if f.Required {
				line += " @required"
			}
			out = append(out, line)
		}
	}
	return out
}

func newPlanCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "plan <dir>",
		Short: "Print the envelope's recipients and fields as a placement plan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			ed := placement.NewEditor(eh.Envelope, nil, st.cfg.Editor.PlacementOptions())
			fmt.Fprintln(cmd.OutOrStdout(), strings.Join(planLines(ed), "\n"))
			return nil
		},
	}
}
