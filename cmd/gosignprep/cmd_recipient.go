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
	"strings"

	"github.com/spf13/cobra"

	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
	"gosignprep/internal/review"
	"gosignprep/internal/storage"
)

func newRecipientCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "recipient",
		Aliases: []string{"recipients"},
		Short:   "Manage the people an envelope is sent to",
	}
	cmd.AddCommand(newRecipientAddCmd(st), newRecipientRmCmd(st), newRecipientLsCmd(st))
	return cmd
}

func newRecipientAddCmd(st *cliState) *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "add <dir>",
		Short: "Add a recipient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !domain.Role(strings.ToLower(role)).Valid() {
				return fmt.Errorf("unknown role %q (use signer or cc)", role)
			}
			return st.edit(cmd, args[0], "recipient.add", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				r := ed.AddRecipient(name, email, domain.Role(strings.ToLower(role)))
				var problems []string
				for _, is := range review.ValidateRecipients(ed.Recipients()) {
					if is.RecipientID == r.ID && is.Severity == review.SevError {
						problems = append(problems, is.Message)
					}
				}
				if len(problems) > 0 {
					return "", errors.New(strings.Join(problems, "; "))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added %s <%s> as %s (%s, id %s)\n", r.Name, r.Email, r.Role, r.Swatch().Name, r.ID)
				return r.Email, nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleSigner), "signer or cc")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRecipientRmCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <dir> <id|email>",
		Short: "Remove a recipient; their fields move to the first remaining signer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.edit(cmd, args[0], "recipient.rm", func(ed *placement.Editor, _ *storage.EnvelopeHandle) (string, error) {
				r, err := resolveRecipient(ed.Recipients(), args[1])
				if err != nil {
					return "", err
				}
				res, _ := ed.RemoveRecipient(r.ID)
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Removed %s <%s>\n", r.Name, r.Email)
				switch {
				case res.Reassigned > 0:
					fmt.Fprintf(out, "%d fields reassigned to %s\n", res.Reassigned, res.NewOwner)
				case res.Deleted > 0:
					fmt.Fprintf(out, "%d fields deleted (no signer left)\n", res.Deleted)
				}
				return r.Email, nil
			})
		},
	}
}

func newRecipientLsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "ls <dir>",
		Short: "List recipients with their field counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			return printRecipientSummaries(cmd, eh)
		},
	}
}

// resolveRecipient finds a recipient by id or (case-insensitive) email.
func resolveRecipient(rs []domain.Recipient, ref string) (domain.Recipient, error) {
	ref = strings.TrimSpace(ref)
	for _, r := range rs {
		if r.ID == ref || strings.EqualFold(r.Email, ref) {
			return r, nil
		}
	}
	return domain.Recipient{}, fmt.Errorf("no recipient %q", ref)
}
