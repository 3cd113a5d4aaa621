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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"gosignprep/internal/crash"
	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
	"gosignprep/internal/review"
	"gosignprep/internal/storage"
	"gosignprep/internal/undo"
)

// keepSnapshots is how many persisted snapshots each page retains.
const keepSnapshots = 20

var errAlreadySent = errors.New("envelope was already sent and can no longer be edited")

var pageSizes = map[string][2]float64{
	"letter": {612, 792},
	"legal":  {612, 1008},
	"a4":     {595, 842},
}

// parsePageSize accepts a named size or WIDTHxHEIGHT in points.
func parsePageSize(s string) (w, h float64, err error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if sz, ok := pageSizes[s]; ok {
		return sz[0], sz[1], nil
	}
	ws, hs, ok := strings.Cut(s, "x")
	if ok {
		w, err1 := strconv.ParseFloat(ws, 64)
		h, err2 := strconv.ParseFloat(hs, 64)
		if err1 == nil && err2 == nil && w > 0 && h > 0 {
			return w, h, nil
		}
	}
	return 0, 0, fmt.Errorf("invalid page size %q (use letter, legal, a4 or WxH in points)", s)
}

func newInitCmd(st *cliState) *cobra.Command {
	var (
		title    string
		document string
		pages    int
		size     string
	)
	cmd := &cobra.Command{
		Use:   "init <dir>",
		Short: "Create a new envelope directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, h, err := parsePageSize(size)
			if err != nil {
				return err
			}
			if pages < 1 {
				return errors.New("--pages must be at least 1")
			}
			abs, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if title == "" {
				title = filepath.Base(abs)
			}
			env := domain.Envelope{
				ID:       uuid.NewString(),
				Title:    title,
				Document: domain.Document{Name: title, PageCount: pages, PageWidth: w, PageHeight: h},
			}
			eh, err := storage.InitEnvelope(abs, env)
			if err != nil {
				return err
			}
			if document != "" {
				if _, err := storage.ImportDocument(eh, document); err != nil {
					return err
				}
				if err := storage.Save(eh); err != nil {
					return err
				}
			}
			ctx := envCtx(cmd, eh)
			if err := storage.BuildIndexIfEmpty(ctx, eh.Root, eh.Envelope); err != nil {
				st.log.Warn("index build failed", slog.Any("err", err))
			}
			_ = storage.LogActivity(ctx, eh, "init", eh.Envelope.ID, title)
			st.log.Info("envelope created", slog.String("root", abs), slog.String("envelope", eh.Envelope.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "Created envelope %s at %s\n", eh.Envelope.ID, abs)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "envelope title (default: directory name)")
	cmd.Flags().StringVar(&document, "document", "", "document file to copy into the envelope")
	cmd.Flags().IntVar(&pages, "pages", 1, "number of document pages")
	cmd.Flags().StringVar(&size, "page-size", "letter", "page size: letter, legal, a4 or WxH in points")
	return cmd
}

func newOpenCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "open <dir>",
		Short: "Print an envelope summary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			ctx := envCtx(cmd, eh)
			if _, err := storage.DetectAndRebuildIndex(ctx, eh.Root, eh.Envelope); err != nil {
				st.log.Warn("index check failed", slog.Any("err", err))
			}
			env := eh.Envelope
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Envelope: %s (%s)\n", env.Title, env.ID)
			fmt.Fprintf(out, "Status:   %s\n", env.Status)
			fmt.Fprintf(out, "Document: %s, %d pages, %.0fx%.0f pt\n", env.Document.Name, env.Document.PageCount, env.Document.PageWidth, env.Document.PageHeight)
			fmt.Fprintf(out, "Fields:   %d\n", len(env.Fields))
			fmt.Fprintln(out, "Root:    ", eh.Root)
			return printRecipientSummaries(cmd, eh)
		},
	}
}

func printRecipientSummaries(cmd *cobra.Command, eh *storage.EnvelopeHandle) error {
	ctx := envCtx(cmd, eh)
	if err := storage.BuildIndexIfEmpty(ctx, eh.Root, eh.Envelope); err != nil {
		return err
	}
	sums, err := storage.RecipientSummaries(ctx, eh.Root)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tFIELDS\tREQUIRED")
	for _, s := range sums {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", s.RecipientID, s.Name, s.Email, s.Role, s.Fields, s.Required)
	}
	return tw.Flush()
}

// editFunc applies one command to the editor and returns the activity subject.
type editFunc func(ed *placement.Editor, eh *storage.EnvelopeHandle) (string, error)

// edit loads dir, lets fn change the envelope through an editor and persists
// the result. The previous fields of every changed page are kept as a
// snapshot for restore.
func (st *cliState) edit(cmd *cobra.Command, dir, action string, fn editFunc) error {
	eh, err := st.open(dir)
	if err != nil {
		return err
	}
	defer crash.Recover(eh)
	if eh.Envelope.Status == domain.StatusSent {
		return errAlreadySent
	}
	ctx := envCtx(cmd, eh)
	ed := placement.NewEditor(eh.Envelope, nil, st.cfg.Editor.PlacementOptions())
	subject, err := fn(ed, eh)
	if err != nil {
		return err
	}
	after := ed.Envelope()
	now := time.Now().UTC()
	for _, page := range changedPages(eh.Envelope.Fields, after.Fields) {
		blob, err := json.Marshal(onPage(eh.Envelope.Fields, page))
		if err != nil {
			return err
		}
		if err := storage.SaveSnapshot(ctx, eh, undo.Snapshot{Page: page, Label: action, Blob: blob, TS: now}); err != nil {
			st.log.Warn("save snapshot failed", slog.Int("page", page), slog.Any("err", err))
			continue
		}
		_, _ = storage.PruneOldSnapshots(ctx, eh, page, keepSnapshots)
	}
	eh.Envelope = after
	if err := storage.Save(eh); err != nil {
		return err
	}
	if err := storage.UpdateIndex(ctx, eh.Root, eh.Envelope); err != nil {
		st.log.Warn("index update failed", slog.Any("err", err))
	}
	if err := storage.LogActivity(ctx, eh, action, subject, ""); err != nil {
		st.log.Warn("activity log failed", slog.Any("err", err))
	}
	return nil
}

func onPage(fs []domain.Field, page int) []domain.Field {
	out := []domain.Field{}
	for _, f := range fs {
		if f.Page == page {
			out = append(out, f)
		}
	}
	return out
}

// changedPages lists the pages whose fields differ between before and after.
func changedPages(before, after []domain.Field) []int {
	seen := map[int]bool{}
	for _, f := range before {
		seen[f.Page] = true
	}
	for _, f := range after {
		seen[f.Page] = true
	}
	var out []int
	for p := range seen {
		if !slices.Equal(onPage(before, p), onPage(after, p)) {
			out = append(out, p)
		}
	}
	slices.Sort(out)
	return out
}

func newRestoreCmd(st *cliState) *cobra.Command {
	var page int
	cmd := &cobra.Command{
		Use:   "restore <dir>",
		Short: "Put a page back to its state before the last edit",
		Long: `Restores the fields of one page from the latest persisted snapshot. The
replaced state becomes the newest snapshot, so running restore twice returns
to where you started.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return st.edit(cmd, args[0], "restore", func(ed *placement.Editor, eh *storage.EnvelopeHandle) (string, error) {
				s, ok, err := storage.GetLatestSnapshot(envCtx(cmd, eh), eh, page)
				if err != nil {
					return "", err
				}
				if !ok {
					return "", fmt.Errorf("no snapshot for page %d", page)
				}
				var fields []domain.Field
				if err := json.Unmarshal(s.Blob, &fields); err != nil {
					return "", fmt.Errorf("decode snapshot: %w", err)
				}
				ed.Registry().ReplacePage(page, fields)
				fmt.Fprintf(cmd.OutOrStdout(), "Restored %d fields on page %d from %s (%s)\n", len(fields), page, s.TS.Format(time.RFC3339), s.Label)
				return fmt.Sprintf("page %d", page), nil
			})
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "page to restore")
	return cmd
}

func newReviewCmd(st *cliState) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "review <dir>",
		Short: "Check whether the envelope is ready to send",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			rep := review.Check(eh.Envelope)
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(rep); err != nil {
					return err
				}
				return rep.Err()
			}
			for _, s := range rep.Summaries {
				fmt.Fprintf(out, "%s <%s> (%s): %d fields, %d required\n", s.Recipient.Name, s.Recipient.Email, s.Recipient.Role, s.Fields, s.Required)
			}
			for _, is := range rep.Issues {
				fmt.Fprintln(out, is.String())
			}
			if rep.OK() {
				fmt.Fprintln(out, "Ready to send.")
			}
			return rep.Err()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newActivityCmd(st *cliState) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "activity <dir>",
		Short: "Show the envelope's activity log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			items, err := storage.ListActivity(envCtx(cmd, eh), eh, limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, a := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", a.TS.Local().Format(time.DateTime), a.Action, a.Subject, a.Detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}
