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
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gosignprep/internal/backend"
	"gosignprep/internal/config"
	"gosignprep/internal/crash"
	"gosignprep/internal/review"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
)

func (st *cliState) client() *backend.Client {
	return backend.NewClient(st.cfg.Backend.BaseURL, st.token, st.cfg.Backend.Timeout())
}

func (st *cliState) requireToken() error {
	if st.token == "" {
		return errors.New("not logged in; run: gosignprep login")
	}
	return nil
}

func newServeCmd(st *cliState) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the hand-off service backed by Postgres",
		Long: `Serves the envelope hand-off API. Settings come from the environment:
  DATABASE_URL or GSP_PG_DSN  Postgres connection string
  GSP_ADDR or PORT            listen address (default :8080)
  GSP_AUTH_SECRET             HMAC key for bearer tokens (required)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := backend.LoadConfig()
			if addr != "" {
				cfg.Addr = addr
			}
			if cfg.Secret == "" {
				return errors.New("GSP_AUTH_SECRET is not set")
			}
			ctx := cmd.Context()
			store, err := backend.OpenPG(ctx, cfg.DBURL)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()
			st.log.Info("serving", slog.String("addr", cfg.Addr))
			return backend.Run(ctx, cfg, store)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides GSP_ADDR")
	return cmd
}

func newLoginCmd(st *cliState) *cobra.Command {
	var subject string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Fetch a backend token and store it in the OS keychain",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tr, err := st.client().Authenticate(cmd.Context(), subject, ttl)
			if err != nil {
				return err
			}
			if err := config.Save(st.cfg, tr.Token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s as %s until %s\n", st.cfg.Backend.BaseURL, subject, tr.ExpiresAt.Local().Format(time.DateTime))
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "sender", "sender identity the token is issued to")
	cmd.Flags().DurationVar(&ttl, "ttl", 8*time.Hour, "token lifetime (max 24h)")
	return cmd
}

func newLogoutCmd(*cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored backend token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.DeleteToken(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newSendCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "send <dir>",
		Short: "Review the envelope and hand it off for signing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireToken(); err != nil {
				return err
			}
			eh, err := st.open(args[0])
			if err != nil {
				return err
			}
			defer crash.Recover(eh)
			if err := review.Check(eh.Envelope).Err(); err != nil {
				return err
			}
			ctx := envCtx(cmd, eh)
			rec, err := st.client().Send(ctx, eh.Envelope)
			var apiErr *backend.APIError
			if errors.As(err, &apiErr) {
				for _, is := range apiErr.Issues {
					fmt.Fprintln(cmd.ErrOrStderr(), is.String())
				}
			}
			if err != nil {
				return err
			}
			eh.Envelope = rec.Envelope
			if err := storage.Save(eh); err != nil {
				return err
			}
			if err := storage.UpdateIndex(ctx, eh.Root, eh.Envelope); err != nil {
				st.log.Warn("index update failed", slog.Any("err", err))
			}
			_ = storage.LogActivity(ctx, eh, "send", eh.Envelope.ID, st.cfg.Backend.BaseURL)
			telemetry.Default().EnvelopeSent(rec.Recipients, rec.Fields)
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %s to %d recipients (%d fields)\n", rec.ID, rec.Recipients, rec.Fields)
			return nil
		},
	}
}

func newSentCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sent",
		Short: "Query envelopes already handed off",
	}
	var recipient string
	ls := &cobra.Command{
		Use:   "ls",
		Short: "List sent envelopes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := st.requireToken(); err != nil {
				return err
			}
			list, err := st.client().List(cmd.Context(), recipient)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTITLE\tSENDER\tRECIPIENTS\tFIELDS\tSENT")
			for _, s := range list {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", s.ID, s.Title, s.Sender, s.Recipients, s.Fields, s.SentAt.Local().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}
	ls.Flags().StringVar(&recipient, "recipient", "", "only envelopes addressed to this email")
	get := &cobra.Command{
		Use:   "get <id>",
		Short: "Print a sent envelope as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := st.requireToken(); err != nil {
				return err
			}
			rec, err := st.client().Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
	cmd.AddCommand(ls, get)
	return cmd
}
