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
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gosignprep/internal/config"
	applog "gosignprep/internal/log"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
	"gosignprep/internal/version"
)

// cliState is shared by all commands of one invocation.
type cliState struct {
	verbose  bool
	envFiles []string

	cfg   config.AppConfig
	token string
	log   *slog.Logger
}

func newRootCmd() *cobra.Command {
	st := &cliState{}
	root := &cobra.Command{
		Use:   "gosignprep",
		Short: "Prepare documents for e-signature",
		Long: `Go Sign Prep places signature, initials, date, text and checkbox fields on
the pages of a document, assigns them to recipients and hands the prepared
envelope off for signing.

An envelope is a directory holding envelope.json, the imported document,
backups, exports and a local SQLite index (.gsp/index.sqlite).`,
		Version:      version.String(),
		SilenceUsage: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return st.setup()
		},
	}
	root.PersistentFlags().BoolVar(&st.verbose, "verbose", false, "Enable debug logging")
	root.PersistentFlags().StringSliceVar(&st.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the configuration")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(st),
		newOpenCmd(st),
		newRecipientCmd(st),
		newFieldCmd(st),
		newApplyCmd(st),
		newPlanCmd(st),
		newPackCmd(st),
		newUnpackCmd(st),
		newRestoreCmd(st),
		newReviewCmd(st),
		newExportCmd(st),
		newActivityCmd(st),
		newWatchCmd(st),
		newServeCmd(st),
		newLoginCmd(st),
		newLogoutCmd(st),
		newSendCmd(st),
		newSentCmd(st),
		newConfigCmd(st),
		newUICmd(st),
	)
	return root
}

func (st *cliState) setup() error {
	if err := config.LoadDotEnv(st.envFiles...); err != nil {
		return fmt.Errorf("load env files: %w", err)
	}
	if st.verbose {
		_ = os.Setenv(config.EnvLogLevel, "debug")
	}
	cfg, token, err := config.Load()
	if err != nil {
		return err
	}
	st.cfg, st.token = cfg, token
	applog.Init(cfg.Logging.Options())
	st.log = applog.WithComponent("cli")
	if cfg.General.TelemetryOptIn && !telemetry.Default().Enabled() {
		tc := telemetry.FromEnv()
		tc.OptIn = true
		telemetry.SetDefault(telemetry.New(tc))
	}
	st.log.Debug("config loaded", slog.String("backend", cfg.Backend.BaseURL))
	return nil
}

// open loads the envelope in dir.
func (st *cliState) open(dir string) (*storage.EnvelopeHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	eh, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	st.log.Debug("envelope opened", slog.String("root", abs), slog.String("envelope", eh.Envelope.ID))
	return eh, nil
}

// envCtx tags ctx with the envelope id for logging.
func envCtx(cmd *cobra.Command, eh *storage.EnvelopeHandle) context.Context {
	return applog.WithEnvelope(cmd.Context(), eh.Envelope.ID)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "Go Sign Prep")
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
