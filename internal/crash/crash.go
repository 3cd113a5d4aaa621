/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file plus an autosave of the
// in-memory envelope, then exits.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "gosignprep/internal/log"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
	"gosignprep/internal/version"
)

// exitFn is swapped in tests.
var exitFn = os.Exit

// Recover must be deferred directly:
//
//	defer crash.Recover(eh)
//
// eh may be nil before an envelope is open.
func Recover(eh *storage.EnvelopeHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	reportPath, err := writeReport(eh, r, stack)
	if err != nil {
		l.Error("write crash report failed", slog.Any("err", err))
	}
	if eh != nil {
		if path, err := storage.AutosaveCrashSnapshot(eh); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
		}
	}
	_, _ = fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(2)
}

// report renders the crash report. Recipient names and addresses stay out of
// it since it may be uploaded.
func report(eh *storage.EnvelopeHandle, panicVal any, stack []byte, now time.Time) []byte {
	var buf bytes.Buffer
	_, _ = fmt.Fprintf(&buf, "Go Sign Prep Crash Report\n")
	_, _ = fmt.Fprintf(&buf, "Timestamp: %s\n", now.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&buf, "Version: %s\n", version.String())
	_, _ = fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if eh != nil {
		env := eh.Envelope
		_, _ = fmt.Fprintf(&buf, "EnvelopeRoot: %s\n", eh.Root)
		_, _ = fmt.Fprintf(&buf, "Envelope: %s (%s)\n", env.ID, env.Status)
		_, _ = fmt.Fprintf(&buf, "Pages: %d Recipients: %d Fields: %d\n", env.Document.PageCount, len(env.Recipients), len(env.Fields))
	}
	_, _ = fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	_, _ = fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

// writeReport stores the report under the envelope's backups folder, or the
// temp dir without an envelope, and hands it to the telemetry uploader.
func writeReport(eh *storage.EnvelopeHandle, panicVal any, stack []byte) (string, error) {
	now := time.Now()
	dir := os.TempDir()
	if eh != nil && eh.Root != "" {
		dir = filepath.Join(eh.Root, storage.BackupsDirName)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			dir = os.TempDir()
		}
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", now.Format("20060102-150405.000")))
	body := report(eh, panicVal, stack, now)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return path, err
	}
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		return path, err
	}
	_ = f.Sync()
	if err := f.Close(); err != nil {
		return path, err
	}
	telemetry.Default().UploadCrash(body)
	return path, nil
}
