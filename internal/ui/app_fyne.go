//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"gosignprep/internal/backend"
	"gosignprep/internal/config"
	"gosignprep/internal/crash"
	"gosignprep/internal/domain"
	"gosignprep/internal/export"
	applog "gosignprep/internal/log"
	"gosignprep/internal/placement"
	"gosignprep/internal/review"
	"gosignprep/internal/storage"
	"gosignprep/internal/telemetry"
	"gosignprep/internal/undo"
	"gosignprep/internal/version"
)

const lastEnvelopeKey = "last.envelope"

// Run opens the envelope in envelopeDir (or the last one used) in the
// placement editor window.
func Run(envelopeDir string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting UI")

	cfg, token, err := config.Load()
	if err != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", err))
	}
	if cfg.General.TelemetryOptIn && !telemetry.Default().Enabled() {
		tc := telemetry.FromEnv()
		tc.OptIn = true
		telemetry.SetDefault(telemetry.New(tc))
	}

	fyneApp := app.NewWithID("gosignprep")
	prefs := fyneApp.Preferences()
	if envelopeDir == "" {
		envelopeDir = prefs.String(lastEnvelopeKey)
	}
	if envelopeDir == "" {
		return errors.New("no envelope directory given; create one with: gosignprep init <dir>")
	}
	eh, err := storage.Open(envelopeDir)
	if err != nil {
		return err
	}
	defer crash.Recover(eh)

	ctx := applog.WithEnvelope(context.Background(), eh.Envelope.ID)
	if rebuilt, err := storage.DetectAndRebuildIndex(ctx, eh.Root, eh.Envelope); err != nil {
		l.Warn("index check failed", slog.Any("err", err))
	} else if rebuilt {
		l.Info("index rebuilt")
	}
	if abs, err := filepath.Abs(eh.Root); err == nil {
		prefs.SetString(lastEnvelopeKey, abs)
	}

	w := fyneApp.NewWindow("Go Sign Prep")
	winW := max(prefs.IntWithFallback("window.width", 1280), 900)
	winH := max(prefs.IntWithFallback("window.height", 860), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	ed := placement.NewEditor(eh.Envelope, nil, cfg.Editor.PlacementOptions())
	cfg.Editor.ApplyZoom(ed)
	saved := envelopeBlob(ed)

	status := widget.NewLabel("Ready")
	fc := NewFieldCanvas(ed)
	props := newPropertyPanel(ed)
	people := newRecipientPanel(ed, w)
	people.OnStatus = status.SetText

	pageLbl := widget.NewLabel("")
	zoomLbl := widget.NewLabel("")
	zr := cfg.Editor.PlacementOptions().Zoom
	zoom := widget.NewSlider(zr.Min*100, zr.Max*100)
	zoom.Step = 5
	syncZoom := func(z float64) {
		zoomLbl.SetText(fmt.Sprintf("%.0f%%", z*100))
		zoom.Value = z * 100
		zoom.Refresh()
	}
	zoom.OnChanged = func(v float64) { syncZoom(ed.SetZoom(v / 100)) }
	fc.OnZoom = syncZoom
	syncZoom(ed.Surface().Zoom())

	var undoBtn, redoBtn *widget.Button
	updateTitle := func() {
		mark := ""
		if !bytes.Equal(envelopeBlob(ed), saved) {
			mark = " *"
		}
		w.SetTitle(fmt.Sprintf("Go Sign Prep - %s%s", eh.Envelope.Title, mark))
	}
	refresh := func() {
		fc.Refresh()
		props.refresh()
		people.refresh()
		pageLbl.SetText(fmt.Sprintf("Page %d / %d", ed.CurrentPage(), ed.PageCount()))
		setEnabled(undoBtn, ed.CanUndo())
		setEnabled(redoBtn, ed.CanRedo())
		updateTitle()
	}
	ed.OnChange = refresh

	// The preparation step needs complete recipients first.
	enter := func() error {
		if eh.Envelope.Status == domain.StatusSent {
			return errors.New("envelope was already sent")
		}
		if ed.Active() {
			return nil
		}
		if err := ed.Enter(); err != nil {
			status.SetText(err.Error())
			return err
		}
		status.SetText("Pick a field type, then click on the page to place it")
		return nil
	}

	fc.OnDropped = func(f domain.Field) {
		telemetry.Default().FieldPlaced(string(f.Kind), f.Page)
		status.SetText(fmt.Sprintf("Placed %s on page %d", kindTitles[f.Kind], f.Page))
	}

	palette := container.NewVBox(widget.NewLabelWithStyle("Fields", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
	for _, k := range domain.Kinds {
		palette.Add(widget.NewButton(kindTitles[k], func() {
			if err := enter(); err != nil {
				dialog.ShowInformation("Cannot place fields", err.Error(), w)
				return
			}
			owner := people.dropOwner()
			fc.Arm(k, owner)
			status.SetText(fmt.Sprintf("Click on the page to place a %s field (Esc cancels)", strings.ToLower(kindTitles[k])))
		}))
	}

	undoBtn = widget.NewButton("Undo", func() {
		if !ed.Undo() {
			status.SetText("Nothing to undo on this page")
		}
	})
	redoBtn = widget.NewButton("Redo", func() {
		if !ed.Redo() {
			status.SetText("Nothing to redo on this page")
		}
	})
	prevBtn := widget.NewButton("<", func() { ed.SetPage(ed.CurrentPage() - 1) })
	nextBtn := widget.NewButton(">", func() { ed.SetPage(ed.CurrentPage() + 1) })

	// checkpoint persists the current page fields as the latest snapshot.
	checkpoint := func(page int) {
		blob, err := json.Marshal(ed.Registry().FieldsOnPage(page))
		if err != nil {
			return
		}
		s := undo.Snapshot{Page: page, Label: "save", Blob: blob, TS: time.Now().UTC()}
		if err := storage.SaveSnapshot(ctx, eh, s); err != nil {
			l.Warn("save snapshot failed", slog.Any("err", err))
			return
		}
		_, _ = storage.PruneOldSnapshots(ctx, eh, page, 20)
	}
	save := func() error {
		eh.Envelope = ed.Envelope()
		if err := storage.Save(eh); err != nil {
			return err
		}
		if err := storage.UpdateIndex(ctx, eh.Root, eh.Envelope); err != nil {
			l.Warn("index update failed", slog.Any("err", err))
		}
		checkpoint(ed.CurrentPage())
		_ = storage.LogActivity(ctx, eh, "save", eh.Envelope.ID, fmt.Sprintf("%d fields", len(eh.Envelope.Fields)))
		saved = envelopeBlob(ed)
		updateTitle()
		return nil
	}
	saveAndReport := func() {
		if err := save(); err != nil {
			dialog.ShowError(err, w)
			return
		}
		status.SetText("Saved " + eh.ManifestPath)
	}

	// snapshotHandle copies the handle so exports never see later edits.
	snapshotHandle := func() *storage.EnvelopeHandle {
		cp := *eh
		cp.Envelope = ed.Envelope()
		return &cp
	}

	showReview := func() review.Report {
		rep := review.Check(ed.Envelope())
		showIssues(w, "Review", rep.Summaries, rep.Errors(), rep.Warnings())
		return rep
	}

	previewItem := fyne.NewMenuItem("Preview Page…", func() {
		env := ed.Envelope()
		img := canvas.NewImageFromImage(export.RenderPage(&env, ed.CurrentPage(), 96))
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(480, 620))
		dialog.ShowCustom(fmt.Sprintf("Page %d", ed.CurrentPage()), "Close", img, w)
	})
	exportPDFItem := fyne.NewMenuItem("Export Proof PDF…", func() {
		fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			out, err := export.ExportProofPDF(snapshotHandle(), outPath, export.PDFOptions{Legend: true, Owners: true})
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			_ = storage.LogActivity(ctx, eh, "export", eh.Envelope.ID, "pdf")
			dialog.ShowInformation("Export PDF", "Exported to "+out, w)
		}, w)
		fd.SetFileName("proof.pdf")
		fd.SetFilter(fstorage.NewExtensionFileFilter([]string{".pdf"}))
		fd.Show()
	})
	exportPNGItem := fyne.NewMenuItem("Export Proof PNGs…", func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
			if err != nil {
				dialog.ShowError(err, w)
				return
			}
			if uri == nil {
				return
			}
			h := snapshotHandle()
			status.SetText("Exporting PNGs…")
			go func() {
				files, err := export.ExportProofPNGs(ctx, h, uri.Path(), export.PNGOptions{ThumbWidth: 160})
				fyne.Do(func() {
					if err != nil {
						dialog.ShowError(err, w)
						return
					}
					_ = storage.LogActivity(ctx, eh, "export", eh.Envelope.ID, "png")
					status.SetText(fmt.Sprintf("Exported %d images to %s", len(files), uri.Path()))
				})
			}()
		}, w)
		fd.Show()
	})

	sendItem := fyne.NewMenuItem("Send…", func() {
		if rep := review.Check(ed.Envelope()); !rep.OK() {
			showIssues(w, "Not ready to send", rep.Summaries, rep.Errors(), rep.Warnings())
			return
		}
		if token == "" {
			dialog.ShowInformation("Send", "No backend token stored. Run: gosignprep login", w)
			return
		}
		dialog.ShowConfirm("Send envelope", "Hand this envelope off to "+cfg.Backend.BaseURL+"?", func(ok bool) {
			if !ok {
				return
			}
			env := ed.Envelope()
			client := backend.NewClient(cfg.Backend.BaseURL, token, cfg.Backend.Timeout())
			status.SetText("Sending…")
			go func() {
				rec, err := client.Send(ctx, env)
				fyne.Do(func() {
					var apiErr *backend.APIError
					switch {
					case errors.As(err, &apiErr) && len(apiErr.Issues) > 0:
						showIssues(w, "Rejected by server", nil, apiErr.Issues, nil)
						return
					case err != nil:
						dialog.ShowError(err, w)
						return
					}
					ed.Leave()
					eh.Envelope = rec.Envelope
					if err := storage.Save(eh); err != nil {
						dialog.ShowError(err, w)
					}
					_ = storage.UpdateIndex(ctx, eh.Root, eh.Envelope)
					_ = storage.LogActivity(ctx, eh, "send", eh.Envelope.ID, cfg.Backend.BaseURL)
					telemetry.Default().EnvelopeSent(len(env.Recipients), len(env.Fields))
					status.SetText("Sent; the envelope is now read-only")
				})
			}()
		}, w)
	})

	saveItem := fyne.NewMenuItem("Save", saveAndReport)
	saveItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierControl}
	reviewItem := fyne.NewMenuItem("Review", func() { showReview() })
	reviewItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyR, Modifier: fyne.KeyModifierControl}
	fileMenu := fyne.NewMenu("File", saveItem, fyne.NewMenuItemSeparator(), previewItem, exportPDFItem, exportPNGItem, fyne.NewMenuItemSeparator(), reviewItem, sendItem)

	undoItem := fyne.NewMenuItem("Undo", func() { undoBtn.OnTapped() })
	undoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierControl}
	redoItem := fyne.NewMenuItem("Redo", func() { redoBtn.OnTapped() })
	redoItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyY, Modifier: fyne.KeyModifierControl}
	deleteItem := fyne.NewMenuItem("Delete Field", func() { ed.DeleteSelected() })
	editMenu := fyne.NewMenu("Edit", undoItem, redoItem, fyne.NewMenuItemSeparator(), deleteItem)

	aboutItem := fyne.NewMenuItem("About Go Sign Prep", func() {
		exe, _ := os.Executable()
		info := fmt.Sprintf("Go Sign Prep\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nEnvelope: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, eh.Root)
		dialog.ShowInformation("About", info, w)
	})
	w.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, fyne.NewMenu("Help", aboutItem)))

	for _, it := range []*fyne.MenuItem{saveItem, reviewItem, undoItem, redoItem} {
		w.Canvas().AddShortcut(it.Shortcut, func(fyne.Shortcut) { it.Action() })
	}
	// Keys typed while no widget has focus still reach the editor.
	w.Canvas().SetOnTypedKey(func(e *fyne.KeyEvent) { fc.TypedKey(e) })

	left := container.NewBorder(palette, nil, nil, nil, people.content)
	right := container.NewVScroll(props.content)
	bottom := container.NewHBox(prevBtn, pageLbl, nextBtn, widget.NewSeparator(), undoBtn, redoBtn,
		widget.NewSeparator(), widget.NewLabel("Zoom"), container.NewGridWrap(fyne.NewSize(180, 36), zoom), zoomLbl,
		widget.NewSeparator(), status)
	split := container.NewHSplit(left, container.NewHSplit(fc, right))
	split.Offset = 0.22
	w.SetContent(container.NewBorder(nil, bottom, nil, nil, split))

	w.SetCloseIntercept(func() {
		closeNow := func() {
			ed.Leave()
			sz := w.Canvas().Size()
			prefs.SetInt("window.width", int(sz.Width))
			prefs.SetInt("window.height", int(sz.Height))
			w.Close()
		}
		if bytes.Equal(envelopeBlob(ed), saved) {
			closeNow()
			return
		}
		dialog.ShowConfirm("Unsaved changes", "Save before closing?", func(ok bool) {
			if ok {
				if err := save(); err != nil {
					dialog.ShowError(err, w)
					return
				}
			}
			closeNow()
		}, w)
	})

	_ = enter()
	refresh()
	w.ShowAndRun()

	fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	telemetry.Default().Flush(fctx)
	return nil
}

// envelopeBlob is the comparable form of the editor's document state.
func envelopeBlob(ed *placement.Editor) []byte {
	env := ed.Envelope()
	b, _ := json.Marshal(struct {
		R []domain.Recipient
		F []domain.Field
	}{env.Recipients, env.Fields})
	return b
}

func setEnabled(b *widget.Button, on bool) {
	if b == nil {
		return
	}
	if on {
		b.Enable()
	} else {
		b.Disable()
	}
}

func showIssues(w fyne.Window, title string, sums []review.Summary, errs, warns []review.Issue) {
	var sb strings.Builder
	for _, s := range sums {
		fmt.Fprintf(&sb, "%s: %d fields, %d required\n", recipientTitle(s.Recipient), s.Fields, s.Required)
	}
	if len(sums) > 0 {
		sb.WriteString("\n")
	}
	if len(errs) == 0 && len(warns) == 0 {
		sb.WriteString("No issues found.")
	}
	for _, is := range errs {
		sb.WriteString(is.String() + "\n")
	}
	for _, is := range warns {
		sb.WriteString(is.String() + "\n")
	}
	lbl := widget.NewLabel(strings.TrimSpace(sb.String()))
	lbl.Wrapping = fyne.TextWrapWord
	scroll := container.NewVScroll(lbl)
	scroll.SetMinSize(fyne.NewSize(420, 220))
	dialog.ShowCustom(title, "Close", scroll, w)
}
