//go:build fyne

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
	"errors"
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"gosignprep/internal/domain"
	"gosignprep/internal/placement"
	"gosignprep/internal/review"
)

// propertyPanel edits the selected field.
type propertyPanel struct {
	ed *placement.Editor

	kind     *widget.Label
	label    *widget.Entry
	required *widget.Check
	owner    *widget.Select
	ownerIDs []string
	x, y     *widget.Entry
	w, h     *widget.Entry
	trash    *widget.Button

	syncing bool
	content fyne.CanvasObject
}

func newPropertyPanel(ed *placement.Editor) *propertyPanel {
	p := &propertyPanel{ed: ed}
	p.kind = widget.NewLabel("")
	p.label = widget.NewEntry()
	p.label.SetPlaceHolder("Label")
	p.label.OnSubmitted = func(s string) { p.apply(placement.Labeled(s)) }
	p.required = widget.NewCheck("Required", func(v bool) { p.apply(placement.MarkRequired(v)) })
	p.owner = widget.NewSelect(nil, func(string) {
		if i := p.owner.SelectedIndex(); i >= 0 && i < len(p.ownerIDs) {
			p.apply(placement.Owner(p.ownerIDs[i]))
		}
	})
	p.x, p.y, p.w, p.h = widget.NewEntry(), widget.NewEntry(), widget.NewEntry(), widget.NewEntry()
	for _, e := range []*widget.Entry{p.x, p.y, p.w, p.h} {
		e.OnSubmitted = func(string) { p.submitGeometry() }
	}
	p.trash = widget.NewButton("Delete field", func() { p.ed.DeleteSelected() })

	p.content = container.NewVBox(
		p.kind,
		widget.NewForm(
			widget.NewFormItem("Label", p.label),
			widget.NewFormItem("Owner", p.owner),
			widget.NewFormItem("X %", p.x),
			widget.NewFormItem("Y %", p.y),
			widget.NewFormItem("Width %", p.w),
			widget.NewFormItem("Height %", p.h),
		),
		p.required,
		p.trash,
	)
	p.refresh()
	return p
}

func (p *propertyPanel) apply(patch placement.FieldPatch) {
	if p.syncing {
		return
	}
	if id, ok := p.ed.Selection().ID(); ok {
		p.ed.UpdateField(id, patch)
	}
}

// submitGeometry applies all four geometry entries as one edit. Unparsable
// input restores the current values.
func (p *propertyPanel) submitGeometry() {
	var v [4]float64
	for i, e := range []*widget.Entry{p.x, p.y, p.w, p.h} {
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimSuffix(e.Text, "%")), 64)
		if err != nil {
			p.refresh()
			return
		}
		v[i] = f
	}
	p.apply(placement.FieldPatch{X: &v[0], Y: &v[1], Width: &v[2], Height: &v[3]})
}

func (p *propertyPanel) refresh() {
	p.syncing = true
	defer func() { p.syncing = false }()

	id, selected := p.ed.Selection().ID()
	f, ok := p.ed.Registry().Field(id)
	if !selected || !ok {
		p.kind.SetText("No field selected")
		p.label.SetText("")
		p.required.SetChecked(false)
		p.owner.ClearSelected()
		for _, e := range []*widget.Entry{p.x, p.y, p.w, p.h} {
			e.SetText("")
		}
		p.setEnabled(false)
		return
	}

	p.kind.SetText(fmt.Sprintf("%s on page %d", kindTitles[f.Kind], f.Page))
	p.label.SetText(f.Label)
	p.required.SetChecked(f.Required)

	rs := p.ed.Recipients()
	p.ownerIDs = p.ownerIDs[:0]
	opts := make([]string, 0, len(rs))
	sel := -1
	for i, r := range rs {
		opts = append(opts, recipientTitle(r))
		p.ownerIDs = append(p.ownerIDs, r.ID)
		if r.ID == f.RecipientID {
			sel = i
		}
	}
	p.owner.Options = opts
	if sel >= 0 {
		p.owner.SetSelectedIndex(sel)
	} else {
		p.owner.ClearSelected()
	}

	p.x.SetText(formatPct(f.Rect.X))
	p.y.SetText(formatPct(f.Rect.Y))
	p.w.SetText(formatPct(f.Rect.Width))
	p.h.SetText(formatPct(f.Rect.Height))
	p.setEnabled(true)
	if !f.Kind.Labeled() {
		p.label.Disable()
	}
}

func (p *propertyPanel) setEnabled(on bool) {
	objs := []fyne.Disableable{p.label, p.required, p.owner, p.x, p.y, p.w, p.h, p.trash}
	for _, o := range objs {
		if on {
			o.Enable()
		} else {
			o.Disable()
		}
	}
}

func formatPct(v float64) string { return strconv.FormatFloat(v, 'f', 2, 64) }

func recipientTitle(r domain.Recipient) string {
	name := r.Name
	if name == "" {
		name = "(unnamed)"
	}
	if r.Email == "" {
		return name
	}
	return fmt.Sprintf("%s <%s>", name, r.Email)
}

// recipientPanel lists recipients with their color and field count. The
// selected row decides who owns palette drops.
type recipientPanel struct {
	ed       *placement.Editor
	win      fyne.Window
	list     *widget.List
	selected int

	// OnStatus reports results to the status bar.
	OnStatus func(string)
	content  fyne.CanvasObject
}

func newRecipientPanel(ed *placement.Editor, win fyne.Window) *recipientPanel {
	p := &recipientPanel{ed: ed, win: win, selected: -1}
	p.list = widget.NewList(
		func() int { return len(p.ed.Recipients()) },
		func() fyne.CanvasObject {
			dot := canvas.NewRectangle(color.Transparent)
			dot.SetMinSize(fyne.NewSize(12, 12))
			dot.CornerRadius = 6
			return container.NewHBox(dot, widget.NewLabel(""))
		},
		func(i widget.ListItemID, o fyne.CanvasObject) {
			rs := p.ed.Recipients()
			row := o.(*fyne.Container)
			dot := row.Objects[0].(*canvas.Rectangle)
			lbl := row.Objects[1].(*widget.Label)
			if i < 0 || int(i) >= len(rs) {
				lbl.SetText("")
				return
			}
			r := rs[i]
			dot.FillColor = nrgba(r.Swatch().Border)
			dot.Refresh()
			lbl.SetText(fmt.Sprintf("%s - %s - %d fields", recipientTitle(r), r.Role, p.ed.FieldCount(r.ID)))
		},
	)
	p.list.OnSelected = func(i widget.ListItemID) { p.selected = int(i) }
	p.list.OnUnselected = func(widget.ListItemID) { p.selected = -1 }

	add := widget.NewButton("Add…", p.showAdd)
	edit := widget.NewButton("Edit…", p.showEdit)
	remove := widget.NewButton("Remove", p.confirmRemove)
	p.content = container.NewBorder(widget.NewLabelWithStyle("Recipients", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		container.NewHBox(add, edit, remove), nil, nil, p.list)
	return p
}

func (p *recipientPanel) refresh() {
	if p.selected >= len(p.ed.Recipients()) {
		p.selected = -1
		p.list.UnselectAll()
	}
	p.list.Refresh()
}

// Selected returns the highlighted recipient.
func (p *recipientPanel) Selected() (domain.Recipient, bool) {
	rs := p.ed.Recipients()
	if p.selected < 0 || p.selected >= len(rs) {
		return domain.Recipient{}, false
	}
	return rs[p.selected], true
}

// dropOwner picks the owner for new fields: the selected recipient, else the
// first signer, else anyone.
func (p *recipientPanel) dropOwner() string {
	if r, ok := p.Selected(); ok {
		return r.ID
	}
	rs := p.ed.Recipients()
	for _, r := range rs {
		if r.Role == domain.RoleSigner {
			return r.ID
		}
	}
	if len(rs) > 0 {
		return rs[0].ID
	}
	return ""
}

func (p *recipientPanel) status(s string) {
	if p.OnStatus != nil {
		p.OnStatus(s)
	}
}

func (p *recipientPanel) showAdd() {
	showRecipientForm(p.win, "Add recipient", domain.Recipient{Role: domain.RoleSigner}, func(name, email string, role domain.Role) {
		r := p.ed.AddRecipient(name, email, role)
		p.status("Added " + recipientTitle(r))
	})
}

func (p *recipientPanel) showEdit() {
	r, ok := p.Selected()
	if !ok {
		dialog.ShowInformation("Edit recipient", "Select a recipient first.", p.win)
		return
	}
	showRecipientForm(p.win, "Edit recipient", r, func(name, email string, role domain.Role) {
		p.ed.UpdateRecipient(r.ID, name, email, role)
	})
}

func (p *recipientPanel) confirmRemove() {
	r, ok := p.Selected()
	if !ok {
		dialog.ShowInformation("Remove recipient", "Select a recipient first.", p.win)
		return
	}
	msg := fmt.Sprintf("Remove %s? Their %d fields move to the first remaining signer, or are deleted if there is none. Undo history is cleared.",
		recipientTitle(r), p.ed.FieldCount(r.ID))
	dialog.ShowConfirm("Remove recipient", msg, func(ok bool) {
		if !ok {
			return
		}
		res, removed := p.ed.RemoveRecipient(r.ID)
		if !removed {
			return
		}
		p.selected = -1
		p.list.UnselectAll()
		p.status(fmt.Sprintf("Removed %s: %d fields reassigned, %d deleted", recipientTitle(r), res.Reassigned, res.Deleted))
	}, p.win)
}

func showRecipientForm(win fyne.Window, title string, r domain.Recipient, submit func(name, email string, role domain.Role)) {
	name := widget.NewEntry()
	name.SetText(r.Name)
	name.Validator = func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("name is required")
		}
		return nil
	}
	email := widget.NewEntry()
	email.SetText(r.Email)
	email.Validator = validateEmail
	role := widget.NewRadioGroup([]string{string(domain.RoleSigner), string(domain.RoleCC)}, nil)
	role.Horizontal = true
	role.SetSelected(string(r.Role))

	items := []*widget.FormItem{
		widget.NewFormItem("Name", name),
		widget.NewFormItem("Email", email),
		widget.NewFormItem("Role", role),
	}
	dlg := dialog.NewForm(title, "Save", "Cancel", items, func(ok bool) {
		if ok {
			submit(name.Text, email.Text, domain.Role(role.Selected))
		}
	}, win)
	dlg.Resize(fyne.NewSize(420, 240))
	dlg.Show()
}

// validateEmail reuses the review rules for a single address.
func validateEmail(s string) error {
	probe := []domain.Recipient{{Name: "probe", Email: strings.TrimSpace(s), Role: domain.RoleSigner}}
	for _, is := range review.ValidateRecipients(probe) {
		switch is.Code {
		case "email_missing":
			return errors.New("email is required")
		case "email_invalid":
			return errors.New("not a valid email address")
		}
	}
	return nil
}
