/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"time"

	"gosignprep/internal/placement"
	"gosignprep/internal/vector"
)

// PlacementOptions turns the editor section into placement editor options.
// Zero values fall back to the editor defaults.
func (e EditorConfig) PlacementOptions() placement.Options {
	opts := placement.DefaultOptions()
	if e.BaseWidth > 0 {
		opts.BaseWidth = e.BaseWidth
	}
	if e.ZoomMin > 0 && e.ZoomMax >= e.ZoomMin {
		opts.Zoom = placement.ZoomRange{Min: e.ZoomMin, Max: e.ZoomMax}
	}
	opts.ClampEdits = e.ClampEdits
	if e.SnapThreshold > 0 {
		opts.Snap = vector.SnapOptions{Threshold: e.SnapThreshold, SnapToEdges: true, SnapToCenters: true}
	}
	if e.UndoDepth > 0 {
		opts.History.MaxPerPage = e.UndoDepth
	}
	switch {
	case e.UndoCoalesce > 0:
		opts.History.MinInterval = time.Duration(e.UndoCoalesce) * time.Millisecond
	case e.UndoCoalesce < 0:
		opts.History.MinInterval = -1
	}
	return opts
}

// ApplyZoom sets the configured starting zoom on ed.
func (e EditorConfig) ApplyZoom(ed *placement.Editor) {
	if e.DefaultZoom > 0 {
		ed.SetZoom(e.DefaultZoom)
	}
}
