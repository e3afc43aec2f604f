// removebg-square - batch background removal with XMP provenance tagging
// Copyright (C) 2026  The bg-remove-wpd authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package provenance records which tool processed an image and when.
//
// The record is an XMP packet carrying a ProcessedWith keyword and a
// human-readable description.  For PNG outputs the packet is embedded as
// an iTXt chunk; for everything else, or on request, it is written to a
// sidecar file next to the image.  All failures are reported as errors
// classified by the sentinel values below; nothing in this package panics
// and a failed embed never leaves a half-written target behind.
package provenance

import (
	"errors"
	"path/filepath"
	"strings"
	"time"
)

// DefaultTool is the tool name recorded when the caller does not supply
// one.
const DefaultTool = "removebg-square-cli"

// xmpKeyword identifies the XMP iTXt chunk, per the XMP specification.
const xmpKeyword = "XML:com.adobe.xmp"

var (
	// ErrNotPNG reports that embedding was requested for a target
	// without a .png extension.  The caller may still write a sidecar.
	ErrNotPNG = errors.New("provenance: target is not a .png file")

	// ErrBadSignature reports a target that does not start with the PNG
	// signature.
	ErrBadSignature = errors.New("provenance: missing PNG signature")

	// ErrNoIEND reports a PNG with no IEND chunk; the file is left
	// untouched.
	ErrNoIEND = errors.New("provenance: no IEND chunk found")

	// ErrNothingWritten reports that a WriteTags call had no write to
	// perform.
	ErrNothingWritten = errors.New("provenance: no metadata written")
)

// Options controls WriteTags.
type Options struct {
	Tool string // recorded tool name; DefaultTool if empty
	Date string // ISO-8601 date; today if empty

	EmbedPNG bool // embed into .png targets
	Sidecar  bool // also write a sidecar file
}

// WriteTags records the processing provenance for one image.  PNG targets
// get the packet embedded when Options.EmbedPNG is set; a sidecar is
// written when Options.Sidecar is set or the target is not a PNG.  The
// call succeeds if at least one write succeeded, so a batch caller can
// log and continue on the returned error without aborting the run.
func WriteTags(path string, o Options) error {
	if o.Tool == "" {
		o.Tool = DefaultTool
	}
	if o.Date == "" {
		o.Date = time.Now().Format("2006-01-02")
	}
	isPNG := isPNGPath(path)

	var wrote bool
	var errs []error
	if isPNG && o.EmbedPNG {
		if err := EmbedPNG(path, o.Tool, o.Date); err != nil {
			errs = append(errs, err)
		} else {
			wrote = true
		}
	}
	if o.Sidecar || !isPNG {
		if err := WriteSidecar(path, o.Tool, o.Date); err != nil {
			errs = append(errs, err)
		} else {
			wrote = true
		}
	}

	if wrote {
		return nil
	}
	if len(errs) == 0 {
		return ErrNothingWritten
	}
	return errors.Join(errs...)
}

func isPNGPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".png")
}
