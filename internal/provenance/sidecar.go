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

package provenance

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/chickensavory/bg-remove-wpd/internal/xmp"
)

// SidecarPath returns the companion metadata path for an image:
// the image path with ".xmp" appended.
func SidecarPath(imagePath string) string {
	return imagePath + ".xmp"
}

// WriteSidecar writes the provenance packet to the image's sidecar file.
// An existing sidecar is used as the starting packet, so keywords from
// earlier runs survive.  When the composed packet matches the bytes
// already on disk the call is a no-op, leaving the file's timestamp
// alone.
func WriteSidecar(imagePath, tool, date string) error {
	sidecar := SidecarPath(imagePath)

	existing, err := os.ReadFile(sidecar)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("provenance: reading %s: %w", sidecar, err)
	}

	packet, err := xmp.Update(existing, tool, date)
	if err != nil {
		return err
	}
	if existing != nil && bytes.Equal(existing, packet) {
		return nil
	}

	if err := os.WriteFile(sidecar, packet, 0o644); err != nil {
		return fmt.Errorf("provenance: writing %s: %w", sidecar, err)
	}
	return nil
}
