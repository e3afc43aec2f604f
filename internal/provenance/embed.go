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
	"fmt"
	"io/fs"
	"os"

	"github.com/chickensavory/bg-remove-wpd/internal/pngchunk"
	"github.com/chickensavory/bg-remove-wpd/internal/xmp"
)

// EmbedPNG rewrites the PNG at path so that it carries the provenance
// packet in an XMP iTXt chunk.  An existing XMP chunk is replaced in
// place (the first one found wins); otherwise the new chunk is spliced in
// immediately before IEND.  The file is replaced atomically via a
// temporary file in the same directory, so on any failure the original
// remains valid and untouched.
func EmbedPNG(path, tool, date string) error {
	if !isPNGPath(path) {
		return ErrNotPNG
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("provenance: reading %s: %w", path, err)
	}
	if !bytes.HasPrefix(data, []byte(pngchunk.Signature)) {
		return ErrBadSignature
	}

	patched, err := patch(data, tool, date)
	if err != nil {
		return err
	}
	return replaceFile(path, patched, fileMode(path))
}

// patch computes the new file buffer.  It scans for an existing XMP iTXt
// chunk or, failing that, the IEND insertion point, then splices in the
// freshly composed chunk.
func patch(data []byte, tool, date string) ([]byte, error) {
	var existing []byte // packet bytes of the current XMP chunk, if any
	spliceStart, spliceEnd := -1, -1

	s := pngchunk.NewScanner(data)
	for s.Next() {
		c := s.Chunk()
		switch c.Type {
		case pngchunk.TypeITXt:
			it, err := pngchunk.DecodeITXt(c.Payload)
			if err != nil || it.Keyword != xmpKeyword {
				continue
			}
			existing = it.Text
			spliceStart, spliceEnd = c.Start, c.End
		case pngchunk.TypeIEND:
			spliceStart, spliceEnd = c.Start, c.Start
		default:
			continue
		}
		break // first match wins, for both cases
	}
	if spliceStart < 0 {
		return nil, ErrNoIEND
	}

	packet, err := xmp.Update(existing, tool, date)
	if err != nil {
		return nil, fmt.Errorf("provenance: composing XMP packet: %w", err)
	}
	payload, err := pngchunk.EncodeITXt(xmpKeyword, packet)
	if err != nil {
		return nil, err
	}
	chunk := pngchunk.Build(pngchunk.TypeITXt, payload)

	patched := make([]byte, 0, len(data)-(spliceEnd-spliceStart)+len(chunk))
	patched = append(patched, data[:spliceStart]...)
	patched = append(patched, chunk...)
	patched = append(patched, data[spliceEnd:]...)
	return patched, nil
}

// ExtractPNG returns the raw XMP packet embedded in the PNG at path, or
// nil if there is none.
func ExtractPNG(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := pngchunk.NewScanner(data)
	for s.Next() {
		c := s.Chunk()
		if c.Type != pngchunk.TypeITXt {
			continue
		}
		it, err := pngchunk.DecodeITXt(c.Payload)
		if err != nil || it.Keyword != xmpKeyword {
			continue
		}
		packet := make([]byte, len(it.Text))
		copy(packet, it.Text)
		return packet, nil
	}
	return nil, nil
}

// replaceFile writes data to a temporary file beside path and renames it
// over the target.  The temporary file is removed on failure.
func replaceFile(path string, data []byte, mode fs.FileMode) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, mode); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("provenance: writing %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("provenance: replacing %s: %w", path, err)
	}
	return nil
}

func fileMode(path string) fs.FileMode {
	if info, err := os.Stat(path); err == nil {
		return info.Mode().Perm()
	}
	return 0o644
}
