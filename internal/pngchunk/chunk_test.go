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

package pngchunk

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// pngFile assembles a PNG buffer from the signature and pre-built chunks.
func pngFile(chunks ...[]byte) []byte {
	buf := []byte(Signature)
	for _, c := range chunks {
		buf = append(buf, c...)
	}
	return buf
}

func TestBuild(t *testing.T) {
	// The IEND chunk has a well-known fixed encoding.
	got := Build(TypeIEND, nil)
	want := []byte{0, 0, 0, 0, 'I', 'E', 'N', 'D', 0xAE, 0x42, 0x60, 0x82}
	if d := cmp.Diff(want, got); d != "" {
		t.Errorf("Build(IEND) mismatch (-want +got):\n%s", d)
	}
}

func TestBuildLength(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 300)
	chunk := Build("teST", payload)
	if len(chunk) != 12+len(payload) {
		t.Fatalf("chunk length = %d, want %d", len(chunk), 12+len(payload))
	}
	if got := string(chunk[4:8]); got != "teST" {
		t.Errorf("type tag = %q, want %q", got, "teST")
	}
	if got := int(chunk[0])<<24 | int(chunk[1])<<16 | int(chunk[2])<<8 | int(chunk[3]); got != len(payload) {
		t.Errorf("declared length = %d, want %d", got, len(payload))
	}
}

func TestScanner(t *testing.T) {
	data := pngFile(
		Build("IHDR", bytes.Repeat([]byte{1}, 13)),
		Build(TypeITXt, []byte("key\x00\x00\x00\x00\x00text")),
		Build(TypeIEND, nil),
	)

	var types []string
	var payloads [][]byte
	s := NewScanner(data)
	for s.Next() {
		types = append(types, s.Chunk().Type)
		payloads = append(payloads, s.Chunk().Payload)
	}

	wantTypes := []string{"IHDR", "iTXt", "IEND"}
	if d := cmp.Diff(wantTypes, types); d != "" {
		t.Errorf("chunk types mismatch (-want +got):\n%s", d)
	}
	if got := string(payloads[1]); got != "key\x00\x00\x00\x00\x00text" {
		t.Errorf("iTXt payload = %q", got)
	}
}

func TestScannerBounds(t *testing.T) {
	ihdr := Build("IHDR", bytes.Repeat([]byte{1}, 13))
	iend := Build(TypeIEND, nil)
	data := pngFile(ihdr, iend)

	s := NewScanner(data)
	if !s.Next() {
		t.Fatal("no first chunk")
	}
	c := s.Chunk()
	if c.Start != len(Signature) || c.End != len(Signature)+len(ihdr) {
		t.Errorf("IHDR bounds = [%d,%d), want [%d,%d)",
			c.Start, c.End, len(Signature), len(Signature)+len(ihdr))
	}
	if !bytes.Equal(data[c.Start:c.End], ihdr) {
		t.Error("chunk span does not reproduce the built chunk")
	}
}

func TestScannerStopsAtIEND(t *testing.T) {
	data := pngFile(
		Build("IHDR", bytes.Repeat([]byte{1}, 13)),
		Build(TypeIEND, nil),
		Build("teST", []byte("after the end")),
	)

	var types []string
	s := NewScanner(data)
	for s.Next() {
		types = append(types, s.Chunk().Type)
	}
	want := []string{"IHDR", "IEND"}
	if d := cmp.Diff(want, types); d != "" {
		t.Errorf("chunks after IEND must not be yielded (-want +got):\n%s", d)
	}
}

func TestScannerMalformed(t *testing.T) {
	tests := []struct {
		desc string
		data []byte
		want []string
	}{
		{
			desc: "empty buffer",
			data: nil,
			want: nil,
		},
		{
			desc: "wrong signature",
			data: []byte("GIF89a definitely not a png"),
			want: nil,
		},
		{
			desc: "signature only",
			data: []byte(Signature),
			want: nil,
		},
		{
			desc: "truncated mid-chunk",
			data: append(pngFile(Build("IHDR", bytes.Repeat([]byte{1}, 13))), 0, 0, 0, 99, 'i', 'T', 'X', 't', 1, 2),
			want: []string{"IHDR"},
		},
		{
			desc: "length overruns buffer",
			data: pngFile([]byte{0xFF, 0xFF, 0xFF, 0xFF, 'i', 'T', 'X', 't'}),
			want: nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			var types []string
			s := NewScanner(tc.data)
			for s.Next() {
				types = append(types, s.Chunk().Type)
			}
			if d := cmp.Diff(tc.want, types); d != "" {
				t.Errorf("chunk types mismatch (-want +got):\n%s", d)
			}
		})
	}
}
