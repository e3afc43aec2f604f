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

// Package pngchunk reads and writes raw PNG chunks.
//
// The package works on in-memory buffers and deals only with the chunk
// framing defined by the PNG specification: a 4-byte big-endian length,
// a 4-byte type tag, the payload, and a CRC-32 over type and payload.
// It does not decode image data.
package pngchunk

import (
	"encoding/binary"
	"hash/crc32"
)

// Signature is the fixed 8-byte prefix of every PNG file.
const Signature = "\x89PNG\r\n\x1a\n"

// Well-known chunk type tags used by this module.
const (
	TypeIEND = "IEND"
	TypeITXt = "iTXt"
)

// A Chunk describes one chunk inside a PNG buffer.  Payload is a view into
// the scanned buffer, not a copy; it is only valid as long as the buffer is
// not modified.  Start and End delimit the whole chunk including length,
// type and CRC fields.
type Chunk struct {
	Type    string
	Payload []byte
	Start   int
	End     int
}

// A Scanner yields the chunks of a PNG buffer in file order.  The sequence
// ends after the IEND chunk, or early if the buffer runs out mid-chunk.  A
// buffer that does not start with the PNG signature yields no chunks at all.
//
// The scanner does not validate chunk CRCs.  The files this tool rewrites
// are its own outputs or inputs it has just produced, so a stricter check
// would only reject files that every other PNG reader still accepts.
type Scanner struct {
	data  []byte
	pos   int
	chunk Chunk
	done  bool
}

// NewScanner returns a scanner over data.
func NewScanner(data []byte) *Scanner {
	s := &Scanner{data: data}
	if len(data) < len(Signature) || string(data[:len(Signature)]) != Signature {
		s.done = true
		return s
	}
	s.pos = len(Signature)
	return s
}

// Next advances to the next chunk.  It returns false when the sequence is
// exhausted; malformed or truncated trailing bytes end the sequence rather
// than reporting an error.
func (s *Scanner) Next() bool {
	if s.done {
		return false
	}
	if s.pos+8 > len(s.data) {
		s.done = true
		return false
	}
	length := int(binary.BigEndian.Uint32(s.data[s.pos : s.pos+4]))
	typ := string(s.data[s.pos+4 : s.pos+8])
	payloadStart := s.pos + 8
	payloadEnd := payloadStart + length
	chunkEnd := payloadEnd + 4
	if payloadEnd < payloadStart || chunkEnd > len(s.data) {
		s.done = true
		return false
	}
	s.chunk = Chunk{
		Type:    typ,
		Payload: s.data[payloadStart:payloadEnd],
		Start:   s.pos,
		End:     chunkEnd,
	}
	s.pos = chunkEnd
	if typ == TypeIEND {
		s.done = true
	}
	return true
}

// Chunk returns the chunk most recently reached by Next.
func (s *Scanner) Chunk() Chunk {
	return s.chunk
}

// Build serializes a chunk: length, type tag, payload, and the CRC-32 of
// type and payload using the standard PNG polynomial.  The caller must
// ensure the payload length fits in 32 bits.
func Build(typ string, payload []byte) []byte {
	buf := make([]byte, 0, 12+len(payload))
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(payload)))
	buf = append(buf, typ...)
	buf = append(buf, payload...)

	crc := crc32.ChecksumIEEE(buf[4:])
	buf = binary.BigEndian.AppendUint32(buf, crc)
	return buf
}
