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
	"errors"
	"fmt"
)

// ITXt is the decoded payload of an iTXt chunk.
type ITXt struct {
	Keyword           string
	CompressionFlag   byte
	CompressionMethod byte
	LanguageTag       string
	TranslatedKeyword string
	Text              []byte
}

var errShortITXt = errors.New("pngchunk: truncated iTXt payload")

// EncodeITXt builds an iTXt payload with an empty language tag, an empty
// translated keyword and uncompressed text.  This is the only form this
// module writes.
func EncodeITXt(keyword string, text []byte) ([]byte, error) {
	if len(keyword) < 1 || len(keyword) > 79 {
		return nil, fmt.Errorf("pngchunk: invalid iTXt keyword length %d", len(keyword))
	}
	payload := make([]byte, 0, len(keyword)+5+len(text))
	payload = append(payload, keyword...)
	payload = append(payload, 0)    // keyword terminator
	payload = append(payload, 0, 0) // compression flag and method
	payload = append(payload, 0)    // empty language tag
	payload = append(payload, 0)    // empty translated keyword
	payload = append(payload, text...)
	return payload, nil
}

// DecodeITXt splits an iTXt payload into its fields.  The text part is a
// view into payload.
func DecodeITXt(payload []byte) (ITXt, error) {
	var it ITXt

	nul := bytes.IndexByte(payload, 0)
	if nul <= 0 {
		return it, errShortITXt
	}
	it.Keyword = string(payload[:nul])

	rest := payload[nul+1:]
	if len(rest) < 2 {
		return it, errShortITXt
	}
	it.CompressionFlag = rest[0]
	it.CompressionMethod = rest[1]
	rest = rest[2:]

	nul = bytes.IndexByte(rest, 0)
	if nul < 0 {
		return it, errShortITXt
	}
	it.LanguageTag = string(rest[:nul])
	rest = rest[nul+1:]

	nul = bytes.IndexByte(rest, 0)
	if nul < 0 {
		return it, errShortITXt
	}
	it.TranslatedKeyword = string(rest[:nul])
	it.Text = rest[nul+1:]

	return it, nil
}
