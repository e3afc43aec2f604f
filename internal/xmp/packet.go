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

// Package xmp builds and updates the small XMP packets this tool embeds
// into its outputs.
//
// The main type is [Packet], an owned mutable tree of one xmpmeta
// document.  [Parse] loads existing packet bytes and never fails outward:
// undecodable or malformed input is replaced by a fresh minimal packet.
// The Ensure methods add the two provenance assertions idempotently, and
// [Packet.Encode] serializes the tree deterministically, so that applying
// the same update twice yields byte-identical output.
package xmp

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

var (
	errMultipleRoots = errors.New("xmp: multiple document roots")
	errUnbalanced    = errors.New("xmp: unbalanced XML elements")
)

// An Element is one node of the packet tree.  Text is only meaningful for
// elements without children.
type Element struct {
	Name     xml.Name
	Attr     []xml.Attr
	Text     string
	Children []*Element
}

// A Packet is an XMP document rooted at an xmpmeta element.  Each packet
// is owned by a single update call; the tree is mutated in place and then
// encoded.
type Packet struct {
	Root *Element
}

// New returns a minimal packet: xmpmeta > RDF > Description, all empty.
func New() *Packet {
	desc := &Element{Name: nameRDFDesc}
	rdf := &Element{
		Name:     nameRDF,
		Children: []*Element{desc},
	}
	root := &Element{
		Name:     xml.Name{Space: MetaNamespace, Local: "xmpmeta"},
		Children: []*Element{rdf},
	}
	return &Packet{Root: root}
}

// Parse loads existing packet bytes.  The text is decoded as UTF-8
// (with or without a BOM) and as Latin-1 as a last resort.  If no xmpmeta
// element can be found, or the input is empty or malformed, a minimal
// packet is returned instead.  Parse never fails.
func Parse(data []byte) *Packet {
	text, ok := decodeText(data)
	if !ok {
		return New()
	}
	tree, err := parseTree(strings.NewReader(text))
	if err != nil || tree == nil {
		return New()
	}
	if meta := findLocal(tree, "xmpmeta"); meta != nil {
		return &Packet{Root: meta}
	}
	return New()
}

// decodeText decodes raw packet bytes into a string.  UTF-8 input is used
// as-is (after stripping a BOM); anything else is read as Latin-1, which
// cannot fail.  Only empty input is rejected.
func decodeText(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), true
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", false
	}
	return string(decoded), true
}

// parseTree reads one XML document into an element tree.  Whitespace-only
// character data is dropped; the serializer re-indents on output.
func parseTree(r io.Reader) (*Element, error) {
	dec := xml.NewDecoder(r)
	// decodeText has already produced UTF-8; ignore whatever charset the
	// document's XML declaration still claims.
	dec.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var root *Element
	var stack []*Element
	for {
		t, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := t.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name}
			for _, a := range t.Attr {
				if a.Name.Space == "xmlns" || a.Name.Local == "xmlns" {
					// namespace declarations are regenerated on encode
					continue
				}
				el.Attr = append(el.Attr, a)
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, errMultipleRoots
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, errUnbalanced
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if s := string(t); strings.TrimSpace(s) != "" {
				el := stack[len(stack)-1]
				el.Text += s
			}
		}
	}
	if len(stack) != 0 {
		return nil, errUnbalanced
	}
	return root, nil
}

// findLocal returns the first element, in document order, with the given
// local name in any namespace.
func findLocal(el *Element, local string) *Element {
	if el.Name.Local == local {
		return el
	}
	for _, ch := range el.Children {
		if found := findLocal(ch, local); found != nil {
			return found
		}
	}
	return nil
}

// findName returns the first element, in document order, with the given
// fully qualified name.
func findName(el *Element, name xml.Name) *Element {
	if el.Name == name {
		return el
	}
	for _, ch := range el.Children {
		if found := findName(ch, name); found != nil {
			return found
		}
	}
	return nil
}

// child returns the first direct child with the given name, or nil.
func (el *Element) child(name xml.Name) *Element {
	for _, ch := range el.Children {
		if ch.Name == name {
			return ch
		}
	}
	return nil
}

// addChild appends a new empty child element and returns it.
func (el *Element) addChild(name xml.Name) *Element {
	ch := &Element{Name: name}
	el.Children = append(el.Children, ch)
	return ch
}

// Description returns the rdf:Description node carrying the packet's
// properties.  The rdf:RDF element is located anywhere below the root and
// created if absent; the first rdf:Description child is reused, so a
// packet never grows a second one.
func (p *Packet) Description() *Element {
	rdf := findName(p.Root, nameRDF)
	if rdf == nil {
		rdf = p.Root.addChild(nameRDF)
	}
	if desc := rdf.child(nameRDFDesc); desc != nil {
		return desc
	}
	return rdf.addChild(nameRDFDesc)
}
