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

package xmp

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"

	"golang.org/x/exp/maps"
)

// Encode serializes the packet as a UTF-8 XML document with a declaration.
//
// The output is deterministic: namespace prefixes come from a fixed table
// (with stable fallbacks assigned in document order), namespace
// declarations sit on the root element sorted by prefix, and children keep
// their tree order.  Encoding the result of Parse(Encode(p)) reproduces
// the same bytes.
func (p *Packet) Encode() ([]byte, error) {
	e := &encoder{
		buf:        &bytes.Buffer{},
		nsToPrefix: make(map[string]string),
	}

	// register default namespaces first, then document-order fallbacks
	for _, ns := range p.namespaces() {
		if pfx, isDefault := defaultPrefix[ns]; isDefault {
			e.nsToPrefix[ns] = pfx
		}
	}
	for _, ns := range p.namespaces() {
		if _, alreadyDone := e.nsToPrefix[ns]; alreadyDone {
			continue
		}
		e.nsToPrefix[ns] = getPrefix(e.nsToPrefix, ns)
	}

	e.buf.WriteString(xml.Header)
	if err := e.writeElement(p.Root, 0, true); err != nil {
		return nil, err
	}
	return e.buf.Bytes(), nil
}

// namespaces returns every namespace used by element or attribute names,
// in document order and without duplicates.  The xmpmeta, RDF and Dublin
// Core namespaces are always present so that the prefix table does not
// depend on which properties a packet happens to carry.
func (p *Packet) namespaces() []string {
	var order []string
	seen := make(map[string]struct{})
	add := func(ns string) {
		if ns == "" || ns == xmlNamespace {
			return
		}
		if _, ok := seen[ns]; ok {
			return
		}
		seen[ns] = struct{}{}
		order = append(order, ns)
	}

	add(MetaNamespace)
	add(RDFNamespace)
	add(DublinCoreNamespace)

	var walk func(el *Element)
	walk = func(el *Element) {
		add(el.Name.Space)
		for _, a := range el.Attr {
			add(a.Name.Space)
		}
		for _, ch := range el.Children {
			walk(ch)
		}
	}
	walk(p.Root)
	return order
}

type encoder struct {
	buf        *bytes.Buffer
	nsToPrefix map[string]string
}

func (e *encoder) writeElement(el *Element, depth int, isRoot bool) error {
	e.indent(depth)
	name, err := e.qualify(el.Name)
	if err != nil {
		return err
	}

	e.buf.WriteByte('<')
	e.buf.WriteString(name)

	if isRoot {
		prefixes := maps.Keys(e.nsToPrefix)
		sort.Slice(prefixes, func(i, j int) bool {
			return e.nsToPrefix[prefixes[i]] < e.nsToPrefix[prefixes[j]]
		})
		for _, ns := range prefixes {
			fmt.Fprintf(e.buf, " xmlns:%s=", e.nsToPrefix[ns])
			e.writeQuoted(ns)
		}
	}
	for _, a := range el.Attr {
		attrName, err := e.qualify(a.Name)
		if err != nil {
			return err
		}
		e.buf.WriteByte(' ')
		e.buf.WriteString(attrName)
		e.buf.WriteByte('=')
		e.writeQuoted(a.Value)
	}

	switch {
	case len(el.Children) > 0:
		e.buf.WriteString(">\n")
		for _, ch := range el.Children {
			if err := e.writeElement(ch, depth+1, false); err != nil {
				return err
			}
		}
		e.indent(depth)
		e.buf.WriteString("</")
		e.buf.WriteString(name)
		e.buf.WriteString(">\n")
	case el.Text != "":
		e.buf.WriteByte('>')
		xml.EscapeText(e.buf, []byte(el.Text))
		e.buf.WriteString("</")
		e.buf.WriteString(name)
		e.buf.WriteString(">\n")
	default:
		e.buf.WriteString("/>\n")
	}
	return nil
}

func (e *encoder) qualify(name xml.Name) (string, error) {
	if name.Space == "" {
		return name.Local, nil
	}
	if name.Space == xmlNamespace {
		return "xml:" + name.Local, nil
	}
	pfx, ok := e.nsToPrefix[name.Space]
	if !ok {
		return "", fmt.Errorf("xmp: namespace not registered: %s", name.Space)
	}
	return pfx + ":" + name.Local, nil
}

func (e *encoder) writeQuoted(s string) {
	e.buf.WriteByte('"')
	xml.EscapeText(e.buf, []byte(s))
	e.buf.WriteByte('"')
}

func (e *encoder) indent(depth int) {
	for i := 0; i < depth; i++ {
		e.buf.WriteString("  ")
	}
}
