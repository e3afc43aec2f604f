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
	"encoding/xml"
	"strings"
)

// DefaultLang is the language tag of the default-language alternative in
// an rdf:Alt array.
const DefaultLang = "x-default"

var (
	nameRDF         = xml.Name{Space: RDFNamespace, Local: "RDF"}
	nameRDFDesc     = xml.Name{Space: RDFNamespace, Local: "Description"}
	nameSubject     = xml.Name{Space: DublinCoreNamespace, Local: "subject"}
	nameDescription = xml.Name{Space: DublinCoreNamespace, Local: "description"}
	nameBag         = xml.Name{Space: RDFNamespace, Local: "Bag"}
	nameAlt         = xml.Name{Space: RDFNamespace, Local: "Alt"}
	nameLi          = xml.Name{Space: RDFNamespace, Local: "li"}
	attrLang        = xml.Name{Space: xmlNamespace, Local: "lang"}
)

// EnsureKeyword makes sure the dc:subject bag contains the given keyword.
// Keywords are compared by exact text match after trimming, so re-adding
// an existing keyword is a no-op.  It reports whether the tree changed.
func (p *Packet) EnsureKeyword(keyword string) bool {
	desc := p.Description()

	changed := false
	subject := desc.child(nameSubject)
	if subject == nil {
		subject = desc.addChild(nameSubject)
		changed = true
	}
	bag := subject.child(nameBag)
	if bag == nil {
		bag = subject.addChild(nameBag)
		changed = true
	}

	for _, li := range bag.Children {
		if li.Name == nameLi && strings.TrimSpace(li.Text) == keyword {
			return changed
		}
	}

	li := bag.addChild(nameLi)
	li.Text = keyword
	return true
}

// EnsureDefaultText makes sure the dc:description alternative array has an
// x-default entry with the given text.  An existing default entry is
// overwritten only when its text differs; entries for other languages are
// left alone.  It reports whether the tree changed.
func (p *Packet) EnsureDefaultText(text string) bool {
	desc := p.Description()

	changed := false
	dcDesc := desc.child(nameDescription)
	if dcDesc == nil {
		dcDesc = desc.addChild(nameDescription)
		changed = true
	}
	alt := dcDesc.child(nameAlt)
	if alt == nil {
		alt = dcDesc.addChild(nameAlt)
		changed = true
	}

	for _, li := range alt.Children {
		if li.Name != nameLi {
			continue
		}
		if strings.ToLower(strings.TrimSpace(attrValue(li, attrLang))) != DefaultLang {
			continue
		}
		if li.Text == text {
			return changed
		}
		li.Text = text
		return true
	}

	li := alt.addChild(nameLi)
	li.Attr = append(li.Attr, xml.Attr{Name: attrLang, Value: DefaultLang})
	li.Text = text
	return true
}

func attrValue(el *Element, name xml.Name) string {
	for _, a := range el.Attr {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

// Update is the compose entry point used by the provenance writers.  It
// parses the existing packet bytes (or creates a minimal packet), records
// the processing tool as a dc:subject keyword and a human-readable
// dc:description, and re-serializes.  Applying the same tool and date a
// second time reproduces the first output byte for byte.
func Update(existing []byte, tool, date string) ([]byte, error) {
	p := Parse(existing)
	p.EnsureKeyword("ProcessedWith:" + tool)
	p.EnsureDefaultText("Processed by " + tool + " on " + date)
	return p.Encode()
}
