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
	"strconv"
	"strings"
)

const (
	// MetaNamespace is the namespace of the x:xmpmeta packet root.
	MetaNamespace = "adobe:ns:meta/"

	// RDFNamespace is the namespace for RDF.
	RDFNamespace = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"

	// DublinCoreNamespace is the namespace for Dublin Core properties.
	DublinCoreNamespace = "http://purl.org/dc/elements/1.1/"

	// xmlNamespace is the namespace for XML itself (xml:lang et al.).
	xmlNamespace = "http://www.w3.org/XML/1998/namespace"
)

var defaultPrefix = map[string]string{
	MetaNamespace:       "x",
	RDFNamespace:        "rdf",
	DublinCoreNamespace: "dc",
	xmlNamespace:        "xml",
}

// getPrefix chooses a new prefix for the given namespace.
// The new prefix is chosen to be different from the ones already in the
// nsToPrefix map.
func getPrefix(nsToPrefix map[string]string, ns string) string {
	// Pick a name.  We try the path elements from the end (skipping
	// version-number segments like "1.0") and fall back to _.
	prefix := "_"
	trimmed := strings.TrimRight(ns, "/#")
	if i := strings.LastIndex(trimmed, ":"); i >= 0 && !strings.Contains(trimmed[i+1:], "/") {
		trimmed = trimmed[i+1:]
	}
	segments := strings.Split(trimmed, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if isNameString(segments[i]) {
			prefix = segments[i]
			break
		}
	}
	// xmlanything is reserved and any variant of it regardless of
	// case should be matched, so:
	//    (('X'|'x') ('M'|'m') ('L'|'l'))
	// See Section 2.3 of https://www.w3.org/TR/REC-xml/
	if len(prefix) >= 3 && strings.EqualFold(prefix[:3], "xml") {
		prefix = "_" + prefix
	}

	if used(nsToPrefix, prefix) {
		// Name is taken.  Find a better one.
		for idx := 1; ; idx++ {
			if id := prefix + "_" + strconv.Itoa(idx); !used(nsToPrefix, id) {
				prefix = id
				break
			}
		}
	}

	return prefix
}

func used(nsToPrefix map[string]string, prefix string) bool {
	for _, p := range nsToPrefix {
		if p == prefix {
			return true
		}
	}
	return false
}

func isNameString(s string) bool {
	for i, r := range s {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '_' {
			continue
		}
		if i > 0 && (r >= '0' && r <= '9' || r == '-' || r == '.') {
			continue
		}
		return false
	}
	return len(s) > 0
}
