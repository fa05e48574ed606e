// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package instrument

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// resolveCalleePath reads the identifier chain of a call's callee
// expression: a bare identifier "f" yields "f", a member chain "a.b.c"
// yields "a.b.c", and any other form yields the pretty-printed callee
// text. The result is a denormalised label; it is never resolved back to
// a live binding.
func resolveCalleePath(callee *sitter.Node, content []byte) string {
	if callee == nil {
		return ""
	}

	switch callee.Type() {
	case nodeIdentifier:
		return string(content[callee.StartByte():callee.EndByte()])

	case nodeMemberExpression:
		if path, ok := memberChain(callee, content); ok {
			return path
		}
	}
	return prettyPrint(callee, content)
}

// memberChain walks a member expression left-to-right, accepting only
// identifier, this, and property-identifier links.
func memberChain(node *sitter.Node, content []byte) (string, bool) {
	obj := node.ChildByFieldName("object")
	prop := node.ChildByFieldName("property")
	if obj == nil || prop == nil || prop.Type() != nodePropertyIdentifier {
		return "", false
	}

	var base string
	switch obj.Type() {
	case nodeIdentifier:
		base = string(content[obj.StartByte():obj.EndByte()])
	case nodeMemberExpression:
		var ok bool
		base, ok = memberChain(obj, content)
		if !ok {
			return "", false
		}
	case "this":
		base = "this"
	default:
		return "", false
	}
	return base + "." + string(content[prop.StartByte():prop.EndByte()]), true
}

// prettyPrint renders the callee's source text collapsed to one line.
func prettyPrint(node *sitter.Node, content []byte) string {
	text := string(content[node.StartByte():node.EndByte()])
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}
