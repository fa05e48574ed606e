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

// ParamKind is the tagged variant over parameter forms.
type ParamKind int

const (
	// ParamIdentifier is a plain named parameter.
	ParamIdentifier ParamKind = iota
	// ParamDefault is a named parameter with a default value.
	ParamDefault
	// ParamRest is a rest element (...args).
	ParamRest
	// ParamObjectPattern is an object destructuring binding.
	ParamObjectPattern
	// ParamArrayPattern is an array destructuring binding.
	ParamArrayPattern
)

// Synthetic names for pattern bindings.
const (
	destructuredObjectName = "destructured_object"
	destructuredArrayName  = "destructured_array"
)

// ParamDescriptor is the uniform record the extractor produces for every
// formal parameter, whatever its surface form.
type ParamDescriptor struct {
	Kind          ParamKind
	Name          string // declared name, or a synthetic destructured_* name
	Index         int
	HasDefault    bool
	IsRest        bool
	Typed         bool   // the dialect annotates a type
	Accessibility string // "", "public", "private", "protected"

	// ValueExpr is the JavaScript expression that captures the parameter's
	// runtime value at function entry. For patterns it rebuilds the bound
	// names; "undefined" when nothing is extractable.
	ValueExpr string

	// Node anchors the descriptor for position and offset capture.
	Node *sitter.Node
}

// extractParams walks a formal_parameters node and produces one descriptor
// per formal parameter. It handles both the JavaScript grammar (patterns
// appear directly) and the TypeScript grammar (patterns wrapped in
// required_parameter / optional_parameter with optional accessibility and
// type annotation).
func extractParams(params *sitter.Node, content []byte) []ParamDescriptor {
	if params == nil {
		return nil
	}

	out := make([]ParamDescriptor, 0, int(params.NamedChildCount()))
	for i := 0; i < int(params.NamedChildCount()); i++ {
		child := params.NamedChild(i)
		desc, ok := extractParam(child, content)
		if !ok {
			continue
		}
		desc.Index = len(out)
		out = append(out, desc)
	}
	return out
}

func extractParam(node *sitter.Node, content []byte) (ParamDescriptor, bool) {
	switch node.Type() {
	case nodeRequiredParameter, nodeOptionalParameter:
		return extractTypedParam(node, content)
	default:
		return extractPattern(node, content)
	}
}

// extractTypedParam unwraps a TypeScript parameter wrapper: accessibility
// modifier, the inner pattern, the type annotation, and a default value.
func extractTypedParam(node *sitter.Node, content []byte) (ParamDescriptor, bool) {
	var desc ParamDescriptor

	inner := node.ChildByFieldName("pattern")
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case nodeAccessibilityModifier:
			desc.Accessibility = string(content[child.StartByte():child.EndByte()])
		case nodeTypeAnnotation:
			desc.Typed = true
		case nodeIdentifier, nodeObjectPattern, nodeArrayPattern, nodeRestPattern, nodeAssignmentPattern:
			if inner == nil {
				inner = child
			}
		}
	}

	// The grammar exposes the default through the "value" field.
	if v := node.ChildByFieldName("value"); v != nil {
		desc.HasDefault = true
	}

	if inner == nil {
		return desc, false
	}

	innerDesc, ok := extractPattern(inner, content)
	if !ok {
		return desc, false
	}
	innerDesc.Typed = desc.Typed
	innerDesc.Accessibility = desc.Accessibility
	innerDesc.HasDefault = innerDesc.HasDefault || desc.HasDefault
	innerDesc.Node = node
	return innerDesc, true
}

// extractPattern classifies a bare parameter pattern.
func extractPattern(node *sitter.Node, content []byte) (ParamDescriptor, bool) {
	switch node.Type() {
	case nodeIdentifier:
		name := string(content[node.StartByte():node.EndByte()])
		return ParamDescriptor{
			Kind:      ParamIdentifier,
			Name:      name,
			ValueExpr: name,
			Node:      node,
		}, true

	case nodeAssignmentPattern:
		left := node.ChildByFieldName("left")
		if left == nil {
			return ParamDescriptor{}, false
		}
		desc, ok := extractPattern(left, content)
		if !ok {
			return ParamDescriptor{}, false
		}
		desc.Kind = ParamDefault
		desc.HasDefault = true
		desc.Node = node
		return desc, true

	case nodeRestPattern:
		for i := 0; i < int(node.NamedChildCount()); i++ {
			child := node.NamedChild(i)
			if child.Type() == nodeIdentifier {
				name := string(content[child.StartByte():child.EndByte()])
				return ParamDescriptor{
					Kind:      ParamRest,
					Name:      name,
					IsRest:    true,
					ValueExpr: name,
					Node:      node,
				}, true
			}
		}
		return ParamDescriptor{}, false

	case nodeObjectPattern:
		return ParamDescriptor{
			Kind:      ParamObjectPattern,
			Name:      destructuredObjectName,
			ValueExpr: rebuildObjectPattern(node, content),
			Node:      node,
		}, true

	case nodeArrayPattern:
		return ParamDescriptor{
			Kind:      ParamArrayPattern,
			Name:      destructuredArrayName,
			ValueExpr: rebuildArrayPattern(node, content),
			Node:      node,
		}, true
	}
	return ParamDescriptor{}, false
}

// rebuildObjectPattern produces an object expression that reassembles the
// top-level bindings of an object pattern: {a, b: c} becomes
// "{a: a, c: c}". Bindings that are not plain identifiers are skipped;
// an empty rebuild degrades to "undefined".
func rebuildObjectPattern(node *sitter.Node, content []byte) string {
	var fields []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case nodeShorthandPropertyPattern:
			name := string(content[child.StartByte():child.EndByte()])
			fields = append(fields, name+": "+name)
		case nodePairPattern:
			if v := child.ChildByFieldName("value"); v != nil && v.Type() == nodeIdentifier {
				name := string(content[v.StartByte():v.EndByte()])
				fields = append(fields, name+": "+name)
			}
		case nodeObjectAssignmentPattern:
			if l := child.ChildByFieldName("left"); l != nil && l.Type() == nodeShorthandPropertyPattern {
				name := string(content[l.StartByte():l.EndByte()])
				fields = append(fields, name+": "+name)
			}
		case nodeRestPattern:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if gc := child.NamedChild(j); gc.Type() == nodeIdentifier {
					fields = append(fields, "..."+string(content[gc.StartByte():gc.EndByte()]))
				}
			}
		}
	}
	if len(fields) == 0 {
		return "undefined"
	}
	return "{" + strings.Join(fields, ", ") + "}"
}

// rebuildArrayPattern produces an array expression over the pattern's
// plain identifier elements: [a, , b] becomes "[a, b]".
func rebuildArrayPattern(node *sitter.Node, content []byte) string {
	var elems []string
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case nodeIdentifier:
			elems = append(elems, string(content[child.StartByte():child.EndByte()]))
		case nodeAssignmentPattern:
			if l := child.ChildByFieldName("left"); l != nil && l.Type() == nodeIdentifier {
				elems = append(elems, string(content[l.StartByte():l.EndByte()]))
			}
		case nodeRestPattern:
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if gc := child.NamedChild(j); gc.Type() == nodeIdentifier {
					elems = append(elems, "..."+string(content[gc.StartByte():gc.EndByte()]))
				}
			}
		}
	}
	if len(elems) == 0 {
		return "undefined"
	}
	return "[" + strings.Join(elems, ", ") + "]"
}
