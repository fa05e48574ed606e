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
	"log/slog"
	"strconv"

	sitter "github.com/smacker/go-tree-sitter"
)

// Entity-type tags attached to parameter records, by construct.
const (
	ContextFunctionDeclaration = "function_declaration_parameter"
	ContextArrowFunction       = "arrow_function_parameter"
	ContextClassMethod         = "class_method_parameter"
	ContextConstructor         = "constructor_parameter"
	ContextObjectMethod        = "object_method_parameter"
	ContextCallbackArgument    = "callback_argument_parameter"
	ContextFunctionEntry       = "function_entry"
)

// injectionSite describes one function whose entry and parameters get
// instrumentation records.
type injectionSite struct {
	contextTag     string
	labelBase      string
	fn             *sitter.Node
	params         []ParamDescriptor
	body           *sitter.Node // statement_block body, or nil
	exprBody       *sitter.Node // expression body of an arrow, or nil
	calleeName     string
	calleeArgIndex int // -1 unless the function is a callback argument
}

// extractor collects injection sites in document order.
type extractor struct {
	content []byte
	sites   []injectionSite
	logger  *slog.Logger
}

func (e *extractor) walk(node *sitter.Node) {
	if node == nil {
		return
	}

	switch node.Type() {
	case nodeFunctionDeclaration, nodeGeneratorFunctionDecl:
		if name := e.fieldText(node, "name"); name != "" {
			e.addSite(node, ContextFunctionDeclaration, name, "", -1)
		}

	case nodeMethodDefinition:
		e.visitMethod(node)

	case nodeVariableDeclarator:
		e.visitDeclarator(node)

	case nodePair:
		e.visitPair(node)

	case nodeCallExpression:
		e.visitCall(node)
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		e.walk(node.NamedChild(i))
	}
}

// visitMethod classifies a method definition: constructors, class methods,
// and object-literal methods share the node type and split on name and on
// the enclosing container.
func (e *extractor) visitMethod(node *sitter.Node) {
	name := e.fieldText(node, "name")
	if name == "" {
		return
	}

	tag := ContextClassMethod
	if parent := node.Parent(); parent != nil && parent.Type() == nodeObject {
		tag = ContextObjectMethod
	}
	if name == "constructor" && tag == ContextClassMethod {
		tag = ContextConstructor
	}
	e.addSite(node, tag, name, "", -1)
}

// visitDeclarator attributes a variable-bound function literal to the
// variable name: const f = (x) => ... or const f = function () {...}.
func (e *extractor) visitDeclarator(node *sitter.Node) {
	nameNode := node.ChildByFieldName("name")
	value := node.ChildByFieldName("value")
	if nameNode == nil || value == nil || nameNode.Type() != nodeIdentifier {
		return
	}
	if !isFunctionLiteral(value) {
		return
	}
	name := string(e.content[nameNode.StartByte():nameNode.EndByte()])
	e.addSite(value, ContextArrowFunction, name, "", -1)
}

// visitPair attributes a function-valued object property to the key:
// { handler: (req) => ... }.
func (e *extractor) visitPair(node *sitter.Node) {
	key := node.ChildByFieldName("key")
	value := node.ChildByFieldName("value")
	if key == nil || value == nil || !isFunctionLiteral(value) {
		return
	}
	name := string(e.content[key.StartByte():key.EndByte()])
	if name == "" {
		return
	}
	e.addSite(value, ContextObjectMethod, name, "", -1)
}

// visitCall records every function literal passed as a call argument,
// carrying the resolved callee path and the zero-based argument index so
// the collector can populate the HOF relationship.
func (e *extractor) visitCall(node *sitter.Node) {
	callee := node.ChildByFieldName("function")
	args := node.ChildByFieldName("arguments")
	if callee == nil || args == nil {
		return
	}

	var path string
	for i := 0; i < int(args.NamedChildCount()); i++ {
		arg := args.NamedChild(i)
		if !isFunctionLiteral(arg) {
			continue
		}
		if path == "" {
			path = resolveCalleePath(callee, e.content)
		}
		if path == "" {
			continue
		}
		labelBase := path + "_arg" + strconv.Itoa(i)
		e.addSite(arg, ContextCallbackArgument, labelBase, path, i)
	}
}

// addSite extracts the parameter list and body of one function node. A
// failure on any one node is swallowed: the node is skipped and the rest
// of the file still instruments.
func (e *extractor) addSite(fn *sitter.Node, tag, labelBase, calleeName string, calleeArgIndex int) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("skipping uninstrumentable node",
				slog.String("label", labelBase),
				slog.Any("panic", r))
		}
	}()

	site := injectionSite{
		contextTag:     tag,
		labelBase:      labelBase,
		fn:             fn,
		calleeName:     calleeName,
		calleeArgIndex: calleeArgIndex,
	}

	if params := fn.ChildByFieldName("parameters"); params != nil {
		site.params = extractParams(params, e.content)
	} else if single := fn.ChildByFieldName("parameter"); single != nil {
		// Arrow shorthand: a single bare parameter without parentheses.
		if desc, ok := extractPattern(single, e.content); ok {
			site.params = []ParamDescriptor{desc}
		}
	}

	body := fn.ChildByFieldName("body")
	if body == nil {
		return
	}
	if body.Type() == nodeStatementBlock {
		site.body = body
	} else {
		site.exprBody = body
	}

	e.sites = append(e.sites, site)
}

func (e *extractor) fieldText(node *sitter.Node, field string) string {
	n := node.ChildByFieldName(field)
	if n == nil {
		return ""
	}
	return string(e.content[n.StartByte():n.EndByte()])
}

func isFunctionLiteral(node *sitter.Node) bool {
	switch node.Type() {
	case nodeArrowFunction, nodeFunctionExpression, nodeFunctionExpressionOld,
		nodeGeneratorFunction:
		return true
	}
	return false
}
