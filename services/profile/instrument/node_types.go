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

// Tree-sitter node types used by the instrumenter. The instrumenter uses
// direct node traversal rather than the query language for precise control
// over injection points.
//
// References:
//
//	https://github.com/tree-sitter/tree-sitter-javascript
//	https://github.com/tree-sitter/tree-sitter-typescript
const (
	// Function-bearing nodes
	nodeFunctionDeclaration     = "function_declaration"
	nodeGeneratorFunctionDecl   = "generator_function_declaration"
	nodeGeneratorFunction       = "generator_function"
	nodeFunctionExpression      = "function_expression"
	nodeFunctionExpressionOld   = "function" // pre-0.20 grammar name
	nodeArrowFunction           = "arrow_function"
	nodeMethodDefinition        = "method_definition"

	// Containers that classify a function literal
	nodeClassBody          = "class_body"
	nodeObject             = "object"
	nodePair               = "pair"
	nodeVariableDeclarator = "variable_declarator"
	nodeArguments          = "arguments"
	nodeCallExpression     = "call_expression"
	nodeMemberExpression   = "member_expression"

	// Parameter forms
	nodeFormalParameters   = "formal_parameters"
	nodeIdentifier         = "identifier"
	nodePropertyIdentifier = "property_identifier"
	nodeAssignmentPattern  = "assignment_pattern"
	nodeRestPattern        = "rest_pattern"
	nodeObjectPattern      = "object_pattern"
	nodeArrayPattern       = "array_pattern"

	// TypeScript parameter wrappers
	nodeRequiredParameter     = "required_parameter"
	nodeOptionalParameter     = "optional_parameter"
	nodeAccessibilityModifier = "accessibility_modifier"
	nodeTypeAnnotation        = "type_annotation"

	// Pattern internals
	nodeShorthandPropertyPattern = "shorthand_property_identifier_pattern"
	nodePairPattern              = "pair_pattern"
	nodeObjectAssignmentPattern  = "object_assignment_pattern"

	// Bodies
	nodeStatementBlock = "statement_block"
)
