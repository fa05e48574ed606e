// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package instrument rewrites JavaScript and TypeScript source so that
// every function entry and formal parameter reports its runtime values to
// the profile collector.
//
// The transformation preserves observable behaviour: every injected call
// is wrapped in an exception-swallowing try/catch, injected statements
// share the physical line of the function's opening brace, and the
// runtime prelude is joined to the front of line 1 without introducing a
// newline, so every pre-existing statement keeps its original line number.
package instrument

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Instrumenter injects type-profile instrumentation into ECMAScript-family
// source.
//
// Description:
//
//	Instrumenter parses a source file with tree-sitter, locates every
//	function-parameter binding (declarations, variable-bound literals,
//	class and object methods, constructors, callback arguments), and
//	splices a guarded reporting call per parameter plus one entry record
//	per function. Identical inputs produce byte-identical outputs.
//
// Thread Safety:
//
//	Instrumenter is safe for concurrent use. Each Instrument call creates
//	its own tree-sitter parser instance.
type Instrumenter struct {
	options InstrumenterOptions
}

// InstrumenterOptions configures Instrumenter behavior.
type InstrumenterOptions struct {
	// MaxFileSize is the maximum source size in bytes to instrument.
	// Larger files return ErrFileTooLarge. Default: 10MB.
	MaxFileSize int

	// GlobalName is the injected entry point. Default: "twiz".
	GlobalName string

	// CollectorURL is baked into the prelude as the ingest endpoint.
	// Default: "http://localhost:8745/v1/profile/ingest".
	CollectorURL string

	// Prelude controls whether the host-guarded runtime prelude is joined
	// to the output. Disable when a bundler injects the runtime library
	// itself. Default: true.
	Prelude bool
}

// DefaultInstrumenterOptions returns the default options.
func DefaultInstrumenterOptions() InstrumenterOptions {
	return InstrumenterOptions{
		MaxFileSize:  10 * 1024 * 1024, // 10MB
		GlobalName:   "twiz",
		CollectorURL: "http://localhost:8745/v1/profile/ingest",
		Prelude:      true,
	}
}

// InstrumenterOption is a functional option for configuring Instrumenter.
type InstrumenterOption func(*InstrumenterOptions)

// WithMaxFileSize sets the maximum source size.
func WithMaxFileSize(size int) InstrumenterOption {
	return func(o *InstrumenterOptions) {
		o.MaxFileSize = size
	}
}

// WithGlobalName sets the injected entry-point name.
func WithGlobalName(name string) InstrumenterOption {
	return func(o *InstrumenterOptions) {
		o.GlobalName = name
	}
}

// WithCollectorURL sets the ingest endpoint baked into the prelude.
func WithCollectorURL(url string) InstrumenterOption {
	return func(o *InstrumenterOptions) {
		o.CollectorURL = url
	}
}

// WithPrelude sets whether the runtime prelude is emitted.
func WithPrelude(enabled bool) InstrumenterOption {
	return func(o *InstrumenterOptions) {
		o.Prelude = enabled
	}
}

// NewInstrumenter creates an Instrumenter with the given options.
func NewInstrumenter(opts ...InstrumenterOption) *Instrumenter {
	options := DefaultInstrumenterOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Instrumenter{options: options}
}

// Extensions returns the file extensions the instrumenter handles.
func (in *Instrumenter) Extensions() []string {
	return []string{".js", ".mjs", ".cjs", ".jsx", ".ts", ".mts", ".cts", ".tsx"}
}

// Instrument produces an instrumented rendition of source.
//
// Description:
//
//	Parses the source in the dialect implied by the filename extension and
//	splices instrumentation records at every function entry point. On any
//	parse-level failure the original source is returned verbatim together
//	with ErrSourceUnparseable; Instrument never returns a partial
//	mutation. Per-node extraction failures skip the node and continue.
//
// Inputs:
//
//	ctx      - Context for cancellation. Checked before and after parsing.
//	source   - Raw source bytes. Must be valid UTF-8.
//	filename - Logical filename recorded in every injected call and used
//	           for dialect selection.
//
// Outputs:
//
//	string - The instrumented source, or the original source on failure.
//	error  - ErrSourceUnparseable, ErrFileTooLarge, ErrInvalidContent, or
//	         a context error.
//
// Thread Safety: safe for concurrent use.
func (in *Instrumenter) Instrument(ctx context.Context, source []byte, filename string) (string, error) {
	if err := ctx.Err(); err != nil {
		return string(source), fmt.Errorf("instrument canceled before start: %w", err)
	}

	if len(source) > in.options.MaxFileSize {
		return string(source), ErrFileTooLarge
	}
	if !utf8.Valid(source) {
		return string(source), ErrInvalidContent
	}

	parser := sitter.NewParser()
	parser.SetLanguage(languageFor(filename))

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return string(source), fmt.Errorf("%w: %v", ErrSourceUnparseable, err)
	}
	defer tree.Close()

	if err := ctx.Err(); err != nil {
		return string(source), fmt.Errorf("instrument canceled after parse: %w", err)
	}

	root := tree.RootNode()
	if root == nil || root.HasError() {
		return string(source), ErrSourceUnparseable
	}

	ex := &extractor{content: source, logger: slog.Default()}
	ex.walk(root)

	var edits editList
	for _, site := range ex.sites {
		in.renderSite(&edits, site, filename, source)
	}

	out := edits.apply(source)
	if in.options.Prelude {
		out = joinPrelude(in.prelude(), out)
	}
	return out, nil
}

// languageFor selects the tree-sitter grammar from the file extension.
// Unknown extensions parse as JavaScript.
func languageFor(filename string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	default:
		return javascript.GetLanguage()
	}
}

// injectionMetadata is the metadata object literal attached to each
// injected call. Field order is fixed by the struct so rendering is
// deterministic.
type injectionMetadata struct {
	FunctionName   string `json:"functionName,omitempty"`
	ParameterName  string `json:"parameterName,omitempty"`
	ParameterIndex *int   `json:"parameterIndex,omitempty"`
	ParameterType  string `json:"parameterType,omitempty"`
	HasDefault     bool   `json:"hasDefault,omitempty"`
	IsDestructured bool   `json:"isDestructured,omitempty"`
	IsRest         bool   `json:"isRest,omitempty"`
	Accessibility  string `json:"accessibility,omitempty"`
	Context        string `json:"context"`
	LineNumber     int    `json:"lineNumber"`
	ColumnNumber   int    `json:"columnNumber"`
	CalleeName     string `json:"calleeName,omitempty"`
	CalleeArgIndex *int   `json:"calleeArgIndex,omitempty"`
}

// renderSite emits the entry record and one parameter record for a site,
// splicing them after the opening brace of a block body, or rewriting an
// expression-bodied arrow into a block around the original expression.
func (in *Instrumenter) renderSite(edits *editList, site injectionSite, filename string, source []byte) {
	records := make([]string, 0, len(site.params)+1)
	records = append(records, in.renderEntry(site, filename))

	for _, p := range site.params {
		records = append(records, in.renderParam(site, p, filename))
	}
	text := strings.Join(records, " ")

	switch {
	case site.body != nil:
		edits.insert(site.body.StartByte()+1, " "+text)
	case site.exprBody != nil:
		// Two pure insertions bracket the original expression, so edits
		// inside the expression (nested callbacks) still apply.
		edits.insert(site.exprBody.StartByte(), "{ "+text+" return ")
		edits.insert(site.exprBody.EndByte(), "; }")
	}
}

// renderEntry renders the per-function entry record; its value is the
// declared parameter count.
func (in *Instrumenter) renderEntry(site injectionSite, filename string) string {
	meta := injectionMetadata{
		FunctionName: site.labelBase,
		Context:      ContextFunctionEntry,
		LineNumber:   int(site.fn.StartPoint().Row) + 1,
		ColumnNumber: int(site.fn.StartPoint().Column),
	}
	if site.calleeArgIndex >= 0 {
		meta.CalleeName = site.calleeName
		meta.CalleeArgIndex = intRef(site.calleeArgIndex)
	}
	return in.renderCall(
		site.labelBase+"_entry",
		strconv.Itoa(len(site.params)),
		site.fn.StartByte(),
		filename,
		meta,
	)
}

// renderParam renders one parameter record anchored at the parameter node.
func (in *Instrumenter) renderParam(site injectionSite, p ParamDescriptor, filename string) string {
	paramType := "untyped"
	if p.Typed {
		paramType = "annotated"
	}
	meta := injectionMetadata{
		FunctionName:   site.labelBase,
		ParameterName:  p.Name,
		ParameterIndex: intRef(p.Index),
		ParameterType:  paramType,
		HasDefault:     p.HasDefault,
		IsDestructured: p.Kind == ParamObjectPattern || p.Kind == ParamArrayPattern,
		IsRest:         p.IsRest,
		Accessibility:  p.Accessibility,
		Context:        site.contextTag,
		LineNumber:     int(p.Node.StartPoint().Row) + 1,
		ColumnNumber:   int(p.Node.StartPoint().Column),
	}
	if site.calleeArgIndex >= 0 {
		meta.CalleeName = site.calleeName
		meta.CalleeArgIndex = intRef(site.calleeArgIndex)
	}
	return in.renderCall(
		site.labelBase+"_param_"+p.Name,
		p.ValueExpr,
		p.Node.StartByte(),
		filename,
		meta,
	)
}

// renderCall renders one guarded instrumentation statement.
func (in *Instrumenter) renderCall(label, valueExpr string, offset uint32, filename string, meta injectionMetadata) string {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		// Metadata is built from plain strings and ints; marshal cannot
		// fail in practice, but the guard keeps the record shippable.
		metaJSON = []byte("{}")
	}
	return fmt.Sprintf("try { %s(%s, %s, %d, %s, %s) } catch {};",
		in.options.GlobalName,
		jsonString(label),
		valueExpr,
		offset,
		jsonString(filename),
		metaJSON,
	)
}

func jsonString(s string) string {
	out, _ := json.Marshal(s)
	return string(out)
}

func intRef(i int) *int {
	return &i
}
