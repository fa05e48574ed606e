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
	"regexp"
	"strings"
)

// preludeTemplate is the host-guarded runtime prelude, kept to a single
// physical line so joining it never shifts line numbers. It defines the
// entry point only if absent and is inert under hosts lacking the
// bindings it probes for (globalThis/window/self/global, JSON, setTimeout,
// fetch/XMLHttpRequest).
//
// Placeholders: @NAME@ entry-point name, @URL@ ingest endpoint.
const preludeTemplate = `(function(g){if(!g||g["@NAME@"])return;if(typeof JSON==="undefined"||!g.setTimeout||!(g.fetch||g.XMLHttpRequest))return;var q=[],t=null;function sv(v,seen){try{if(v===undefined)return "undefined";if(v===null||typeof v==="number"||typeof v==="string"||typeof v==="boolean")return v;if(typeof v==="function")return "[Function"+(v.name?": "+v.name:"")+"]";if(v instanceof Date)return "[Date: "+v.toISOString()+"]";if(v instanceof RegExp)return "[RegExp: "+v.toString()+"]";if(typeof Element!=="undefined"&&v instanceof Element)return "[HTMLElement<"+v.tagName+">]";if(typeof Event!=="undefined"&&v instanceof Event)return "[Event<"+v.type+">]";if(typeof NodeList!=="undefined"&&v instanceof NodeList)return "[NodeList<"+v.length+">]";if(seen.indexOf(v)!==-1)return "[Circular Reference]";seen=seen.concat([v]);if(Array.isArray(v)){var a=[];for(var i=0;i<v.length&&i<10;i++)a.push(sv(v[i],seen));return a}var o={};for(var k in v)if(Object.prototype.hasOwnProperty.call(v,k))o[k]=sv(v[k],seen);return o}catch(e){return "[Serialization Error: "+e+"]"}}function flush(){var b=q;q=[];t=null;if(!b.length)return;try{var body=JSON.stringify(b);if(g.fetch){g.fetch("@URL@",{method:"POST",headers:{"Content-Type":"application/json"},body:body})}else if(g.XMLHttpRequest){var x=new g.XMLHttpRequest();x.open("POST","@URL@",true);x.setRequestHeader("Content-Type","application/json");x.send(body)}}catch(e){}}g["@NAME@"]=function(label,value,offset,filename,meta){try{q.push([filename,offset,[[sv(value,[]),null]],meta]);if(t===null&&g.setTimeout)t=g.setTimeout(flush,2000)}catch(e){}}})(typeof globalThis!=="undefined"?globalThis:typeof window!=="undefined"?window:typeof self!=="undefined"?self:typeof global!=="undefined"?global:null);`

// prelude renders the prelude with the configured entry-point name and
// collector endpoint.
func (in *Instrumenter) prelude() string {
	out := strings.ReplaceAll(preludeTemplate, "@NAME@", in.options.GlobalName)
	return strings.ReplaceAll(out, "@URL@", in.options.CollectorURL)
}

var directivePattern = regexp.MustCompile(`^('use strict'|"use strict");?`)

// joinPrelude joins the prelude to the front of the first source line
// without introducing a newline, so every original line keeps its number.
// A shebang stays on line 1 and a leading "use strict" directive stays
// the first statement of its program.
func joinPrelude(prelude, source string) string {
	if strings.HasPrefix(source, "#!") {
		if i := strings.IndexByte(source, '\n'); i >= 0 {
			return source[:i+1] + prelude + source[i+1:]
		}
		return source + "\n" + prelude
	}
	if m := directivePattern.FindString(source); m != "" {
		rest := source[len(m):]
		return source[:len(m)] + prelude + rest
	}
	return prelude + source
}
