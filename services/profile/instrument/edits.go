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
	"sort"
	"strings"
)

// edit is one text splice against the original source: delete deleteLen
// bytes at pos, then insert text. Pure insertions have deleteLen 0.
type edit struct {
	pos       uint32
	deleteLen uint32
	text      string
	seq       int // tiebreaker preserving emission order at equal positions
}

// editList accumulates splices and applies them in one pass.
type editList struct {
	edits []edit
}

func (l *editList) insert(pos uint32, text string) {
	l.edits = append(l.edits, edit{pos: pos, text: text, seq: len(l.edits)})
}

func (l *editList) replace(pos, deleteLen uint32, text string) {
	l.edits = append(l.edits, edit{pos: pos, deleteLen: deleteLen, text: text, seq: len(l.edits)})
}

// apply splices all edits into the source. Edits are applied in position
// order; equal positions keep emission order, so output is deterministic
// for a deterministic traversal.
func (l *editList) apply(source []byte) string {
	if len(l.edits) == 0 {
		return string(source)
	}

	edits := make([]edit, len(l.edits))
	copy(edits, l.edits)
	sort.SliceStable(edits, func(i, j int) bool {
		if edits[i].pos != edits[j].pos {
			return edits[i].pos < edits[j].pos
		}
		return edits[i].seq < edits[j].seq
	})

	var b strings.Builder
	b.Grow(len(source) + totalInsertLen(edits))

	cursor := uint32(0)
	for _, e := range edits {
		if e.pos < cursor {
			// Overlapping edit: skip rather than corrupt the output.
			continue
		}
		b.Write(source[cursor:e.pos])
		b.WriteString(e.text)
		cursor = e.pos + e.deleteLen
	}
	if int(cursor) < len(source) {
		b.Write(source[cursor:])
	}
	return b.String()
}

func totalInsertLen(edits []edit) int {
	n := 0
	for _, e := range edits {
		n += len(e.text)
	}
	return n
}
