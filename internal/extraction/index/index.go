// Package index builds the first-token pattern index: an in-memory
// structure that narrows the set of dictionary candidates a note must
// be scanned against from the whole dictionary down to the entries
// whose first token actually appears in the note.
package index

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clinotect/noteengine/internal/types"
)

var lower = cases.Lower(language.Und)

// entry is a dictionary entry with its segment pre-lowered, so note
// scanning never re-normalizes it.
type entry struct {
	lowerSegment string
	source       *types.DictionaryEntry
}

// Index supports candidates(note_text), returning the entries worth
// scanning a note against, longest-segment-first.
type Index struct {
	byFirstToken map[string][]entry
}

// Build constructs an Index from a tenant's dictionary. Empty or blank
// segments are dropped; the loader never persists them, but a
// defensive drop here keeps the index itself safe to build from any
// slice of entries.
func Build(entries []*types.DictionaryEntry) *Index {
	live := make([]entry, 0, len(entries))
	for _, e := range entries {
		seg := strings.TrimSpace(e.Segment)
		if seg == "" {
			continue
		}
		live = append(live, entry{lowerSegment: lower.String(seg), source: e})
	}

	sort.SliceStable(live, func(i, j int) bool {
		return len(live[i].lowerSegment) > len(live[j].lowerSegment)
	})

	byFirstToken := make(map[string][]entry)
	for _, e := range live {
		first := firstToken(e.lowerSegment)
		if first == "" {
			continue
		}
		byFirstToken[first] = append(byFirstToken[first], e)
	}
	return &Index{byFirstToken: byFirstToken}
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Candidates returns the entries worth scanning noteText against,
// globally ordered longest-segment-first regardless of which token
// bucket they came from.
func (idx *Index) Candidates(noteText string) []*types.DictionaryEntry {
	if idx == nil || len(idx.byFirstToken) == 0 {
		return nil
	}
	lowered := lower.String(noteText)
	tokens := strings.Fields(lowered)

	present := make(map[string]bool, len(tokens))
	var ordered []string
	for _, tok := range tokens {
		if !present[tok] {
			present[tok] = true
			ordered = append(ordered, tok)
		}
	}
	sort.Strings(ordered)

	var matched []entry
	for _, tok := range ordered {
		matched = append(matched, idx.byFirstToken[tok]...)
	}
	if len(matched) == 0 {
		return nil
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return len(matched[i].lowerSegment) > len(matched[j].lowerSegment)
	})

	candidates := make([]*types.DictionaryEntry, len(matched))
	for i, e := range matched {
		candidates[i] = e.source
	}
	return candidates
}
