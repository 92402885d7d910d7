// Package extractor implements single-note extraction: scanning
// a single note's text against the candidates the Pattern Index
// surfaces and emitting one Mention per non-overlapping occurrence.
package extractor

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/idgen"
	"github.com/clinotect/noteengine/internal/types"
)

var lower = cases.Lower(language.Und)

type seenKey struct {
	segment string
	pos     int
}

// Extract scans one note against the index's candidates and returns
// its mentions in order. The returned slice preserves
// candidate-dispatch order (longest segment first), and within a
// candidate, left-to-right scan order.
func Extract(note *types.Note, idx *index.Index, tenantID string) ([]*types.Mention, error) {
	if note.Text == "" {
		return nil, nil
	}
	lowered := lower.String(note.Text)
	candidates := idx.Candidates(note.Text)

	seen := make(map[seenKey]bool)
	var mentions []*types.Mention

	for _, d := range candidates {
		segment := lower.String(strings.TrimSpace(d.Segment))
		if segment == "" {
			continue
		}
		for _, pos := range nonOverlappingOffsets(lowered, segment) {
			key := seenKey{segment: segment, pos: pos}
			if seen[key] {
				continue
			}
			seen[key] = true
			mentions = append(mentions, buildMention(note, tenantID, d, segment, pos))
		}
	}
	return mentions, nil
}

// nonOverlappingOffsets scans text for every occurrence of segment,
// advancing the scan pointer to match+len(segment) after each hit so
// overlapping occurrences (e.g. "aa" in "aaa") collapse to the single
// leftmost match.
func nonOverlappingOffsets(text, segment string) []int {
	var offsets []int
	start := 0
	for start <= len(text)-len(segment) {
		idx := strings.Index(text[start:], segment)
		if idx < 0 {
			break
		}
		matchOffset := start + idx
		offsets = append(offsets, matchOffset)
		start = matchOffset + len(segment)
	}
	return offsets
}

func buildMention(note *types.Note, tenantID string, d *types.DictionaryEntry, segment string, pos int) *types.Mention {
	m := &types.Mention{
		MentionID:          idgen.StableID(tenantID, note.PatientID, segment, note.DateOfService, pos),
		TenantID:           tenantID,
		PatientID:          note.PatientID,
		DateOfService:      note.DateOfService,
		SymptomID:          d.SymptomID,
		Segment:            segment,
		Diagnosis:          d.Diagnosis,
		DiagnosisCode:      d.DiagnosisCode,
		DiagnosticCategory: d.DiagnosticCategory,
		Kind:               d.Kind,
		PositionInText:     pos,
		Present:            "Yes",
		Detected:           "Yes",
		Validated:          "Yes",
		CreatedAt:          time.Now().UTC(),
	}

	if d.Kind == types.KindProblem {
		m.HRSNCode = types.HRSNCodeZCode
		if d.HRSNMapping != "" {
			m.HRSNFlags.Set(d.HRSNMapping)
		}
	} else {
		m.HRSNCode = types.HRSNCodeNone
	}
	return m
}
