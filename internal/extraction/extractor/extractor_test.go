package extractor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/extraction/extractor"
	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/idgen"
	"github.com/clinotect/noteengine/internal/types"
)

func note(text string) *types.Note {
	return &types.Note{
		ID:            "note-1",
		TenantID:      "tenant-a",
		PatientID:     "patient-1",
		DateOfService: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Text:          text,
	}
}

func TestExtractEmptyNoteReturnsNil(t *testing.T) {
	mentions, err := extractor.Extract(note(""), index.Build(nil), "tenant-a")
	assert.NoError(t, err)
	assert.Nil(t, mentions)
}

func TestExtractOverlappingOccurrencesCollapseToLeftmost(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "aa", Kind: types.KindSymptom},
	})

	mentions, err := extractor.Extract(note("aaa"), idx, "tenant-a")

	assert.NoError(t, err)
	if assert.Len(t, mentions, 1) {
		assert.Equal(t, 0, mentions[0].PositionInText)
	}
}

func TestExtractNonOverlappingOccurrencesAllReported(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "headache", Kind: types.KindSymptom},
	})

	mentions, err := extractor.Extract(note("headache this morning, still headache tonight"), idx, "tenant-a")

	assert.NoError(t, err)
	assert.Len(t, mentions, 2)
}

func TestExtractSymptomKindSetsHRSNCodeNone(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Kind: types.KindSymptom},
	})

	mentions, err := extractor.Extract(note("reports chest pain"), idx, "tenant-a")

	assert.NoError(t, err)
	if assert.Len(t, mentions, 1) {
		assert.Equal(t, types.HRSNCodeNone, mentions[0].HRSNCode)
		assert.Equal(t, types.HRSNFlags{}, mentions[0].HRSNFlags)
	}
}

func TestExtractProblemKindSetsExactlyOneHRSNFlag(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{
			SymptomID:   "p1",
			Segment:     "no stable housing",
			Kind:        types.KindProblem,
			HRSNMapping: types.HRSNHousingStatus,
		},
	})

	mentions, err := extractor.Extract(note("patient reports no stable housing currently"), idx, "tenant-a")

	assert.NoError(t, err)
	if assert.Len(t, mentions, 1) {
		m := mentions[0]
		assert.Equal(t, types.HRSNCodeZCode, m.HRSNCode)
		assert.Equal(t, types.HRSNProblemIdentified, m.HRSNFlags.HousingStatus)
		assert.Empty(t, m.HRSNFlags.FoodStatus)
		assert.Empty(t, m.HRSNFlags.FinancialStatus)
		assert.Empty(t, m.HRSNFlags.SocialIsolation)
	}
}

func TestExtractCaseInsensitiveMatchPreservesLoweredSegment(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "Chest Pain", Kind: types.KindSymptom},
	})

	mentions, err := extractor.Extract(note("CHEST PAIN reported"), idx, "tenant-a")

	assert.NoError(t, err)
	if assert.Len(t, mentions, 1) {
		assert.Equal(t, "chest pain", mentions[0].Segment)
	}
}

func TestExtractMentionIDIsStableAcrossCalls(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "headache", Kind: types.KindSymptom},
	})
	n := note("patient has headache today")

	first, err := extractor.Extract(n, idx, "tenant-a")
	assert.NoError(t, err)
	second, err := extractor.Extract(n, idx, "tenant-a")
	assert.NoError(t, err)

	if assert.Len(t, first, 1) && assert.Len(t, second, 1) {
		assert.Equal(t, first[0].MentionID, second[0].MentionID)
		assert.Equal(t, idgen.StableID("tenant-a", n.PatientID, "headache", n.DateOfService, first[0].PositionInText), first[0].MentionID)
	}
}

func TestExtractDifferentPositionsProduceDifferentMentionIDs(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "pain", Kind: types.KindSymptom},
	})

	mentions, err := extractor.Extract(note("pain in the morning, pain at night"), idx, "tenant-a")

	assert.NoError(t, err)
	if assert.Len(t, mentions, 2) {
		assert.NotEqual(t, mentions[0].MentionID, mentions[1].MentionID)
	}
}
