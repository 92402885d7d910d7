package index_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/types"
)

func entry(symptomID, segment string) *types.DictionaryEntry {
	return &types.DictionaryEntry{SymptomID: symptomID, Segment: segment, Kind: types.KindSymptom}
}

func TestCandidatesOrderedByLengthDescending(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		entry("s1", "chest pain"),
		entry("s2", "chest pain radiating to left arm"),
		entry("s3", "pain"),
	})

	got := idx.Candidates("patient reports chest pain radiating to left arm this morning")

	var segments []string
	for _, e := range got {
		segments = append(segments, e.Segment)
	}
	assert.Equal(t, []string{"chest pain radiating to left arm", "chest pain", "pain"}, segments)
}

func TestCandidatesOnlyTokenBucketsPresentInNote(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{
		entry("s1", "shortness of breath"),
		entry("s2", "headache"),
	})

	got := idx.Candidates("patient denies headache today")

	assert.Len(t, got, 1)
	assert.Equal(t, "headache", got[0].Segment)
}

func TestCandidatesCaseInsensitive(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{entry("s1", "Chest Pain")})
	got := idx.Candidates("CHEST PAIN reported")
	assert.Len(t, got, 1)
}

func TestBuildDropsBlankSegments(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{entry("s1", "   "), entry("s2", "")})
	assert.Nil(t, idx.Candidates("anything at all"))
}

func TestCandidatesOnNilIndex(t *testing.T) {
	var idx *index.Index
	assert.Nil(t, idx.Candidates("anything"))
}

func TestCandidatesEmptyNote(t *testing.T) {
	idx := index.Build([]*types.DictionaryEntry{entry("s1", "headache")})
	assert.Nil(t, idx.Candidates(""))
}
