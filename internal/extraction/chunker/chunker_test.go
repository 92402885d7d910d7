package chunker_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/extraction/chunker"
	"github.com/clinotect/noteengine/internal/extraction/index"
	"github.com/clinotect/noteengine/internal/types"
)

func notesWithMarkers(n int) ([]*types.Note, *index.Index) {
	var notes []*types.Note
	var entries []*types.DictionaryEntry
	for i := 0; i < n; i++ {
		marker := fmt.Sprintf("marker%02d", i)
		notes = append(notes, &types.Note{
			ID:            fmt.Sprintf("note-%d", i),
			TenantID:      "tenant-a",
			PatientID:     "patient-1",
			DateOfService: time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Text:          marker,
		})
		entries = append(entries, &types.DictionaryEntry{
			SymptomID: marker, Segment: marker, Kind: types.KindSymptom,
		})
	}
	return notes, index.Build(entries)
}

func TestRunEmptyNotesReturnsNil(t *testing.T) {
	mentions, err := chunker.Run(context.Background(), nil, index.Build(nil), "tenant-a", chunker.DefaultOptions(), nil)
	assert.NoError(t, err)
	assert.Nil(t, mentions)
}

func TestRunInlinePathForSmallNoteSet(t *testing.T) {
	notes, idx := notesWithMarkers(5)

	var progressCalls []chunker.Progress
	mentions, err := chunker.Run(context.Background(), notes, idx, "tenant-a", chunker.DefaultOptions(), func(p chunker.Progress) {
		progressCalls = append(progressCalls, p)
	})

	assert.NoError(t, err)
	assert.Len(t, mentions, 5)
	assert.Len(t, progressCalls, 5)
	assert.Equal(t, 5, progressCalls[len(progressCalls)-1].ProcessedNotes)
}

func TestRunPreservesChunkDispatchOrder(t *testing.T) {
	notes, idx := notesWithMarkers(17)

	opts := chunker.DefaultOptions()
	opts.TargetChunkSize = 5
	opts.Concurrency = 3

	mentions, err := chunker.Run(context.Background(), notes, idx, "tenant-a", opts, nil)

	assert.NoError(t, err)
	if assert.Len(t, mentions, 17) {
		for i, m := range mentions {
			assert.Equal(t, fmt.Sprintf("marker%02d", i), m.Segment)
		}
	}
}

func TestRunChunkTimeoutYieldsNoErrorAndNoMentions(t *testing.T) {
	notes, idx := notesWithMarkers(12)

	opts := chunker.DefaultOptions()
	opts.TargetChunkSize = 1000
	opts.Concurrency = 1
	opts.JobTimeout = 0
	opts.ChunkTimeout = -1 * time.Second

	mentions, err := chunker.Run(context.Background(), notes, idx, "tenant-a", opts, nil)

	assert.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestRunHonorsCancelledParentContext(t *testing.T) {
	notes, idx := notesWithMarkers(20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := chunker.DefaultOptions()
	opts.JobTimeout = time.Hour

	mentions, err := chunker.Run(ctx, notes, idx, "tenant-a", opts, nil)

	assert.NoError(t, err)
	assert.Empty(t, mentions)
}

func TestRunDeterministicAcrossRuns(t *testing.T) {
	notes, idx := notesWithMarkers(23)

	opts := chunker.DefaultOptions()
	opts.TargetChunkSize = 7
	opts.Concurrency = 4

	first, err := chunker.Run(context.Background(), notes, idx, "tenant-a", opts, nil)
	assert.NoError(t, err)
	second, err := chunker.Run(context.Background(), notes, idx, "tenant-a", opts, nil)
	assert.NoError(t, err)

	if diff := cmp.Diff(first, second, cmpopts.IgnoreFields(types.Mention{}, "CreatedAt")); diff != "" {
		t.Errorf("extraction output differs between identical runs (-first +second):\n%s", diff)
	}
}
