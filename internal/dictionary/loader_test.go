package dictionary_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/dictionary"
	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

type fakeStore struct {
	existing  []*types.DictionaryEntry
	loadErr   error
	persisted []*types.DictionaryEntry
	upsertErr error
}

func (f *fakeStore) LoadDictionary(ctx context.Context, tenantID string) ([]*types.DictionaryEntry, error) {
	return f.existing, f.loadErr
}

func (f *fakeStore) UpsertDictionary(ctx context.Context, entries []*types.DictionaryEntry) (storage.BatchResult, error) {
	if f.upsertErr != nil {
		return storage.BatchResult{}, f.upsertErr
	}
	f.persisted = entries
	return storage.BatchResult{Inserted: len(entries)}, nil
}

func writeSeed(t *testing.T, rows string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "seed.csv")
	assert.NoError(t, os.WriteFile(path, []byte(rows), 0o644))
	return path
}

const seedHeader = "symptom_id,segment,diagnosis,diagnostic_category,kind,hrsn_code,hrsn_mapping\n"

func TestLoadReturnsExistingStoreEntriesWithoutTouchingSeed(t *testing.T) {
	store := &fakeStore{existing: []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Kind: types.KindSymptom},
	}}

	entries, err := dictionary.Load(context.Background(), store, "tenant-a", "/does/not/exist.csv")

	assert.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLoadFallsBackToSeedWhenStoreEmpty(t *testing.T) {
	store := &fakeStore{existing: nil, loadErr: storage.ErrNotFound}
	path := writeSeed(t, seedHeader+"s1,chest pain,Angina,Cardiac,Symptom,None,\n")

	entries, err := dictionary.Load(context.Background(), store, "tenant-a", path)

	assert.NoError(t, err)
	if assert.Len(t, entries, 1) {
		assert.Equal(t, "s1", entries[0].SymptomID)
	}
	assert.Equal(t, entries, store.persisted)
}

func TestLoadReturnsDictionaryUnavailableWhenSeedMissing(t *testing.T) {
	store := &fakeStore{existing: nil, loadErr: storage.ErrNotFound}

	_, err := dictionary.Load(context.Background(), store, "tenant-a", "/does/not/exist.csv")

	assert.ErrorIs(t, err, storage.ErrDictionaryUnavailable)
}

func TestLoadPropagatesNonNotFoundStoreErrors(t *testing.T) {
	store := &fakeStore{loadErr: assert.AnError}

	_, err := dictionary.Load(context.Background(), store, "tenant-a", "/irrelevant.csv")

	assert.Error(t, err)
	assert.NotErrorIs(t, err, storage.ErrDictionaryUnavailable)
}

func TestReconcileDropsExactDuplicates(t *testing.T) {
	entries := []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Diagnosis: "Angina", Kind: types.KindSymptom},
		{SymptomID: "s1", Segment: "chest pain", Diagnosis: "Angina", Kind: types.KindSymptom},
	}

	got := dictionary.Reconcile(entries)

	assert.Len(t, got, 1)
	assert.Equal(t, "s1", got[0].SymptomID)
}

func TestReconcileKeepsDistinctIDsWithIdenticalAttributes(t *testing.T) {
	entries := []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Diagnosis: "Angina", Kind: types.KindSymptom},
		{SymptomID: "s2", Segment: "chest pain", Diagnosis: "Angina", Kind: types.KindSymptom},
	}

	got := dictionary.Reconcile(entries)

	if assert.Len(t, got, 2) {
		assert.Equal(t, "s1", got[0].SymptomID)
		assert.Equal(t, "s2", got[1].SymptomID)
	}
}

func TestReconcileResolvesSymptomIDCollisionBySuffixing(t *testing.T) {
	entries := []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Kind: types.KindSymptom},
		{SymptomID: "s1", Segment: "shortness of breath", Kind: types.KindSymptom},
		{SymptomID: "s1", Segment: "dizziness", Kind: types.KindSymptom},
	}

	got := dictionary.Reconcile(entries)

	if assert.Len(t, got, 3) {
		assert.Equal(t, "s1", got[0].SymptomID)
		assert.Equal(t, "s1_1", got[1].SymptomID)
		assert.Equal(t, "s1_2", got[2].SymptomID)
	}
}

func TestReconcileSkipsAlreadyUsedSuffixCandidates(t *testing.T) {
	entries := []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "a", Kind: types.KindSymptom},
		{SymptomID: "s1_1", Segment: "b", Kind: types.KindSymptom},
		{SymptomID: "s1", Segment: "c", Kind: types.KindSymptom},
	}

	got := dictionary.Reconcile(entries)

	if assert.Len(t, got, 3) {
		ids := map[string]bool{}
		for _, e := range got {
			assert.False(t, ids[e.SymptomID], "duplicate id %q produced", e.SymptomID)
			ids[e.SymptomID] = true
		}
		assert.Equal(t, "s1_2", got[2].SymptomID)
	}
}

func TestReconcileDropsBlankSegments(t *testing.T) {
	entries := []*types.DictionaryEntry{
		{SymptomID: "s1", Segment: "chest pain", Kind: types.KindSymptom},
		{SymptomID: "s2", Segment: "   ", Kind: types.KindSymptom},
		{SymptomID: "s3", Segment: "", Kind: types.KindSymptom},
	}

	got := dictionary.Reconcile(entries)

	if assert.Len(t, got, 1) {
		assert.Equal(t, "s1", got[0].SymptomID)
	}
}

func TestLoadSeedMissingRequiredColumnFails(t *testing.T) {
	store := &fakeStore{loadErr: storage.ErrNotFound}
	path := writeSeed(t, "symptom_id,segment\ns1,chest pain\n")

	_, err := dictionary.Load(context.Background(), store, "tenant-a", path)

	assert.ErrorIs(t, err, storage.ErrDictionaryUnavailable)
}
