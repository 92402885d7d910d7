// Package dictionary implements the symptom dictionary loader:
// resolving a tenant's symptom dictionary from the persistent store or
// a seed CSV, reconciling duplicates and id collisions, and persisting
// the reconciled set back for idempotent future loads.
package dictionary

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// Store is the subset of storage.Store the loader depends on.
type Store interface {
	LoadDictionary(ctx context.Context, tenantID string) ([]*types.DictionaryEntry, error)
	UpsertDictionary(ctx context.Context, entries []*types.DictionaryEntry) (storage.BatchResult, error)
}

// Load resolves a tenant's dictionary. If the store already holds
// entries for the tenant they are returned as-is (already reconciled by
// construction). Otherwise seedPath is parsed, reconciled, persisted,
// and returned.
func Load(ctx context.Context, store Store, tenantID, seedPath string) ([]*types.DictionaryEntry, error) {
	existing, err := store.LoadDictionary(ctx, tenantID)
	if err == nil && len(existing) > 0 {
		return existing, nil
	}
	if err != nil && !storage.IsNotFound(err) {
		return nil, fmt.Errorf("dictionary: query store: %w", err)
	}

	seeded, err := loadSeed(seedPath, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrDictionaryUnavailable, err)
	}

	reconciled := Reconcile(seeded)

	if _, err := store.UpsertDictionary(ctx, reconciled); err != nil {
		return nil, fmt.Errorf("dictionary: persist reconciled set: %w", err)
	}
	return reconciled, nil
}

// Reconcile drops empty/blank segments (removed at load time so the
// pattern index never contains them), drops
// exact duplicates, and resolves symptom_id collisions by keeping the
// first occurrence under the original id and renaming subsequent
// colliding entries to "{original}_{n}", the first unused suffix
// starting at n=1. Input order is preserved for the
// surviving entries.
func Reconcile(entries []*types.DictionaryEntry) []*types.DictionaryEntry {
	seenExact := make(map[any]bool)
	idUsed := make(map[string]bool)
	suffixCounter := make(map[string]int)

	reconciled := make([]*types.DictionaryEntry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Segment) == "" {
			continue
		}
		key := e.DedupeKey()
		if seenExact[key] {
			continue
		}
		seenExact[key] = true

		if idUsed[e.SymptomID] {
			original := e.SymptomID
			var candidate string
			for {
				suffixCounter[original]++
				candidate = fmt.Sprintf("%s_%d", original, suffixCounter[original])
				if !idUsed[candidate] {
					break
				}
			}
			clone := *e
			clone.SymptomID = candidate
			e = &clone
		}
		idUsed[e.SymptomID] = true
		reconciled = append(reconciled, e)
	}
	return reconciled
}

// loadSeed parses the seed CSV: symptom_id, segment,
// diagnosis, diagnostic_category, kind, hrsn_code, hrsn_mapping?.
func loadSeed(path, tenantID string) ([]*types.DictionaryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read seed header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(strings.ToLower(h))] = i
	}
	for _, required := range []string{"symptom_id", "segment", "diagnosis", "diagnostic_category", "kind", "hrsn_code"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("seed file missing required column %q", required)
		}
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []*types.DictionaryEntry
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read seed row: %w", err)
		}
		entries = append(entries, &types.DictionaryEntry{
			TenantID:           tenantID,
			SymptomID:          field(row, "symptom_id"),
			Segment:            field(row, "segment"),
			Diagnosis:          field(row, "diagnosis"),
			DiagnosisCode:      field(row, "diagnosis_code"),
			DiagnosticCategory: field(row, "diagnostic_category"),
			Kind:               types.EntryKind(field(row, "kind")),
			HRSNCode:           field(row, "hrsn_code"),
			HRSNMapping:        types.HRSNMapping(field(row, "hrsn_mapping")),
		})
	}
	return entries, nil
}
