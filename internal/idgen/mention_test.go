package idgen_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/idgen"
)

var refDate = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

func TestStableIDDeterministic(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	assert.Equal(t, a, b)
}

func TestStableIDVariesByPosition(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 40)
	assert.NotEqual(t, a, b)
}

func TestStableIDVariesBySegment(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-a", "patient-1", "headache", refDate, 12)
	assert.NotEqual(t, a, b)
}

func TestStableIDVariesByDateOfService(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate.AddDate(0, 0, 1), 12)
	assert.NotEqual(t, a, b)
}

func TestStableIDVariesByPatient(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-a", "patient-2", "chest pain", refDate, 12)
	assert.NotEqual(t, a, b)
}

func TestStableIDVariesByTenant(t *testing.T) {
	a := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	b := idgen.StableID("tenant-b", "patient-1", "chest pain", refDate, 12)
	assert.NotEqual(t, a, b)
}

func TestStableIDHasMentionPrefix(t *testing.T) {
	id := idgen.StableID("tenant-a", "patient-1", "chest pain", refDate, 12)
	assert.Contains(t, id, "mtn-")
	assert.True(t, len(id) > len("mtn-"))
}
