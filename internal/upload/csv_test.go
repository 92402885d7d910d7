package upload_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/clinotect/noteengine/internal/upload"
)

func TestParseFoldsRowsWithSamePatientIDIntoOnePatient(t *testing.T) {
	csv := "patient_id,date_of_service,text\n" +
		"p1,2026-01-01T00:00:00Z,first note\n" +
		"p1,2026-01-02T00:00:00Z,second note\n" +
		"p2,2026-01-03T00:00:00Z,third note\n"

	res, err := upload.Parse(strings.NewReader(csv), "tenant-a", 3, nil)

	assert.NoError(t, err)
	assert.Len(t, res.Patients, 2)
	assert.Len(t, res.Notes, 3)
	assert.Equal(t, 2, res.NewPatients)
	assert.Equal(t, 3, res.NewNotes)
	assert.Equal(t, 3, res.ProcessedRecords)
}

func TestParseSkipsRowsWithUnparseableDate(t *testing.T) {
	csv := "patient_id,date_of_service,text\n" +
		"p1,not-a-date,first note\n" +
		"p1,2026-01-02T00:00:00Z,second note\n"

	res, err := upload.Parse(strings.NewReader(csv), "tenant-a", 2, nil)

	assert.NoError(t, err)
	assert.Len(t, res.Notes, 1)
	assert.Equal(t, "second note", res.Notes[0].Text)
}

func TestParseSkipsRowsWithEmptyPatientID(t *testing.T) {
	csv := "patient_id,date_of_service,text\n" +
		",2026-01-01T00:00:00Z,orphaned\n" +
		"p1,2026-01-02T00:00:00Z,kept\n"

	res, err := upload.Parse(strings.NewReader(csv), "tenant-a", 2, nil)

	assert.NoError(t, err)
	assert.Len(t, res.Notes, 1)
	assert.Equal(t, "kept", res.Notes[0].Text)
}

func TestParseMissingRequiredColumnFails(t *testing.T) {
	csv := "patient_id,text\np1,hello\n"

	_, err := upload.Parse(strings.NewReader(csv), "tenant-a", 1, nil)

	assert.Error(t, err)
}

func TestParseInvokesProgressCallbackPerRow(t *testing.T) {
	csv := "patient_id,date_of_service,text\n" +
		"p1,2026-01-01T00:00:00Z,a\n" +
		"p1,2026-01-02T00:00:00Z,b\n"

	var calls [][2]int
	_, err := upload.Parse(strings.NewReader(csv), "tenant-a", 2, func(processed, total int) {
		calls = append(calls, [2]int{processed, total})
	})

	assert.NoError(t, err)
	if assert.Len(t, calls, 2) {
		assert.Equal(t, [2]int{1, 2}, calls[0])
		assert.Equal(t, [2]int{2, 2}, calls[1])
	}
}

func TestParseAssignsUniqueNoteIDs(t *testing.T) {
	csv := "patient_id,date_of_service,text\n" +
		"p1,2026-01-01T00:00:00Z,a\n" +
		"p1,2026-01-02T00:00:00Z,b\n"

	res, err := upload.Parse(strings.NewReader(csv), "tenant-a", 2, nil)

	assert.NoError(t, err)
	if assert.Len(t, res.Notes, 2) {
		assert.NotEqual(t, res.Notes[0].ID, res.Notes[1].ID)
	}
}
