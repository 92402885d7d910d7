package idgen

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// mentionIDLength is the base36 digest length used for mention_id, wide
// enough that collisions across a tenant's mention volume are not a
// practical concern.
const mentionIDLength = 12

// StableID derives a deterministic mention_id from a Mention's
// uniqueness key. It never mixes in a timestamp or nonce: the same
// occurrence must hash to the same id on every extraction run, or
// idempotent re-runs would persist duplicate ids for one logical row.
func StableID(tenantID, patientID, segment string, dateOfService time.Time, position int) string {
	content := fmt.Sprintf("%s|%s|%s|%s|%d", tenantID, patientID, segment, dateOfService.UTC().Format(time.RFC3339), position)
	hash := sha256.Sum256([]byte(content))
	return "mtn-" + EncodeBase36(hash[:8], mentionIDLength)
}
