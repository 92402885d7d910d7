// Package types defines the canonical data model shared by every
// component of the extraction pipeline. All gateway inputs use these
// shapes; legacy field-name variants are reconciled at ingress, never
// propagated into the core.
package types

import "time"

// Demographics holds the optional social/clinical attributes attached
// to a patient. All fields are advisory and may be empty.
type Demographics struct {
	AgeBucket     string `json:"age_bucket,omitempty"`
	Gender        string `json:"gender,omitempty"`
	Race          string `json:"race,omitempty"`
	Ethnicity     string `json:"ethnicity,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Education     string `json:"education,omitempty"`
	VeteranStatus string `json:"veteran_status,omitempty"`
}

// Patient is immutable once inserted for a given tenant. On conflict
// (tenant_id, patient_id), the insert is skipped.
type Patient struct {
	TenantID     string       `json:"tenant_id"`
	PatientID    string       `json:"patient_id"`
	DisplayName  string       `json:"display_name,omitempty"`
	Demographics Demographics `json:"demographics,omitempty"`
}

// Note is a single clinical note. Uniqueness is (tenant_id, patient_id,
// date_of_service); on conflict the insert is skipped.
type Note struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	PatientID     string    `json:"patient_id"`
	DateOfService time.Time `json:"date_of_service"`
	Text          string    `json:"text"`
	ProviderID    string    `json:"provider_id,omitempty"`
}

// EntryKind distinguishes a clinical symptom entry from a Health-Related
// Social Need (HRSN) entry in the symptom master dictionary.
type EntryKind string

const (
	KindSymptom EntryKind = "Symptom"
	KindProblem EntryKind = "Problem"
)

// HRSNMapping enumerates the twelve HRSN categories a Problem-kind
// dictionary entry may map to.
type HRSNMapping string

const (
	HRSNHousingStatus       HRSNMapping = "housing_status"
	HRSNFoodStatus          HRSNMapping = "food_status"
	HRSNFinancialStatus     HRSNMapping = "financial_status"
	HRSNTransportationNeeds HRSNMapping = "transportation_needs"
	HRSNHasACar             HRSNMapping = "has_a_car"
	HRSNUtilityInsecurity   HRSNMapping = "utility_insecurity"
	HRSNChildcareNeeds      HRSNMapping = "childcare_needs"
	HRSNElderCareNeeds      HRSNMapping = "elder_care_needs"
	HRSNEmploymentStatus    HRSNMapping = "employment_status"
	HRSNEducationNeeds      HRSNMapping = "education_needs"
	HRSNLegalNeeds          HRSNMapping = "legal_needs"
	HRSNSocialIsolation     HRSNMapping = "social_isolation"
)

// AllHRSNMappings lists every recognized mapping, in the same order as
// the HRSNFlags fields.
var AllHRSNMappings = []HRSNMapping{
	HRSNHousingStatus, HRSNFoodStatus, HRSNFinancialStatus,
	HRSNTransportationNeeds, HRSNHasACar, HRSNUtilityInsecurity,
	HRSNChildcareNeeds, HRSNElderCareNeeds, HRSNEmploymentStatus,
	HRSNEducationNeeds, HRSNLegalNeeds, HRSNSocialIsolation,
}

// HRSNProblemIdentified is the sentinel value set on the single matching
// HRSN flag of a Problem-kind mention.
const HRSNProblemIdentified = "Problem Identified"

// HRSNCodeZCode is set on mentions derived from a Problem-kind entry.
const HRSNCodeZCode = "ZCode/HRSN"

// HRSNCodeNone is set on mentions derived from a Symptom-kind entry.
const HRSNCodeNone = "No"

// DictionaryEntry is a single row of the symptom master. SymptomID is
// unique within a tenant's dictionary after load-time reconciliation
// (see internal/dictionary).
type DictionaryEntry struct {
	TenantID           string      `json:"tenant_id"`
	SymptomID          string      `json:"symptom_id"`
	Segment            string      `json:"segment"`
	Diagnosis          string      `json:"diagnosis,omitempty"`
	DiagnosisCode      string      `json:"diagnosis_code,omitempty"`
	DiagnosticCategory string      `json:"diagnostic_category,omitempty"`
	Kind               EntryKind   `json:"kind"`
	HRSNCode           string      `json:"hrsn_code,omitempty"`
	HRSNMapping        HRSNMapping `json:"hrsn_mapping,omitempty"`
}

// dedupeKey is the structural value used to detect exact duplicates
// during dictionary reconciliation (see internal/dictionary). It holds
// every attribute except TenantID: two rows are an exact duplicate
// only when symptom_id and all remaining attributes agree. Rows that
// share an id but differ elsewhere are an id collision, not a
// duplicate.
type dedupeKey struct {
	SymptomID          string
	Segment            string
	Diagnosis          string
	DiagnosisCode      string
	DiagnosticCategory string
	Kind               EntryKind
	HRSNCode           string
	HRSNMapping        HRSNMapping
}

// DedupeKey returns the structural equality key used for exact-duplicate
// detection during dictionary reconciliation.
func (e DictionaryEntry) DedupeKey() dedupeKey {
	return dedupeKey{
		SymptomID:          e.SymptomID,
		Segment:            e.Segment,
		Diagnosis:          e.Diagnosis,
		DiagnosisCode:      e.DiagnosisCode,
		DiagnosticCategory: e.DiagnosticCategory,
		Kind:               e.Kind,
		HRSNCode:           e.HRSNCode,
		HRSNMapping:        e.HRSNMapping,
	}
}

// HRSNFlags holds the twelve nullable HRSN indicator columns. At most
// one is non-empty, and only when Kind == KindProblem.
type HRSNFlags struct {
	HousingStatus       string `json:"housing_status,omitempty"`
	FoodStatus          string `json:"food_status,omitempty"`
	FinancialStatus     string `json:"financial_status,omitempty"`
	TransportationNeeds string `json:"transportation_needs,omitempty"`
	HasACar             string `json:"has_a_car,omitempty"`
	UtilityInsecurity   string `json:"utility_insecurity,omitempty"`
	ChildcareNeeds      string `json:"childcare_needs,omitempty"`
	ElderCareNeeds      string `json:"elder_care_needs,omitempty"`
	EmploymentStatus    string `json:"employment_status,omitempty"`
	EducationNeeds      string `json:"education_needs,omitempty"`
	LegalNeeds          string `json:"legal_needs,omitempty"`
	SocialIsolation     string `json:"social_isolation,omitempty"`
}

// Set assigns HRSNProblemIdentified to the field named by m. Unknown
// mappings are a no-op.
func (f *HRSNFlags) Set(m HRSNMapping) {
	switch m {
	case HRSNHousingStatus:
		f.HousingStatus = HRSNProblemIdentified
	case HRSNFoodStatus:
		f.FoodStatus = HRSNProblemIdentified
	case HRSNFinancialStatus:
		f.FinancialStatus = HRSNProblemIdentified
	case HRSNTransportationNeeds:
		f.TransportationNeeds = HRSNProblemIdentified
	case HRSNHasACar:
		f.HasACar = HRSNProblemIdentified
	case HRSNUtilityInsecurity:
		f.UtilityInsecurity = HRSNProblemIdentified
	case HRSNChildcareNeeds:
		f.ChildcareNeeds = HRSNProblemIdentified
	case HRSNElderCareNeeds:
		f.ElderCareNeeds = HRSNProblemIdentified
	case HRSNEmploymentStatus:
		f.EmploymentStatus = HRSNProblemIdentified
	case HRSNEducationNeeds:
		f.EducationNeeds = HRSNProblemIdentified
	case HRSNLegalNeeds:
		f.LegalNeeds = HRSNProblemIdentified
	case HRSNSocialIsolation:
		f.SocialIsolation = HRSNProblemIdentified
	}
}

// Mention is one detected occurrence of a dictionary segment in a note.
// Uniqueness is (tenant_id, patient_id, segment, date_of_service,
// position_in_text); on conflict the insert is skipped.
type Mention struct {
	MentionID          string    `json:"mention_id"`
	TenantID           string    `json:"tenant_id"`
	PatientID          string    `json:"patient_id"`
	DateOfService      time.Time `json:"date_of_service"`
	SymptomID          string    `json:"symptom_id"`
	Segment            string    `json:"segment"`
	Diagnosis          string    `json:"diagnosis,omitempty"`
	DiagnosisCode      string    `json:"diagnosis_code,omitempty"`
	DiagnosticCategory string    `json:"diagnostic_category,omitempty"`
	Kind               EntryKind `json:"kind"`
	HRSNCode           string    `json:"hrsn_code"`
	PositionInText     int       `json:"position_in_text"`
	Present            string    `json:"present"`
	Detected           string    `json:"detected"`
	Validated          string    `json:"validated"`
	HRSNFlags          HRSNFlags `json:"hrsn_flags"`
	CreatedAt          time.Time `json:"created_at"`
}

// Key returns the tuple that defines uniqueness for a Mention.
func (m Mention) Key() MentionKey {
	return MentionKey{
		TenantID:       m.TenantID,
		PatientID:      m.PatientID,
		Segment:        m.Segment,
		DateOfService:  m.DateOfService,
		PositionInText: m.PositionInText,
	}
}

// MentionKey is the composite uniqueness/idempotency key for a Mention.
type MentionKey struct {
	TenantID       string
	PatientID      string
	Segment        string
	DateOfService  time.Time
	PositionInText int
}

// JobKind distinguishes upload jobs from extraction jobs. Both share the
// same concurrency slot pool.
type JobKind string

const (
	JobUpload     JobKind = "upload"
	JobExtraction JobKind = "extraction"
)

// JobState is the lifecycle state of a Job. Legal transitions:
// queued -> running -> {completed, failed}; queued -> cancelled.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
	JobFailed    JobState = "failed"
	JobCancelled JobState = "cancelled"
)

// Progress is the progress snapshot embedded in a Job record.
type Progress struct {
	Processed  int     `json:"processed"`
	Total      int     `json:"total"`
	RatePerSec float64 `json:"rate_per_sec"`
	ETASec     float64 `json:"eta_sec"`
	Percentage float64 `json:"percentage"`
}

// Job is a single unit of background work tracked by the job manager.
type Job struct {
	ID        string     `json:"id"`
	TenantID  string     `json:"tenant_id"`
	Kind      JobKind    `json:"kind"`
	State     JobState   `json:"state"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
	Progress  Progress   `json:"progress"`
	Error     string     `json:"error,omitempty"`
}

// ProcessType identifies which pipeline stage a ProcessStatus row
// describes, e.g. "upload" or "extraction".
type ProcessType string

const (
	ProcessUpload     ProcessType = "upload"
	ProcessExtraction ProcessType = "extraction"
)

// ProcessStatus is the durable "latest known state" used by
// reconnecting clients to recover progress.
type ProcessStatus struct {
	TenantID       string      `json:"tenant_id"`
	ProcessType    ProcessType `json:"process_type"`
	State          string      `json:"state"`
	Percentage     float64     `json:"percentage"`
	Message        string      `json:"message"`
	Stage          string      `json:"stage"`
	TotalItems     *int        `json:"total_items,omitempty"`
	ProcessedItems *int        `json:"processed_items,omitempty"`
	LastUpdate     time.Time   `json:"last_update"`
	Start          *time.Time  `json:"start,omitempty"`
	End            *time.Time  `json:"end,omitempty"`
	Error          string      `json:"error,omitempty"`
}

// UploadTracking records the outcome of a single upload for recovery
// and reporting purposes.
type UploadTracking struct {
	UploadID         string        `json:"upload_id"`
	TenantID         string        `json:"tenant_id"`
	FileName         string        `json:"file_name"`
	ProcessedRecords int           `json:"processed_records"`
	NewPatients      int           `json:"new_patients"`
	NewNotes         int           `json:"new_notes"`
	Duration         time.Duration `json:"duration"`
	CreatedAt        time.Time     `json:"created_at"`
}
