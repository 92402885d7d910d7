package sqlite

const schemaVersion = 1

const schemaSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER PRIMARY KEY,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS patients (
	tenant_id    TEXT NOT NULL,
	patient_id   TEXT NOT NULL,
	display_name TEXT,
	demographics TEXT,
	PRIMARY KEY (tenant_id, patient_id)
);

CREATE TABLE IF NOT EXISTS notes (
	id              TEXT NOT NULL,
	tenant_id       TEXT NOT NULL,
	patient_id      TEXT NOT NULL,
	date_of_service TEXT NOT NULL,
	text            TEXT NOT NULL,
	provider_id     TEXT,
	PRIMARY KEY (tenant_id, patient_id, date_of_service)
);
CREATE INDEX IF NOT EXISTS idx_notes_tenant ON notes (tenant_id);

CREATE TABLE IF NOT EXISTS dictionary (
	tenant_id           TEXT NOT NULL,
	symptom_id          TEXT NOT NULL,
	segment             TEXT NOT NULL,
	diagnosis           TEXT,
	diagnosis_code      TEXT,
	diagnostic_category TEXT,
	kind                TEXT NOT NULL,
	hrsn_code           TEXT,
	hrsn_mapping        TEXT,
	PRIMARY KEY (tenant_id, symptom_id)
);

CREATE TABLE IF NOT EXISTS mentions (
	mention_id          TEXT NOT NULL,
	tenant_id           TEXT NOT NULL,
	patient_id          TEXT NOT NULL,
	segment             TEXT NOT NULL,
	date_of_service     TEXT NOT NULL,
	position_in_text    INTEGER NOT NULL,
	symptom_id          TEXT,
	diagnosis           TEXT,
	diagnosis_code      TEXT,
	diagnostic_category TEXT,
	kind                TEXT NOT NULL,
	hrsn_code           TEXT,
	present             TEXT NOT NULL DEFAULT 'Yes',
	detected            TEXT NOT NULL DEFAULT 'Yes',
	validated           TEXT NOT NULL DEFAULT 'Yes',
	housing_status        TEXT,
	food_status           TEXT,
	financial_status      TEXT,
	transportation_needs  TEXT,
	has_a_car             TEXT,
	utility_insecurity    TEXT,
	childcare_needs       TEXT,
	elder_care_needs      TEXT,
	employment_status     TEXT,
	education_needs       TEXT,
	legal_needs           TEXT,
	social_isolation      TEXT,
	created_at          TEXT NOT NULL,
	PRIMARY KEY (tenant_id, patient_id, segment, date_of_service, position_in_text)
);
CREATE INDEX IF NOT EXISTS idx_mentions_tenant ON mentions (tenant_id);
CREATE INDEX IF NOT EXISTS idx_mentions_patient ON mentions (tenant_id, patient_id);

CREATE TABLE IF NOT EXISTS process_status (
	tenant_id      TEXT NOT NULL,
	process_type   TEXT NOT NULL,
	state          TEXT NOT NULL,
	percentage     REAL NOT NULL DEFAULT 0,
	message        TEXT,
	stage          TEXT,
	total_items    INTEGER,
	processed_items INTEGER,
	last_update    TEXT NOT NULL,
	start_time     TEXT,
	end_time       TEXT,
	error          TEXT,
	PRIMARY KEY (tenant_id, process_type)
);

CREATE TABLE IF NOT EXISTS jobs (
	job_id      TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	kind        TEXT NOT NULL,
	state       TEXT NOT NULL,
	started_at  TEXT,
	ended_at    TEXT,
	processed   INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL DEFAULT 0,
	rate        REAL NOT NULL DEFAULT 0,
	eta_sec     REAL NOT NULL DEFAULT 0,
	percentage  REAL NOT NULL DEFAULT 0,
	error       TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_tenant ON jobs (tenant_id, started_at);

CREATE TABLE IF NOT EXISTS upload_tracking (
	upload_id        TEXT PRIMARY KEY,
	tenant_id        TEXT NOT NULL,
	file_name        TEXT NOT NULL,
	processed_records INTEGER NOT NULL,
	new_patients     INTEGER NOT NULL,
	new_notes        INTEGER NOT NULL,
	duration_ms      INTEGER NOT NULL,
	created_at       TEXT NOT NULL
);
`
