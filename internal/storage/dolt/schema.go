package dolt

// schemaStatements mirrors internal/storage/sqlite's schema, translated
// to the MySQL dialect Dolt speaks. Dolt table DDL is itself tracked by
// `dolt diff` once committed, the same as any other row change.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS patients (
		tenant_id    VARCHAR(128) NOT NULL,
		patient_id   VARCHAR(128) NOT NULL,
		display_name VARCHAR(255),
		demographics TEXT,
		PRIMARY KEY (tenant_id, patient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS notes (
		id              VARCHAR(128) NOT NULL,
		tenant_id       VARCHAR(128) NOT NULL,
		patient_id      VARCHAR(128) NOT NULL,
		date_of_service VARCHAR(64) NOT NULL,
		text            LONGTEXT NOT NULL,
		provider_id     VARCHAR(128),
		PRIMARY KEY (tenant_id, patient_id, date_of_service),
		INDEX idx_notes_tenant (tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS dictionary (
		tenant_id           VARCHAR(128) NOT NULL,
		symptom_id          VARCHAR(128) NOT NULL,
		segment             VARCHAR(512) NOT NULL,
		diagnosis           VARCHAR(255),
		diagnosis_code      VARCHAR(64),
		diagnostic_category VARCHAR(255),
		kind                VARCHAR(32) NOT NULL,
		hrsn_code           VARCHAR(32),
		hrsn_mapping        VARCHAR(64),
		PRIMARY KEY (tenant_id, symptom_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mentions (
		mention_id          VARCHAR(128) NOT NULL,
		tenant_id           VARCHAR(128) NOT NULL,
		patient_id          VARCHAR(128) NOT NULL,
		segment             VARCHAR(512) NOT NULL,
		date_of_service     VARCHAR(64) NOT NULL,
		position_in_text    INT NOT NULL,
		symptom_id          VARCHAR(128),
		diagnosis           VARCHAR(255),
		diagnosis_code      VARCHAR(64),
		diagnostic_category VARCHAR(255),
		kind                VARCHAR(32) NOT NULL,
		hrsn_code           VARCHAR(32),
		present             VARCHAR(8) NOT NULL DEFAULT 'Yes',
		detected            VARCHAR(8) NOT NULL DEFAULT 'Yes',
		validated           VARCHAR(8) NOT NULL DEFAULT 'Yes',
		housing_status        VARCHAR(32),
		food_status           VARCHAR(32),
		financial_status      VARCHAR(32),
		transportation_needs  VARCHAR(32),
		has_a_car             VARCHAR(32),
		utility_insecurity    VARCHAR(32),
		childcare_needs       VARCHAR(32),
		elder_care_needs      VARCHAR(32),
		employment_status     VARCHAR(32),
		education_needs       VARCHAR(32),
		legal_needs           VARCHAR(32),
		social_isolation      VARCHAR(32),
		created_at          VARCHAR(64) NOT NULL,
		PRIMARY KEY (tenant_id, patient_id, segment(255), date_of_service, position_in_text),
		INDEX idx_mentions_tenant (tenant_id),
		INDEX idx_mentions_patient (tenant_id, patient_id)
	)`,
	`CREATE TABLE IF NOT EXISTS process_status (
		tenant_id       VARCHAR(128) NOT NULL,
		process_type    VARCHAR(64) NOT NULL,
		state           VARCHAR(32) NOT NULL,
		percentage      DOUBLE NOT NULL DEFAULT 0,
		message         VARCHAR(1024),
		stage           VARCHAR(128),
		total_items     INT,
		processed_items INT,
		last_update     VARCHAR(64) NOT NULL,
		start_time      VARCHAR(64),
		end_time        VARCHAR(64),
		error           TEXT,
		PRIMARY KEY (tenant_id, process_type)
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		job_id      VARCHAR(128) NOT NULL,
		tenant_id   VARCHAR(128) NOT NULL,
		kind        VARCHAR(32) NOT NULL,
		state       VARCHAR(32) NOT NULL,
		started_at  VARCHAR(64),
		ended_at    VARCHAR(64),
		processed   INT NOT NULL DEFAULT 0,
		total       INT NOT NULL DEFAULT 0,
		rate        DOUBLE NOT NULL DEFAULT 0,
		eta_sec     DOUBLE NOT NULL DEFAULT 0,
		percentage  DOUBLE NOT NULL DEFAULT 0,
		error       TEXT,
		PRIMARY KEY (job_id),
		INDEX idx_jobs_tenant (tenant_id, started_at)
	)`,
	`CREATE TABLE IF NOT EXISTS upload_tracking (
		upload_id         VARCHAR(128) NOT NULL,
		tenant_id         VARCHAR(128) NOT NULL,
		file_name         VARCHAR(512) NOT NULL,
		processed_records INT NOT NULL,
		new_patients      INT NOT NULL,
		new_notes         INT NOT NULL,
		duration_ms       BIGINT NOT NULL,
		created_at        VARCHAR(64) NOT NULL,
		PRIMARY KEY (upload_id)
	)`,
}
