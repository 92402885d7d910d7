package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinotect/noteengine/internal/storage"
	"github.com/clinotect/noteengine/internal/types"
)

// UpsertJob implements storage.Store.
func (s *Store) UpsertJob(ctx context.Context, job types.Job) error {
	return withRetry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO jobs (job_id, tenant_id, kind, state, started_at, ended_at, processed, total, rate, eta_sec, percentage, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (job_id) DO UPDATE SET
				state = excluded.state,
				started_at = excluded.started_at,
				ended_at = excluded.ended_at,
				processed = excluded.processed,
				total = excluded.total,
				rate = excluded.rate,
				eta_sec = excluded.eta_sec,
				percentage = excluded.percentage,
				error = excluded.error
		`,
			job.ID, job.TenantID, string(job.Kind), string(job.State),
			nullableTime(job.StartedAt), nullableTime(job.EndedAt),
			job.Progress.Processed, job.Progress.Total, job.Progress.RatePerSec, job.Progress.ETASec, job.Progress.Percentage,
			job.Error,
		)
		if err != nil {
			return fmt.Errorf("%w: %v", storage.ErrTransientStore, err)
		}
		return nil
	})
}

func scanJob(row interface{ Scan(...any) error }) (types.Job, error) {
	var j types.Job
	var startedAt, endedAt, errMsg sql.NullString
	var kind, state string
	err := row.Scan(&j.ID, &j.TenantID, &kind, &state, &startedAt, &endedAt,
		&j.Progress.Processed, &j.Progress.Total, &j.Progress.RatePerSec, &j.Progress.ETASec, &j.Progress.Percentage, &errMsg)
	if err != nil {
		return types.Job{}, err
	}
	j.Kind = types.JobKind(kind)
	j.State = types.JobState(state)
	j.Error = errMsg.String
	if startedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, startedAt.String); perr == nil {
			j.StartedAt = &t
		}
	}
	if endedAt.Valid {
		if t, perr := time.Parse(time.RFC3339, endedAt.String); perr == nil {
			j.EndedAt = &t
		}
	}
	return j, nil
}

const selectJobColumns = `job_id, tenant_id, kind, state, started_at, ended_at, processed, total, rate, eta_sec, percentage, error`

// GetJob implements storage.Store.
func (s *Store) GetJob(ctx context.Context, jobID string) (types.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectJobColumns+` FROM jobs WHERE job_id = ?`, jobID)
	job, err := scanJob(row)
	if err != nil {
		return types.Job{}, storage.WrapDBError("get job", err)
	}
	return job, nil
}

// ListJobsByTenant implements storage.Store.
func (s *Store) ListJobsByTenant(ctx context.Context, tenantID string) ([]types.Job, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+selectJobColumns+` FROM jobs WHERE tenant_id = ? ORDER BY started_at DESC
	`, tenantID)
	if err != nil {
		return nil, storage.WrapDBError("list jobs by tenant", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// DeleteJobsOlderThan implements storage.Store. Only completed, failed,
// or cancelled jobs are eligible; a running or queued job has no
// ended_at and is never purged regardless of age.
func (s *Store) DeleteJobsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM jobs WHERE ended_at IS NOT NULL AND ended_at < ?
	`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, storage.WrapDBError("delete old jobs", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
