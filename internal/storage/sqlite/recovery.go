package sqlite

import "context"

// PurgeTenant implements storage.Store. Deletes in the load-bearing
// order mentions -> notes ->
// patients -> upload_tracking -> process_status (then jobs and
// dictionary) so a crash mid-purge
// never leaves a child row pointing at an already-deleted parent.
func (s *Store) PurgeTenant(ctx context.Context, tenantID string) error {
	return withRetry(ctx, func() error {
		conn, err := s.conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		stmts := []string{
			`DELETE FROM mentions WHERE tenant_id = ?`,
			`DELETE FROM notes WHERE tenant_id = ?`,
			`DELETE FROM patients WHERE tenant_id = ?`,
			`DELETE FROM upload_tracking WHERE tenant_id = ?`,
			`DELETE FROM process_status WHERE tenant_id = ?`,
			`DELETE FROM jobs WHERE tenant_id = ?`,
			`DELETE FROM dictionary WHERE tenant_id = ?`,
		}
		for _, stmt := range stmts {
			if _, err := tx.ExecContext(ctx, stmt, tenantID); err != nil {
				return err
			}
		}
		return tx.Commit()
	})
}
