package dolt

import "context"

// PurgeTenant implements storage.Store, in the same load-bearing
// delete order as the sqlite backend.
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
