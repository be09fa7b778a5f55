package dbpool

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/agentsql/bridge/pkg/models"
)

// LookupStaff resolves one row from the read-only staff allow-list table by
// lowercase email, satisfying both acl.StaffLookup and auth.StaffLookup.
// Staff records are external and read-only: the core never writes this
// table, it only ever selects from it through the same bounded read-only
// path the SQL tools use.
func (p *Pool) LookupStaff(ctx context.Context, email string) (*models.StaffRecord, error) {
	normalized := models.NormalizeEmail(email)

	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	tx, err := p.db.BeginTx(acquireCtx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("dbpool: begin staff lookup: %w", err)
	}
	defer tx.Rollback()

	var record models.StaffRecord
	var acls pq.StringArray
	row := tx.QueryRowContext(ctx,
		`SELECT email, active, acls FROM staff WHERE email = $1`, normalized)
	if err := row.Scan(&record.Email, &record.Active, &acls); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("dbpool: scan staff record: %w", err)
	}
	record.ACLs = []string(acls)

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("dbpool: commit staff lookup: %w", err)
	}
	return &record, nil
}
