// Package sqlconn defines the Connection capability that every other
// package treats as an external collaborator (§1: "the database driver
// itself (a Connection capability is assumed)"). It also supplies the
// concrete PostgreSQL-compatible wiring (pgx/v5) and a minimal SQL builder
// for the handful of statements dbgen needs to emit itself (temp-table
// COPY + upsert, meta-table DDL): callers are otherwise expected to pass
// pre-rendered SQL, per §1's template-renderer non-goal.
package sqlconn

import "context"

// Rows is the subset of database/sql-shaped row iteration dbgen needs.
// Implementations wrap a driver-specific result set (pgx.Rows in the
// reference wiring).
type Rows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Columns() ([]string, error)
	Close()
	Err() error
}

// Connection is the capability every Extract, Load-flush, and meta-table
// operation is written against. §1 treats the driver as external; this
// interface is the seam a caller plugs a real driver into.
type Connection interface {
	Query(ctx context.Context, sql string, args ...interface{}) (Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (int64, error)
	// CopyFrom bulk-loads rows into schema.table's named columns using the
	// driver's native COPY protocol (§4.5 step 4, §6 bulk-load wire format).
	CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]interface{}) (int64, error)
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a Connection scoped to a single transaction.
type Tx interface {
	Connection
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Pool hands out Connections, one per row-worker or meta-writer, and is
// closed once by whoever created it (§5 Connection pools).
type Pool interface {
	Acquire(ctx context.Context) (Connection, func(), error)
	Close()
}
