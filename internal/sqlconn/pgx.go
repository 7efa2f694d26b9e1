package sqlconn

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxConn adapts a pgx connection-like object (a pooled connection or a
// transaction) to Connection.
type pgxConn struct {
	q       pgxQueryer
	beginer func(ctx context.Context) (pgx.Tx, error)
}

// pgxQueryer is satisfied by both *pgxpool.Conn and pgx.Tx, letting
// pgxConn wrap either a pooled connection or a transaction with the same
// code.
type pgxQueryer interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

func (c *pgxConn) Query(ctx context.Context, sql string, args ...interface{}) (Rows, error) {
	rows, err := c.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return &pgxRows{rows: rows}, nil
}

func (c *pgxConn) Exec(ctx context.Context, sql string, args ...interface{}) (int64, error) {
	tag, err := c.q.Exec(ctx, sql, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (c *pgxConn) CopyFrom(ctx context.Context, schema, table string, columns []string, rows [][]interface{}) (int64, error) {
	ident := pgx.Identifier{schema, table}
	if schema == "" {
		ident = pgx.Identifier{table}
	}
	return c.q.CopyFrom(ctx, ident, columns, pgx.CopyFromRows(rows))
}

var errNestedTransaction = errors.New("sqlconn: connection does not support nested transactions")

func (c *pgxConn) Begin(ctx context.Context) (Tx, error) {
	if c.beginer == nil {
		return nil, errNestedTransaction
	}
	tx, err := c.beginer(ctx)
	if err != nil {
		return nil, err
	}
	return &pgxTx{pgxConn: pgxConn{q: tx}, tx: tx}, nil
}

type pgxTx struct {
	pgxConn
	tx pgx.Tx
}

func (t *pgxTx) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *pgxTx) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool                      { return r.rows.Next() }
func (r *pgxRows) Scan(dest ...interface{}) error  { return r.rows.Scan(dest...) }
func (r *pgxRows) Err() error                      { return r.rows.Err() }
func (r *pgxRows) Close()                          { r.rows.Close() }
func (r *pgxRows) Columns() ([]string, error) {
	fields := r.rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names, nil
}

// PgxPool wraps a pgxpool.Pool as a Pool, acquiring one logical Connection
// per call and releasing its underlying pgx connection back to the pool on
// release (§5: "Connections are scoped-acquired per row and released on
// all exit paths").
type PgxPool struct {
	pool *pgxpool.Pool
}

// NewPgxPool dials dsn with poolSize connections, retrying the initial
// connection with exponential backoff (§7 Infrastructure errors: transient
// connection loss should not immediately fail a run).
func NewPgxPool(ctx context.Context, dsn string, poolSize int) (*PgxPool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = int32(poolSize)

	var pool *pgxpool.Pool
	operation := func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 30 * time.Second
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return &PgxPool{pool: pool}, nil
}

func (p *PgxPool) Acquire(ctx context.Context) (Connection, func(), error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	c := &pgxConn{
		q: conn,
		beginer: func(ctx context.Context) (pgx.Tx, error) {
			return conn.Begin(ctx)
		},
	}
	return c, conn.Release, nil
}

func (p *PgxPool) Close() { p.pool.Close() }
