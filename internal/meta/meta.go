// Package meta persists run metadata (§4.6): the run, gen_run, repeats, and
// row_errors tables, lazily created in their own schema, plus the status
// transitions the runtime drives them through.
//
// Grounded on the teacher's storage-layer wrap-with-operation-context
// convention for sentinel errors, and on its in-memory store's lazy-init
// pattern for schema bootstrap, generalized here to Postgres DDL via
// internal/sqlconn's builder.
package meta

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// Status is a generator-run's lifecycle state (§3 Run metadata).
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Schema is the fixed schema meta-tables live in, distinct from any user
// schema (§4.6 "created lazily in a distinct schema").
const Schema = "dbgen_meta"

var ErrSchemaMissing = errors.New("dbgen/meta: meta-tables not present (pass nuke to create them)")

// Store wraps a Connection with the four meta-table operations the
// runtime needs.
type Store struct {
	conn sqlconn.Connection
}

func NewStore(conn sqlconn.Connection) *Store {
	return &Store{conn: conn}
}

// EnsureSchema checks the meta-tables exist (§4.6: "presence is checked at
// run start; if missing, fail unless nuke is requested"). Without nuke, a
// missing schema is a configuration error (ErrSchemaMissing, surfaced by
// internal/model as exit code 2) rather than something silently created;
// with nuke, the tables are dropped (if present) and recreated
// unconditionally.
func (s *Store) EnsureSchema(ctx context.Context, nuke bool) error {
	if !nuke {
		exists, err := s.tableExists(ctx, "run")
		if err != nil {
			return fmt.Errorf("meta: check schema: %w", err)
		}
		if !exists {
			return ErrSchemaMissing
		}
		return nil
	}

	for _, t := range []string{"row_errors", "repeats", "gen_run", "run"} {
		if _, err := s.conn.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s."%s" CASCADE`, Schema, t)); err != nil {
			return fmt.Errorf("meta: drop %s: %w", t, err)
		}
	}

	if _, err := s.conn.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, sqlconn.QuoteIdent(Schema))); err != nil {
		return fmt.Errorf("meta: create schema: %w", err)
	}

	stmts := []string{
		sqlconn.CreateTableIfNotExists(Schema, "run", []sqlconn.ColumnDef{
			{Name: "id", SQLType: "uuid"},
			{Name: "started_at", SQLType: "timestamptz"},
			{Name: "ended_at", SQLType: "timestamptz", Nullable: true},
			{Name: "status", SQLType: "text"},
			{Name: "include_csv", SQLType: "text", Nullable: true},
			{Name: "exclude_csv", SQLType: "text", Nullable: true},
			{Name: "start_gen", SQLType: "text", Nullable: true},
			{Name: "until_gen", SQLType: "text", Nullable: true},
		}, "id"),
		sqlconn.CreateTableIfNotExists(Schema, "gen_run", []sqlconn.ColumnDef{
			{Name: "run_id", SQLType: "uuid"},
			{Name: "generator_id", SQLType: "text"},
			{Name: "status", SQLType: "text"},
			{Name: "runtime", SQLType: "double precision", Nullable: true},
			{Name: "rate", SQLType: "double precision", Nullable: true},
			{Name: "n_inputs", SQLType: "bigint", Nullable: true},
			{Name: "error", SQLType: "text", Nullable: true},
		}, ""),
		sqlconn.CreateTableIfNotExists(Schema, "repeats", []sqlconn.ColumnDef{
			{Name: "generator_id", SQLType: "text"},
			{Name: "input_hash", SQLType: "text"},
			{Name: "run_id", SQLType: "uuid"},
		}, `"generator_id", "input_hash"`),
		sqlconn.CreateTableIfNotExists(Schema, "row_errors", []sqlconn.ColumnDef{
			{Name: "run_id", SQLType: "uuid"},
			{Name: "generator_id", SQLType: "text"},
			{Name: "input_hash", SQLType: "text"},
			{Name: "traceback", SQLType: "text"},
			{Name: "created_at", SQLType: "timestamptz"},
		}, ""),
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("meta: create table: %w", err)
		}
	}
	return nil
}

// tableExists probes information_schema for a table in Schema, the cheap
// presence check EnsureSchema uses instead of blindly issuing CREATE TABLE
// IF NOT EXISTS.
func (s *Store) tableExists(ctx context.Context, table string) (bool, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT 1 FROM information_schema.tables WHERE table_schema=$1 AND table_name=$2`,
		Schema, table)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// StartRun inserts a new run row with id runID in status running.
func (s *Store) StartRun(ctx context.Context, runID uuid.UUID, include, exclude []string, start, until string) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s."run" (id, started_at, status, include_csv, exclude_csv, start_gen, until_gen)
		              VALUES ($1, $2, $3, $4, $5, $6, $7)`, Schema),
		runID, time.Now(), string(StatusRunning), csv(include), csv(exclude), start, until)
	return err
}

// FinishRun transitions the run row to status and records its end time.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, status Status) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`UPDATE %s."run" SET status=$1, ended_at=$2 WHERE id=$3`, Schema),
		string(status), time.Now(), runID)
	return err
}

// GenRunStarted inserts a gen_run row in status running.
func (s *Store) GenRunStarted(ctx context.Context, runID uuid.UUID, generatorID string) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s."gen_run" (run_id, generator_id, status) VALUES ($1, $2, $3)`, Schema),
		runID, generatorID, string(StatusRunning))
	return err
}

// GenRunFinished records the final status, row count, runtime and
// optionally an error message for a generator-run (§4.5 step 5).
func (s *Store) GenRunFinished(ctx context.Context, runID uuid.UUID, generatorID string, status Status, nInputs int64, runtime time.Duration, errMsg string) error {
	seconds := runtime.Seconds()
	rate := 0.0
	if seconds > 0 {
		rate = float64(nInputs) / seconds
	}
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`UPDATE %s."gen_run" SET status=$1, runtime=$2, rate=$3, n_inputs=$4, error=$5
		              WHERE run_id=$6 AND generator_id=$7`, Schema),
		string(status), seconds, rate, nInputs, nullIfEmpty(errMsg), runID, generatorID)
	return err
}

// GenRunSkipped records a generator-run as skipped without ever entering
// running (§4.4 exclude semantics).
func (s *Store) GenRunSkipped(ctx context.Context, runID uuid.UUID, generatorID string) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s."gen_run" (run_id, generator_id, status) VALUES ($1, $2, $3)`, Schema),
		runID, generatorID, string(StatusSkipped))
	return err
}

// HasRepeat reports whether (generatorID, inputHash) has already been
// recorded as processed (§4.5 step 3b).
func (s *Store) HasRepeat(ctx context.Context, generatorID, inputHash string) (bool, error) {
	rows, err := s.conn.Query(ctx,
		fmt.Sprintf(`SELECT 1 FROM %s."repeats" WHERE generator_id=$1 AND input_hash=$2`, Schema),
		generatorID, inputHash)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

// RecordRepeat marks (generatorID, inputHash) processed, idempotent on
// conflict (§4.5 step 3f).
func (s *Store) RecordRepeat(ctx context.Context, generatorID, inputHash string, runID uuid.UUID) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s."repeats" (generator_id, input_hash, run_id) VALUES ($1, $2, $3)
		              ON CONFLICT (generator_id, input_hash) DO NOTHING`, Schema),
		generatorID, inputHash, runID)
	return err
}

// RecordRowError logs a per-row ExternalError (§7 Row errors).
func (s *Store) RecordRowError(ctx context.Context, runID uuid.UUID, generatorID, inputHash, traceback string) error {
	_, err := s.conn.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s."row_errors" (run_id, generator_id, input_hash, traceback, created_at)
		              VALUES ($1, $2, $3, $4, $5)`, Schema),
		runID, generatorID, inputHash, traceback, time.Now())
	return err
}

func csv(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ","
		}
		out += n
	}
	return out
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
