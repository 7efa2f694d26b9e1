package node

import (
	"context"
	"strings"

	"github.com/dbgen-run/dbgen/internal/hashid"
	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// RecordIterator is a finite, restartable sequence of records (§3 Extract,
// §6 Extractor protocol). Source implements Extractor.Extract by
// returning one of these; calling Extract again must yield an equivalent
// iterator ("restartable... modulo source mutation").
type RecordIterator interface {
	Next(ctx context.Context) (Record, bool, error)
	Close() error
}

// Extractor is the user-supplied protocol behind an Extract node (§6):
// setup/extract/length/teardown, all scoped to a single Connection.
type Extractor interface {
	Setup(ctx context.Context, conn sqlconn.Connection) error
	Extract(ctx context.Context, conn sqlconn.Connection) (RecordIterator, error)
	// Length returns a best-effort row count and whether it is known.
	Length(ctx context.Context, conn sqlconn.Connection) (int, bool)
	Teardown() error
}

// Extract is the unique no-input node of a generator's graph: one record
// per iteration of Source (§3 Extract).
type Extract struct {
	label  string
	hash   string
	Source Extractor
}

// NewExtract builds an Extract node. label participates in the node hash
// (it must be stable across runs of the same generator; it is not shown to
// users) so that two Extracts with identical labels and the teacher's
// definition-not-instance rule hash identically.
func NewExtract(label string, source Extractor) (*Extract, error) {
	hash, err := hashid.NodeHash(KindExtract.String(), map[string]interface{}{"label": label})
	if err != nil {
		return nil, err
	}
	return &Extract{label: label, hash: hash, Source: source}, nil
}

func (e *Extract) Hash() string             { return e.hash }
func (e *Extract) Kind() Kind               { return KindExtract }
func (e *Extract) Inputs() map[string]Input { return nil }
func (e *Extract) Outputs() []string        { return []string{"record"} }

// Invoke is not used for Extract: the executor drives it through
// Setup/Extract/Teardown directly and seeds the namespace with each
// record under this node's hash (§4.5 step 3c). Invoke exists only to
// satisfy the Node interface uniformly.
func (e *Extract) Invoke(ns Namespace) (Record, error) {
	return ns[e.hash], nil
}

// BaseQuery is an Extractor backed by a single pre-rendered SQL string,
// executed once per Setup/Extract cycle against the supplied connection
// (§4.2 "A BaseQuery subtype carries the SQL string and executes it on
// connection").
type BaseQuery struct {
	SQL string
}

func (q *BaseQuery) Setup(context.Context, sqlconn.Connection) error { return nil }

func (q *BaseQuery) Extract(ctx context.Context, conn sqlconn.Connection) (RecordIterator, error) {
	rows, err := conn.Query(ctx, q.SQL)
	if err != nil {
		return nil, err
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	return &queryIterator{rows: rows, cols: cols}, nil
}

func (q *BaseQuery) Length(ctx context.Context, conn sqlconn.Connection) (int, bool) {
	return 0, false // best-effort; BaseQuery does not run a COUNT(*) by default
}

func (q *BaseQuery) Teardown() error { return nil }

// NewBaseQuerySelect builds a BaseQuery's SQL from a FROM clause and a list
// of qualified column references, so a multi-table extract can name its
// columns as PathAttrs ("orders.id", "customers.email") instead of a
// hand-quoted SELECT list. where, if non-empty, is appended verbatim after
// WHERE.
func NewBaseQuerySelect(from string, columns []PathAttr, where string) *BaseQuery {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.String()
	}
	sql := "SELECT " + strings.Join(names, ", ") + " FROM " + from
	if where != "" {
		sql += " WHERE " + where
	}
	return &BaseQuery{SQL: sql}
}

type queryIterator struct {
	rows sqlconn.Rows
	cols []string
}

func (it *queryIterator) Next(context.Context) (Record, bool, error) {
	if !it.rows.Next() {
		return nil, false, it.rows.Err()
	}
	dest := make([]interface{}, len(it.cols))
	ptrs := make([]interface{}, len(it.cols))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, false, err
	}
	rec := make(Record, len(it.cols))
	for i, c := range it.cols {
		rec[c] = dest[i]
	}
	return rec, true, nil
}

func (it *queryIterator) Close() error {
	it.rows.Close()
	return nil
}

// SliceExtractor is a restartable Extractor over an in-memory slice of
// records, used heavily in tests and by generators whose input is
// computed rather than queried.
type SliceExtractor struct {
	Records []Record
}

func (s *SliceExtractor) Setup(context.Context, sqlconn.Connection) error { return nil }

func (s *SliceExtractor) Extract(context.Context, sqlconn.Connection) (RecordIterator, error) {
	return &sliceIterator{records: s.Records}, nil
}

func (s *SliceExtractor) Length(context.Context, sqlconn.Connection) (int, bool) {
	return len(s.Records), true
}

func (s *SliceExtractor) Teardown() error { return nil }

type sliceIterator struct {
	records []Record
	pos     int
}

func (it *sliceIterator) Next(context.Context) (Record, bool, error) {
	if it.pos >= len(it.records) {
		return nil, false, nil
	}
	rec := it.records[it.pos]
	it.pos++
	return rec, true, nil
}

func (it *sliceIterator) Close() error { return nil }
