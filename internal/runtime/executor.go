package runtime

import (
	"context"
	"errors"
	"fmt"
	goruntime "runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/hashid"
	"github.com/dbgen-run/dbgen/internal/meta"
	"github.com/dbgen-run/dbgen/internal/node"
	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// Options tunes one generator's run (§4.5 inputs).
type Options struct {
	Retry     bool
	Serial    bool
	Progress  bool
	WorkerCap int
	// DefaultBatchSize is config.Config's fallback batch size, used when
	// the generator itself declares none (§4.5 step 2).
	DefaultBatchSize int
}

// ErrCancelled is the cause recorded when a run is aborted via context
// cancellation (§5 Cancellation and timeouts).
var ErrCancelled = errors.New("dbgen/runtime: run cancelled")

// Executor drives one generator's extract/transform/load cycle against a
// main-DB connection, recording progress and outcomes through a meta
// Store.
type Executor struct {
	MetaStore *meta.Store
	Tracer    trace.Tracer
	Meter     metric.Meter

	rowCounter   metric.Int64Counter
	rowHistogram metric.Float64Histogram
	initMetrics  sync.Once
}

// New builds an Executor whose tracer and meter come from the global OTel
// providers (no-ops unless the embedder installs real ones).
func New(metaStore *meta.Store) *Executor {
	return &Executor{
		MetaStore: metaStore,
		Tracer:    otel.Tracer("dbgen/runtime"),
		Meter:     otel.Meter("dbgen/runtime"),
	}
}

func (e *Executor) ensureMetrics() {
	e.initMetrics.Do(func() {
		e.rowCounter, _ = e.Meter.Int64Counter("dbgen.rows",
			metric.WithDescription("rows processed by outcome"))
		e.rowHistogram, _ = e.Meter.Float64Histogram("dbgen.row.latency",
			metric.WithDescription("row evaluation latency in seconds"))
	})
}

// RunGenerator executes g's extract/transform/load cycle once against
// conn, using runID to scope repeats and run metadata (§4.5).
func (e *Executor) RunGenerator(ctx context.Context, g *generator.Generator, conn sqlconn.Connection, runID uuid.UUID, opts Options) error {
	e.ensureMetrics()

	ctx, span := e.Tracer.Start(ctx, "dbgen.generator.run", trace.WithAttributes(
		attribute.String("generator_name", g.Name),
		attribute.String("run_id", runID.String()),
	))
	defer span.End()

	if err := e.MetaStore.GenRunStarted(ctx, runID, g.Hash); err != nil {
		return fmt.Errorf("runtime: %s: start gen_run: %w", g.Name, err)
	}

	start := time.Now()
	nInputs, runErr := e.runRows(ctx, g, conn, runID, opts)
	elapsed := time.Since(start)

	status := meta.StatusCompleted
	errMsg := ""
	if runErr != nil {
		status = meta.StatusFailed
		errMsg = runErr.Error()
	}
	span.SetAttributes(attribute.Int64("n_inputs", nInputs))

	if err := e.MetaStore.GenRunFinished(ctx, runID, g.Hash, status, nInputs, elapsed, errMsg); err != nil {
		return fmt.Errorf("runtime: %s: finish gen_run: %w", g.Name, err)
	}
	return runErr
}

func (e *Executor) runRows(ctx context.Context, g *generator.Generator, conn sqlconn.Connection, runID uuid.UUID, opts Options) (int64, error) {
	order, err := g.Graph.TopoOrder()
	if err != nil {
		return 0, err
	}
	extract := g.Graph.Extract()

	if err := extract.Source.Setup(ctx, conn); err != nil {
		return 0, fmt.Errorf("runtime: %s: extract setup: %w", g.Name, err)
	}
	defer extract.Source.Teardown()

	it, err := extract.Source.Extract(ctx, conn)
	if err != nil {
		return 0, fmt.Errorf("runtime: %s: extract: %w", g.Name, err)
	}
	defer it.Close()

	retry := opts.Retry || g.HasTag(generator.TagIO)
	serial := opts.Serial || g.HasTag(generator.TagIO) || !g.HasTag(generator.TagParallel)
	workerCap := opts.WorkerCap
	if workerCap <= 0 {
		workerCap = goruntime.NumCPU()
	}
	if serial {
		workerCap = 1
	}

	sem := semaphore.NewWeighted(int64(workerCap))
	var nInputs int64
	var metaMu sync.Mutex

	// chunkSize bounds how many records are in flight before Load batches
	// are flushed (§4.5 step 2: "if the generator declares a non-empty
	// batch size, buffer records; otherwise stream one-by-one"). A zero
	// batch size means the whole generator is one chunk, flushed once at
	// the end, matching the executor's original behavior.
	chunkSize := g.BatchSize
	if chunkSize == 0 {
		chunkSize = opts.DefaultBatchSize
	}

	group, gctx := errgroup.WithContext(ctx)
	inChunk := 0
	for {
		rec, ok, err := it.Next(gctx)
		if err != nil {
			iterErr := fmt.Errorf("runtime: %s: iterate: %w", g.Name, err)
			_ = group.Wait()
			return atomic.LoadInt64(&nInputs), iterErr
		}
		if !ok {
			break
		}

		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		record := rec
		group.Go(func() error {
			defer sem.Release(1)
			atomic.AddInt64(&nInputs, 1)
			return e.processRow(gctx, g, order, extract, record, runID, retry, opts.Progress, &metaMu)
		})
		inChunk++

		if chunkSize > 0 && inChunk >= chunkSize {
			if err := e.awaitAndFlush(ctx, group, conn, g); err != nil {
				return atomic.LoadInt64(&nInputs), err
			}
			group, gctx = errgroup.WithContext(ctx)
			inChunk = 0
		}
	}

	if err := e.awaitAndFlush(ctx, group, conn, g); err != nil {
		return atomic.LoadInt64(&nInputs), err
	}
	return atomic.LoadInt64(&nInputs), nil
}

// awaitAndFlush waits for every dispatched row in the current chunk to
// finish, then flushes accumulated Load batches, translating a context
// cancellation into ErrCancelled either way.
func (e *Executor) awaitAndFlush(ctx context.Context, group *errgroup.Group, conn sqlconn.Connection, g *generator.Generator) error {
	if err := group.Wait(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		return err
	}
	if ctx.Err() != nil {
		return ErrCancelled
	}
	if err := flushLoads(ctx, conn, g); err != nil {
		return fmt.Errorf("runtime: %s: flush: %w", g.Name, err)
	}
	return nil
}

// processRow evaluates one row's graph and reports its outcome through
// the meta store. A fatal error is returned to the caller (aborting the
// generator); an external error is isolated and logged.
func (e *Executor) processRow(ctx context.Context, g *generator.Generator, order []string, extract *node.Extract, record node.Record, runID uuid.UUID, retry, progress bool, metaMu *sync.Mutex) error {
	if progress {
		var span trace.Span
		ctx, span = e.Tracer.Start(ctx, "dbgen.row")
		defer span.End()
	}

	start := time.Now()

	inputHash, err := hashid.InputHash(g.Hash, record)
	if err != nil {
		return fmt.Errorf("%s: input hash: %w", g.Name, err)
	}

	if !retry {
		metaMu.Lock()
		seen, err := e.MetaStore.HasRepeat(ctx, g.Hash, inputHash)
		metaMu.Unlock()
		if err != nil {
			return fmt.Errorf("%s: repeat lookup: %w", g.Name, err)
		}
		if seen {
			e.recordOutcome(ctx, "skipped", time.Since(start))
			return nil
		}
	}

	result := evaluateRow(g.Graph, order, extract, record)

	switch result.Outcome {
	case OutcomeFatal:
		e.recordOutcome(ctx, "failed", time.Since(start))
		return fmt.Errorf("%s: %w", g.Name, result.Err)

	case OutcomeExternal:
		metaMu.Lock()
		err := e.MetaStore.RecordRowError(ctx, runID, g.Hash, inputHash, result.Err.Error())
		metaMu.Unlock()
		if err != nil {
			return fmt.Errorf("%s: record row error: %w", g.Name, err)
		}
		e.recordOutcome(ctx, "external", time.Since(start))
		return nil

	default:
		metaMu.Lock()
		err := e.MetaStore.RecordRepeat(ctx, g.Hash, inputHash, runID)
		metaMu.Unlock()
		if err != nil {
			return fmt.Errorf("%s: record repeat: %w", g.Name, err)
		}
		e.recordOutcome(ctx, "ok", time.Since(start))
		return nil
	}
}

func (e *Executor) recordOutcome(ctx context.Context, outcome string, latency time.Duration) {
	e.rowCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	e.rowHistogram.Record(ctx, latency.Seconds())
}

// evaluateRow walks order (Extract first, already filtered by NewGraph's
// toposort), seeding the namespace with the extracted record and invoking
// every other node in turn (§4.5 step 3c-d).
func evaluateRow(g *generator.Graph, order []string, extract *node.Extract, record node.Record) RowResult {
	ns := node.Namespace{extract.Hash(): node.Record{"record": record}}
	for _, hash := range order {
		if hash == extract.Hash() {
			continue
		}
		n := g.Nodes()[hash]
		out, err := n.Invoke(ns)
		if err != nil {
			if node.IsExternal(err) {
				return rowExternal(err)
			}
			return rowFatal(err)
		}
		ns[hash] = out
	}
	return rowOK()
}

// flushLoads drains every Load node's batch buffer into its entity's
// table via a COPY-then-upsert (or, for stream-tagged generators, a
// direct row-at-a-time upsert) and resets the buffer (§4.5 step 4).
func flushLoads(ctx context.Context, conn sqlconn.Connection, g *generator.Generator) error {
	stream := g.HasTag(generator.TagStream)
	for _, n := range g.Graph.Nodes() {
		ld, ok := n.(*node.Load)
		if !ok {
			continue
		}
		batch := ld.Batch()
		if len(batch) == 0 {
			continue
		}
		if stream {
			if err := flushRowByRow(ctx, conn, ld, batch); err != nil {
				return err
			}
		} else if err := flushViaCopy(ctx, conn, ld, batch); err != nil {
			return err
		}
		ld.ResetBatch()
	}
	return nil
}

func columnOrder(ld *node.Load) []string {
	cols := make([]string, 0, len(ld.Entity.Attributes)+1)
	cols = append(cols, ld.Entity.PrimaryKeyName)
	attrNames := make([]string, 0, len(ld.Entity.Attributes))
	for name := range ld.Entity.Attributes {
		attrNames = append(attrNames, name)
	}
	sort.Strings(attrNames)
	cols = append(cols, attrNames...)
	return cols
}

func updateColumns(ld *node.Load, allCols []string) []string {
	updates := make([]string, 0, len(allCols))
	for _, c := range allCols {
		if c == ld.Entity.PrimaryKeyName {
			continue
		}
		if _, identifying := ld.Entity.IdentifyingAttributes[c]; identifying {
			continue
		}
		updates = append(updates, c)
	}
	return updates
}

// flushViaCopy runs CREATE TEMP TABLE, COPY, and the upsert pass inside a
// single transaction: CreateTempLike's ON COMMIT DROP means the temp table
// only survives to the COPY and upsert statements that follow it if all
// three share one transaction (in autocommit, the CREATE's own implicit
// transaction would commit and drop the table before CopyFrom ever runs).
func flushViaCopy(ctx context.Context, conn sqlconn.Connection, ld *node.Load, batch []node.BatchRow) error {
	cols := columnOrder(ld)
	tempName := "dbgen_load_" + ld.Hash()[:12]

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, sqlconn.CreateTempLike(tempName, ld.Entity.Schema, ld.Entity.Table)); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	rows := make([][]interface{}, len(batch))
	for i, r := range batch {
		rows[i] = rowValues(r, cols)
	}
	if _, err := tx.CopyFrom(ctx, "", tempName, cols, rows); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	stmt := sqlconn.UpsertOnConflict(ld.Entity.Schema, ld.Entity.Table, tempName, cols, ld.Entity.PrimaryKeyName, updateColumns(ld, cols))
	if _, err := tx.Exec(ctx, stmt); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func flushRowByRow(ctx context.Context, conn sqlconn.Connection, ld *node.Load, batch []node.BatchRow) error {
	cols := columnOrder(ld)
	stmt := sqlconn.UpsertRowOnConflict(ld.Entity.Schema, ld.Entity.Table, cols, ld.Entity.PrimaryKeyName, updateColumns(ld, cols))
	for _, r := range batch {
		if _, err := conn.Exec(ctx, stmt, rowValues(r, cols)...); err != nil {
			return err
		}
	}
	return nil
}

func rowValues(r node.BatchRow, cols []string) []interface{} {
	values := make([]interface{}, len(cols))
	for i, c := range cols {
		values[i] = r.Columns[c]
	}
	return values
}
