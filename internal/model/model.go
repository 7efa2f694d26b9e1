// Package model ties the entity registry, generator set, dependency
// scheduler, and runtime executor together behind the single entry point
// described in spec.md §6 ("Model declaration surface", "Run control").
package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dbgen-run/dbgen/internal/dependency"
	"github.com/dbgen-run/dbgen/internal/entity"
	"github.com/dbgen-run/dbgen/internal/generator"
	"github.com/dbgen-run/dbgen/internal/meta"
	"github.com/dbgen-run/dbgen/internal/runtime"
	"github.com/dbgen-run/dbgen/internal/sqlconn"
)

// ExitCode is the run's overall outcome (§6 Run control: "Exit conditions:
// 0 on full success, 1 on any generator failure, 2 on configuration
// errors").
type ExitCode int

const (
	ExitSuccess ExitCode = 0
	ExitFailure ExitCode = 1
	ExitConfig  ExitCode = 2
)

// Model owns the entity registry and the set of generators declared
// against it (§3 Lifecycles: "Generators are created within a model
// context and attached automatically").
type Model struct {
	Registry   *entity.Registry
	generators []*generator.Generator
}

// New returns an empty Model with a fresh entity registry.
func New() *Model {
	return &Model{Registry: entity.NewRegistry()}
}

// AddGenerator attaches a generator to the model.
func (m *Model) AddGenerator(g *generator.Generator) {
	m.generators = append(m.generators, g)
}

// RunOptions configures one call to Run (§6 "Run control (command
// surface)").
type RunOptions struct {
	RunID              uuid.UUID
	Include, Exclude   []string
	Start, Until       string
	Nuke, Retry, Serial bool
	Progress           bool
	// DefaultBatchSize is config.Config's fallback batch size, passed to
	// every generator that doesn't declare its own (§4.5 step 2).
	DefaultBatchSize int
}

// Summary reports per-generator outcomes at the end of a run.
type Summary struct {
	RunID     uuid.UUID
	Completed []string
	Failed    []string
	Skipped   []string
}

// Run executes every attached generator in dependency order against
// mainConn/metaConn, returning the exit code §6 specifies.
//
// Configuration errors (unknown generator name, dependency cycle) are
// detected before any generator runs and yield ExitConfig without
// touching mainConn. A generator failure marks its dependents skipped
// and yields ExitFailure once the whole plan has been attempted;
// generators unrelated to the failure still run to completion.
func (m *Model) Run(ctx context.Context, mainConn, metaConn sqlconn.Connection, opts RunOptions) (Summary, ExitCode, error) {
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	summary := Summary{RunID: opts.RunID}

	store := meta.NewStore(metaConn)
	if err := store.EnsureSchema(ctx, opts.Nuke); err != nil {
		return summary, ExitConfig, fmt.Errorf("model: ensure meta schema: %w", err)
	}

	plan, err := dependency.Build(m.generators, dependency.Filter{
		Include: opts.Include, Exclude: opts.Exclude, Start: opts.Start, Until: opts.Until,
	})
	if err != nil {
		if errors.Is(err, dependency.ErrUnknownGenerator) {
			return summary, ExitConfig, fmt.Errorf("model: %w", err)
		}
		return summary, ExitConfig, fmt.Errorf("model: %w", err)
	}

	if err := store.StartRun(ctx, opts.RunID, opts.Include, opts.Exclude, opts.Start, opts.Until); err != nil {
		return summary, ExitConfig, fmt.Errorf("model: start run: %w", err)
	}

	exec := runtime.New(store)
	failedUpstream := make(map[string]bool)

	for _, g := range plan.Generators {
		if plan.Skipped[g.Name] || failedUpstream[g.Name] {
			if err := store.GenRunSkipped(ctx, opts.RunID, g.Hash); err != nil {
				return summary, ExitFailure, fmt.Errorf("model: record skip: %w", err)
			}
			summary.Skipped = append(summary.Skipped, g.Name)
			continue
		}

		runErr := exec.RunGenerator(ctx, g, mainConn, opts.RunID, runtime.Options{
			Retry: opts.Retry, Serial: opts.Serial, Progress: opts.Progress,
			DefaultBatchSize: opts.DefaultBatchSize,
		})
		if runErr != nil {
			summary.Failed = append(summary.Failed, g.Name)
			markDependentsSkipped(g.Name, plan, failedUpstream)
			continue
		}
		summary.Completed = append(summary.Completed, g.Name)
	}

	runStatus := meta.StatusCompleted
	exit := ExitSuccess
	if len(summary.Failed) > 0 {
		runStatus = meta.StatusFailed
		exit = ExitFailure
	}
	if err := store.FinishRun(ctx, opts.RunID, runStatus); err != nil {
		return summary, ExitFailure, fmt.Errorf("model: finish run: %w", err)
	}

	return summary, exit, nil
}

// markDependentsSkipped marks every generator transitively downstream of
// failedName as skipped (§7 Generator errors: "dependents are marked
// skipped"), walking plan.Dependents breadth-first so only generators
// that actually depend on the failed one (directly or transitively) are
// affected, not merely everything later in the topological order.
func markDependentsSkipped(failedName string, plan *dependency.Plan, failedUpstream map[string]bool) {
	queue := append([]string(nil), plan.Dependents[failedName]...)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if failedUpstream[name] {
			continue
		}
		failedUpstream[name] = true
		queue = append(queue, plan.Dependents[name]...)
	}
}
