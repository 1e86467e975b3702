// Package codegen implements the generation driver of the Quill back end: it
// decides how a linked program is split into compilation units, schedules
// lowering and emission over those units in parallel, and maintains the
// cross-run incremental cache that lets unchanged units be skipped.
package codegen

import (
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/pkg/errors"

	"quillc/depm"
	"quillc/generate"
	"quillc/lower"
	"quillc/mods"
)

// Strategy identifies how the definition graph is split into compilation
// units.  Exactly one strategy is selected per run, before any unit work
// starts, and never re-evaluated.
type Strategy int

// The available generation strategies.
const (
	// StrategySingleUnit emits the whole program as one unit.  Used for
	// release builds with no external LTO: a single unit is the back end's own
	// approximation of whole-program optimization, since only then can the
	// downstream backend optimize across what would otherwise be module
	// boundaries.
	StrategySingleUnit = Strategy(iota)

	// StrategyIncremental emits one unit per package and skips packages whose
	// content is unchanged since the previous run.
	StrategyIncremental

	// StrategyPartitioned emits one unit per available processor, bucketing
	// by top-level owner.
	StrategyPartitioned
)

func (s Strategy) String() string {
	switch s {
	case StrategySingleUnit:
		return "single-unit"
	case StrategyIncremental:
		return "incremental"
	default:
		return "partitioned"
	}
}

// selectStrategy evaluates the strategy state machine for a build profile.
// The three outcomes are mutually exclusive and exhaustive.
func selectStrategy(profile *mods.BuildProfile) Strategy {
	if profile.IsRelease() && profile.LTO == mods.LTONone {
		return StrategySingleUnit
	}

	if profile.Incremental {
		return StrategyIncremental
	}

	return StrategyPartitioned
}

// singleUnitID is the fixed unit id used by the single-unit strategy.
const singleUnitID = "out"

// -----------------------------------------------------------------------------

// Driver orchestrates generation of a linked program into textual LLVM
// modules.  A driver is configured once per run; all of its per-run decisions
// (strategy, ABI variant, worker count) are fixed before the first task is
// dispatched and shared read-only afterward.
type Driver struct {
	// profile is the active build profile.
	profile *mods.BuildProfile

	// strategy is the generation strategy selected for this run.
	strategy Strategy

	// abi is the target ABI variant selected for this run.
	abi generate.ABI

	// procs is the number of parallel workers, which also bounds the unit
	// count of the partitioned strategy.
	procs int
}

// NewDriver creates a new generation driver for the given build profile.
func NewDriver(profile *mods.BuildProfile) *Driver {
	procs := profile.Jobs
	if procs <= 0 {
		procs = runtime.NumCPU()
	}

	return &Driver{
		profile:  profile,
		strategy: selectStrategy(profile),
		abi:      generate.SelectABI(profile.TargetOS),
		procs:    procs,
	}
}

// Strategy returns the generation strategy selected for this run.
func (d *Driver) Strategy() Strategy {
	return d.strategy
}

// Generate runs the full generation pipeline over a linked program: metadata
// construction, parallel lowering, unit partitioning per the selected
// strategy, and parallel emission.  It returns the complete list of output
// file paths produced (or reused) by this run, in no particular order.  Any
// unit failure fails the whole run: there is no partial-success mode.
func (d *Driver) Generate(link *depm.LinkResult, proxySet []string, cacheDir string) ([]string, error) {
	if err := link.Graph.CheckUnique(); err != nil {
		return nil, err
	}

	// derived facts are computed exactly once, before lowering, and are
	// read-only from here on
	md := depm.BuildMetadata(link, proxySet, d.profile.Is32Bit())

	graph := make(depm.DefGraph, 0, len(md.ProxyDefs)+len(link.Graph))
	graph = append(graph, md.ProxyDefs...)
	graph = append(graph, link.Graph...)

	lowered := d.lowerAll(graph, md)
	env := lowered.Environment()

	if err := os.MkdirAll(d.profile.OutputPath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create output directory")
	}

	switch d.strategy {
	case StrategySingleUnit:
		outputPath, err := generate.EmitUnit(singleUnitID, env, lowered.Sorted(), d.profile.OutputPath, d.abi)
		if err != nil {
			return nil, err
		}

		return []string{outputPath}, nil
	case StrategyIncremental:
		return d.generateIncremental(lowered, env, cacheDir)
	default:
		return d.generatePartitioned(lowered, env)
	}
}

// -----------------------------------------------------------------------------

// lowerAll lowers the whole definition graph by fanning one lowering task per
// owner group out over the worker pool and joining all results before
// returning.  The merged graph is sorted by canonical name, so its content is
// independent of task scheduling order.
func (d *Driver) lowerAll(graph depm.DefGraph, md *depm.Metadata) depm.DefGraph {
	wp := workerpool.New(d.procs)

	merged := make(depm.DefGraph, 0, len(graph))
	m := &sync.Mutex{}

	for _, group := range groupByOwner(graph) {
		group := group

		wp.Submit(func() {
			loweredGroup := lower.LowerGroup(group, md)

			m.Lock()
			merged = append(merged, loweredGroup...)
			m.Unlock()
		})
	}

	wp.StopWait()

	return merged.Sorted()
}

// -----------------------------------------------------------------------------

// unitResult is the result of one emission task.
type unitResult struct {
	outputPath string
	err        error
}

// generatePartitioned implements the parallel-partitioned strategy: the graph
// is split into at most `procs` owner-atomic buckets which are all emitted in
// parallel under synthetic numeric unit ids.
func (d *Driver) generatePartitioned(lowered depm.DefGraph, env depm.Environment) ([]string, error) {
	buckets := partitionByOwner(lowered, d.procs)

	wp := workerpool.New(d.procs)
	results := make(chan unitResult, len(buckets))

	for i, bucket := range buckets {
		unitID := strconv.Itoa(i)
		bucket := bucket

		wp.Submit(func() {
			outputPath, err := generate.EmitUnit(unitID, env, bucket, d.profile.OutputPath, d.abi)
			results <- unitResult{outputPath, err}
		})
	}

	wp.StopWait()
	close(results)

	return collectResults(results)
}

// generateIncremental implements the incremental strategy: the graph is split
// into one unit per package, the previous run's state decides which packages
// actually need re-emission, and the updated state is persisted once every
// package task has joined.
func (d *Driver) generateIncremental(lowered depm.DefGraph, env depm.Environment, cacheDir string) ([]string, error) {
	groups := groupByPackage(lowered)

	state, err := LoadState(cacheDir)
	if err != nil {
		return nil, err
	}

	wp := workerpool.New(d.procs)
	results := make(chan unitResult, len(groups))

	for pkgID, defs := range groups {
		pkgID := pkgID
		defs := defs

		wp.Submit(func() {
			outputPath, err := d.generatePackage(state, pkgID, defs, env)
			results <- unitResult{outputPath, err}
		})
	}

	wp.StopWait()
	close(results)

	outputPaths, err := collectResults(results)
	if err != nil {
		return nil, err
	}

	if err := state.Save(cacheDir); err != nil {
		return nil, err
	}
	state.Clear()

	return outputPaths, nil
}

// generatePackage generates one package unit, reusing the previous run's
// artifact when the package's fingerprint is unchanged.
func (d *Driver) generatePackage(state *IncrementalState, pkgID string, defs depm.DefGraph, env depm.Environment) (string, error) {
	outDir := filepath.Join(d.profile.OutputPath, filepath.Join(strings.Split(pkgID, ".")...))

	fingerprint := Fingerprint(defs)
	prev, found := state.Lookup(pkgID)
	state.Update(pkgID, CacheEntry{
		Fingerprint: fingerprint,
		Output:      filepath.Join(outDir, pkgID+".ll"),
	})

	if found && prev.Fingerprint == fingerprint {
		if _, err := os.Stat(prev.Output); err == nil {
			// unchanged since last run: reuse the existing artifact
			return prev.Output, nil
		} else if os.IsNotExist(err) {
			return "", &ConsistencyError{PackageID: pkgID, Output: prev.Output}
		} else {
			return "", errors.Wrapf(err, "failed to probe output of package `%s`", pkgID)
		}
	}

	// MkdirAll is idempotent, so racing siblings under a shared namespace
	// prefix are safe
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create output directory for package `%s`", pkgID)
	}

	return generate.EmitUnit(pkgID, env, defs, outDir, d.abi)
}

// -----------------------------------------------------------------------------

// collectResults drains a completed result channel into the final output path
// list.  Every task's result is inspected: no failure is ever dropped, and on
// failure no partial path list is returned.
func collectResults(results chan unitResult) ([]string, error) {
	var outputPaths []string

	for result := range results {
		if result.err != nil {
			return nil, result.err
		}

		outputPaths = append(outputPaths, result.outputPath)
	}

	return outputPaths, nil
}
