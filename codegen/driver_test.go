package codegen

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillc/depm"
	"quillc/mods"
)

func testProfile(t *testing.T, mode, lto int, incremental bool) *mods.BuildProfile {
	return &mods.BuildProfile{
		Mode:        mode,
		LTO:         lto,
		Incremental: incremental,
		TargetOS:    mods.OSLinux,
		TargetArch:  mods.ArchAmd64,
		OutputPath:  t.TempDir(),
		Jobs:        2,
	}
}

func TestSelectStrategy(t *testing.T) {
	assert.Equal(t, StrategySingleUnit, selectStrategy(&mods.BuildProfile{Mode: mods.ModeReleaseFast, LTO: mods.LTONone}))
	assert.Equal(t, StrategySingleUnit, selectStrategy(&mods.BuildProfile{Mode: mods.ModeReleaseFull, LTO: mods.LTONone, Incremental: true}))

	// release with external LTO falls through to the incremental check
	assert.Equal(t, StrategyIncremental, selectStrategy(&mods.BuildProfile{Mode: mods.ModeReleaseFast, LTO: mods.LTOThin, Incremental: true}))
	assert.Equal(t, StrategyIncremental, selectStrategy(&mods.BuildProfile{Mode: mods.ModeDebug, Incremental: true}))

	assert.Equal(t, StrategyPartitioned, selectStrategy(&mods.BuildProfile{Mode: mods.ModeDebug}))
	assert.Equal(t, StrategyPartitioned, selectStrategy(&mods.BuildProfile{Mode: mods.ModeReleaseFast, LTO: mods.LTOFull}))
}

func TestGenerateSingleUnit(t *testing.T) {
	// incremental is requested but single-unit takes precedence
	profile := testProfile(t, mods.ModeReleaseFast, mods.LTONone, true)
	d := NewDriver(profile)
	require.Equal(t, StrategySingleUnit, d.Strategy())

	link := &depm.LinkResult{Graph: testGraph()}

	paths, err := d.Generate(link, nil, t.TempDir())
	require.NoError(t, err)

	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(profile.OutputPath, "out.ll"), paths[0])
	assert.FileExists(t, paths[0])
}

func TestGenerateRejectsDuplicateNames(t *testing.T) {
	d := NewDriver(testProfile(t, mods.ModeDebug, mods.LTONone, false))

	link := &depm.LinkResult{Graph: depm.DefGraph{
		testFuncDefn("a.X.f", "a.X", 1),
		testFuncDefn("a.X.f", "a.X", 2),
	}}

	_, err := d.Generate(link, nil, t.TempDir())
	require.Error(t, err)
}

func TestGeneratePartitionedIgnoresInputOrder(t *testing.T) {
	graph := testGraph()
	reversed := make(depm.DefGraph, len(graph))
	for i, defn := range graph {
		reversed[len(graph)-1-i] = defn
	}

	readUnits := func(g depm.DefGraph) map[string]string {
		d := NewDriver(testProfile(t, mods.ModeDebug, mods.LTONone, false))
		require.Equal(t, StrategyPartitioned, d.Strategy())

		paths, err := d.Generate(&depm.LinkResult{Graph: g}, nil, t.TempDir())
		require.NoError(t, err)

		units := make(map[string]string)
		for _, path := range paths {
			content, err := os.ReadFile(path)
			require.NoError(t, err)

			units[filepath.Base(path)] = string(content)
		}

		return units
	}

	assert.Equal(t, readUnits(graph), readUnits(reversed))
}

// -----------------------------------------------------------------------------

func incrementalLink(bRetVal int64) *depm.LinkResult {
	return &depm.LinkResult{Graph: depm.DefGraph{
		testFuncDefn("a.X.f", "a.X", 1),
		testFuncDefn("a.X.g", "a.X", 2),
		testFuncDefn("b.Y.f", "b.Y", bRetVal),
	}}
}

func TestGenerateIncremental(t *testing.T) {
	profile := testProfile(t, mods.ModeDebug, mods.LTONone, true)
	cacheDir := t.TempDir()

	d := NewDriver(profile)
	require.Equal(t, StrategyIncremental, d.Strategy())

	// first run: no prior state, both packages are emitted
	paths, err := d.Generate(incrementalLink(10), nil, cacheDir)
	require.NoError(t, err)

	sort.Strings(paths)
	require.Equal(t, []string{
		filepath.Join(profile.OutputPath, "a", "a.ll"),
		filepath.Join(profile.OutputPath, "b", "b.ll"),
	}, paths)

	state, err := LoadState(cacheDir)
	require.NoError(t, err)
	assert.Equal(t, 2, state.Len())

	// mark the artifacts so reuse and regeneration are distinguishable
	aPath, bPath := paths[0], paths[1]
	require.NoError(t, os.WriteFile(aPath, []byte("reused"), 0o644))
	require.NoError(t, os.WriteFile(bPath, []byte("stale"), 0o644))

	// second run: only package b changed
	paths, err = NewDriver(profile).Generate(incrementalLink(11), nil, cacheDir)
	require.NoError(t, err)
	require.Len(t, paths, 2)

	aContent, err := os.ReadFile(aPath)
	require.NoError(t, err)
	assert.Equal(t, "reused", string(aContent))

	bContent, err := os.ReadFile(bPath)
	require.NoError(t, err)
	assert.NotEqual(t, "stale", string(bContent))
}

func TestGenerateIncrementalMissingArtifact(t *testing.T) {
	profile := testProfile(t, mods.ModeDebug, mods.LTONone, true)
	cacheDir := t.TempDir()

	paths, err := NewDriver(profile).Generate(incrementalLink(10), nil, cacheDir)
	require.NoError(t, err)

	// an unchanged package whose recorded artifact has vanished must abort the
	// run rather than silently regenerate
	sort.Strings(paths)
	require.NoError(t, os.Remove(paths[0]))

	paths, err = NewDriver(profile).Generate(incrementalLink(10), nil, cacheDir)
	require.Error(t, err)
	assert.Nil(t, paths)

	ce := &ConsistencyError{}
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "a", ce.PackageID)
}
