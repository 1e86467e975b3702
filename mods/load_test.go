package mods

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testManifest = `
[module]
name = "sandbox"
bundle = "sandbox.qlink"
quill-version = "0.3.1"
reflective-proxies = ["app.Widget.draw"]

[[profiles]]
name = "debug"
mode = "debug"
incremental = true
target-os = "linux"
target-arch = "amd64"
output = "out"
default = true

[[profiles]]
name = "release"
mode = "release-fast"
lto = "thin"
target-os = "windows"
target-arch = "i386"
output = "dist"
jobs = 4
`

func writeManifest(t *testing.T, content string) string {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ModuleFileName), []byte(content), 0o644))
	return dir
}

func TestLoadModuleDefaultProfile(t *testing.T) {
	dir := writeManifest(t, testManifest)

	qmod, prof, err := LoadModule(dir, "")
	require.NoError(t, err)

	assert.Equal(t, "sandbox", qmod.Name)
	assert.Equal(t, dir, qmod.ModuleRoot)
	assert.Equal(t, "sandbox.qlink", qmod.BundlePath)
	assert.Equal(t, []string{"app.Widget.draw"}, qmod.ReflectiveProxies)

	// no cache directory configured falls back to the default
	assert.Equal(t, ".quill-cache", qmod.CacheDirectory)

	assert.Equal(t, ModeDebug, prof.Mode)
	assert.Equal(t, LTONone, prof.LTO)
	assert.True(t, prof.Incremental)
	assert.Equal(t, OSLinux, prof.TargetOS)
	assert.Equal(t, ArchAmd64, prof.TargetArch)
	assert.Equal(t, "out", prof.OutputPath)
	assert.Zero(t, prof.Jobs)
	assert.False(t, prof.IsRelease())
	assert.False(t, prof.Is32Bit())
	assert.Equal(t, "linux/amd64", prof.TargetString())
}

func TestLoadModuleNamedProfile(t *testing.T) {
	dir := writeManifest(t, testManifest)

	_, prof, err := LoadModule(dir, "release")
	require.NoError(t, err)

	assert.Equal(t, ModeReleaseFast, prof.Mode)
	assert.Equal(t, LTOThin, prof.LTO)
	assert.Equal(t, OSWindows, prof.TargetOS)
	assert.Equal(t, ArchI386, prof.TargetArch)
	assert.Equal(t, 4, prof.Jobs)
	assert.True(t, prof.IsRelease())
	assert.True(t, prof.Is32Bit())
}

func TestLoadModuleUnknownProfile(t *testing.T) {
	dir := writeManifest(t, testManifest)

	_, _, err := LoadModule(dir, "bench")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no profile named `bench`")
}

func TestLoadModuleMissingManifest(t *testing.T) {
	_, _, err := LoadModule(t.TempDir(), "")
	require.Error(t, err)
}

func TestLoadModuleValidation(t *testing.T) {
	invalid := []struct {
		name     string
		manifest string
		errPart  string
	}{
		{
			"missing module table",
			`[[profiles]]
name = "debug"`,
			"missing its [module] table",
		},
		{
			"missing bundle",
			`[module]
name = "sandbox"`,
			"must name the linked bundle",
		},
		{
			"no profiles",
			`[module]
name = "sandbox"
bundle = "sandbox.qlink"`,
			"at least one build profile",
		},
		{
			"bad mode",
			`[module]
name = "sandbox"
bundle = "sandbox.qlink"

[[profiles]]
name = "debug"
mode = "fastest"
target-os = "linux"
target-arch = "amd64"
output = "out"
default = true`,
			"not a valid build mode",
		},
		{
			"no default profile",
			`[module]
name = "sandbox"
bundle = "sandbox.qlink"

[[profiles]]
name = "debug"
mode = "debug"
target-os = "linux"
target-arch = "amd64"
output = "out"`,
			"no default profile",
		},
		{
			"negative jobs",
			`[module]
name = "sandbox"
bundle = "sandbox.qlink"

[[profiles]]
name = "debug"
mode = "debug"
target-os = "linux"
target-arch = "amd64"
output = "out"
jobs = -1
default = true`,
			"negative job count",
		},
	}

	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			dir := writeManifest(t, tc.manifest)

			_, _, err := LoadModule(dir, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errPart)
		})
	}
}
