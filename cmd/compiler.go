// Package cmd is the top-level "driver" package for the Quill back end: it
// contains the functionality for parsing command-line arguments, managing
// generation state, and running the generation pipeline.
package cmd

import (
	"os"
	"path/filepath"

	"quillc/codegen"
	"quillc/depm"
	"quillc/mods"
	"quillc/report"
)

// Compiler represents the overall state of one back-end invocation.
type Compiler struct {
	// rootAbsPath is the absolute path to the module root directory.
	rootAbsPath string

	// mod is the module being generated.
	mod *mods.QuillModule

	// profile is the active build profile of the module.
	profile *mods.BuildProfile

	// link is the linked program read from the module's bundle.
	link *depm.LinkResult
}

// NewCompiler creates a new compiler for the module at the given path using
// the named build profile (or the manifest default if the name is empty).
func NewCompiler(rootRelPath, profileName string) *Compiler {
	rootAbsPath, err := filepath.Abs(rootRelPath)
	if err != nil {
		report.ReportFatal("error calculating absolute path: %s", err.Error())
		return nil
	}

	mod, profile, err := mods.LoadModule(rootAbsPath, profileName)
	if err != nil {
		report.ReportFatal("error loading module: %s", err.Error())
		return nil
	}

	// resolve the profile's paths against the module root so generation is
	// independent of the process working directory
	if !filepath.IsAbs(profile.OutputPath) {
		profile.OutputPath = filepath.Join(rootAbsPath, profile.OutputPath)
	}

	return &Compiler{
		rootAbsPath: rootAbsPath,
		mod:         mod,
		profile:     profile,
	}
}

// LoadBundle reads the module's linked bundle.  The bundle is the hand-off
// point between the front end/linker and this back end: everything after this
// call operates on the in-memory definition graph only.
func (c *Compiler) LoadBundle() {
	bundlePath := c.mod.BundlePath
	if !filepath.IsAbs(bundlePath) {
		bundlePath = filepath.Join(c.rootAbsPath, bundlePath)
	}

	file, err := os.Open(bundlePath)
	if err != nil {
		report.ReportFatal("failed to open linked bundle at `%s`: %s", bundlePath, err.Error())
		return
	}
	defer file.Close()

	link, err := depm.ReadBundle(file)
	if err != nil {
		report.ReportFatal(err.Error())
		return
	}

	c.link = link
}

// Generate runs the generation pipeline and reports its outcome.  LoadBundle
// must be run before this.
func (c *Compiler) Generate() {
	if c.link == nil {
		report.ReportICE("generation started before the bundle was loaded")
		return
	}

	driver := codegen.NewDriver(c.profile)

	report.ReportCompileHeader(c.profile.TargetString(), driver.Strategy().String())
	report.ReportBeginPhase("Generating")

	cacheDir := c.mod.CacheDirectory
	if !filepath.IsAbs(cacheDir) {
		cacheDir = filepath.Join(c.rootAbsPath, cacheDir)
	}

	outputPaths, err := driver.Generate(c.link, c.mod.ReflectiveProxies, cacheDir)
	if err != nil {
		report.ReportEndPhase(false)
		report.ReportFatal(err.Error())
		return
	}

	report.ReportEndPhase(true)
	report.ReportCompilationFinished(c.profile.OutputPath, len(outputPaths))
}
