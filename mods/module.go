package mods

// ModuleFileName is the name of the module manifest file expected at the root
// of every Quill module.
const ModuleFileName = "quill-mod.toml"

// QuillModule represents a module -- specifically, the module configuration
// relevant to the back end.  The front end and linker have already run by the
// time this configuration is consumed: the module's linked bundle is the back
// end's sole source of program content.
type QuillModule struct {
	// Name is the name of the module.
	Name string

	// ModuleRoot is the path to the root directory of the current module.
	ModuleRoot string

	// BundlePath is the path to the linked bundle produced by the linker.  It
	// is stored relative to the module root.
	BundlePath string

	// CacheDirectory indicates which directory the incremental state is
	// persisted in between runs.
	CacheDirectory string

	// ReflectiveProxies is the list of method signatures for which reflective
	// proxy stubs should be synthesized during metadata construction.
	ReflectiveProxies []string
}

// BuildProfile represents the profile the back end will use to generate output
// -- it is returned from `LoadModule`.
type BuildProfile struct {
	// Mode is the build mode.  This should be one of the enumerated build
	// modes (prefixed `Mode`).
	Mode int

	// LTO is the link-time-optimization setting that the surrounding toolchain
	// will apply to the generated modules.  This should be one of the
	// enumerated LTO settings (prefixed `LTO`).
	LTO int

	// Incremental indicates whether or not cross-run incremental generation
	// should be used when the build mode allows it.
	Incremental bool

	// TargetOS is the target operating system for compilation.  This should be
	// one of the enumerated operating systems (prefixed `OS`).
	TargetOS int

	// TargetArch is the target architecture for compilation.  This should be
	// one of the enumerated architectures (prefixed `Arch`).
	TargetArch int

	// OutputPath is the directory the generated modules are written to.
	OutputPath string

	// Jobs is the number of parallel generation workers to use.  A value of
	// zero means one worker per available processor.
	Jobs int
}

// Available build modes.
const (
	ModeDebug       = iota // Unoptimized output, fast builds.
	ModeReleaseFast        // Optimized output, moderate build times.
	ModeReleaseFull        // Fully optimized output, slow builds.
)

// Available LTO settings.
const (
	LTONone = iota // No external link-time optimization.
	LTOThin        // Thin (parallel) external LTO.
	LTOFull        // Full monolithic external LTO.
)

// Available target OSs.
const (
	OSWindows = iota
	OSLinux
	OSDarwin
)

// Available target archs.
const (
	ArchI386 = iota
	ArchAmd64
	ArchArm
	ArchArm64
)

// IsRelease returns whether the profile's build mode is one of the release
// modes.
func (p *BuildProfile) IsRelease() bool {
	return p.Mode == ModeReleaseFast || p.Mode == ModeReleaseFull
}

// Is32Bit returns whether the profile targets a 32-bit pointer width.
func (p *BuildProfile) Is32Bit() bool {
	return p.TargetArch == ArchI386 || p.TargetArch == ArchArm
}

// TargetString returns the human-readable `os/arch` string for the profile.
func (p *BuildProfile) TargetString() string {
	var osStr, archStr string

	for name, val := range osNames {
		if val == p.TargetOS {
			osStr = name
		}
	}

	for name, val := range archNames {
		if val == p.TargetArch {
			archStr = name
		}
	}

	return osStr + "/" + archStr
}
