package mods

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml"
)

// tomlModuleFile represents the module manifest as it is encoded in TOML.
type tomlModuleFile struct {
	Module   *tomlModule    `toml:"module"`
	Profiles []*tomlProfile `toml:"profiles"`
}

// tomlModule represents a Quill module as it is encoded in TOML.
type tomlModule struct {
	Name              string   `toml:"name"`
	Bundle            string   `toml:"bundle"`
	CacheDirectory    string   `toml:"cache-directory,omitempty"`
	ReflectiveProxies []string `toml:"reflective-proxies,omitempty"`
	Version           string   `toml:"quill-version"`
}

// tomlProfile represents a build profile as it is encoded in TOML.
type tomlProfile struct {
	Name        string `toml:"name"`
	Mode        string `toml:"mode"`
	LTO         string `toml:"lto"`
	Incremental bool   `toml:"incremental"`
	TargetOS    string `toml:"target-os"`
	TargetArch  string `toml:"target-arch"`
	OutputPath  string `toml:"output"`
	Jobs        int    `toml:"jobs,omitempty"`
	DefaultProf bool   `toml:"default"` // in absence of a selection, choose this profile
}

// defaultCacheDir is the cache directory used when the manifest doesn't name
// one.
const defaultCacheDir = ".quill-cache"

// LoadModule loads and validates a module manifest as well as selecting the
// requested build profile.  `path` is the path to the module directory.
// `selectedProfile` may be empty, in which case the manifest's default profile
// is used.
func LoadModule(path, selectedProfile string) (*QuillModule, *BuildProfile, error) {
	buff, err := os.ReadFile(filepath.Join(path, ModuleFileName))
	if err != nil {
		return nil, nil, err
	}

	tmf := &tomlModuleFile{}
	if err := toml.Unmarshal(buff, tmf); err != nil {
		return nil, nil, err
	}

	if tmf.Module == nil {
		return nil, nil, fmt.Errorf("manifest at %s is missing its [module] table", path)
	}

	// qMod is the final, extracted module that is returned.
	qMod := &QuillModule{
		// module root is the directory enclosing the manifest file
		ModuleRoot: path,
	}

	if err := validateModule(qMod, tmf.Module); err != nil {
		return nil, nil, err
	}

	qMod.Name = tmf.Module.Name
	qMod.BundlePath = tmf.Module.Bundle
	qMod.CacheDirectory = tmf.Module.CacheDirectory
	if qMod.CacheDirectory == "" {
		qMod.CacheDirectory = defaultCacheDir
	}
	qMod.ReflectiveProxies = tmf.Module.ReflectiveProxies

	prof, err := selectProfile(tmf, selectedProfile)
	if err != nil {
		return nil, nil, fmt.Errorf("in module `%s`: %s", qMod.Name, err.Error())
	}

	return qMod, prof, nil
}

// validateModule checks that the top-level module contents are valid.
func validateModule(qmod *QuillModule, mod *tomlModule) error {
	if mod.Name == "" {
		return fmt.Errorf("missing module name for module at %s", qmod.ModuleRoot)
	}

	if mod.Bundle == "" {
		return fmt.Errorf("module `%s` must name the linked bundle to generate from", mod.Name)
	}

	return nil
}

// selectProfile attempts to select a build profile by name, falling back to
// the manifest's default profile when no name is given.
func selectProfile(tmf *tomlModuleFile, selectedProfile string) (*BuildProfile, error) {
	if len(tmf.Profiles) == 0 {
		return nil, fmt.Errorf("module must provide at least one build profile")
	}

	if selectedProfile != "" {
		for _, prof := range tmf.Profiles {
			if prof.Name == selectedProfile {
				return convertProfile(prof)
			}
		}

		return nil, fmt.Errorf("no profile named `%s`", selectedProfile)
	}

	for _, prof := range tmf.Profiles {
		if prof.DefaultProf {
			return convertProfile(prof)
		}
	}

	return nil, fmt.Errorf("no default profile; the `--profile` argument is required")
}

// osNames maps TOML os name strings to enumerated OS values.
var osNames = map[string]int{
	"windows": OSWindows,
	"linux":   OSLinux,
	"darwin":  OSDarwin,
}

// archNames maps TOML arch name strings to enumerated arch values.
var archNames = map[string]int{
	"i386":  ArchI386,
	"amd64": ArchAmd64,
	"arm":   ArchArm,
	"arm64": ArchArm64,
}

// modeNames maps TOML build mode strings to enumerated build modes.
var modeNames = map[string]int{
	"debug":        ModeDebug,
	"release-fast": ModeReleaseFast,
	"release-full": ModeReleaseFull,
}

// ltoNames maps TOML LTO setting strings to enumerated LTO settings.
var ltoNames = map[string]int{
	"none": LTONone,
	"thin": LTOThin,
	"full": LTOFull,
}

// convertProfile converts a TOML build profile into a `*BuildProfile`.
func convertProfile(tprof *tomlProfile) (*BuildProfile, error) {
	if tprof.Name == "" {
		return nil, fmt.Errorf("profile must specify a name")
	}

	if tprof.OutputPath == "" {
		return nil, fmt.Errorf("profile `%s` must specify an output path", tprof.Name)
	}

	newProfile := &BuildProfile{
		Incremental: tprof.Incremental,
		OutputPath:  tprof.OutputPath,
		Jobs:        tprof.Jobs,
	}

	if modeVal, ok := modeNames[tprof.Mode]; ok {
		newProfile.Mode = modeVal
	} else {
		return nil, fmt.Errorf("`%s` is not a valid build mode", tprof.Mode)
	}

	if ltoVal, ok := ltoNames[tprof.LTO]; ok {
		newProfile.LTO = ltoVal
	} else if tprof.LTO == "" {
		newProfile.LTO = LTONone
	} else {
		return nil, fmt.Errorf("`%s` is not a valid LTO setting", tprof.LTO)
	}

	if osVal, ok := osNames[tprof.TargetOS]; ok {
		newProfile.TargetOS = osVal
	} else {
		return nil, fmt.Errorf("`%s` is not a supported OS", tprof.TargetOS)
	}

	if archVal, ok := archNames[tprof.TargetArch]; ok {
		newProfile.TargetArch = archVal
	} else {
		return nil, fmt.Errorf("`%s` is not a supported architecture", tprof.TargetArch)
	}

	if tprof.Jobs < 0 {
		return nil, fmt.Errorf("profile `%s` specifies a negative job count", tprof.Name)
	}

	return newProfile, nil
}
