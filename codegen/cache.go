package codegen

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"

	"quillc/depm"
)

// StateFileName is the name of the persisted incremental state file inside the
// module's cache directory.
const StateFileName = "incremental.toml"

// CacheEntry records, for one package unit, the fingerprint of the definition
// content that produced its output artifact and the path of that artifact.
type CacheEntry struct {
	Fingerprint string `toml:"fingerprint"`
	Output      string `toml:"output"`
}

// IncrementalState is the cross-run generation cache: a mapping from package
// identifier to cache entry.  It is owned by the driver for the duration of
// one run and shared by all of the run's package tasks, so its methods are
// safe for concurrent use.  Lifecycle: load, concurrent read/update during
// generation, save, clear.
type IncrementalState struct {
	// m guards units.
	m *sync.Mutex

	units map[string]CacheEntry
}

// tomlStateFile represents the incremental state as it is encoded in TOML.
type tomlStateFile struct {
	Units map[string]CacheEntry `toml:"units"`
}

// LoadState loads the persisted incremental state from the given cache
// directory.  A missing state file is not an error: the first run of a module
// has no prior state and simply regenerates everything.
func LoadState(cacheDir string) (*IncrementalState, error) {
	state := &IncrementalState{
		m:     &sync.Mutex{},
		units: make(map[string]CacheEntry),
	}

	buff, err := os.ReadFile(filepath.Join(cacheDir, StateFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}

		return nil, errors.Wrap(err, "failed to load incremental state")
	}

	tsf := &tomlStateFile{}
	if err := toml.Unmarshal(buff, tsf); err != nil {
		return nil, errors.Wrap(err, "failed to parse incremental state")
	}

	if tsf.Units != nil {
		state.units = tsf.Units
	}

	return state, nil
}

// Lookup returns the entry recorded for a package, if any.
func (s *IncrementalState) Lookup(pkgID string) (CacheEntry, bool) {
	s.m.Lock()
	defer s.m.Unlock()

	entry, ok := s.units[pkgID]
	return entry, ok
}

// Update records or overwrites the entry for a package.
func (s *IncrementalState) Update(pkgID string, entry CacheEntry) {
	s.m.Lock()
	defer s.m.Unlock()

	s.units[pkgID] = entry
}

// Len returns the number of recorded entries.
func (s *IncrementalState) Len() int {
	s.m.Lock()
	defer s.m.Unlock()

	return len(s.units)
}

// Save persists the state to the given cache directory, creating the directory
// if necessary.
func (s *IncrementalState) Save(cacheDir string) error {
	s.m.Lock()
	defer s.m.Unlock()

	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return errors.Wrap(err, "failed to create cache directory")
	}

	buff, err := toml.Marshal(&tomlStateFile{Units: s.units})
	if err != nil {
		return errors.Wrap(err, "failed to encode incremental state")
	}

	if err := os.WriteFile(filepath.Join(cacheDir, StateFileName), buff, 0o644); err != nil {
		return errors.Wrap(err, "failed to persist incremental state")
	}

	return nil
}

// Clear releases the in-memory copy of the state.  The state must not be used
// again after clearing.
func (s *IncrementalState) Clear() {
	s.m.Lock()
	defer s.m.Unlock()

	s.units = nil
}

// -----------------------------------------------------------------------------

// Fingerprint computes the content fingerprint of a package unit's definition
// sequence.  The sequence is normalized by sorting on canonical names before
// hashing, so irrelevant input ordering can never invalidate the cache, while
// any semantic change to any definition changes the digest.
func Fingerprint(defs depm.DefGraph) string {
	h := sha256.New()

	for _, defn := range defs.Sorted() {
		// length-frame each record so adjacent renders can't alias
		repr := defn.Def.Repr()

		binary.Write(h, binary.LittleEndian, uint32(len(defn.Name)))
		h.Write([]byte(defn.Name))
		binary.Write(h, binary.LittleEndian, uint32(len(repr)))
		h.Write([]byte(repr))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// -----------------------------------------------------------------------------

// ConsistencyError reports that the incremental state claims a package is
// unchanged but the output artifact it points at no longer exists.  This means
// the persisted state or the output tree was corrupted externally; the run
// must abort rather than silently regenerate over it.
type ConsistencyError struct {
	// PackageID is the package whose entry is inconsistent.
	PackageID string

	// Output is the missing output artifact path.
	Output string
}

func (ce *ConsistencyError) Error() string {
	return fmt.Sprintf(
		"incremental state is corrupt: package `%s` is recorded as unchanged but its output `%s` is missing",
		ce.PackageID, ce.Output,
	)
}
