package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kylev/reelsweep/internal/ffmpeg"
	"gopkg.in/yaml.v3"
)

// State is the persisted progress token for one input. It only ever
// advances; re-invocation resumes from the first incomplete stage.
type State string

const (
	StateNew             State = "new"
	StateScenesExtracted State = "scenes_extracted"
	StateConcatenated    State = "concatenated"
	StatePlexDone        State = "plex_done"
)

// ErrCorruptState marks an unrecognized persisted token. It must surface
// as fatal: defaulting to NEW would duplicate already-materialized work.
var ErrCorruptState = errors.New("corrupt pipeline state")

func (s State) valid() bool {
	switch s {
	case StateNew, StateScenesExtracted, StateConcatenated, StatePlexDone:
		return true
	}
	return false
}

// Record is everything persisted for one input: the state token and the
// operator's one-time output geometry choice. The on-disk form is a
// small YAML file the operator can inspect and, if needed, repair.
type Record struct {
	State  State           `yaml:"state"`
	Aspect ffmpeg.Geometry `yaml:"aspect,omitempty"`
}

const stateFileName = "state.yaml"

// Store is the single typed access point to the persisted record,
// stored beside the working copy, never beside the original input.
type Store struct {
	path string
}

// NewStore creates a store for the given working directory
func NewStore(workDir string) *Store {
	return &Store{path: filepath.Join(workDir, stateFileName)}
}

// Load reads the record. A missing file means a fresh input and yields
// StateNew; anything unparseable or holding an unknown token is
// ErrCorruptState.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Record{State: StateNew}, nil
		}
		return nil, fmt.Errorf("failed to read state file %s: %w", s.path, err)
	}

	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: unparseable state file %s: %v", ErrCorruptState, s.path, err)
	}
	if !rec.State.valid() {
		return nil, fmt.Errorf("%w: unknown token %q in %s", ErrCorruptState, rec.State, s.path)
	}
	if rec.Aspect != "" && !rec.Aspect.Valid() {
		return nil, fmt.Errorf("%w: unknown aspect %q in %s", ErrCorruptState, rec.Aspect, s.path)
	}

	return &rec, nil
}

// Save durably writes the record: temp file in the same directory, then
// rename, so a crash mid-write never leaves a half-written token.
func (s *Store) Save(rec *Record) error {
	if !rec.State.valid() {
		return fmt.Errorf("refusing to persist unknown state %q", rec.State)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), stateFileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpPath := tmp.Name()

	// CreateTemp defaults to 0600; the state file is meant to be
	// operator-inspectable like every other artifact.
	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to set state file mode: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close state file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}
