package core

// artifact.go manages the transient barcode images of a run.
//
// Every image lives in its own uniquely named file. The store records each
// allocation so the pipeline can release all of them in one unconditional
// cleanup phase, whatever happened to the rows and fields in between.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/JonMunkholm/barcodereport/internal/logging"
	"github.com/google/uuid"
)

// Artifact is a handle to one transient barcode image.
type Artifact struct {
	ID   string
	Path string
}

// IsZero reports whether a is the empty handle.
func (a Artifact) IsZero() bool {
	return a.ID == ""
}

// ArtifactStore allocates, writes and releases transient images.
// It is safe for concurrent use.
type ArtifactStore struct {
	dir string
	ctx context.Context

	mu       sync.Mutex
	order    []Artifact
	released map[string]bool // keyed by every allocated ID
}

// NewArtifactStore creates a store rooted at dir. An empty dir means the OS
// temp directory. The directory must already exist.
func NewArtifactStore(ctx context.Context, dir string) *ArtifactStore {
	if dir == "" {
		dir = os.TempDir()
	}
	return &ArtifactStore{
		dir:      dir,
		ctx:      ctx,
		released: make(map[string]bool),
	}
}

// Dir returns the directory artifacts are written to.
func (s *ArtifactStore) Dir() string {
	return s.dir
}

// Allocate reserves a uniquely named slot. The slot holds no data until Write.
func (s *ArtifactStore) Allocate() (Artifact, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return Artifact{}, fmt.Errorf("allocate artifact: %w", err)
	}

	a := Artifact{
		ID:   id.String(),
		Path: filepath.Join(s.dir, "barcode-"+id.String()+".png"),
	}

	s.mu.Lock()
	s.order = append(s.order, a)
	s.released[a.ID] = false
	s.mu.Unlock()

	return a, nil
}

// Write persists data into the artifact's slot.
func (s *ArtifactStore) Write(a Artifact, data []byte) error {
	if a.IsZero() {
		return fmt.Errorf("%w: empty artifact handle", ErrArtifactWrite)
	}
	if err := os.WriteFile(a.Path, data, 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrArtifactWrite, err)
	}
	return nil
}

// Release deletes the artifact's file. It is idempotent and never fails:
// a leftover file only leaks temp space. Handles this store did not allocate
// are ignored.
func (s *ArtifactStore) Release(a Artifact) {
	s.mu.Lock()
	if done, ok := s.released[a.ID]; !ok || done {
		s.mu.Unlock()
		return
	}
	s.released[a.ID] = true
	s.mu.Unlock()

	s.remove(a)
}

// ReleaseAll releases every allocated artifact not yet released and returns
// how many this call released.
func (s *ArtifactStore) ReleaseAll() int {
	s.mu.Lock()
	pending := make([]Artifact, 0, len(s.order))
	for _, a := range s.order {
		if !s.released[a.ID] {
			s.released[a.ID] = true
			pending = append(pending, a)
		}
	}
	s.mu.Unlock()

	for _, a := range pending {
		s.remove(a)
	}
	return len(pending)
}

func (s *ArtifactStore) remove(a Artifact) {
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		logging.FromContext(s.ctx).Debug("artifact release failed",
			"artifact", a.ID,
			"path", a.Path,
			"error", err,
		)
	}
}

// Allocated returns the number of artifacts allocated so far.
func (s *ArtifactStore) Allocated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Outstanding returns the number of allocated artifacts not yet released.
func (s *ArtifactStore) Outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, done := range s.released {
		if !done {
			n++
		}
	}
	return n
}

// Released returns the number of artifacts released so far.
func (s *ArtifactStore) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, done := range s.released {
		if done {
			n++
		}
	}
	return n
}
