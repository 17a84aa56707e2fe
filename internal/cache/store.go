// Package cache stores fetched product artifacts under
// <root>/<compact-id>/<artifact>. Entries are never mutated in place or
// expired; removing files by hand is the only invalidation.
package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
)

// Artifact names one cached file inside an identifier's directory.
type Artifact string

// Cached artifacts.
const (
	ArtifactMetadata  Artifact = "metadata.json"
	ArtifactThumbnail Artifact = "thumbnail.jpg"
	ArtifactModel     Artifact = "model.glb"
	ArtifactExists    Artifact = "exists.json"
)

// Label returns a short metrics label for the artifact.
func (a Artifact) Label() string {
	switch a {
	case ArtifactMetadata:
		return "metadata"
	case ArtifactThumbnail:
		return "thumbnail"
	case ArtifactModel:
		return "model"
	case ArtifactExists:
		return "exists"
	default:
		return "unknown"
	}
}

// ErrMiss is returned by Read when the artifact is not cached.
var ErrMiss = errors.New("cache: artifact not cached")

const (
	dirPerm  os.FileMode = 0o755
	filePerm os.FileMode = 0o644
)

// Store is a keyed blob store on a billy filesystem.
// Concurrent use is safe for different identifiers; concurrent writes of the
// same artifact are last-writer-wins.
type Store struct {
	fs billy.Filesystem
}

// New creates a store on an arbitrary billy filesystem.
func New(fs billy.Filesystem) *Store {
	return &Store{fs: fs}
}

// NewLocal creates a store rooted at dir on the local disk.
// The directory itself is created lazily on first write.
func NewLocal(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve cache root %q: %w", dir, err)
	}
	return New(osfs.New(abs)), nil
}

// NewMemory creates an in-memory store.
func NewMemory() *Store {
	return New(memfs.New())
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.fs.Root() }

// Path returns where the artifact for id lives, whether or not it exists.
func (s *Store) Path(id string, a Artifact) string {
	return s.fs.Join(s.fs.Root(), id, string(a))
}

// Exists reports whether the artifact is cached. It never fetches.
func (s *Store) Exists(id string, a Artifact) bool {
	fi, err := s.fs.Stat(s.fs.Join(id, string(a)))
	return err == nil && !fi.IsDir()
}

// Write stores data and returns the artifact's path.
// The identifier's directory is created as needed.
func (s *Store) Write(id string, a Artifact, data []byte) (string, error) {
	if err := s.fs.MkdirAll(id, dirPerm); err != nil {
		return "", fmt.Errorf("create cache directory %s: %w", id, err)
	}
	name := s.fs.Join(id, string(a))
	if err := util.WriteFile(s.fs, name, data, filePerm); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return s.Path(id, a), nil
}

// Read returns the cached bytes, or ErrMiss if nothing is cached.
// A zero-length file is returned as-is; callers decide whether it is corrupt.
func (s *Store) Read(id string, a Artifact) ([]byte, error) {
	name := s.fs.Join(id, string(a))
	f, err := s.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

// Remove deletes a cached artifact. Missing artifacts are not an error.
func (s *Store) Remove(id string, a Artifact) error {
	err := s.fs.Remove(s.fs.Join(id, string(a)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s/%s: %w", id, a, err)
	}
	return nil
}

const probeFile = ".probe"

// Probe checks that the cache root is writable.
func (s *Store) Probe() error {
	if err := util.WriteFile(s.fs, probeFile, []byte("ok"), filePerm); err != nil {
		return fmt.Errorf("write probe: %w", err)
	}
	if err := s.fs.Remove(probeFile); err != nil {
		return fmt.Errorf("remove probe: %w", err)
	}
	return nil
}
