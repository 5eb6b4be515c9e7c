package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cloo-solutions/leadbot/internal/domain"
)

// SnapshotVersion is the current on-disk snapshot format.
const SnapshotVersion = 1

// ErrSnapshotNotFound is returned by a Store that has never been written.
var ErrSnapshotNotFound = errors.New("index snapshot not found")

// Snapshot is the persisted form of a corpus. Documents and vectors are
// stored together so they are always written as one unit.
type Snapshot struct {
	Version   int               `json:"version"`
	Dimension int               `json:"dimension"`
	Documents []domain.Document `json:"documents"`
	Vectors   [][]float32       `json:"vectors"`
}

// Validate checks the alignment invariant and the vector dimension.
func (s *Snapshot) Validate(dimension int) error {
	if len(s.Documents) != len(s.Vectors) {
		return inconsistent(fmt.Errorf("%d documents but %d vectors", len(s.Documents), len(s.Vectors)))
	}

	if s.Dimension != dimension {
		return domain.NewDomainErrorWithCause(
			domain.ErrDimensionMismatch.Code,
			domain.ErrDimensionMismatch.Message,
			fmt.Errorf("stored %d, embedder %d", s.Dimension, dimension),
		)
	}

	for n, v := range s.Vectors {
		if len(v) != s.Dimension {
			return inconsistent(fmt.Errorf("vector %d has %d entries, want %d", n, len(v), s.Dimension))
		}
	}
	return nil
}

// Store persists index snapshots.
type Store interface {
	// Load returns the stored snapshot or ErrSnapshotNotFound.
	Load(ctx context.Context) (*Snapshot, error)
	// Save replaces the stored snapshot atomically.
	Save(ctx context.Context, snap *Snapshot) error
}

func inconsistent(cause error) error {
	return domain.NewDomainErrorWithCause(domain.ErrCorpusInconsistent.Code, domain.ErrCorpusInconsistent.Message, cause)
}

func encodeSnapshot(snap *Snapshot) ([]byte, error) {
	out := *snap
	if out.Documents == nil {
		out.Documents = []domain.Document{}
	}
	if out.Vectors == nil {
		out.Vectors = [][]float32{}
	}
	return json.Marshal(&out)
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, inconsistent(fmt.Errorf("failed to decode snapshot: %w", err))
	}
	return &snap, nil
}

// FileStore keeps the snapshot in a single JSON file, replaced by
// write-to-temp and rename so readers see either the old or the new file.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*Snapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

func (s *FileStore) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(data); err != nil {
		cleanup()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}
