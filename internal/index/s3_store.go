package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/leadbot/internal/storage"
)

// ObjectStorage is the blob storage used by S3Store
type ObjectStorage interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// S3Store keeps the snapshot as a single object. A PutObject replaces the
// object as a whole, so readers never see a partial snapshot.
type S3Store struct {
	client ObjectStorage
	key    string
}

func NewS3Store(client ObjectStorage, key string) *S3Store {
	return &S3Store{client: client, key: key}
}

func (s *S3Store) Load(ctx context.Context) (*Snapshot, error) {
	data, err := s.client.GetObject(ctx, s.key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}
	return decodeSnapshot(data)
}

func (s *S3Store) Save(ctx context.Context, snap *Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return s.client.PutObject(ctx, s.key, data, "application/json")
}
