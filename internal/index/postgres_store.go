package index

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PostgresStore keeps the corpus in index_documents with its expected size
// recorded in index_meta. Both tables are rewritten in one transaction.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Load(ctx context.Context) (*Snapshot, error) {
	var count, dimension int
	err := s.pool.QueryRow(ctx,
		`SELECT document_count, dimension FROM index_meta WHERE id = 1`,
	).Scan(&count, &dimension)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSnapshotNotFound
		}
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT title, content, embedding FROM index_documents ORDER BY position ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snap := &Snapshot{Version: SnapshotVersion, Dimension: dimension}
	for rows.Next() {
		var d domain.Document
		var v pgvector.Vector
		if err := rows.Scan(&d.Title, &d.Content, &v); err != nil {
			return nil, err
		}
		snap.Documents = append(snap.Documents, d)
		snap.Vectors = append(snap.Vectors, v.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(snap.Documents) != count {
		return nil, inconsistent(fmt.Errorf("index_meta records %d documents, found %d rows", count, len(snap.Documents)))
	}
	return snap, nil
}

func (s *PostgresStore) Save(ctx context.Context, snap *Snapshot) error {
	if len(snap.Documents) != len(snap.Vectors) {
		return inconsistent(fmt.Errorf("%d documents but %d vectors", len(snap.Documents), len(snap.Vectors)))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}

	if err := saveSnapshotTx(ctx, tx, snap); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

func saveSnapshotTx(ctx context.Context, tx pgx.Tx, snap *Snapshot) error {
	if _, err := tx.Exec(ctx, `DELETE FROM index_documents`); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for n, d := range snap.Documents {
		batch.Queue(
			`INSERT INTO index_documents (position, title, content, embedding) VALUES ($1, $2, $3, $4)`,
			n, d.Title, d.Content, pgvector.NewVector(snap.Vectors[n]),
		)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert index documents: %w", err)
		}
	}

	_, err := tx.Exec(ctx,
		`INSERT INTO index_meta (id, document_count, dimension, updated_at)
		 VALUES (1, $1, $2, NOW())
		 ON CONFLICT (id) DO UPDATE
		 SET document_count = EXCLUDED.document_count, dimension = EXCLUDED.dimension, updated_at = EXCLUDED.updated_at`,
		len(snap.Documents), snap.Dimension,
	)
	return err
}
