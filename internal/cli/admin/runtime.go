package admin

import (
	"context"
	"fmt"
	"log"

	"github.com/cloo-solutions/leadbot/internal/config"
	"github.com/cloo-solutions/leadbot/internal/database"
	"github.com/cloo-solutions/leadbot/internal/embedding"
	"github.com/cloo-solutions/leadbot/internal/index"
	"github.com/cloo-solutions/leadbot/internal/storage"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

func addMigrateFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")
	cmd.Flags().String("migrations", database.DefaultMigrationsDir, "Directory containing SQL migrations")
}

// connect opens the pool and applies migrations unless --no-migrate is set.
func connect(ctx context.Context, cmd *cobra.Command, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := database.NewPool(ctx, database.Config{URL: cfg.DatabaseURL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	log.Println("connected to database")

	noMigrate, _ := cmd.Flags().GetBool("no-migrate")
	if noMigrate {
		return pool, nil
	}

	dir, _ := cmd.Flags().GetString("migrations")
	if err := database.Migrate(cfg.DatabaseURL, dir); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return pool, nil
}

// newIndexStore builds the snapshot store selected by INDEX_STORE.
func newIndexStore(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (index.Store, error) {
	switch cfg.IndexStore {
	case config.IndexStorePostgres:
		return index.NewPostgresStore(pool), nil
	case config.IndexStoreS3:
		client, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			Bucket:          cfg.S3Bucket,
			UsePathStyle:    true,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 client: %w", err)
		}
		if err := client.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure S3 bucket: %w", err)
		}
		log.Printf("S3 bucket '%s' ready", cfg.S3Bucket)
		return index.NewS3Store(client, cfg.IndexS3Key), nil
	default:
		return index.NewFileStore(cfg.IndexPath), nil
	}
}

// openIndex loads the document index. An inconsistent snapshot is reported
// and the unusable index is still returned so the caller can serve without
// retrieval or reset it.
func openIndex(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*index.Index, error) {
	store, err := newIndexStore(ctx, cfg, pool)
	if err != nil {
		return nil, err
	}

	idx, err := index.Open(ctx, store, embedding.NewHashEmbedder(cfg.IndexDimension))
	if err != nil {
		if idx == nil {
			return nil, fmt.Errorf("failed to open document index: %w", err)
		}
		telemetry.CaptureError(ctx, err)
		log.Printf("index: %v (run 'leadbotd seed --clear' to rebuild)", err)
		return idx, err
	}

	stats := idx.Stats()
	log.Printf("index: %d documents loaded from %s store", stats.Documents, cfg.IndexStore)
	return idx, nil
}

