package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/cloo-solutions/leadbot/internal/config"
	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/index"
	"github.com/cloo-solutions/leadbot/internal/seed"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
	"github.com/spf13/cobra"
)

// SeedCmd returns the seed command
func SeedCmd() *cobra.Command {
	var (
		file  string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the document index with FAQ documents",
		Long: `Append FAQ documents to the document index.

Without --file the built-in FAQ corpus is used. --clear empties the index
first, which is also how an inconsistent index is rebuilt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd, file, reset)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with a top-level documents list")
	cmd.Flags().BoolVar(&reset, "clear", false, "Clear existing index before seeding")
	addMigrateFlags(cmd)

	return cmd
}

func runSeed(cmd *cobra.Command, file string, reset bool) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	docs := seed.Builtin()
	if file != "" {
		if docs, err = seed.Load(file); err != nil {
			return err
		}
	}

	pool, err := connect(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	idx, openErr := openIndex(ctx, cfg, pool)
	if idx == nil {
		return openErr
	}

	return seedIndex(ctx, out, idx, docs, reset)
}

func seedIndex(ctx context.Context, out io.Writer, idx *index.Index, docs []domain.Document, reset bool) (err error) {
	ctx, span := telemetry.StartTransaction(ctx, "leadbotd seed", "index.seed")
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.End()
	}()

	if reset {
		fmt.Fprintln(out, "Clearing existing index...")
		if err := idx.Reset(ctx); err != nil {
			return err
		}
	}

	if !idx.Stats().Usable {
		return fmt.Errorf("%w: rerun with --clear", domain.ErrCorpusInconsistent)
	}

	fmt.Fprintf(out, "Adding %d FAQ documents to the index...\n", len(docs))
	if err := idx.AddDocuments(ctx, docs); err != nil {
		return fmt.Errorf("failed to seed index: %w", err)
	}
	fmt.Fprintf(out, "Successfully seeded index with %d documents (%d total)\n", len(docs), idx.Stats().Documents)

	fmt.Fprintf(out, "\nTest search for %q:\n", seed.TestQuery)
	printResults(out, idx.Search(ctx, seed.TestQuery, index.DefaultTopK))
	return nil
}

func printResults(out io.Writer, results []domain.SearchResult) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No matching documents")
		return
	}
	for n, r := range results {
		title := r.Title
		if title == "" {
			title = "Untitled"
		}
		fmt.Fprintf(out, "%d. %s (score: %.3f)\n", n+1, title, r.Score)
	}
}
