package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cloo-solutions/leadbot/internal/config"
	"github.com/cloo-solutions/leadbot/internal/index"
	"github.com/spf13/cobra"
)

func IndexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect the document index",
	}

	cmd.AddCommand(IndexSearchCmd())
	cmd.AddCommand(IndexStatsCmd())

	return cmd
}

func IndexSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the best matching documents and their scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runIndexSearch(cmd, args[0], topK, outputFormat)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", index.DefaultTopK, "Number of results")
	addMigrateFlags(cmd)

	return cmd
}

func runIndexSearch(cmd *cobra.Command, query string, topK int, outputFormat string) error {
	ctx := context.Background()
	out := cmd.OutOrStdout()

	idx, cleanup, err := loadIndex(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	results := idx.Search(ctx, query, topK)
	if outputFormat == "json" {
		jsonBytes, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	printResults(out, results)
	return nil
}

func IndexStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show document and vector counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			idx, cleanup, err := loadIndex(ctx, cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			jsonBytes, _ := json.MarshalIndent(idx.Stats(), "", "  ")
			fmt.Fprintln(cmd.OutOrStdout(), string(jsonBytes))
			return nil
		},
	}
	addMigrateFlags(cmd)

	return cmd
}

// loadIndex opens the configured index read-only for inspection. An
// inconsistent index is returned as is so its stats can still be shown.
func loadIndex(ctx context.Context, cmd *cobra.Command) (*index.Index, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := connect(ctx, cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	idx, err := openIndex(ctx, cfg, pool)
	if idx == nil {
		pool.Close()
		return nil, nil, err
	}
	return idx, pool.Close, nil
}
