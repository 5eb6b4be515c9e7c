package admin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloo-solutions/leadbot/internal/config"
	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/pagination"
	"github.com/cloo-solutions/leadbot/internal/repository"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/spf13/cobra"
)

func LeadsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect captured leads",
	}

	cmd.AddCommand(LeadsListCmd())

	return cmd
}

func LeadsListCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputFormat, _ := cmd.Flags().GetString("output")
			return runLeadsList(cmd, outputFormat, limit, cursor)
		},
	}

	cmd.Flags().StringP("output", "o", "text", "Output format (text or json)")
	cmd.Flags().IntVarP(&limit, "limit", "n", service.DefaultLeadPageSize, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")
	addMigrateFlags(cmd)

	return cmd
}

func runLeadsList(cmd *cobra.Command, outputFormat string, limit int, cursorStr string) error {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if limit <= 0 || limit > service.MaxLeadPageSize {
		return fmt.Errorf("--limit must be between 1 and %d", service.MaxLeadPageSize)
	}

	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return domain.ErrInvalidCursor
	}

	pool, err := connect(ctx, cmd, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	result, err := repository.NewLeadRepository(pool).ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return fmt.Errorf("failed to list leads: %w", err)
	}

	return printLeads(cmd.OutOrStdout(), outputFormat, result)
}

func printLeads(out io.Writer, outputFormat string, result *service.LeadPageResult) error {
	if outputFormat == "json" {
		data := make([]map[string]interface{}, len(result.Items))
		for i, l := range result.Items {
			data[i] = map[string]interface{}{
				"id":             l.ID,
				"name":           l.Name,
				"email":          l.Email,
				"interest_score": l.InterestScore,
				"session_id":     l.SessionID,
				"notes":          l.Notes,
				"created_at":     l.CreatedAt,
			}
		}
		output := map[string]interface{}{
			"items":    data,
			"cursor":   result.NextCursor,
			"has_more": result.HasMore,
		}
		jsonBytes, _ := json.MarshalIndent(output, "", "  ")
		fmt.Fprintln(out, string(jsonBytes))
		return nil
	}

	if len(result.Items) == 0 {
		fmt.Fprintln(out, "No leads found")
		return nil
	}
	fmt.Fprintln(out, "Leads:")
	for _, l := range result.Items {
		fmt.Fprintf(out, "  %s: %s <%s> score %.2f (session %s, %s)\n",
			l.ID, deref(l.Name, "-"), deref(l.Email, "-"), l.InterestScore, l.SessionID,
			l.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	if result.HasMore && result.NextCursor != "" {
		fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", result.NextCursor)
	}
	return nil
}

func deref(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
