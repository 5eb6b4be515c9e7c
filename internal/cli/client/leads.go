package client

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

type LeadResponse struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	InterestScore float64 `json:"interest_score"`
	SessionID     string  `json:"session_id"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type LeadListResponse struct {
	Items   []*LeadResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

// LeadsCmd creates the leads command.
func LeadsCmd() *cobra.Command {
	var (
		limit  int
		cursor string
	)

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "List captured leads (requires the admin token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)

			query := url.Values{}
			if limit > 0 {
				query.Set("limit", strconv.Itoa(limit))
			}
			if cursor != "" {
				query.Set("cursor", cursor)
			}

			resp, err := api.Get("/api/leads", query)
			if err != nil {
				return err
			}

			var page LeadListResponse
			if err := decode(resp, &page); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				printJSON(out, page)
				return nil
			}

			if len(page.Items) == 0 {
				fmt.Fprintln(out, "No leads found")
				return nil
			}
			for _, l := range page.Items {
				fmt.Fprintf(out, "  %s: %s <%s> score %.2f\n", l.ID, valueOr(l.Name), valueOr(l.Email), l.InterestScore)
			}
			if page.HasMore && page.Cursor != "" {
				fmt.Fprintf(out, "\nMore results available. Use --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of results")
	cmd.Flags().StringVar(&cursor, "cursor", "", "Pagination cursor from previous response")

	return cmd
}

func valueOr(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
