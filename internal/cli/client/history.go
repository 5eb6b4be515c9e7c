package client

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

type MessageResponse struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
	Messages  []*MessageResponse `json:"messages"`
}

// HistoryCmd creates the history command.
func HistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>",
		Short: "Show the messages of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)

			resp, err := api.Get("/api/sessions/"+url.PathEscape(args[0])+"/history", nil)
			if err != nil {
				return err
			}

			var history HistoryResponse
			if err := decode(resp, &history); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				printJSON(out, history)
				return nil
			}

			fmt.Fprintf(out, "Session %s (started %s)\n", history.SessionID, history.CreatedAt)
			for _, m := range history.Messages {
				fmt.Fprintf(out, "[%s] %s: %s\n", m.CreatedAt, m.Sender, m.Text)
			}
			return nil
		},
	}
}
