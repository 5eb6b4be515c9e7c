package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

// LeadData is the qualification attached to a chat reply.
type LeadData struct {
	IsLead        bool    `json:"is_lead"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	InterestScore float64 `json:"interest_score"`
}

// ChatResponse is the reply to one chat turn.
type ChatResponse struct {
	Reply         string    `json:"reply"`
	SessionID     string    `json:"session_id"`
	LeadQualified bool      `json:"lead_qualified"`
	LeadData      *LeadData `json:"lead_data,omitempty"`
}

// ChatCmd creates the chat command.
func ChatCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant",
		Long: `Sends one message when given as an argument, otherwise reads messages
from stdin line by line until EOF or "exit". The session is kept across turns.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outputJSON, _ := cmd.Flags().GetBool("output")
			api := NewAPIClientWithCmd(cmd)

			if len(args) == 1 {
				_, err := sendChat(cmd.OutOrStdout(), api, sessionID, args[0], outputJSON)
				return err
			}
			return runInteractiveChat(cmd.InOrStdin(), cmd.OutOrStdout(), api, sessionID, outputJSON)
		},
	}

	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "Continue an existing session")

	return cmd
}

func sendChat(out io.Writer, api *APIClient, sessionID, message string, outputJSON bool) (string, error) {
	resp, err := api.Post("/api/chat", ChatRequest{SessionID: sessionID, Message: message})
	if err != nil {
		return sessionID, err
	}

	var chat ChatResponse
	if err := decode(resp, &chat); err != nil {
		return sessionID, err
	}

	if outputJSON {
		printJSON(out, chat)
		return chat.SessionID, nil
	}

	fmt.Fprintf(out, "assistant: %s\n", chat.Reply)
	if chat.LeadQualified && chat.LeadData != nil {
		fmt.Fprintf(out, "  [lead captured: score %.2f]\n", chat.LeadData.InterestScore)
	}
	return chat.SessionID, nil
}

func runInteractiveChat(in io.Reader, out io.Writer, api *APIClient, sessionID string, outputJSON bool) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		next, err := sendChat(out, api, sessionID, line, outputJSON)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = next
	}

	if sessionID != "" {
		fmt.Fprintf(out, "session: %s\n", sessionID)
	}
	return scanner.Err()
}
