package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRoot(serverURL string, args ...string) (*cobra.Command, *bytes.Buffer) {
	root := &cobra.Command{Use: "leadbot", SilenceUsage: true, SilenceErrors: true}
	AddGlobalFlags(root)
	root.AddCommand(ChatCmd(), HistoryCmd(), LeadsCmd())

	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetArgs(append(args, "--api-url", serverURL))
	return root, out
}

func writeData(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"data": data})
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"message is required"}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL, "").Post("/api/chat", ChatRequest{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "message is required", apiErr.Message)
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL+"/", "").Get("/health", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestAPIClientWithCmd_EnvFallback(t *testing.T) {
	t.Setenv(envAPIURL, "http://example.test/")
	t.Setenv(envAdminToken, "secret")

	api := NewAPIClientWithCmd(nil)

	assert.Equal(t, "http://example.test", api.baseURL)
	assert.Equal(t, "secret", api.adminToken)
}

func TestAPIClientWithCmd_Default(t *testing.T) {
	t.Setenv(envAPIURL, "")
	t.Setenv(envAdminToken, "")

	assert.Equal(t, defaultAPIURL, NewAPIClientWithCmd(nil).baseURL)
}

func TestChatCmd_OneShot(t *testing.T) {
	var got ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeData(w, http.StatusOK, ChatResponse{
			Reply:         "Hello! How can I help you today?",
			SessionID:     "s-1",
			LeadQualified: true,
			LeadData:      &LeadData{IsLead: true, InterestScore: 0.8},
		})
	}))
	defer srv.Close()

	root, out := newRoot(srv.URL, "chat", "hello", "--session", "s-0")
	require.NoError(t, root.Execute())

	assert.Equal(t, ChatRequest{SessionID: "s-0", Message: "hello"}, got)
	assert.Contains(t, out.String(), "assistant: Hello! How can I help you today?")
	assert.Contains(t, out.String(), "[lead captured: score 0.80]")
}

func TestChatCmd_InteractiveKeepsSession(t *testing.T) {
	var sessions []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		sessions = append(sessions, req.SessionID)
		writeData(w, http.StatusOK, ChatResponse{Reply: "ok", SessionID: "s-1"})
	}))
	defer srv.Close()

	root, out := newRoot(srv.URL, "chat")
	root.SetIn(strings.NewReader("hi\n\nwhat are your prices?\nexit\nignored\n"))
	require.NoError(t, root.Execute())

	assert.Equal(t, []string{"", "s-1"}, sessions)
	assert.Contains(t, out.String(), "session: s-1")
}

func TestHistoryCmd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/sessions/s-1/history", r.URL.Path)
		writeData(w, http.StatusOK, HistoryResponse{
			SessionID: "s-1",
			Messages: []*MessageResponse{
				{ID: 1, Text: "hi", Sender: "user"},
				{ID: 2, Text: "Hello!", Sender: "assistant"},
			},
		})
	}))
	defer srv.Close()

	root, out := newRoot(srv.URL, "history", "s-1")
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "user: hi")
	assert.Contains(t, out.String(), "assistant: Hello!")
}

func TestLeadsCmd_SendsTokenAndQuery(t *testing.T) {
	name := "John"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		assert.Equal(t, "abc", r.URL.Query().Get("cursor"))
		writeData(w, http.StatusOK, LeadListResponse{
			Items:   []*LeadResponse{{ID: "lead-1", Name: &name, InterestScore: 0.8}},
			Cursor:  "def",
			HasMore: true,
		})
	}))
	defer srv.Close()

	root, out := newRoot(srv.URL, "leads", "-n", "5", "--cursor", "abc", "--admin-token", "secret")
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "lead-1: John <-> score 0.80")
	assert.Contains(t, out.String(), "--cursor def")
}

func TestLeadsCmd_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"missing authorization header"}`))
	}))
	defer srv.Close()

	root, _ := newRoot(srv.URL, "leads")
	err := root.Execute()

	assert.EqualError(t, err, "API error (401): missing authorization header")
}

func TestFlagString_Unregistered(t *testing.T) {
	cmd := &cobra.Command{Use: "x"}
	cmd.Flags().String("api-url", "http://flag.test", "")

	assert.Equal(t, "http://flag.test", flagString(cmd.Flags(), "api-url"))
	assert.Empty(t, flagString(cmd.Flags(), "admin-token"))
}
