//go:build integration

package openai

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntegration_Complete_RealAPI(t *testing.T) {
	apiKey := os.Getenv("LEADBOT_OPENAI_API_KEY")
	if apiKey == "" {
		t.Skip("LEADBOT_OPENAI_API_KEY not set, skipping integration test")
	}

	client := NewClient(apiKey)
	ctx := context.Background()

	reply, err := client.Complete(ctx, CompletionRequest{
		Messages:    []Message{{Role: RoleUser, Content: "Reply with the single word: ready"}},
		Temperature: 0.1,
		MaxTokens:   10,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, reply)
}
