package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})

	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestSpans_SafeWithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "ConversationService.Chat", SpanAttributes{
		SessionID: "s-1",
		Operation: "chat",
	})
	require.NotNil(t, ctx)

	assert.NotPanics(t, func() {
		span.SetError(errors.New("boom"))
		span.End()
	})

	ctx, tx := StartTransaction(context.Background(), "leadbotd seed", "index.seed")
	require.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		AddBreadcrumb(ctx, "index", "seeded")
		CaptureError(ctx, errors.New("boom"))
		tx.End()
	})
}
