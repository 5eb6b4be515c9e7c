//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/pagination"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/cloo-solutions/leadbot/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func TestSessionRepository_CreateGetTouch(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewSessionRepository(pool)
	session := domain.NewSession(now())

	require.NoError(t, repo.Create(ctx, session))

	got, err := repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.True(t, session.CreatedAt.Equal(got.CreatedAt))

	later := session.UpdatedAt.Add(time.Minute)
	require.NoError(t, repo.Touch(ctx, session.ID, later))
	got, err = repo.GetByID(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, later.Equal(got.UpdatedAt))

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, repo.Touch(ctx, uuid.NewString(), later), domain.ErrSessionNotFound)
}

func TestMessageRepository_CreateAndList(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessions := NewSessionRepository(pool)
	repo := NewMessageRepository(pool)

	session := domain.NewSession(now())
	require.NoError(t, sessions.Create(ctx, session))

	at := now()
	first := domain.NewMessage(session.ID, "Hi", domain.SenderUser, at)
	second := domain.NewMessage(session.ID, "Hello!", domain.SenderAssistant, at)
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))
	assert.NotZero(t, first.ID)
	assert.Greater(t, second.ID, first.ID)

	messages, err := repo.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "Hi", messages[0].Text)
	assert.Equal(t, domain.SenderUser, messages[0].Sender)
	assert.Equal(t, "Hello!", messages[1].Text)
	assert.Equal(t, domain.SenderAssistant, messages[1].Sender)

	empty, err := repo.ListBySession(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestLeadRepository_CreateAndPaginate(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessions := NewSessionRepository(pool)
	repo := NewLeadRepository(pool)

	session := domain.NewSession(now())
	require.NoError(t, sessions.Create(ctx, session))

	name := "John"
	email := "john@x.com"
	base := now()
	var ids []string
	for i := 0; i < 5; i++ {
		q := domain.Qualification{IsLead: true, Name: &name, Email: &email, InterestScore: 0.8}
		lead := domain.NewLead(uuid.NewString(), session.ID, q, "need a chatbot", base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.Create(ctx, lead))
		ids = append(ids, lead.ID)
	}

	page, err := repo.ListWithCursor(ctx, nil, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, ids[4], page.Items[0].ID)
	assert.Equal(t, ids[3], page.Items[1].ID)
	assert.Equal(t, "John", *page.Items[0].Name)
	assert.Equal(t, "Qualified from message: need a chatbot", page.Items[0].Notes)

	var seen []string
	cursor := page.NextCursor
	for _, l := range page.Items {
		seen = append(seen, l.ID)
	}
	for cursor != "" {
		c, err := pagination.DecodeCursor(cursor)
		require.NoError(t, err)
		next, err := repo.ListWithCursor(ctx, c, 2)
		require.NoError(t, err)
		for _, l := range next.Items {
			seen = append(seen, l.ID)
		}
		cursor = next.NextCursor
	}
	assert.Equal(t, []string{ids[4], ids[3], ids[2], ids[1], ids[0]}, seen)
}

func TestLeadRepository_RejectsLeadWithoutContact(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	err := NewLeadRepository(pool).Create(ctx, &domain.Lead{ID: uuid.NewString(), SessionID: uuid.NewString()})
	assert.Error(t, err)
}

func TestTxRunner_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	sessions := NewSessionRepository(pool)
	session := domain.NewSession(now())
	require.NoError(t, sessions.Create(ctx, session))

	runner := NewTxRunner(pool)
	boom := errors.New("boom")
	err := runner.WithTx(ctx, func(repos service.TxRepositories) error {
		msg := domain.NewMessage(session.ID, "reply", domain.SenderAssistant, now())
		if err := repos.Messages().Create(ctx, msg); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	messages, err := NewMessageRepository(pool).ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)

	err = runner.WithTx(ctx, func(repos service.TxRepositories) error {
		msg := domain.NewMessage(session.ID, "reply", domain.SenderAssistant, now())
		if err := repos.Messages().Create(ctx, msg); err != nil {
			return err
		}
		return repos.Sessions().Touch(ctx, session.ID, now())
	})
	require.NoError(t, err)

	messages, err = NewMessageRepository(pool).ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, messages, 1)
}

func TestTxRunner_RejectedLeadRollsBackReply(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	session := domain.NewSession(now())
	require.NoError(t, NewSessionRepository(pool).Create(ctx, session))

	err := NewTxRunner(pool).WithTx(ctx, func(repos service.TxRepositories) error {
		msg := domain.NewMessage(session.ID, "reply", domain.SenderAssistant, now())
		if err := repos.Messages().Create(ctx, msg); err != nil {
			return err
		}
		// a lead without contact details fails validation
		return repos.Leads().Create(ctx, &domain.Lead{ID: uuid.NewString(), SessionID: session.ID})
	})
	require.Error(t, err)

	messages, err := NewMessageRepository(pool).ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
