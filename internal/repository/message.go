package repository

import (
	"context"
	"fmt"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageRepository struct {
	db dbtx
}

func NewMessageRepository(pool *pgxpool.Pool) *MessageRepository {
	return &MessageRepository{db: pool}
}

func NewMessageRepositoryWithTx(tx pgx.Tx) *MessageRepository {
	return &MessageRepository{db: tx}
}

func (r *MessageRepository) Create(ctx context.Context, m *domain.Message) error {
	if !domain.IsValidSender(m.Sender) {
		return fmt.Errorf("invalid sender %q", m.Sender)
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO messages (session_id, text, sender, created_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id`,
		m.SessionID, m.Text, string(m.Sender), m.CreatedAt,
	).Scan(&m.ID)
}

// ListBySession returns messages oldest first. Messages written in the same
// instant keep insertion order through the serial id.
func (r *MessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, session_id, text, sender, created_at
		 FROM messages WHERE session_id = $1
		 ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		var m domain.Message
		var sender string
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Text, &sender, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Sender = domain.Sender(sender)
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}
