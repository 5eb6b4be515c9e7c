package repository

import (
	"context"
	"time"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/pagination"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LeadRepository struct {
	db dbtx
}

func NewLeadRepository(pool *pgxpool.Pool) *LeadRepository {
	return &LeadRepository{db: pool}
}

func NewLeadRepositoryWithTx(tx pgx.Tx) *LeadRepository {
	return &LeadRepository{db: tx}
}

func (r *LeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	if err := domain.ValidateLead(l); err != nil {
		return err
	}

	_, err := r.db.Exec(ctx,
		`INSERT INTO leads (id, name, email, interest_score, session_id, notes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		l.ID, l.Name, l.Email, l.InterestScore, l.SessionID, nullableString(l.Notes), l.CreatedAt,
	)
	return err
}

// ListWithCursor returns leads newest first, resuming after cursor when set.
func (r *LeadRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*service.LeadPageResult, error) {
	if limit <= 0 {
		limit = service.DefaultLeadPageSize
	}

	var rows pgx.Rows
	var err error

	if cursor != nil {
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, interest_score, session_id, notes, created_at
			 FROM leads
			 WHERE (created_at, id) < ($1, $2)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $3`,
			cursor.Timestamp, cursor.LastID, limit+1,
		)
	} else {
		rows, err = r.db.Query(ctx,
			`SELECT id, name, email, interest_score, session_id, notes, created_at
			 FROM leads
			 ORDER BY created_at DESC, id DESC
			 LIMIT $1`,
			limit+1,
		)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads, err := scanLeadRows(rows)
	if err != nil {
		return nil, err
	}

	items, next, hasMore := pagination.Page(leads, limit, func(l *domain.Lead) (string, time.Time) {
		return l.ID, l.CreatedAt
	})

	return &service.LeadPageResult{
		Items:      items,
		NextCursor: next,
		HasMore:    hasMore,
	}, nil
}

func scanLeadRows(rows pgx.Rows) ([]*domain.Lead, error) {
	leads := []*domain.Lead{}
	for rows.Next() {
		var l domain.Lead
		var notes *string
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.InterestScore, &l.SessionID, &notes, &l.CreatedAt); err != nil {
			return nil, err
		}
		if notes != nil {
			l.Notes = *notes
		}
		leads = append(leads, &l)
	}
	return leads, rows.Err()
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
