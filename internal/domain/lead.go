package domain

import (
	"fmt"
	"time"
)

// LeadScoreThreshold is the interest score a qualification must strictly
// exceed before a lead is recorded.
const LeadScoreThreshold = 0.3

// leadNotesExcerpt is the number of characters of the triggering message
// kept in a lead's notes.
const leadNotesExcerpt = 200

// Qualification is the outcome of classifying one visitor message
type Qualification struct {
	IsLead        bool    `json:"is_lead"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	InterestScore float64 `json:"interest_score"`
}

// Lead is a persisted sales lead
type Lead struct {
	ID            string
	Name          *string
	Email         *string
	InterestScore float64
	SessionID     string
	Notes         string
	CreatedAt     time.Time
}

// NoLead returns the negative qualification used whenever classification fails.
func NoLead() Qualification {
	return Qualification{}
}

// HasContact reports whether a name or an email was extracted.
func (q Qualification) HasContact() bool {
	return q.Name != nil || q.Email != nil
}

// ShouldSave reports whether a qualification is strong enough to persist.
func ShouldSave(q Qualification) bool {
	return q.IsLead && q.InterestScore > LeadScoreThreshold && q.HasContact()
}

// NewLead builds a lead record from a qualification and its triggering message
func NewLead(id, sessionID string, q Qualification, message string, createdAt time.Time) *Lead {
	return &Lead{
		ID:            id,
		Name:          q.Name,
		Email:         q.Email,
		InterestScore: q.InterestScore,
		SessionID:     sessionID,
		Notes:         "Qualified from message: " + truncateRunes(message, leadNotesExcerpt),
		CreatedAt:     createdAt,
	}
}

// ValidateLead validates a Lead instance
func ValidateLead(l *Lead) error {
	if l == nil {
		return fmt.Errorf("lead cannot be nil")
	}

	if l.ID == "" {
		return fmt.Errorf("lead ID is required")
	}

	if l.SessionID == "" {
		return fmt.Errorf("lead SessionID is required")
	}

	if l.Name == nil && l.Email == nil {
		return fmt.Errorf("lead needs a name or an email")
	}

	if l.InterestScore < 0 || l.InterestScore > 1 {
		return fmt.Errorf("lead InterestScore out of range: %v", l.InterestScore)
	}

	return nil
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
