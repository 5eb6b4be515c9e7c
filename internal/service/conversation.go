package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/index"
	"github.com/cloo-solutions/leadbot/internal/pagination"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
	"github.com/google/uuid"
)

const (
	DefaultLeadPageSize = 20
	MaxLeadPageSize     = 100
)

// SessionRepositoryInterface defines the repository interface for session persistence
type SessionRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Session) error
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepositoryInterface defines the repository interface for message persistence
type MessageRepositoryInterface interface {
	// Create inserts m and sets its ID
	Create(ctx context.Context, m *domain.Message) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error)
}

// LeadRepositoryInterface defines the repository interface for lead persistence
type LeadRepositoryInterface interface {
	Create(ctx context.Context, l *domain.Lead) error
	ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*LeadPageResult, error)
}

type LeadPageResult struct {
	Items      []*domain.Lead
	NextCursor string
	HasMore    bool
}

// ContextRetriever supplies FAQ context for a prompt
type ContextRetriever interface {
	GetContext(ctx context.Context, query string, topK int) string
}

// ReplyGenerator produces the assistant reply
type ReplyGenerator interface {
	Generate(ctx context.Context, prompt, sessionID, retrievalContext string) string
}

// LeadClassifier qualifies a visitor message
type LeadClassifier interface {
	Classify(ctx context.Context, message string) domain.Qualification
	ShouldSave(q domain.Qualification) bool
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

type ChatInput struct {
	SessionID string
	Message   string
}

type ChatOutput struct {
	Reply         string
	SessionID     string
	LeadQualified bool
	// LeadData is set only when a lead was saved
	LeadData *domain.Qualification
}

type SessionHistory struct {
	Session  *domain.Session
	Messages []*domain.Message
}

type ListLeadsInput struct {
	Cursor string
	Limit  int
}

type ListLeadsOutput struct {
	Leads      []*domain.Lead
	NextCursor string
	HasMore    bool
}

// ConversationService runs one chat turn end to end
type ConversationService struct {
	sessionRepo SessionRepositoryInterface
	messageRepo MessageRepositoryInterface
	leadRepo    LeadRepositoryInterface
	txRunner    TxRunner
	retriever   ContextRetriever
	generator   ReplyGenerator
	classifier  LeadClassifier
	uuidGen     UUIDGenerator
	now         func() time.Time
}

// NewConversationService creates a new ConversationService instance
func NewConversationService(
	sessionRepo SessionRepositoryInterface,
	messageRepo MessageRepositoryInterface,
	leadRepo LeadRepositoryInterface,
	txRunner TxRunner,
	retriever ContextRetriever,
	generator ReplyGenerator,
	classifier LeadClassifier,
) *ConversationService {
	return &ConversationService{
		sessionRepo: sessionRepo,
		messageRepo: messageRepo,
		leadRepo:    leadRepo,
		txRunner:    txRunner,
		retriever:   retriever,
		generator:   generator,
		classifier:  classifier,
		uuidGen:     &DefaultUUIDGenerator{},
		now:         time.Now,
	}
}

// WithUUIDGen replaces the lead id generator (for testing)
func (s *ConversationService) WithUUIDGen(gen UUIDGenerator) *ConversationService {
	s.uuidGen = gen
	return s
}

// WithClock replaces the time source (for testing)
func (s *ConversationService) WithClock(now func() time.Time) *ConversationService {
	s.now = now
	return s
}

// Chat handles one visitor message. Once validation has passed the turn
// runs to completion even if the caller goes away; only persistence
// failures are returned.
func (s *ConversationService) Chat(ctx context.Context, input ChatInput) (*ChatOutput, error) {
	if err := domain.ValidateChatMessage(input.Message); err != nil {
		return nil, err
	}
	requestedID, err := domain.ParseSessionID(input.SessionID)
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	ctx, span := telemetry.StartSpan(ctx, "ConversationService.Chat", telemetry.SpanAttributes{
		SessionID: requestedID,
		Operation: "chat",
	})
	defer span.End()

	session, err := s.resolveSession(ctx, requestedID)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	userMsg := domain.NewMessage(session.ID, input.Message, domain.SenderUser, s.now())
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		span.SetError(err)
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}

	retrieval := s.retriever.GetContext(ctx, input.Message, index.DefaultTopK)
	reply := s.generateReply(ctx, input.Message, session.ID, retrieval)

	qualification := s.classifier.Classify(ctx, input.Message)
	var lead *domain.Lead
	if s.classifier.ShouldSave(qualification) {
		lead = domain.NewLead(s.uuidGen.NewString(), session.ID, qualification, input.Message, s.now())
	}

	now := s.now()
	err = s.txRunner.WithTx(ctx, func(repos TxRepositories) error {
		if err := repos.Messages().Create(ctx, domain.NewMessage(session.ID, reply, domain.SenderAssistant, now)); err != nil {
			return fmt.Errorf("failed to save reply: %w", err)
		}
		if lead != nil {
			if err := repos.Leads().Create(ctx, lead); err != nil {
				return fmt.Errorf("failed to save lead: %w", err)
			}
		}
		return repos.Sessions().Touch(ctx, session.ID, now)
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	out := &ChatOutput{
		Reply:     reply,
		SessionID: session.ID,
	}
	if lead != nil {
		out.LeadQualified = true
		out.LeadData = &qualification
		log.Printf("lead %s saved from session %s (score %.2f)", lead.ID, session.ID, lead.InterestScore)
	}
	return out, nil
}

// resolveSession returns the requested session, or a new one when id is
// empty or unknown.
func (s *ConversationService) resolveSession(ctx context.Context, id string) (*domain.Session, error) {
	if id != "" {
		session, err := s.sessionRepo.GetByID(ctx, id)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, domain.ErrSessionNotFound) {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
	}

	session := domain.NewSession(s.now())
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

func (s *ConversationService) generateReply(ctx context.Context, prompt, sessionID, retrieval string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("chat: reply generation panicked for session %s: %v", sessionID, r)
			telemetry.CaptureError(ctx, fmt.Errorf("reply generation panic: %v", r))
			reply = FallbackReply
		}
	}()
	return s.generator.Generate(ctx, prompt, sessionID, retrieval)
}

// History returns a session with its messages in chronological order. An id
// that is not a UUID cannot name a session and is reported as not found.
func (s *ConversationService) History(ctx context.Context, sessionID string) (*SessionHistory, error) {
	id, err := domain.ParseSessionID(sessionID)
	if err != nil || id == "" {
		return nil, domain.ErrSessionNotFound
	}

	session, err := s.sessionRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	messages, err := s.messageRepo.ListBySession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return &SessionHistory{Session: session, Messages: messages}, nil
}

// ListLeads returns saved leads, most recent first.
func (s *ConversationService) ListLeads(ctx context.Context, input ListLeadsInput) (*ListLeadsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultLeadPageSize
	}
	if limit > MaxLeadPageSize {
		limit = MaxLeadPageSize
	}

	cursor, err := pagination.DecodeCursor(input.Cursor)
	if err != nil {
		return nil, domain.ErrInvalidCursor
	}

	page, err := s.leadRepo.ListWithCursor(ctx, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}

	return &ListLeadsOutput{
		Leads:      page.Items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	}, nil
}
