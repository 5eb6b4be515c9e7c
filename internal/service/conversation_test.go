package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloo-solutions/leadbot/internal/cache"
	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSessionRepository is a mock implementation of SessionRepositoryInterface
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) Create(ctx context.Context, s *domain.Session) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *MockSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Session), args.Error(1)
}

func (m *MockSessionRepository) Touch(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockMessageRepository is a mock implementation of MessageRepositoryInterface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) ListBySession(ctx context.Context, sessionID string) ([]*domain.Message, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Message), args.Error(1)
}

// MockLeadRepository is a mock implementation of LeadRepositoryInterface
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Create(ctx context.Context, l *domain.Lead) error {
	args := m.Called(ctx, l)
	return args.Error(0)
}

func (m *MockLeadRepository) ListWithCursor(ctx context.Context, cursor *pagination.Cursor, limit int) (*LeadPageResult, error) {
	args := m.Called(ctx, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*LeadPageResult), args.Error(1)
}

// MockRetriever is a mock implementation of ContextRetriever
type MockRetriever struct {
	mock.Mock
}

func (m *MockRetriever) GetContext(ctx context.Context, query string, topK int) string {
	args := m.Called(ctx, query, topK)
	return args.String(0)
}

// MockGenerator is a mock implementation of ReplyGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, prompt, sessionID, retrievalContext string) string {
	args := m.Called(ctx, prompt, sessionID, retrievalContext)
	return args.String(0)
}

// MockClassifier is a mock implementation of LeadClassifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) Classify(ctx context.Context, message string) domain.Qualification {
	args := m.Called(ctx, message)
	return args.Get(0).(domain.Qualification)
}

func (m *MockClassifier) ShouldSave(q domain.Qualification) bool {
	return domain.ShouldSave(q)
}

// MockUUIDGenerator is a mock implementation of UUIDGenerator
type MockUUIDGenerator struct {
	callCount int
	uuids     []string
}

func NewMockUUIDGenerator(uuids ...string) *MockUUIDGenerator {
	return &MockUUIDGenerator{uuids: uuids}
}

func (m *MockUUIDGenerator) NewString() string {
	if m.callCount < len(m.uuids) {
		id := m.uuids[m.callCount]
		m.callCount++
		return id
	}
	return "default-uuid"
}

const existingSessionID = "7f2c1a9e-3b4d-4e5f-8a6b-1c2d3e4f5a6b"

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type conversationFixture struct {
	sessions   *MockSessionRepository
	messages   *MockMessageRepository
	leads      *MockLeadRepository
	tx         *testTxRunner
	retriever  *MockRetriever
	generator  *MockGenerator
	classifier *MockClassifier
	svc        *ConversationService
}

func newConversationFixture() *conversationFixture {
	f := &conversationFixture{
		sessions:   new(MockSessionRepository),
		messages:   new(MockMessageRepository),
		leads:      new(MockLeadRepository),
		retriever:  new(MockRetriever),
		generator:  new(MockGenerator),
		classifier: new(MockClassifier),
	}
	f.tx = &testTxRunner{repos: &testTxRepos{sessions: f.sessions, messages: f.messages, leads: f.leads}}
	f.svc = NewConversationService(f.sessions, f.messages, f.leads, f.tx, f.retriever, f.generator, f.classifier).
		WithUUIDGen(NewMockUUIDGenerator("lead-1")).
		WithClock(func() time.Time { return fixedNow })
	return f
}

func senderIs(sender domain.Sender, text string) interface{} {
	return mock.MatchedBy(func(m *domain.Message) bool {
		return m.Sender == sender && m.Text == text
	})
}

func (f *conversationFixture) expectNewSession() {
	f.sessions.On("Create", mock.Anything, mock.AnythingOfType("*domain.Session")).Return(nil)
}

func (f *conversationFixture) expectTurn(message, retrieval, reply string) {
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderUser, message)).Return(nil).Once()
	f.retriever.On("GetContext", mock.Anything, message, 3).Return(retrieval)
	f.generator.On("Generate", mock.Anything, message, mock.Anything, retrieval).Return(reply)
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderAssistant, reply)).Return(nil).Once()
	f.sessions.On("Touch", mock.Anything, mock.Anything, fixedNow).Return(nil)
}

func TestConversationService_Chat_GreetingFromFreshSession(t *testing.T) {
	f := newConversationFixture()
	client := new(MockCompletionClient)
	f.svc.generator = NewGateway(client, cache.NewMemoryCache(), GatewayConfig{})

	f.expectNewSession()
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderUser, "Hi")).Return(nil).Once()
	f.retriever.On("GetContext", mock.Anything, "Hi", 3).Return("")
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderAssistant, greeting())).Return(nil).Once()
	f.sessions.On("Touch", mock.Anything, mock.Anything, fixedNow).Return(nil)
	f.classifier.On("Classify", mock.Anything, "Hi").Return(domain.NoLead())

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: "Hi"})

	require.NoError(t, err)
	assert.Equal(t, greeting(), out.Reply)
	assert.False(t, out.LeadQualified)
	assert.Nil(t, out.LeadData)
	_, parseErr := domain.ParseSessionID(out.SessionID)
	assert.NoError(t, parseErr)
	assert.NotEmpty(t, out.SessionID)
	client.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
	f.leads.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.messages.AssertExpectations(t)
	assert.True(t, f.tx.called)
}

func TestConversationService_Chat_SavesQualifiedLead(t *testing.T) {
	f := newConversationFixture()
	message := "I'm John, john@x.com, need a chatbot ASAP"
	q := domain.Qualification{IsLead: true, Name: strPtr("John"), Email: strPtr("john@x.com"), InterestScore: 0.8}

	f.expectNewSession()
	f.expectTurn(message, "1. Pricing Plans: ...", "Great, let's talk.")
	f.classifier.On("Classify", mock.Anything, message).Return(q)
	f.leads.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Lead) bool {
		return l.ID == "lead-1" &&
			*l.Name == "John" &&
			*l.Email == "john@x.com" &&
			l.InterestScore == 0.8 &&
			l.Notes == "Qualified from message: "+message &&
			l.CreatedAt.Equal(fixedNow)
	})).Return(nil)

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	require.NoError(t, err)
	assert.Equal(t, "Great, let's talk.", out.Reply)
	assert.True(t, out.LeadQualified)
	require.NotNil(t, out.LeadData)
	assert.Equal(t, q, *out.LeadData)
	f.leads.AssertExpectations(t)
}

func TestConversationService_Chat_LeadSessionMatchesOutput(t *testing.T) {
	f := newConversationFixture()
	message := "Contact me: ana@example.com about automation"
	q := domain.Qualification{IsLead: true, Email: strPtr("ana@example.com"), InterestScore: 0.5}
	existing := &domain.Session{ID: existingSessionID, CreatedAt: fixedNow, UpdatedAt: fixedNow}

	f.sessions.On("GetByID", mock.Anything, existingSessionID).Return(existing, nil)
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(q)
	f.leads.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Lead) bool {
		return l.SessionID == existingSessionID
	})).Return(nil)

	out, err := f.svc.Chat(context.Background(), ChatInput{SessionID: existingSessionID, Message: message})

	require.NoError(t, err)
	assert.Equal(t, existingSessionID, out.SessionID)
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.leads.AssertExpectations(t)
}

func TestConversationService_Chat_NotesTruncatedTo200Characters(t *testing.T) {
	f := newConversationFixture()
	message := "contact me " + strings.Repeat("é", 300)
	q := domain.Qualification{IsLead: true, Name: strPtr("Zoë"), InterestScore: 0.9}

	f.expectNewSession()
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(q)
	f.leads.On("Create", mock.Anything, mock.MatchedBy(func(l *domain.Lead) bool {
		excerpt := strings.TrimPrefix(l.Notes, "Qualified from message: ")
		return len([]rune(excerpt)) == 200 && strings.HasPrefix(message, excerpt)
	})).Return(nil)

	_, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	require.NoError(t, err)
	f.leads.AssertExpectations(t)
}

func TestConversationService_Chat_BelowThresholdNotSaved(t *testing.T) {
	f := newConversationFixture()
	message := "I'm Sam, just browsing"
	q := domain.Qualification{IsLead: true, Name: strPtr("Sam"), InterestScore: 0.3}

	f.expectNewSession()
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(q)

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	require.NoError(t, err)
	assert.False(t, out.LeadQualified)
	assert.Nil(t, out.LeadData)
	f.leads.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConversationService_Chat_UnknownSessionStartsNewOne(t *testing.T) {
	f := newConversationFixture()
	message := "Tell me more"

	f.sessions.On("GetByID", mock.Anything, existingSessionID).Return(nil, domain.ErrSessionNotFound)
	f.expectNewSession()
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(domain.NoLead())

	out, err := f.svc.Chat(context.Background(), ChatInput{SessionID: existingSessionID, Message: message})

	require.NoError(t, err)
	assert.NotEqual(t, existingSessionID, out.SessionID)
	f.sessions.AssertCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConversationService_Chat_SessionLookupError(t *testing.T) {
	f := newConversationFixture()
	f.sessions.On("GetByID", mock.Anything, existingSessionID).Return(nil, errors.New("db down"))

	out, err := f.svc.Chat(context.Background(), ChatInput{SessionID: existingSessionID, Message: "hello"})

	assert.Nil(t, out)
	assert.ErrorContains(t, err, "failed to load session")
	f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestConversationService_Chat_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input ChatInput
		want  error
	}{
		{"empty message", ChatInput{Message: ""}, domain.ErrInvalidMessage},
		{"blank message", ChatInput{Message: "   \n"}, domain.ErrInvalidMessage},
		{"too long", ChatInput{Message: strings.Repeat("a", domain.MaxMessageLength+1)}, domain.ErrMessageTooLong},
		{"malformed session", ChatInput{SessionID: "not-a-uuid", Message: "hi"}, domain.ErrInvalidSessionID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newConversationFixture()

			out, err := f.svc.Chat(context.Background(), tt.input)

			assert.Nil(t, out)
			assert.ErrorIs(t, err, tt.want)
			f.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			f.messages.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			assert.False(t, f.tx.called)
		})
	}
}

func TestConversationService_Chat_MaxLengthAccepted(t *testing.T) {
	f := newConversationFixture()
	message := strings.Repeat("a", domain.MaxMessageLength)

	f.expectNewSession()
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(domain.NoLead())

	_, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	assert.NoError(t, err)
}

func TestConversationService_Chat_GeneratorPanicBecomesFallback(t *testing.T) {
	f := newConversationFixture()
	message := "Tell me more"

	f.expectNewSession()
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderUser, message)).Return(nil).Once()
	f.retriever.On("GetContext", mock.Anything, message, 3).Return("")
	f.generator.On("Generate", mock.Anything, message, mock.Anything, "").Run(func(mock.Arguments) {
		panic("boom")
	})
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderAssistant, FallbackReply)).Return(nil).Once()
	f.sessions.On("Touch", mock.Anything, mock.Anything, fixedNow).Return(nil)
	f.classifier.On("Classify", mock.Anything, message).Return(domain.NoLead())

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	require.NoError(t, err)
	assert.Equal(t, FallbackReply, out.Reply)
	f.messages.AssertExpectations(t)
}

func TestConversationService_Chat_UserMessagePersistFailure(t *testing.T) {
	f := newConversationFixture()
	f.expectNewSession()
	f.messages.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: "Tell me more"})

	assert.Nil(t, out)
	assert.ErrorContains(t, err, "failed to save user message")
	f.generator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationService_Chat_TransactionFailure(t *testing.T) {
	f := newConversationFixture()
	message := "Tell me more"

	f.expectNewSession()
	f.messages.On("Create", mock.Anything, senderIs(domain.SenderUser, message)).Return(nil).Once()
	f.retriever.On("GetContext", mock.Anything, message, 3).Return("")
	f.generator.On("Generate", mock.Anything, message, mock.Anything, "").Return("reply")
	f.classifier.On("Classify", mock.Anything, message).Return(domain.NoLead())
	f.tx.err = errors.New("tx failed")

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	assert.Nil(t, out)
	assert.ErrorContains(t, err, "tx failed")
}

func TestConversationService_Chat_LeadPersistFailure(t *testing.T) {
	f := newConversationFixture()
	message := "I'm John, john@x.com"

	f.expectNewSession()
	f.expectTurn(message, "", "reply")
	f.classifier.On("Classify", mock.Anything, message).Return(domain.Qualification{IsLead: true, Name: strPtr("John"), InterestScore: 0.9})
	f.leads.On("Create", mock.Anything, mock.Anything).Return(errors.New("constraint"))

	out, err := f.svc.Chat(context.Background(), ChatInput{Message: message})

	assert.Nil(t, out)
	assert.ErrorContains(t, err, "failed to save lead")
	f.classifier.AssertCalled(t, "Classify", mock.Anything, message)
	f.sessions.AssertNotCalled(t, "Touch", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationService_Chat_CancelledCallerStillCompletes(t *testing.T) {
	f := newConversationFixture()
	message := "Tell me more"
	live := mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil })

	f.sessions.On("Create", live, mock.Anything).Return(nil)
	f.messages.On("Create", live, mock.Anything).Return(nil)
	f.retriever.On("GetContext", live, message, 3).Return("")
	f.generator.On("Generate", live, message, mock.Anything, "").Return("reply")
	f.sessions.On("Touch", live, mock.Anything, fixedNow).Return(nil)
	f.classifier.On("Classify", live, message).Return(domain.NoLead())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.svc.Chat(ctx, ChatInput{Message: message})

	require.NoError(t, err)
	assert.Equal(t, "reply", out.Reply)
	f.messages.AssertNumberOfCalls(t, "Create", 2)
}

func TestConversationService_History(t *testing.T) {
	f := newConversationFixture()
	session := &domain.Session{ID: existingSessionID, CreatedAt: fixedNow, UpdatedAt: fixedNow}
	messages := []*domain.Message{
		{ID: 1, SessionID: existingSessionID, Text: "Hi", Sender: domain.SenderUser, CreatedAt: fixedNow},
		{ID: 2, SessionID: existingSessionID, Text: "Hello!", Sender: domain.SenderAssistant, CreatedAt: fixedNow},
	}
	f.sessions.On("GetByID", mock.Anything, existingSessionID).Return(session, nil)
	f.messages.On("ListBySession", mock.Anything, existingSessionID).Return(messages, nil)

	history, err := f.svc.History(context.Background(), strings.ToUpper(existingSessionID))

	require.NoError(t, err)
	assert.Equal(t, session, history.Session)
	assert.Equal(t, messages, history.Messages)
}

func TestConversationService_History_NotFound(t *testing.T) {
	f := newConversationFixture()
	f.sessions.On("GetByID", mock.Anything, existingSessionID).Return(nil, domain.ErrSessionNotFound)

	_, err := f.svc.History(context.Background(), existingSessionID)

	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestConversationService_History_MalformedIDIsNotFound(t *testing.T) {
	f := newConversationFixture()

	for _, id := range []string{"", "abc"} {
		_, err := f.svc.History(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	}
	f.sessions.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestConversationService_ListLeads(t *testing.T) {
	f := newConversationFixture()
	leads := []*domain.Lead{{ID: "lead-2"}, {ID: "lead-1"}}
	f.leads.On("ListWithCursor", mock.Anything, (*pagination.Cursor)(nil), DefaultLeadPageSize).
		Return(&LeadPageResult{Items: leads, NextCursor: "next", HasMore: true}, nil)

	out, err := f.svc.ListLeads(context.Background(), ListLeadsInput{})

	require.NoError(t, err)
	assert.Equal(t, leads, out.Leads)
	assert.Equal(t, "next", out.NextCursor)
	assert.True(t, out.HasMore)
}

func TestConversationService_ListLeads_CursorAndLimit(t *testing.T) {
	f := newConversationFixture()
	cursor := pagination.EncodeCursor("lead-9", fixedNow)
	f.leads.On("ListWithCursor", mock.Anything, mock.MatchedBy(func(c *pagination.Cursor) bool {
		return c != nil && c.LastID == "lead-9" && c.Timestamp.Equal(fixedNow)
	}), MaxLeadPageSize).Return(&LeadPageResult{}, nil)

	_, err := f.svc.ListLeads(context.Background(), ListLeadsInput{Cursor: cursor, Limit: 1000})

	require.NoError(t, err)
	f.leads.AssertExpectations(t)
}

func TestConversationService_ListLeads_InvalidCursor(t *testing.T) {
	f := newConversationFixture()

	_, err := f.svc.ListLeads(context.Background(), ListLeadsInput{Cursor: "!!!"})

	assert.ErrorIs(t, err, domain.ErrInvalidCursor)
}
