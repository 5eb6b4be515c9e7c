package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cloo-solutions/leadbot/internal/api"
	"github.com/cloo-solutions/leadbot/internal/api/middleware"
	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/service"
	"github.com/go-chi/chi/v5"
)

type ConversationService interface {
	Chat(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
	History(ctx context.Context, sessionID string) (*service.SessionHistory, error)
	ListLeads(ctx context.Context, input service.ListLeadsInput) (*service.ListLeadsOutput, error)
}

type ConversationHandler struct {
	svc ConversationService
}

func NewConversationHandler(svc ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type ChatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	Reply         string                `json:"reply"`
	SessionID     string                `json:"session_id"`
	LeadQualified bool                  `json:"lead_qualified"`
	LeadData      *domain.Qualification `json:"lead_data,omitempty"`
}

type MessageResponse struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
}

type HistoryResponse struct {
	SessionID string             `json:"session_id"`
	CreatedAt string             `json:"created_at"`
	UpdatedAt string             `json:"updated_at"`
	Messages  []*MessageResponse `json:"messages"`
}

type LeadResponse struct {
	ID            string  `json:"id"`
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	InterestScore float64 `json:"interest_score"`
	SessionID     string  `json:"session_id"`
	Notes         string  `json:"notes"`
	CreatedAt     string  `json:"created_at"`
}

type LeadListResponse struct {
	Items   []*LeadResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func leadToResponse(l *domain.Lead) *LeadResponse {
	return &LeadResponse{
		ID:            l.ID,
		Name:          l.Name,
		Email:         l.Email,
		InterestScore: l.InterestScore,
		SessionID:     l.SessionID,
		Notes:         l.Notes,
		CreatedAt:     formatTime(l.CreatedAt),
	}
}

func (h *ConversationHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	out, err := h.svc.Chat(r.Context(), service.ChatInput{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	w.Header().Set(middleware.SessionIDHeader, out.SessionID)
	api.Success(w, http.StatusOK, ChatResponse{
		Reply:         out.Reply,
		SessionID:     out.SessionID,
		LeadQualified: out.LeadQualified,
		LeadData:      out.LeadData,
	})
}

func (h *ConversationHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	history, err := h.svc.History(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	messages := make([]*MessageResponse, len(history.Messages))
	for i, m := range history.Messages {
		messages[i] = &MessageResponse{
			ID:        m.ID,
			Text:      m.Text,
			Sender:    string(m.Sender),
			CreatedAt: formatTime(m.CreatedAt),
		}
	}

	w.Header().Set(middleware.SessionIDHeader, history.Session.ID)
	api.Success(w, http.StatusOK, HistoryResponse{
		SessionID: history.Session.ID,
		CreatedAt: formatTime(history.Session.CreatedAt),
		UpdatedAt: formatTime(history.Session.UpdatedAt),
		Messages:  messages,
	})
}

func (h *ConversationHandler) ListLeads(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			api.HandleError(w, domain.ErrInvalidLimit)
			return
		}
		limit = parsed
	}

	output, err := h.svc.ListLeads(r.Context(), service.ListLeadsInput{
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*LeadResponse, len(output.Leads))
	for i, l := range output.Leads {
		items[i] = leadToResponse(l)
	}

	api.Success(w, http.StatusOK, LeadListResponse{
		Items:   items,
		Cursor:  output.NextCursor,
		HasMore: output.HasMore,
	})
}
