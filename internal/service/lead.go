package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/leadbot/internal/domain"
	"github.com/cloo-solutions/leadbot/internal/openai"
)

const (
	classifyTemperature = 0.1
	classifyMaxTokens   = 200
)

const classifierPrompt = "You are a lead qualification AI. Analyze messages and extract contact information and interest level. Always respond with valid JSON only."

const classifyTemplate = `Analyze the following message to determine if it contains lead qualification information for Swastik's AI development services.

Swastik is an AI developer who provides:
- Custom AI model development ($300-600)
- Machine learning solutions
- Chatbot development ($150-300)
- Automation workflows (Botpress, Make.com, Zapier, n8n) ($200-400)
- Full-stack AI projects ($500-1200)
- Data analysis and insights
- Business process automation
- Budget-friendly pricing for startups and small businesses
- Payment plans and startup discounts available

Look for:
1. Name (person's name)
2. Email address
3. Interest in AI/ML services, chatbots, automation, or development
4. Business needs or project requirements
5. Contact intent or request for consultation

Message: %q

Respond with ONLY a JSON object in this exact format:
{
    "is_lead": true/false,
    "name": "extracted name or null",
    "email": "extracted email or null",
    "interest_score": 0.0-1.0
}

Rules:
- is_lead should be true if the person shows interest in AI/ML services AND provides contact info (name or email)
- interest_score should be 0.0-1.0 based on how interested they seem in AI development services
- High interest (0.7-1.0): Mentions specific AI/ML needs, chatbot requirements, automation needs, or asks for consultation
- Medium interest (0.4-0.6): Shows general interest in AI or mentions business needs
- Low interest (0.1-0.3): Casual inquiry or general questions
- Only extract name/email if clearly present
- Return null for missing fields`

// LeadExtractor asks the model whether a message carries a sales lead
type LeadExtractor struct {
	client  CompletionClient
	timeout time.Duration
}

// NewLeadExtractor creates a LeadExtractor. A nil client classifies every
// message as no lead.
func NewLeadExtractor(client CompletionClient, timeout time.Duration) *LeadExtractor {
	if timeout <= 0 {
		timeout = DefaultCompletionTimeout
	}
	return &LeadExtractor{client: client, timeout: timeout}
}

// Classify never fails; any problem yields domain.NoLead().
func (e *LeadExtractor) Classify(ctx context.Context, message string) domain.Qualification {
	if e.client == nil {
		return domain.NoLead()
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
	defer cancel()

	raw, err := e.client.Complete(callCtx, openai.CompletionRequest{
		Messages: []openai.Message{
			{Role: openai.RoleSystem, Content: classifierPrompt},
			{Role: openai.RoleUser, Content: fmt.Sprintf(classifyTemplate, message)},
		},
		Temperature: classifyTemperature,
		MaxTokens:   classifyMaxTokens,
	})
	if err != nil {
		log.Printf("lead: classification failed: %v", err)
		return domain.NoLead()
	}

	q, err := ParseQualification(raw)
	if err != nil {
		log.Printf("lead: unparseable classification: %v", err)
		return domain.NoLead()
	}
	return q
}

// ShouldSave reports whether q is worth persisting as a lead
func (e *LeadExtractor) ShouldSave(q domain.Qualification) bool {
	return domain.ShouldSave(q)
}

// ParseQualification decodes a model reply into a normalised Qualification.
func ParseQualification(raw string) (domain.Qualification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &fields); err != nil {
		return domain.NoLead(), fmt.Errorf("invalid qualification JSON: %w", err)
	}

	q := domain.Qualification{
		IsLead:        parseBool(fields["is_lead"]),
		Name:          parseOptionalString(fields["name"]),
		Email:         parseOptionalString(fields["email"]),
		InterestScore: parseScore(fields["interest_score"]),
	}

	if q.Email != nil {
		addr, err := mail.ParseAddress(*q.Email)
		if err != nil {
			q.Email = nil
		} else {
			q.Email = &addr.Address
		}
	}

	if q.IsLead && !q.HasContact() {
		q.IsLead = false
		q.InterestScore = 0
	}
	return q, nil
}

func stripCodeFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseBool(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		v, err := strconv.ParseBool(strings.TrimSpace(s))
		return err == nil && v
	}
	return false
}

func parseOptionalString(raw json.RawMessage) *string {
	if len(raw) == 0 {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}

	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") || strings.EqualFold(s, "none") {
		return nil
	}
	return &s
}

func parseScore(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0
		}
		f, err = strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return 0
		}
	}

	switch {
	case math.IsNaN(f), f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
