package service

import (
	"context"
	"log"
	"strings"
	"time"
	"unicode"

	"github.com/cloo-solutions/leadbot/internal/cache"
	"github.com/cloo-solutions/leadbot/internal/openai"
	"github.com/cloo-solutions/leadbot/internal/telemetry"
)

const (
	// UnavailableReply is returned when no completion client is configured
	UnavailableReply = "I apologize, but I'm currently unavailable. Please try again later."
	// FallbackReply is returned when a completion call fails for any reason
	FallbackReply = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."

	// DefaultCompletionTimeout bounds a single model call
	DefaultCompletionTimeout = 5 * time.Second

	replyTemperature = 0.7
	replyMaxTokens   = 300
)

const assistantPrompt = "You are Swastik's AI assistant. Swastik is an AI developer offering chatbots ($150-300), " +
	"automation ($200-400), AI models ($300-600), and full-stack projects ($500-1200). " +
	"Help clients understand services and pricing. Be brief, professional, and ask qualifying questions like: " +
	"What's your business? What's your budget? What's your timeline? What's your main challenge? " +
	"Always encourage them to provide contact info for consultation."

// CompletionClient runs a chat completion
type CompletionClient interface {
	Complete(ctx context.Context, req openai.CompletionRequest) (string, error)
}

// FastReply maps a keyword or phrase to a canned reply
type FastReply struct {
	Keyword string
	Reply   string
}

const upworkURL = "https://www.upwork.com/freelancers/~01a3695131c30e858f"

// DefaultFastReplies is checked in order; the first keyword found in the
// prompt wins.
var DefaultFastReplies = []FastReply{
	{"hi", "Hello! I'm Swastik's AI assistant. I help businesses with AI solutions like chatbots, automation, and custom AI models. What's your business looking to achieve with AI?"},
	{"hello", "Hello! I'm Swastik's AI assistant. I help businesses with AI solutions like chatbots, automation, and custom AI models. What's your business looking to achieve with AI?"},
	{"what services", "Swastik offers: Chatbots ($150-300), Automation ($200-400), AI models ($300-600), Full-stack projects ($500-1200). What type of project are you considering?"},
	{"pricing", "Pricing: Chatbots $150-300, Automation $200-400, AI models $300-600, Full-stack $500-1200. What's your budget range for this project?"},
	{"how much", "Chatbots: $150-300, Automation: $200-400, AI models: $300-600, Full-stack: $500-1200. What's your timeline and budget for this project?"},
	{"contact", "Contact Swastik: " + upworkURL + " - Free consultations! What's your project timeline?"},
	{"hire", "Hire Swastik: " + upworkURL + " - Budget-friendly AI solutions! What's your project about?"},
	{"upwork", "Swastik's Upwork: " + upworkURL},
	{"chatbot", "Swastik builds custom chatbots for $150-300. What's your main use case - customer service, lead generation, or sales support?"},
	{"automation", "Swastik creates automation workflows using Botpress, Make.com, Zapier, n8n. Starting at $200-400! What processes do you want to automate?"},
	{"ai model", "Swastik develops custom AI models for $300-600. Text classification, sentiment analysis, predictive modeling! What data do you have?"},
	{"project", "Swastik delivers full-stack AI projects for $500-1200. Complete solutions with frontend, backend, and AI integration! What's your project scope?"},
	{"startup", "Perfect for startups! Swastik offers budget-friendly AI solutions with 20% discount and payment plans. What's your startup's main challenge?"},
	{"budget", "Perfect! What's your project scope and what's your timeline?"},
	{"business", "Great! What industry is your business in? And what's your main challenge that AI could help solve?"},
	{"company", "Excellent! What's your company size and what's your biggest operational challenge right now?"},
	{"need", "Perfect! What specific AI solution do you need? And what's your timeline for this project?"},
	{"want", "Great! What's your budget range for this project? And when do you need it completed?"},
	{"looking", "Excellent! What's your business type and what's your main goal with AI?"},
	{"interested", "Perfect! What's your project about and what's your budget range?"},
	{"considering", "Great! What's your timeline for this project and what's your main challenge?"},
	{"thinking", "Excellent! What's your business and what specific AI solution are you thinking about?"},
	{"planning", "Perfect! What's your project scope and what's your budget range?"},
	{"timeline", "Great! What's your project about and what's your budget range?"},
	{"cost", "Excellent! What's your project about and what's your timeline?"},
	{"price", "Great! What's your project scope and what's your timeline?"},
	{"when", "Perfect! What's your project about and what's your budget range?"},
	{"how long", "Excellent! What's your project scope and what's your budget range?"},
	{"help", "I can help with: Service information, pricing details, project consultation. What specific challenge is your business facing?"},
}

// GatewayConfig holds tunables for Gateway
type GatewayConfig struct {
	Timeout     time.Duration
	CacheTTL    time.Duration
	FastReplies []FastReply
}

// Gateway turns a visitor prompt into a reply. It never returns an error:
// every failure path ends in one of the fixed replies.
type Gateway struct {
	client      CompletionClient
	cache       cache.Cache
	timeout     time.Duration
	cacheTTL    time.Duration
	fastReplies []FastReply
}

// NewGateway creates a Gateway. A nil client puts it in unavailable mode.
func NewGateway(client CompletionClient, c cache.Cache, cfg GatewayConfig) *Gateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultCompletionTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	if cfg.FastReplies == nil {
		cfg.FastReplies = DefaultFastReplies
	}
	return &Gateway{
		client:      client,
		cache:       c,
		timeout:     cfg.Timeout,
		cacheTTL:    cfg.CacheTTL,
		fastReplies: cfg.FastReplies,
	}
}

// Available reports whether a completion client is configured
func (g *Gateway) Available() bool {
	return g.client != nil
}

// Generate produces a reply for prompt. retrievalContext is injected as a
// system message when non-empty.
func (g *Gateway) Generate(ctx context.Context, prompt, sessionID, retrievalContext string) string {
	if g.client == nil {
		return UnavailableReply
	}

	if reply, ok := matchFastReply(g.fastReplies, prompt); ok {
		return reply
	}

	key := cache.Fingerprint(prompt, sessionID)
	if reply, ok := g.cache.Get(ctx, key); ok && reply != "" {
		return reply
	}

	ctx, span := telemetry.StartSpan(ctx, "Gateway.Generate", telemetry.SpanAttributes{
		SessionID: sessionID,
		Operation: "completion",
	})
	defer span.End()

	messages := []openai.Message{{Role: openai.RoleSystem, Content: assistantPrompt}}
	if retrievalContext != "" {
		messages = append(messages, openai.Message{Role: openai.RoleSystem, Content: "Context: " + retrievalContext})
	}
	messages = append(messages, openai.Message{Role: openai.RoleUser, Content: prompt})

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
	defer cancel()

	reply, err := g.client.Complete(callCtx, openai.CompletionRequest{
		Messages:    messages,
		Temperature: replyTemperature,
		MaxTokens:   replyMaxTokens,
	})
	if err != nil {
		log.Printf("gateway: completion failed for session %s: %v", sessionID, err)
		telemetry.AddBreadcrumb(ctx, "completion", "completion failed: "+err.Error())
		return FallbackReply
	}

	g.cache.Set(ctx, key, reply, g.cacheTTL)
	return reply
}

// inflections are the word endings a keyword may carry and still match.
var inflections = []string{"", "s", "es", "d", "ed", "ing"}

// matchFastReply looks for each keyword in the lower-cased prompt starting at
// a word boundary and ending in one of the inflections, so "chatbots" and
// "prices" match while "hi" does not fire inside "this" or "history".
func matchFastReply(table []FastReply, prompt string) (string, bool) {
	words := strings.FieldsFunc(strings.ToLower(prompt), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return "", false
	}

	padded := " " + strings.Join(words, " ") + " "
	for _, fr := range table {
		if containsInflected(padded, fr.Keyword) {
			return fr.Reply, true
		}
	}
	return "", false
}

func containsInflected(padded, keyword string) bool {
	for _, suffix := range inflections {
		if strings.Contains(padded, " "+keyword+suffix+" ") {
			return true
		}
	}
	return false
}
