package domain

import (
	"fmt"
	"strings"
)

// Document is a reference entry in the FAQ corpus
type Document struct {
	Title   string `json:"title" yaml:"title"`
	Content string `json:"content" yaml:"content"`
}

// SearchResult is a document matched by a similarity query
type SearchResult struct {
	Document
	Position int     `json:"position"`
	Score    float32 `json:"score"`
}

// EmbeddingText returns the text that represents the document in the index.
func (d Document) EmbeddingText() string {
	return strings.TrimSpace(d.Title + " " + d.Content)
}

// ValidateDocument validates a Document instance
func ValidateDocument(d Document) error {
	if strings.TrimSpace(d.Title) == "" && strings.TrimSpace(d.Content) == "" {
		return fmt.Errorf("document needs a title or content")
	}
	return nil
}
