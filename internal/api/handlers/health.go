package handlers

import (
	"net/http"

	"github.com/cloo-solutions/leadbot/internal/api"
	"github.com/cloo-solutions/leadbot/internal/index"
)

// IndexStats reports the state of the document index
type IndexStats interface {
	Stats() index.Stats
}

type HealthResponse struct {
	Status      string `json:"status"`
	Documents   int    `json:"documents"`
	IndexUsable bool   `json:"index_usable"`
}

// Health reports liveness. An unusable index degrades answers but does not
// fail the check.
func Health(stats IndexStats) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := stats.Stats()
		api.Success(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			Documents:   s.Documents,
			IndexUsable: s.Usable,
		})
	}
}
