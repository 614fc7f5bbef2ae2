package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// SearchHandler runs semantic search over stored resume chunks.
type SearchHandler struct {
	llm        interfaces.LLMService
	embeddings interfaces.EmbeddingStorage
	logger     arbor.ILogger
}

// NewSearchHandler creates the semantic search handler
func NewSearchHandler(llm interfaces.LLMService, embeddings interfaces.EmbeddingStorage, logger arbor.ILogger) *SearchHandler {
	return &SearchHandler{llm: llm, embeddings: embeddings, logger: logger}
}

// SearchHandler handles POST /api/search {query, limit}: the query is
// embedded and matched against resume chunks by cosine similarity.
func (h *SearchHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if !DecodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		WriteError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 10
	}

	vector, err := h.llm.Embed(r.Context(), req.Query)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	matches, err := h.embeddings.SearchSimilar(r.Context(), vector, req.Limit)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"matches": matches,
	})
}
