package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/arbor"
)

// KVHandler manages named secrets and settings in the key/value store.
// Values are write-only through the API: listings mask them.
type KVHandler struct {
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewKVHandler creates the key/value handler
func NewKVHandler(kv interfaces.KeyValueStorage, logger arbor.ILogger) *KVHandler {
	return &KVHandler{kv: kv, logger: logger}
}

type maskedPair struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	HasValue    bool   `json:"has_value"`
}

// CollectionHandler handles /api/keys: GET (masked list), POST (set).
func (h *KVHandler) CollectionHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pairs, err := h.kv.List(r.Context())
		if err != nil {
			WriteServiceError(w, err)
			return
		}
		masked := make([]maskedPair, len(pairs))
		for i, p := range pairs {
			masked[i] = maskedPair{Key: p.Key, Description: p.Description, HasValue: p.Value != ""}
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"keys": masked})
	case http.MethodPost:
		var req struct {
			Key         string `json:"key"`
			Value       string `json:"value"`
			Description string `json:"description"`
		}
		if !DecodeJSON(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Key) == "" {
			WriteError(w, http.StatusBadRequest, "key is required")
			return
		}
		if err := h.kv.Set(r.Context(), req.Key, req.Value, req.Description); err != nil {
			WriteServiceError(w, err)
			return
		}
		h.logger.Info().Str("key", req.Key).Msg("Key stored")
		WriteSuccess(w, "Key stored")
	default:
		WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// DetailHandler handles DELETE /api/keys/{key}
func (h *KVHandler) DetailHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	key := strings.TrimPrefix(r.URL.Path, "/api/keys/")
	if key == "" {
		WriteError(w, http.StatusBadRequest, "Missing key name")
		return
	}
	if err := h.kv.Delete(r.Context(), key); err != nil {
		WriteServiceError(w, err)
		return
	}
	h.logger.Info().Str("key", key).Msg("Key deleted")
	WriteSuccess(w, "Key deleted")
}
