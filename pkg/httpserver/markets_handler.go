package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/veristake/bondmarket/internal/registry"
	"github.com/veristake/bondmarket/pkg/cache"
	"go.uber.org/zap"
)

const (
	marketsCacheKey    = "markets:all"
	marketCacheKeyPref = "markets:"
)

// MarketsHandler serves market snapshots from the registry,
// fronted by a short-TTL cache so hot polling does not contend
// with the engine's locks.
type MarketsHandler struct {
	registry *registry.Registry
	cache    cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
}

// NewMarketsHandler creates a new markets handler.
func NewMarketsHandler(reg *registry.Registry, c cache.Cache, ttl time.Duration, logger *zap.Logger) *MarketsHandler {
	return &MarketsHandler{
		registry: reg,
		cache:    c,
		ttl:      ttl,
		logger:   logger,
	}
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleList handles GET /api/markets requests.
func (h *MarketsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if payload, found := h.cached(marketsCacheKey); found {
		h.writeJSON(w, payload)
		return
	}

	snapshots := h.registry.Snapshots()

	payload, err := json.Marshal(snapshots)
	if err != nil {
		h.logger.Error("failed-to-encode-snapshots", zap.Error(err))
		h.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.store(marketsCacheKey, payload)
	h.writeJSON(w, payload)
}

// HandleGet handles GET /api/markets/{marketID} requests.
func (h *MarketsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")
	if marketID == "" {
		h.writeError(w, "missing market id", http.StatusBadRequest)
		return
	}

	key := marketCacheKeyPref + marketID
	if payload, found := h.cached(key); found {
		h.writeJSON(w, payload)
		return
	}

	snapshot, ok := h.registry.Snapshot(marketID)
	if !ok {
		h.writeError(w, "market not found", http.StatusNotFound)
		return
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.Error("failed-to-encode-snapshot",
			zap.String("market-id", marketID),
			zap.Error(err))
		h.writeError(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.store(key, payload)
	h.writeJSON(w, payload)
}

func (h *MarketsHandler) cached(key string) ([]byte, bool) {
	if h.cache == nil {
		return nil, false
	}

	value, found := h.cache.Get(key)
	if !found {
		return nil, false
	}

	payload, ok := value.([]byte)
	return payload, ok
}

func (h *MarketsHandler) store(key string, payload []byte) {
	if h.cache == nil {
		return
	}
	h.cache.Set(key, payload, h.ttl)
}

func (h *MarketsHandler) writeJSON(w http.ResponseWriter, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	_, err := w.Write(payload)
	if err != nil {
		h.logger.Error("failed-to-write-response", zap.Error(err))
	}
}

func (h *MarketsHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	err := json.NewEncoder(w).Encode(ErrorResponse{Error: message})
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
