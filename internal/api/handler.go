// Package api serves the cache facade over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"goflare.io/kvrest/internal/cache/facade"
	"goflare.io/kvrest/internal/models"
)

// MetricsInterface defines the interface for metrics recording
type MetricsInterface interface {
	RecordHTTPRequest(ctx context.Context, method, path string, status int, duration time.Duration)
}

// Handler serves the cache endpoints on top of a facade.
type Handler struct {
	cache  facade.Operations
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(cache facade.Operations, logger *zap.Logger) *Handler {
	return &Handler{
		cache:  cache,
		logger: logger,
	}
}

// AddCache handles POST /cache/add.
func (h *Handler) AddCache(w http.ResponseWriter, r *http.Request) {
	var req AddCacheRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	if err := h.add(r.Context(), req); err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, true)
}

// GetCache handles GET /cache/get.
func (h *Handler) GetCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	v, err := h.lookup(r.Context(), q.Get("key"), q.Get("type"), q.Get("item"))
	if err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, v)
}

// DeleteCache handles DELETE /cache/delete.
func (h *Handler) DeleteCache(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	key, item := q.Get("key"), q.Get("item")

	var err error
	if item == "" {
		err = h.cache.Delete(r.Context(), key)
	} else {
		err = h.cache.DeleteFields(r.Context(), key, item)
	}
	if err != nil {
		h.writeCacheError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Expire handles POST /cache/expire; time 0 removes the expiration.
func (h *Handler) Expire(w http.ResponseWriter, r *http.Request) {
	var req ExpireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	ttl, err := secondsToTTL(req.Time)
	if err != nil {
		h.writeCacheError(w, err)
		return
	}

	ok, err := h.cache.Expire(r.Context(), req.Key, ttl)
	if err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ok)
}

// TTL handles GET /cache/ttl and answers in whole seconds.
func (h *Handler) TTL(w http.ResponseWriter, r *http.Request) {
	ttl, err := h.cache.GetExpire(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, int64(ttl/time.Second))
}

// Exists handles GET /cache/exists.
func (h *Handler) Exists(w http.ResponseWriter, r *http.Request) {
	ok, err := h.cache.Exists(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ok)
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Ping(r.Context()); err != nil {
		h.writeCacheError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

// Utility methods
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to write response", zap.Error(err))
	}
}

func (h *Handler) writeCacheError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrInvalidArgument):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	if status >= http.StatusInternalServerError {
		h.logger.Error("API error", zap.Int("status", status), zap.String("message", message))
	} else {
		h.logger.Debug("API error", zap.Int("status", status), zap.String("message", message))
	}
	h.writeJSON(w, status, ErrorResponse{Error: message})
}
