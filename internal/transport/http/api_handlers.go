package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/talkline/talkline-server/internal/core"
	"github.com/talkline/talkline-server/internal/store"
)

// APIHandlers provides HTTP handlers for the read-only REST endpoints.
type APIHandlers struct {
	hub          *core.Hub
	store        store.MessageStore
	historyLimit int
	log          *zerolog.Logger
}

// NewAPIHandlers creates a new API handlers instance.
func NewAPIHandlers(hub *core.Hub, st store.MessageStore, historyLimit int, logger *zerolog.Logger) *APIHandlers {
	if historyLimit <= 0 {
		historyLimit = core.DefaultHistoryLimit
	}
	return &APIHandlers{
		hub:          hub,
		store:        st,
		historyLimit: historyLimit,
		log:          logger,
	}
}

// MessageResponse represents a persisted message in API responses.
type MessageResponse struct {
	ID        int64  `json:"id"`
	From      string `json:"from"`
	To        string `json:"to,omitempty"`
	Body      string `json:"body"`
	CreatedAt int64  `json:"created_at"`
}

// OnlineResponse represents the current presence snapshot.
type OnlineResponse struct {
	Users       []string `json:"users"`
	Connections int      `json:"connections"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness together with the current connection count.
// GET /health
func (h *APIHandlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	stats, err := h.hub.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "connections": stats.Connections})
}

// BroadcastHistory returns recent broadcast messages.
// GET /api/messages?limit=N
func (h *APIHandlers) BroadcastHistory(c *gin.Context) {
	limit := h.parseLimit(c)
	msgs, err := h.store.ListBroadcast(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list broadcast messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(msgs))
}

// ParticipantHistory returns recent messages sent by or addressed to an identity.
// GET /api/messages/:identity?limit=N
func (h *APIHandlers) ParticipantHistory(c *gin.Context) {
	identity := c.Param("identity")
	if identity == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "identity is required"})
		return
	}
	limit := h.parseLimit(c)
	msgs, err := h.store.ListForParticipant(c.Request.Context(), identity, limit)
	if err != nil {
		h.log.Error().Err(err).Str("identity", identity).Msg("list participant messages")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toMessageResponses(msgs))
}

// OnlineUsers returns the current presence snapshot.
// GET /api/online
func (h *APIHandlers) OnlineUsers(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
	defer cancel()

	stats, err := h.hub.Snapshot(ctx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "hub unavailable"})
		return
	}
	c.JSON(http.StatusOK, OnlineResponse{
		Users:       stats.Identities,
		Connections: stats.Connections,
	})
}

func (h *APIHandlers) parseLimit(c *gin.Context) int {
	raw := c.Query("limit")
	if raw == "" {
		return h.historyLimit
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > h.historyLimit {
		return h.historyLimit
	}
	return limit
}

func toMessageResponses(msgs []*store.Message) []MessageResponse {
	out := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		resp := MessageResponse{
			ID:        m.ID,
			From:      m.From,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.Unix(),
		}
		if m.To != nil {
			resp.To = *m.To
		}
		out = append(out, resp)
	}
	return out
}
