package vapi

import (
	"context"
	"crypto/hmac"
	"io"
	"net/http"

	"collections-platform/internal/events"
	"collections-platform/internal/reconcile"
	"collections-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

const (
	headerSecret   = "X-Vapi-Secret"
	defaultMaxBody = 1 << 20
)

// EventHandler applies one normalized event.
type EventHandler interface {
	Handle(ctx context.Context, ev events.CallEvent) (reconcile.Outcome, error)
}

// WebhookHandler receives call-platform server events.
//
// Every parseable delivery is acknowledged with 200 so the platform does not
// retry events this service chose to skip. 500 is reserved for malformed
// bodies and failed transactions.
type WebhookHandler struct {
	Events EventHandler

	// Secret, when set, must match the X-Vapi-Secret header.
	Secret string

	MaxBodyBytes int64
}

func (h WebhookHandler) HandleEvent(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Events == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "webhook handler not configured"})
		return
	}
	if h.Secret != "" && !hmac.Equal([]byte(c.GetHeader(headerSecret)), []byte(h.Secret)) {
		log.Warn("webhook secret mismatch")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook secret"})
		return
	}

	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = defaultMaxBody
	}
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, limit))
	if err != nil {
		log.Warn("webhook body read failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "could not read request body"})
		return
	}

	ev, err := events.Parse(body)
	if err != nil {
		log.Warn("webhook body rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	ctx := logger.With(c.Request.Context(), log)
	out, err := h.Events.Handle(ctx, ev)
	if err != nil {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if out.Function != nil {
		c.JSON(http.StatusOK, out.Function)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": out.Message})
}
