// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/events"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/tether"
)

const (
	streamBuffer    = 64
	streamKeepAlive = 15 * time.Second
)

// Handler serves the local status API over a Service
type Handler struct {
	svc    *tether.Service
	logger logger.Logger
}

// APIResponse is the envelope of every JSON reply
type APIResponse struct {
	Success bool        `json:"success"`
	Result  interface{} `json:"result,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    int               `json:"code"`
	Domain  string            `json:"domain"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Meta    map[string]string `json:"meta,omitempty"`
}

// HealthCheckResult summarizes a manual heartbeat
type HealthCheckResult struct {
	Kind         string `json:"kind"`
	StatusCode   int    `json:"statusCode"`
	LatencyMs    int64  `json:"latencyMs"`
	RetryAfterMs *int64 `json:"retryAfterMs,omitempty"`
	Error        string `json:"error,omitempty"`
}

func NewHandler(svc *tether.Service, l logger.Logger) *Handler {
	return &Handler{svc: svc, logger: l}
}

func (h *Handler) sendSuccess(c *gin.Context, statusCode int, result interface{}) {
	c.JSON(statusCode, APIResponse{Success: true, Result: result})
}

func (h *Handler) sendError(c *gin.Context, err error) {
	var te *errors.TetherError
	if !errors.As(err, &te) {
		te = errors.Wrap(err, errors.ServerInternalError)
	}
	_ = c.Error(te)
	c.JSON(te.HTTPStatus, APIResponse{
		Success: false,
		Error: &APIError{
			Code:    int(te.Code),
			Domain:  string(te.Domain),
			Message: te.Message,
			Details: te.Details,
			Meta:    te.Metadata,
		},
	})
}

func (h *Handler) getStatus(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.svc.Status())
}

func (h *Handler) getConnection(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.svc.Status().Connectivity)
}

func (h *Handler) testConnection(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.svc.TestConnection(c.Request.Context()))
}

func (h *Handler) healthCheck(c *gin.Context) {
	res := h.svc.HealthCheck(c.Request.Context())
	out := HealthCheckResult{
		Kind:         res.Kind.String(),
		StatusCode:   res.StatusCode,
		LatencyMs:    res.Latency.Milliseconds(),
		RetryAfterMs: res.RetryAfterMs,
	}
	if !res.IsOK() {
		out.Error = res.ErrorString()
	}
	h.sendSuccess(c, http.StatusOK, out)
}

func (h *Handler) recordActivity(c *gin.Context) {
	h.svc.RecordActivity()
	h.sendSuccess(c, http.StatusAccepted, h.svc.Status().Heartbeat)
}

func (h *Handler) listFeeds(c *gin.Context) {
	h.sendSuccess(c, http.StatusOK, h.svc.Status().Feeds)
}

func (h *Handler) getFeed(c *gin.Context) {
	st, err := h.svc.Feed(c.Param("name"))
	if err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusOK, st)
}

func (h *Handler) refreshFeed(c *gin.Context) {
	if err := h.svc.RefreshFeed(c.Param("name")); err != nil {
		h.sendError(c, err)
		return
	}
	h.sendSuccess(c, http.StatusAccepted, gin.H{"feed": c.Param("name")})
}

// streamEvents sends the current connectivity snapshot, then every
// connectivity and heartbeat event until the client goes away. A client
// that falls behind loses events rather than stalling publishers.
func (h *Handler) streamEvents(c *gin.Context) {
	ch := make(chan events.Event, streamBuffer)
	unsub := h.svc.SubscribeEvents(func(ev events.Event) {
		select {
		case ch <- ev:
		default:
			h.logger.Warn("Event stream lagging, dropping event", "type", ev.Type)
		}
	})
	defer unsub()

	snap := h.svc.Status().Connectivity
	c.SSEvent(string(events.TypeConnectivity), events.New(events.TypeConnectivity, snap.ChangedAt, snap))
	c.Writer.Flush()

	ticker := time.NewTicker(streamKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev := <-ch:
			c.SSEvent(string(ev.Type), ev)
			return true
		case <-ticker.C:
			_, err := io.WriteString(w, ": keepalive\n\n")
			return err == nil
		case <-c.Request.Context().Done():
			return false
		}
	})
}
