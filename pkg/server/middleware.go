// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/logger"
	"github.com/stratastor/tether/internal/common"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/pkg/errors"
)

const requestIDHeader = "X-Request-Id"

// LoggerMiddleware logs one line per request with a correlation ID.
// Liveness and scrape endpoints are not logged.
func LoggerMiddleware(l logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = common.UUID7()
		}
		c.Header(requestIDHeader, requestID)
		c.Set("request_id", requestID)

		if path == "/health" || path == constants.APIMetrics {
			c.Next()
			return
		}

		c.Next()

		attrs := []slog.Attr{
			slog.String("request_id", requestID),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", c.Request.URL.RawQuery),
			slog.Int("status", c.Writer.Status()),
			slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			slog.Int("bytes_out", c.Writer.Size()),
			slog.String("ip", c.ClientIP()),
		}

		if len(c.Errors) == 0 {
			l.Debug("Request", logAttrs(attrs)...)
			return
		}

		for _, ginErr := range c.Errors {
			var te *errors.TetherError
			if errors.As(ginErr.Err, &te) {
				attrs = append(attrs,
					slog.Int("error_code", int(te.Code)),
					slog.String("error_domain", string(te.Domain)),
					slog.String("error_message", te.Message),
					slog.String("error_details", te.Details),
				)
				for k, v := range te.Metadata {
					attrs = append(attrs, slog.String("error_metadata_"+k, v))
				}
			} else {
				attrs = append(attrs, slog.String("error", ginErr.Error()))
			}
		}

		if c.Writer.Status() >= 500 {
			l.Error("Server error", logAttrs(attrs)...)
		} else {
			l.Warn("Client error", logAttrs(attrs)...)
		}
	}
}

func logAttrs(attrs []slog.Attr) []interface{} {
	args := make([]interface{}, len(attrs)*2)
	for i, attr := range attrs {
		args[i*2] = attr.Key
		args[i*2+1] = attr.Value.Any()
	}
	return args
}
