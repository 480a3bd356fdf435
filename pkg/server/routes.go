// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stratastor/tether/internal/common"
	"github.com/stratastor/tether/internal/constants"
	"github.com/stratastor/tether/pkg/errors"
)

func (h *Handler) RegisterRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})
	engine.GET(constants.APIMetrics, gin.WrapH(h.svc.Metrics().Handler()))

	engine.GET(constants.APIStatus, h.getStatus)
	engine.GET(constants.APIConnection, h.getConnection)
	engine.POST(constants.APIConnection+"/test", h.testConnection)
	engine.POST(constants.APIHealth, h.healthCheck)
	engine.POST(constants.APIActivity, h.recordActivity)
	engine.GET(constants.APIEvents, h.streamEvents)

	feeds := engine.Group(constants.APIFeeds)
	{
		feeds.GET("", h.listFeeds)
		feeds.GET("/:name", h.getFeed)
		feeds.POST("/:name/refresh", h.refreshFeed)
	}

	engine.NoRoute(func(c *gin.Context) {
		common.APIError(c, errors.New(errors.ServerNotFound, c.Request.URL.Path))
	})
}
