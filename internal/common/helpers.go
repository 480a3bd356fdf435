// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package common

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stratastor/tether/pkg/errors"
)

// APIError writes err as a JSON error body and aborts the request
func APIError(c *gin.Context, err error) {
	var te *errors.TetherError
	if errors.As(err, &te) {
		c.JSON(te.HTTPStatus, gin.H{
			"error": gin.H{
				"code":      te.Code,
				"domain":    te.Domain,
				"message":   te.Message,
				"details":   te.Details,
				"metadata":  te.Metadata,
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
	} else {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"message":   err.Error(),
				"timestamp": time.Now().Format(time.RFC3339),
			},
		})
	}
	_ = c.Error(err)
	c.Abort()
}

// UUID7 returns a time-ordered identifier, falling back to a random UUID if
// the clock sequence cannot be read.
func UUID7() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
