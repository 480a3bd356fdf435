// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(TransportRetriesExhausted, "failed after 4 attempts")

	assert.Equal(t, ErrorCode(TransportRetriesExhausted), err.Code)
	assert.Equal(t, DomainTransport, err.Domain)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus)
	assert.Contains(t, err.Error(), "failed after 4 attempts")
	assert.Contains(t, err.Error(), "TRANSPORT-1202")
}

func TestNewUnknownCode(t *testing.T) {
	err := New(ErrorCode(42), "")
	assert.Equal(t, DomainMisc, err.Domain)
	assert.Equal(t, "[MISC-42] Unknown error", err.Error())
}

func TestWrapKeepsCauseAndMetadata(t *testing.T) {
	base := New(TransportTimeout, "deadline").WithMetadata("path", "/ping")
	wrapped := Wrap(fmt.Errorf("attempt 2: %w", base), TransportRetriesExhausted).
		WithMetadata("attempts", "4")

	require.True(t, stderrors.Is(wrapped, base))
	assert.True(t, IsCode(wrapped, TransportRetriesExhausted))
	assert.True(t, IsCode(wrapped, TransportTimeout))
	assert.False(t, IsCode(wrapped, FeedDecodeFailed))
	assert.Equal(t, "/ping", wrapped.Metadata["path"])
	assert.Equal(t, "4", wrapped.Metadata["attempts"])
}

func TestWrapNil(t *testing.T) {
	err := Wrap(nil, HeartbeatPingFailed)
	assert.Nil(t, err.Unwrap())
	assert.Equal(t, DomainHeartbeat, err.Domain)
}

func TestIsCodePlainError(t *testing.T) {
	assert.False(t, IsCode(stderrors.New("boom"), MiscUnknown))
	assert.False(t, IsCode(nil, MiscUnknown))
}
