// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package response

import (
	"bytes"
	"encoding/json"
	"math"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Body fields accepted as a retry hint when the header is absent. Values are
// seconds, like the header.
var retryAfterFields = []string{"retryAfter", "retry_after"}

// MaxRetryAfterMs is the largest hint that still fits a time.Duration.
// Longer hints are clamped to it.
const MaxRetryAfterMs = math.MaxInt64 / int64(time.Millisecond)

// Normalize converts a raw response into a Result. It never panics on
// malformed bodies; everything degrades to text.
func Normalize(resp *resty.Response) Result {
	return NormalizeAt(resp, time.Now())
}

// NormalizeAt is Normalize with an explicit clock reading, used to resolve
// HTTP-date Retry-After values.
func NormalizeAt(resp *resty.Response, now time.Time) Result {
	if resp == nil || resp.RawResponse == nil {
		return TransportFailure(nil)
	}

	status := resp.StatusCode()
	raw := resp.Body()
	isJSON := isJSONContentType(resp.Header().Get("Content-Type"))

	res := Result{
		StatusCode: status,
		Raw:        raw,
		Latency:    resp.Time(),
	}
	if ms, ok := RetryAfterToMs(resp.Header().Get("Retry-After"), now); ok {
		res.RetryAfterMs = &ms
	}

	switch {
	case status == http.StatusTooManyRequests:
		res.Kind = KindRateLimited
		if isJSON {
			res.Body = parseJSONOrText(raw)
		} else {
			res.Body = textOrNil(raw)
		}
		if res.RetryAfterMs == nil {
			res.RetryAfterMs = retryAfterFromBody(res.Body)
		}

	case status < 200 || status >= 300:
		res.Kind = KindFailed
		switch body := parseJSONOrText(raw).(type) {
		case nil:
			res.Error = statusText(resp)
		case string:
			if strings.TrimSpace(body) == "" {
				res.Error = statusText(resp)
			} else {
				res.Error = body
			}
		default:
			res.Error = body
		}

	default:
		res.Kind = KindOk
		res.Body = parseJSONOrText(raw)
	}

	return res
}

// RetryAfterToMs converts a Retry-After value to milliseconds. Delta-seconds
// are multiplied out; HTTP-dates resolve to max(0, date - now).
func RetryAfterToMs(value string, now time.Time) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}

	if secs, err := strconv.ParseFloat(value, 64); err == nil {
		if secs < 0 || math.IsNaN(secs) || math.IsInf(secs, 0) {
			return 0, false
		}
		return secondsToMs(secs), true
	}

	at, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	ms := at.Sub(now).Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return ms, true
}

func secondsToMs(secs float64) int64 {
	ms := math.Round(secs * 1000)
	if ms >= float64(MaxRetryAfterMs) {
		return MaxRetryAfterMs
	}
	return int64(ms)
}

func retryAfterFromBody(body any) *int64 {
	m, ok := body.(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range retryAfterFields {
		switch v := m[key].(type) {
		case float64:
			if v >= 0 && !math.IsInf(v, 1) {
				ms := secondsToMs(v)
				return &ms
			}
		case string:
			if ms, ok := RetryAfterToMs(v, time.Now()); ok {
				return &ms
			}
		}
	}
	return nil
}

func parseJSONOrText(raw []byte) any {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(trimmed, &v); err == nil {
		return v
	}
	return string(raw)
}

func textOrNil(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func statusText(resp *resty.Response) string {
	if s := http.StatusText(resp.StatusCode()); s != "" {
		return s
	}
	return resp.Status()
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.Contains(strings.ToLower(ct), "json")
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
