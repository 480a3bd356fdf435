// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package response

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates a normalized result
type Kind int

const (
	KindOk Kind = iota
	KindRateLimited
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOk:
		return "ok"
	case KindRateLimited:
		return "rate_limited"
	case KindFailed:
		return "failed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Result is the uniform outcome of one completed attempt.
//
// Ok carries StatusCode and Body. RateLimited carries StatusCode 429, Body and
// an optional RetryAfterMs. Failed carries Error and, for application
// failures, StatusCode; a zero StatusCode on Failed marks a transport failure.
type Result struct {
	Kind         Kind
	StatusCode   int
	Body         any
	Error        any
	RetryAfterMs *int64

	// Raw is the undecoded body, kept so callers can decode into a typed value
	Raw     []byte
	Latency time.Duration
	Cause   error
}

func (r Result) IsOK() bool          { return r.Kind == KindOk }
func (r Result) IsRateLimited() bool { return r.Kind == KindRateLimited }
func (r Result) IsFailed() bool      { return r.Kind == KindFailed }

// IsTransportFailure reports a failure where no response was obtained
func (r Result) IsTransportFailure() bool {
	return r.Kind == KindFailed && r.StatusCode == 0
}

// RetryAfter returns the hint as a duration, if present
func (r Result) RetryAfter() (time.Duration, bool) {
	if r.RetryAfterMs == nil || *r.RetryAfterMs < 0 {
		return 0, false
	}
	return time.Duration(*r.RetryAfterMs) * time.Millisecond, true
}

// ErrorString renders the Error field for logs and event payloads
func (r Result) ErrorString() string {
	switch e := r.Error.(type) {
	case nil:
		return ""
	case string:
		return e
	case error:
		return e.Error()
	default:
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Sprintf("%v", e)
		}
		return string(b)
	}
}

// Decode unmarshals the raw body into v
func (r Result) Decode(v any) error {
	if len(r.Raw) == 0 {
		return fmt.Errorf("empty body")
	}
	return json.Unmarshal(r.Raw, v)
}

// TransportFailure wraps an error raised before any response existed
func TransportFailure(err error) Result {
	res := Result{Kind: KindFailed, Cause: err}
	if err != nil {
		res.Error = err.Error()
	} else {
		res.Error = "no response"
	}
	return res
}
