// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/backoff"
)

const (
	FeedBalance       = "balance"
	FeedNotifications = "notifications"
	FeedPositions     = "positions"
	FeedPrices        = "prices"
)

// DefaultSpecs returns the dashboard feeds with their healthy intervals
func DefaultSpecs() map[string]Spec {
	return map[string]Spec{
		FeedBalance:       {Name: FeedBalance, Enabled: true, Path: "/api/balance", Interval: 30 * time.Second},
		FeedNotifications: {Name: FeedNotifications, Enabled: true, Path: "/api/notifications", Interval: 60 * time.Second},
		FeedPositions:     {Name: FeedPositions, Enabled: true, Path: "/api/trading/positions", Interval: 15 * time.Second},
		FeedPrices:        {Name: FeedPrices, Enabled: true, Path: "/api/market/prices", Interval: 10 * time.Second},
	}
}

// Balance is the account summary
type Balance struct {
	Currency  string         `json:"currency"`
	Total     float64        `json:"total"`
	Available float64        `json:"available"`
	Locked    float64        `json:"locked"`
	Assets    []AssetBalance `json:"assets,omitempty"`
}

type AssetBalance struct {
	Symbol   string  `json:"symbol"`
	Amount   float64 `json:"amount"`
	ValueUSD float64 `json:"valueUsd"`
}

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type Position struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Size       float64 `json:"size"`
	EntryPrice float64 `json:"entryPrice"`
	MarkPrice  float64 `json:"markPrice"`
	PnL        float64 `json:"pnl"`
}

type MarketPrice struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Change24h float64 `json:"change24h"`
	Volume24h float64 `json:"volume24h"`
}

// Catalog builds the typed dashboard feeds for every enabled spec. Missing
// specs fall back to the defaults.
func Catalog(specs map[string]Spec, fetcher Fetcher, b backoff.Policy, l logger.Logger) []Source {
	defaults := DefaultSpecs()
	pick := func(name string) (Spec, bool) {
		s, ok := specs[name]
		if !ok {
			s = defaults[name]
		}
		s.Name = name
		if s.Path == "" {
			s.Path = defaults[name].Path
		}
		if s.Interval <= 0 {
			s.Interval = defaults[name].Interval
		}
		return s, s.Enabled
	}

	var out []Source
	if s, ok := pick(FeedBalance); ok {
		out = append(out, NewFeed(s, fetcher, l, WithBackoff[Balance](b)))
	}
	if s, ok := pick(FeedNotifications); ok {
		out = append(out, NewFeed(s, fetcher, l, WithBackoff[[]Notification](b)))
	}
	if s, ok := pick(FeedPositions); ok {
		out = append(out, NewFeed(s, fetcher, l, WithBackoff[[]Position](b)))
	}
	if s, ok := pick(FeedPrices); ok {
		out = append(out, NewFeed(s, fetcher, l, WithBackoff[[]MarketPrice](b)))
	}
	return out
}
