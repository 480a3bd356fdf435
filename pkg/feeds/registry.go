// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package feeds

import (
	"context"
	"sync"
	"time"

	"github.com/stratastor/logger"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/poller"
)

// Source is the type-erased side of a Feed
type Source interface {
	Name() string
	Path() string
	Interval() time.Duration
	FetchOnce(ctx context.Context) (time.Duration, error)
	Snapshot() Status
}

// Status describes one feed for status surfaces
type Status struct {
	Name      string              `json:"name"`
	Path      string              `json:"path"`
	Interval  time.Duration       `json:"interval"`
	HasData   bool                `json:"hasData"`
	UpdatedAt time.Time           `json:"updatedAt"`
	Stale     bool                `json:"stale"`
	Error     string              `json:"error,omitempty"`
	Failures  int                 `json:"failures"`
	Schedule  poller.PollSchedule `json:"schedule"`
	Data      any                 `json:"data,omitempty"`
}

type entry struct {
	source Source
	poller *poller.Poller
}

// Registry owns one poller per feed. Pollers share nothing, so a slow or
// failing feed never delays another.
type Registry struct {
	logger logger.Logger
	opts   []poller.Option

	mu      sync.RWMutex
	order   []string
	entries map[string]entry
}

// NewRegistry creates an empty registry. opts are applied to every poller.
func NewRegistry(l logger.Logger, opts ...poller.Option) *Registry {
	return &Registry{
		logger:  l,
		opts:    opts,
		entries: make(map[string]entry),
	}
}

// Add binds s to a new poller. Adding a name twice replaces the earlier
// feed, stopping its poller.
func (r *Registry) Add(s Source) {
	p := poller.New(s.Name(), s.FetchOnce, s.Interval(), r.logger, r.opts...)

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[s.Name()]; ok {
		old.poller.Stop()
	} else {
		r.order = append(r.order, s.Name())
	}
	r.entries[s.Name()] = entry{source: s, poller: p}
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

func (r *Registry) StartAll() {
	for _, e := range r.snapshot() {
		e.poller.Start()
	}
}

func (r *Registry) StopAll() {
	for _, e := range r.snapshot() {
		e.poller.Stop()
	}
}

// Refresh runs the named feed now. A stopped feed runs a single
// unscheduled cycle.
func (r *Registry) Refresh(name string) error {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return errors.New(errors.FeedNotFound, name)
	}
	if e.poller.Running() {
		e.poller.Refresh()
		return nil
	}
	go func() {
		if _, err := e.source.FetchOnce(context.Background()); err != nil {
			r.logger.Debug("Unscheduled feed cycle failed", "feed", name, "error", err)
		}
	}()
	return nil
}

// Status returns the named feed's status
func (r *Registry) Status(name string) (Status, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return Status{}, errors.New(errors.FeedNotFound, name)
	}
	return statusOf(e), nil
}

// Statuses returns every feed in registration order
func (r *Registry) Statuses() []Status {
	entries := r.snapshot()
	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		st := statusOf(e)
		st.Data = nil
		out = append(out, st)
	}
	return out
}

func statusOf(e entry) Status {
	st := e.source.Snapshot()
	st.Schedule = e.poller.Schedule()
	return st
}

func (r *Registry) snapshot() []entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]entry, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name])
	}
	return out
}
