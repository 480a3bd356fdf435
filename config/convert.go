// Copyright 2025 Raamsri Kumar <raam@tinkershack.in>
// Copyright 2025 The StrataSTOR Authors and Contributors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stratastor/tether/pkg/backoff"
	"github.com/stratastor/tether/pkg/errors"
	"github.com/stratastor/tether/pkg/feeds"
	"github.com/stratastor/tether/pkg/heartbeat"
	"github.com/stratastor/tether/pkg/httpclient"
	"github.com/stratastor/tether/pkg/transport"
)

// Validate reports every invalid value at once
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	positive := func(key, value string) {
		d, err := time.ParseDuration(value)
		switch {
		case err != nil:
			add("%s: %q is not a duration", key, value)
		case d <= 0:
			add("%s: must be positive", key)
		}
	}

	if c.Backend.BaseURL == "" {
		add("backend.baseURL: required")
	}

	if c.Requester.MaxRetries < 0 {
		add("requester.maxRetries: must not be negative")
	}
	if len(c.Requester.RetryDelays) == 0 {
		add("requester.retryDelays: must not be empty")
	}
	for i, d := range c.Requester.RetryDelays {
		positive(fmt.Sprintf("requester.retryDelays[%d]", i), d)
	}
	positive("requester.fallbackDelay", c.Requester.FallbackDelay)
	positive("requester.timeout", c.Requester.Timeout)

	positive("backoff.base", c.Backoff.Base)
	positive("backoff.max", c.Backoff.Max)
	if parse(c.Backoff.Max, 0) < parse(c.Backoff.Base, 0) {
		add("backoff.max: must not be below backoff.base")
	}

	positive("heartbeat.normalInterval", c.Heartbeat.NormalInterval)
	positive("heartbeat.activeInterval", c.Heartbeat.ActiveInterval)
	positive("heartbeat.activeWindow", c.Heartbeat.ActiveWindow)
	positive("heartbeat.emergencyInterval", c.Heartbeat.EmergencyInterval)
	positive("heartbeat.emergencyCooldown", c.Heartbeat.EmergencyCooldown)
	if c.Heartbeat.FailureThreshold < 1 {
		add("heartbeat.failureThreshold: must be at least 1")
	}

	positive("keepAlive.reportInterval", c.KeepAlive.ReportInterval)

	names := make([]string, 0, len(c.Feeds))
	for name := range c.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if c.Feeds[name].Enabled {
			positive("feeds."+name+".interval", c.Feeds[name].Interval)
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		add("server.port: %d out of range", c.Server.Port)
	}

	if len(problems) > 0 {
		return errors.New(errors.ConfigValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

func parse(value string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// ClientConfig builds the HTTP client settings for the backend
func (c *Config) ClientConfig() httpclient.ClientConfig {
	cc := httpclient.NewClientConfig()
	cc.BaseURL = c.Backend.BaseURL
	cc.BearerToken = c.Backend.Token
	cc.AllowInsecure = c.Backend.AllowInsecure
	if c.Backend.UserAgent != "" {
		cc.UserAgent = c.Backend.UserAgent
	}
	cc.Timeout = parse(c.Requester.Timeout, cc.Timeout)
	return cc
}

// RequesterOptions builds the transport retry schedule
func (c *Config) RequesterOptions() transport.Options {
	def := transport.DefaultOptions()
	opts := transport.Options{
		MaxRetries:    c.Requester.MaxRetries,
		FallbackDelay: parse(c.Requester.FallbackDelay, def.FallbackDelay),
		Timeout:       parse(c.Requester.Timeout, def.Timeout),
	}
	for _, d := range c.Requester.RetryDelays {
		opts.RetryDelays = append(opts.RetryDelays, parse(d, opts.FallbackDelay))
	}
	if len(opts.RetryDelays) == 0 {
		opts.RetryDelays = def.RetryDelays
	}
	return opts
}

func (c *Config) BackoffPolicy() backoff.Policy {
	return backoff.New(
		parse(c.Backoff.Base, backoff.DefaultBase),
		parse(c.Backoff.Max, backoff.DefaultMax),
	)
}

// HeartbeatConfig builds the scheduler settings. Invalid values fall back
// to the built-in cadence.
func (c *Config) HeartbeatConfig() heartbeat.Config {
	def := heartbeat.DefaultConfig()
	return heartbeat.Config{
		NormalInterval:    parse(c.Heartbeat.NormalInterval, def.NormalInterval),
		ActiveInterval:    parse(c.Heartbeat.ActiveInterval, def.ActiveInterval),
		ActiveWindow:      parse(c.Heartbeat.ActiveWindow, def.ActiveWindow),
		EmergencyInterval: parse(c.Heartbeat.EmergencyInterval, def.EmergencyInterval),
		Cooldown:          parse(c.Heartbeat.EmergencyCooldown, def.Cooldown),
		FailureThreshold:  c.Heartbeat.FailureThreshold,
		PingPath:          c.Heartbeat.PingPath,
		HealthPath:        c.Heartbeat.HealthPath,
		Backoff:           c.BackoffPolicy(),
	}
}

func (c *Config) ReportInterval() time.Duration {
	return parse(c.KeepAlive.ReportInterval, 10*time.Minute)
}

// FeedSpecs converts the feeds section, keyed by feed name
func (c *Config) FeedSpecs() map[string]feeds.Spec {
	specs := make(map[string]feeds.Spec, len(c.Feeds))
	defaults := feeds.DefaultSpecs()
	for name, fc := range c.Feeds {
		spec := feeds.Spec{
			Name:    name,
			Enabled: fc.Enabled,
			Path:    fc.Path,
		}
		spec.Interval = parse(fc.Interval, defaults[name].Interval)
		specs[name] = spec
	}
	return specs
}
