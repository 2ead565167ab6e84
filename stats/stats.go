// Package stats exposes the core's operational counters and gauges
// through a Prometheus registry, and rate-limits the log lines that
// would otherwise flood during a sustained back-pressure episode.
/*
 * Copyright (c) 2018-2024, NVIDIA CORPORATION. All rights reserved.
 */
package stats

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jkluft/conartist/cmn/nlog"
)

const rateLimitInterval = 5 * time.Second

// Stats bundles every metric the core reports. A nil *Stats is valid and
// every method on it is a no-op, so components can be built without
// wiring stats through every constructor.
type Stats struct {
	reg *prometheus.Registry

	ChannelDepth       *prometheus.GaugeVec
	PoolExhausted      *prometheus.CounterVec
	JobCompletions     prometheus.Counter
	JobLastLatencySecs prometheus.Gauge
	StreamAppendBytes  prometheus.Counter
	StreamFullEvents   *prometheus.CounterVec

	warnLimiter *rate.Limiter
}

// New registers and returns a fresh metric set against its own registry,
// suitable for serving at /metrics.
func New() *Stats {
	reg := prometheus.NewRegistry()
	s := &Stats{
		reg: reg,
		ChannelDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "conartist",
			Name:      "channel_depth",
			Help:      "Current depth of a bounded channel.",
		}, []string{"channel"}),
		PoolExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conartist",
			Name:      "pool_exhausted_total",
			Help:      "Count of Acquire calls that found the pool empty.",
		}, []string{"pool"}),
		JobCompletions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conartist",
			Name:      "job_completions_total",
			Help:      "Count of job completions delivered by the job manager.",
		}),
		JobLastLatencySecs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "conartist",
			Name:      "job_last_latency_seconds",
			Help:      "Wall time the most recently completed job spent executing.",
		}),
		StreamAppendBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "conartist",
			Name:      "stream_append_bytes_total",
			Help:      "Total bytes appended across all streams.",
		}),
		StreamFullEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "conartist",
			Name:      "stream_full_events_total",
			Help:      "Count of append attempts rejected because a stream is full.",
		}, []string{"stream"}),
		// at most one "back-pressure" warning line every 5 seconds,
		// regardless of how many callers hit the condition.
		warnLimiter: rate.NewLimiter(rate.Every(rateLimitInterval), 1),
	}
	reg.MustRegister(s.ChannelDepth, s.PoolExhausted, s.JobCompletions, s.JobLastLatencySecs,
		s.StreamAppendBytes, s.StreamFullEvents)
	return s
}

// Registry exposes the underlying registry for an HTTP handler to render.
func (s *Stats) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.reg
}

// WarnBackpressure logs a rate-limited warning for a queue-full or
// pool-exhausted condition, identified by what.
func (s *Stats) WarnBackpressure(what string) {
	if s == nil || !s.warnLimiter.Allow() {
		return
	}
	nlog.Warningf("back-pressure: %s", what)
}
