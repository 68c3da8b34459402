/**
 * Copyright (c) 2022, Xerra Earth Observation Institute.
 * Copyright (c) 2025, Simeon Miteff.
 *
 * See LICENSE.TXT in the root directory of this source tree.
 */

// Package metrics exposes a Prometheus collector for one or more
// rdmaqueue connections, with the Describe/Collect pair backed by a
// mutex-guarded registry of scrapeable connections.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnStats is a point-in-time snapshot a registered connection supplies
// to the collector on each scrape. It intentionally mirrors the engine's
// own vocabulary (pool occupancy, credits, completions) rather than raw
// verbs counters.
type ConnStats struct {
	PoolInUse         uint32
	PoolTotal         uint32
	SendCreditsInUse  uint64
	SendWindow        uint64
	RecvPosted        uint32
	RecvWRs           uint32
	SendCompletions   uint64
	RecvCompletions   uint64
	PoolExhaustions   uint64
	WaitBlockedMicros uint64
}

// StatsFunc is called once per scrape for one registered connection.
type StatsFunc func() ConnStats

type connEntry struct {
	labels []string
	stats  StatsFunc
}

// EngineCollector is a prometheus.Collector over a dynamic set of
// connections, added and removed as they're established and torn down.
type EngineCollector struct {
	mu    sync.Mutex
	conns map[uint64]connEntry

	labelNames []string

	poolInUse       *prometheus.Desc
	poolTotal       *prometheus.Desc
	sendInFlight    *prometheus.Desc
	sendWindow      *prometheus.Desc
	recvPosted      *prometheus.Desc
	recvCapacity    *prometheus.Desc
	sendCompletions *prometheus.Desc
	recvCompletions *prometheus.Desc
	poolExhausted   *prometheus.Desc
	waitBlocked     *prometheus.Desc
}

// NewEngineCollector constructs a collector whose per-connection metrics
// carry connectionLabels (values supplied per connection via Add) plus
// constLabels (fixed for the whole process).
func NewEngineCollector(prefix string, connectionLabels []string, constLabels prometheus.Labels) *EngineCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prefix+"_"+name, help, connectionLabels, constLabels)
	}

	return &EngineCollector{
		conns:           make(map[uint64]connEntry),
		labelNames:      connectionLabels,
		poolInUse:       desc("pool_buffers_in_use", "Buffers currently checked out of the memory pool."),
		poolTotal:       desc("pool_buffers_total", "Total buffers registered in the memory pool."),
		sendInFlight:    desc("send_credits_in_flight", "Posted sends awaiting peer-granted credit acknowledgement."),
		sendWindow:      desc("send_window_size", "Configured flow-control window size."),
		recvPosted:      desc("recv_wrs_posted", "Receive work requests currently posted."),
		recvCapacity:    desc("recv_wrs_capacity", "Adapter receive work request capacity."),
		sendCompletions: desc("send_completions_total", "Send work completions observed."),
		recvCompletions: desc("recv_completions_total", "Receive work completions observed."),
		poolExhausted:   desc("pool_exhausted_total", "Times Malloc/refill observed PoolExhausted."),
		waitBlocked:     desc("wait_blocked_microseconds_total", "Cumulative microseconds spent busy-polling inside Wait/WaitAny."),
	}
}

// Add registers a connection's stats supplier under a stable key (its
// TaskHandle) with the label values for connectionLabels.
func (e *EngineCollector) Add(key uint64, labels []string, stats StatsFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conns[key] = connEntry{labels: labels, stats: stats}
}

// Remove unregisters a connection, typically on teardown.
func (e *EngineCollector) Remove(key uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.conns, key)
}

func (e *EngineCollector) Describe(descs chan<- *prometheus.Desc) {
	descs <- e.poolInUse
	descs <- e.poolTotal
	descs <- e.sendInFlight
	descs <- e.sendWindow
	descs <- e.recvPosted
	descs <- e.recvCapacity
	descs <- e.sendCompletions
	descs <- e.recvCompletions
	descs <- e.poolExhausted
	descs <- e.waitBlocked
}

func (e *EngineCollector) Collect(out chan<- prometheus.Metric) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, entry := range e.conns {
		s := entry.stats()
		labels := entry.labels

		out <- prometheus.MustNewConstMetric(e.poolInUse, prometheus.GaugeValue, float64(s.PoolInUse), labels...)
		out <- prometheus.MustNewConstMetric(e.poolTotal, prometheus.GaugeValue, float64(s.PoolTotal), labels...)
		out <- prometheus.MustNewConstMetric(e.sendInFlight, prometheus.GaugeValue, float64(s.SendCreditsInUse), labels...)
		out <- prometheus.MustNewConstMetric(e.sendWindow, prometheus.GaugeValue, float64(s.SendWindow), labels...)
		out <- prometheus.MustNewConstMetric(e.recvPosted, prometheus.GaugeValue, float64(s.RecvPosted), labels...)
		out <- prometheus.MustNewConstMetric(e.recvCapacity, prometheus.GaugeValue, float64(s.RecvWRs), labels...)
		out <- prometheus.MustNewConstMetric(e.sendCompletions, prometheus.CounterValue, float64(s.SendCompletions), labels...)
		out <- prometheus.MustNewConstMetric(e.recvCompletions, prometheus.CounterValue, float64(s.RecvCompletions), labels...)
		out <- prometheus.MustNewConstMetric(e.poolExhausted, prometheus.CounterValue, float64(s.PoolExhaustions), labels...)
		out <- prometheus.MustNewConstMetric(e.waitBlocked, prometheus.CounterValue, float64(s.WaitBlockedMicros), labels...)
	}
}
