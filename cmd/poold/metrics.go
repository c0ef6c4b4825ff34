// metrics.go - Runtime metrics for the pool daemon.
package main

import (
	"sync"
	"time"
)

// MetricsCollector aggregates counters, gauges and timing samples for the
// daemon's operations.
type MetricsCollector struct {
	mu sync.RWMutex

	counters map[string]int64
	gauges   map[string]float64
	timings  map[string][]time.Duration

	startTime time.Time
}

// NewMetricsCollector creates a new metrics collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{
		counters:  make(map[string]int64),
		gauges:    make(map[string]float64),
		timings:   make(map[string][]time.Duration),
		startTime: time.Now(),
	}
}

// IncrementCounter increments a named counter.
func (mc *MetricsCollector) IncrementCounter(name string) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.counters[name]++
}

// SetGauge sets a named gauge value.
func (mc *MetricsCollector) SetGauge(name string, value float64) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.gauges[name] = value
}

// RecordTiming records a duration sample for a named operation. Only the
// most recent 1000 samples per name are retained.
func (mc *MetricsCollector) RecordTiming(name string, d time.Duration) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	samples := append(mc.timings[name], d)
	if len(samples) > 1000 {
		samples = samples[len(samples)-1000:]
	}
	mc.timings[name] = samples
}

// RecordDeposit records an accepted deposit.
func (mc *MetricsCollector) RecordDeposit() {
	mc.IncrementCounter("deposits_accepted")
}

// RecordWithdraw records an accepted withdrawal and the time spent in
// proof verification.
func (mc *MetricsCollector) RecordWithdraw(verifyTime time.Duration) {
	mc.IncrementCounter("withdrawals_accepted")
	mc.RecordTiming("withdraw_total", verifyTime)
}

// RecordRejection records a rejected operation by error class.
func (mc *MetricsCollector) RecordRejection(reason string) {
	mc.IncrementCounter("rejected_" + reason)
	mc.IncrementCounter("rejected_total")
}

// GetMetricsSummary returns a snapshot of all metrics.
func (mc *MetricsCollector) GetMetricsSummary() map[string]interface{} {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	counters := make(map[string]int64, len(mc.counters))
	for k, v := range mc.counters {
		counters[k] = v
	}
	gauges := make(map[string]float64, len(mc.gauges))
	for k, v := range mc.gauges {
		gauges[k] = v
	}

	avgTimings := make(map[string]string, len(mc.timings))
	for name, samples := range mc.timings {
		if len(samples) == 0 {
			continue
		}
		var total time.Duration
		for _, d := range samples {
			total += d
		}
		avgTimings[name+"_avg"] = (total / time.Duration(len(samples))).String()
	}

	return map[string]interface{}{
		"counters": counters,
		"gauges":   gauges,
		"timings":  avgTimings,
		"uptime":   time.Since(mc.startTime).String(),
	}
}
