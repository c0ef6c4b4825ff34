// health.go - Health check endpoint support for the pool daemon.
package main

import (
	"sync"
	"time"
)

// HealthStatus represents the health status of the service.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Checks    map[string]string `json:"checks"`
}

// HealthChecker runs registered component checks on demand.
type HealthChecker struct {
	mu        sync.RWMutex
	startTime time.Time
	version   string
	checks    map[string]func() error
}

// NewHealthChecker creates a new health checker.
func NewHealthChecker(version string) *HealthChecker {
	return &HealthChecker{
		startTime: time.Now(),
		version:   version,
		checks:    make(map[string]func() error),
	}
}

// RegisterCheck registers a named component check.
func (hc *HealthChecker) RegisterCheck(name string, check func() error) {
	hc.mu.Lock()
	defer hc.mu.Unlock()
	hc.checks[name] = check
}

// CheckHealth runs all registered checks and reports overall status.
// Status is "degraded" if any check fails, "healthy" otherwise.
func (hc *HealthChecker) CheckHealth() HealthStatus {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   hc.version,
		Uptime:    time.Since(hc.startTime).String(),
		Checks:    make(map[string]string, len(hc.checks)),
	}

	for name, check := range hc.checks {
		if err := check(); err != nil {
			status.Status = "degraded"
			status.Checks[name] = "failed: " + err.Error()
		} else {
			status.Checks[name] = "ok"
		}
	}
	return status
}
