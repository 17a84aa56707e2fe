package health

import (
	"context"
	"fmt"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckBusy indicates every transport slot is in use; new requests fail
	// with a capacity error until one frees up.
	CheckBusy CheckResult = "busy"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
	Slots  string                 `json:"slots,omitempty"`
}

// Service coordinates health checks.
type Service struct {
	cache CachePinger
	slots SlotCounter
}

// New creates a Service. slots can be nil.
func New(cache CachePinger, slots SlotCounter) *Service {
	return &Service{cache: cache, slots: slots}
}

// Check runs health checks against all components.
// A saturated pool is reported but does not degrade the status.
func (s *Service) Check(ctx context.Context) Report {
	r := Report{Status: Healthy, Checks: make(map[string]CheckResult)}

	if err := s.cache.Ping(ctx); err != nil {
		r.Checks["cache"] = CheckError
		r.Status = Degraded
	} else {
		r.Checks["cache"] = CheckOK
	}

	if s.slots != nil {
		size, busy := s.slots.PoolSize(), s.slots.BusySlots()
		r.Slots = fmt.Sprintf("%d/%d", busy, size)
		if busy >= size {
			r.Checks["transport"] = CheckBusy
		} else {
			r.Checks["transport"] = CheckOK
		}
	}

	return r
}
