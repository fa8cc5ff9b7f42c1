package service

import (
	"time"

	"github.com/FeckMell/clientproxier/helpers"
	"github.com/FeckMell/clientproxier/interfaces"
)

// timeProvider implements interfaces.TimeProvider. It returns the current time via the injected now func.
// Used by the data servicer for stream start times, by the session manager for provisioning
// timing and readiness deadlines, and by tests for deterministic time.
// Built in cmd/main with a UTC time.Now.
type timeProvider struct {
	now func() time.Time
}

// NewTimeProvider creates a TimeProvider that returns time via the given now func. Panics on nil now.
//
// Parameter now — no-arg function returning current time (in prod — time.Now, in tests — fixed/controllable time).
//
// Returns: interfaces.TimeProvider (*timeProvider).
//
// Called from cmd/main when building the session manager.
func NewTimeProvider(now func() time.Time) interfaces.TimeProvider {
	return &timeProvider{now: helpers.NilPanic(now, "service.time_provider.go: now is required")}
}

// Now returns current time from the injected function.
//
// Returns: time.Time.
//
// Called from proxy.DataServicer for stream start times and from service.sessionManager
// (Start, ChannelFor).
func (t *timeProvider) Now() time.Time {
	return t.now()
}
