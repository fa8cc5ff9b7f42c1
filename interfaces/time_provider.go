package interfaces

import "time"

// TimeProvider supplies the current time for last-seen timestamps, reconnect-grace deadlines
// and logging. Injected so tests can use a fixed or controllable clock instead of time.Now().
//
// Used by the data servicer to stamp each Datapath stream's start time (the value later stored
// in last_seen_map) and by service.SessionManager to time provisioning and set ChannelFor's
// deadline. Constructed in cmd/main as
// service.NewTimeProvider(func() time.Time { return time.Now().UTC() }).
//
//go:generate moq -stub -out mock/time_provider.go -pkg mock . TimeProvider
type TimeProvider interface {
	// Now returns current time ("now" for comparison against start_time / last_seen_map entries).
	// Parameters: none.
	// Returns: time.Time.
	// Called from proxy.DataServicer when stamping a stream's start time, and from
	// service.sessionManager.Start/ChannelFor for provisioning durations and readiness deadlines.
	Now() time.Time
}
