// Package system provides the wall clock used for build timestamps.
package system

import "time"

// Clock stamps manifests, cache files and build events.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to the second since every
// consumer renders second precision.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
