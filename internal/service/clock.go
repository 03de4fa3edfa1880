package service

import "time"

// SystemClock reads the wall clock. The vault engine takes a ports.Clock so
// tests can substitute a controllable time source.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
