package port

import "time"

// Timer is the part of *time.Timer the scheduling code needs.
type Timer interface {
	Stop() bool
}

// Clock abstracts wall time so reconnect and debounce timing can be driven
// by tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// SystemClock returns the real clock.
func SystemClock() Clock { return systemClock{} }
