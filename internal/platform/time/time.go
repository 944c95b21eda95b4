// Package time contains the clock seam shared by the pipeline and its tests
package time

import "time"

// Clock reports the current time; the pipeline reads time only through it
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock
func System() Clock { return systemClock{} }

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// Since is the elapsed time on c since t, clamped at zero
func Since(c Clock, t time.Time) time.Duration {
	d := c.Now().Sub(t)
	if d < 0 {
		return 0
	}
	return d
}
