// Package time contains time helpers and a clock seam for deterministic tests
package time

import "time"

// Clock supplies the current instant. Production code uses Real; tests use
// Fixed so expiry decisions are reproducible
type Clock interface {
	Now() time.Time
}

// Real is the wall clock
type Real struct{}

// Now implements Clock
func (Real) Now() time.Time { return time.Now().UTC() }

// Fixed is a settable clock for tests
type Fixed struct{ T time.Time }

// Now implements Clock
func (f *Fixed) Now() time.Time { return f.T }

// Advance moves the fixed clock forward by d
func (f *Fixed) Advance(d time.Duration) { f.T = f.T.Add(d) }

// Ptr returns a pointer to t or nil if t is zero
func Ptr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
