package types

import "time"

// Clock abstracts time so services can be tested at a fixed instant.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock, always in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns T.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }
