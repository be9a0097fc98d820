package service

import (
	"time"

	"github.com/boddenberg/orcamento-engine-go/internal/port"
)

var _ port.Clock = (*SystemClock)(nil)

// SystemClock reads the wall clock in a fixed location, so "today" in a
// payment schedule is the sales team's calendar day and not UTC's.
type SystemClock struct {
	loc *time.Location
}

// NewSystemClock loads the IANA zone name. An empty name means UTC.
func NewSystemClock(zone string) (*SystemClock, error) {
	if zone == "" {
		return &SystemClock{loc: time.UTC}, nil
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, err
	}
	return &SystemClock{loc: loc}, nil
}

func (c *SystemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Location returns the zone the clock reports in.
func (c *SystemClock) Location() *time.Location {
	return c.loc
}
