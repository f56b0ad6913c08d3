package poller

import (
	"errors"
	"sync/atomic"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

// ErrNotReady is reported to consumers before the first successful poll.
var ErrNotReady = errors.New("data not ready yet")

// Publisher holds the most recent snapshot. Publish replaces it as a whole;
// readers never block the poller and never see a partially written value.
type Publisher struct {
	latest atomic.Pointer[gpsdo.Snapshot]
}

// NewPublisher returns an empty publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish stores a copy of s.
func (p *Publisher) Publish(s gpsdo.Snapshot) {
	p.latest.Store(&s)
}

// Latest returns the most recent snapshot, or false if none was published.
func (p *Publisher) Latest() (gpsdo.Snapshot, bool) {
	s := p.latest.Load()
	if s == nil {
		return gpsdo.Snapshot{}, false
	}
	return *s, true
}

// Get is like Latest but returns ErrNotReady instead of a flag.
func (p *Publisher) Get() (gpsdo.Snapshot, error) {
	s, ok := p.Latest()
	if !ok {
		return gpsdo.Snapshot{}, ErrNotReady
	}
	return s, nil
}
