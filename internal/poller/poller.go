package poller

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/common/log"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

// Source reads raw registers from one bound device.
type Source interface {
	ReadRegisters(ctx context.Context) (gpsdo.Registers, error)
	SerialNumber() string
}

// Reconnector is implemented by sources that can rebind after the device
// went away.
type Reconnector interface {
	Reconnect() error
}

// Observer is told about every poll cycle, after a successful snapshot
// has been published.
type Observer interface {
	ObservePoll(d time.Duration, err error)
}

// Observers fans one poll outcome out to several observers in order.
type Observers []Observer

func (o Observers) ObservePoll(d time.Duration, err error) {
	for _, obs := range o {
		obs.ObservePoll(d, err)
	}
}

// State of the poll loop.
type State int32

const (
	StateIdle State = iota
	StatePolling
	StateDegraded
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateDegraded:
		return "degraded"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config is the runtime config of the poll loop.
type Config struct {
	Interval time.Duration
	// ReconnectAfter consecutive I/O failures trigger a reconnect attempt.
	// Zero disables reconnects.
	ReconnectAfter int
	// Plan derives frequencies; nil means gpsdo.DeriveFrequencies.
	Plan gpsdo.FrequencyPlan
}

// Poller reads the device on a fixed interval and publishes snapshots.
// The loop never stops on read failures; only ctx ends it.
type Poller struct {
	cfg Config
	src Source
	pub *Publisher
	obs Observer
	now func() time.Time

	state    atomic.Int32
	failures atomic.Int64
}

// New creates a poller. obs may be nil.
func New(cfg Config, src Source, pub *Publisher, obs Observer) (*Poller, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if cfg.ReconnectAfter < 0 {
		return nil, errors.New("poller: reconnect-after must be >= 0")
	}
	if src == nil {
		return nil, errors.New("poller: source required")
	}
	if pub == nil {
		return nil, errors.New("poller: publisher required")
	}
	if cfg.Plan == nil {
		cfg.Plan = gpsdo.DeriveFrequencies
	}
	return &Poller{cfg: cfg, src: src, pub: pub, obs: obs, now: time.Now}, nil
}

// State returns the current loop state.
func (p *Poller) State() State {
	return State(p.state.Load())
}

// ConsecutiveFailures since the last successful poll.
func (p *Poller) ConsecutiveFailures() int64 {
	return p.failures.Load()
}

// Run polls immediately, then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context) {
	p.state.Store(int32(StatePolling))
	defer p.state.Store(int32(StateStopped))

	_ = p.PollOnce(ctx)

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = p.PollOnce(ctx)
		}
	}
}

// PollOnce performs one read, decode and publish cycle.
// All-or-nothing: on failure the previous snapshot stays published.
func (p *Poller) PollOnce(ctx context.Context) error {
	start := time.Now()
	snap, err := p.read(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	d := time.Since(start)

	if err != nil {
		p.fail(err)
	} else {
		p.pub.Publish(snap)
		p.succeed()
	}
	if p.obs != nil {
		p.obs.ObservePoll(d, err)
	}
	return err
}

func (p *Poller) read(ctx context.Context) (gpsdo.Snapshot, error) {
	regs, err := p.src.ReadRegisters(ctx)
	if err != nil {
		return gpsdo.Snapshot{}, err
	}

	cfg, st, err := gpsdo.Decode(regs)
	if err != nil {
		return gpsdo.Snapshot{}, fmt.Errorf("decode: %w", err)
	}

	return gpsdo.Snapshot{
		SerialNumber: p.src.SerialNumber(),
		Config:       cfg,
		Status:       st,
		Frequencies:  p.cfg.Plan(cfg),
		ObservedAt:   p.now().UTC(),
	}, nil
}

func (p *Poller) fail(err error) {
	n := p.failures.Add(1)
	p.state.Store(int32(StateDegraded))

	if n == 1 {
		log.Warnf("Polling GPSDO failed, keeping last snapshot: %v", err)
	} else {
		log.Debugf("Polling GPSDO failed (%d in a row): %v", n, err)
	}

	if p.cfg.ReconnectAfter == 0 || !gpsdo.IsIOError(err) || n%int64(p.cfg.ReconnectAfter) != 0 {
		return
	}
	r, ok := p.src.(Reconnector)
	if !ok {
		return
	}
	if err := r.Reconnect(); err != nil {
		log.Warnf("Reconnecting GPSDO failed: %v", err)
		return
	}
	log.Infof("Reconnected GPSDO %s", p.src.SerialNumber())
}

func (p *Poller) succeed() {
	if n := p.failures.Swap(0); n > 0 {
		log.Infof("Polling GPSDO recovered after %d failures", n)
	}
	p.state.Store(int32(StatePolling))
}
