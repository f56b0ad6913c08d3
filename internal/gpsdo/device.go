package gpsdo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	errClosed  = errors.New("handle closed")
	errNoIface = errors.New("device not connected")
	errTimeout = errors.New("timed out waiting for status report")
)

// Interface is the HID transport of one opened device.
type Interface interface {
	// FeatureReport fetches feature report id into buf. buf has room for
	// the report ID byte; on return buf[0:n] holds report data only.
	FeatureReport(id byte, buf []byte) (n int, err error)
	// ReadInputReport reads one input report, waiting at most timeout.
	// An expired timeout is reported as n == 0 with a nil error.
	ReadInputReport(buf []byte, timeout time.Duration) (n int, err error)
	SerialNumber() (string, error)
	Close() error
}

// Candidate is an attached, not yet opened device.
type Candidate struct {
	Path         string
	VendorID     uint16
	ProductID    uint16
	SerialNumber string
	Product      string
}

func (c Candidate) String() string {
	serial := c.SerialNumber
	if serial == "" {
		serial = "unknown"
	}
	return fmt.Sprintf("%s (serial %s, %04x:%04x)", ProductName(c.ProductID), serial, c.VendorID, c.ProductID)
}

// Select picks exactly one candidate. With a serial number the matching
// candidate is returned; without one there must be exactly one candidate.
func Select(candidates []Candidate, serial string) (Candidate, error) {
	if serial != "" {
		for _, c := range candidates {
			if c.SerialNumber == serial {
				return c, nil
			}
		}
		return Candidate{}, fmt.Errorf("%w: %q", ErrNotFound, serial)
	}

	switch len(candidates) {
	case 0:
		return Candidate{}, ErrNoDevice
	case 1:
		return candidates[0], nil
	default:
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.String())
		}
		return Candidate{}, fmt.Errorf("%w: %s", ErrAmbiguousDevice, strings.Join(names, ", "))
	}
}

// Binder locates and opens devices.
type Binder struct {
	Enumerate   func() ([]Candidate, error)
	Open        func(Candidate) (Interface, error)
	ReadTimeout time.Duration
}

// Bind enumerates attached devices, selects one by serial number and
// opens it. The returned Handle owns the device until Close.
func (b Binder) Bind(serial string) (*Handle, error) {
	h := &Handle{binder: b, requested: serial}
	if err := h.connect(); err != nil {
		return nil, err
	}
	return h, nil
}

// Handle is an opened device. Register reads are serialized.
type Handle struct {
	binder    Binder
	requested string

	mu        sync.Mutex
	iface     Interface
	candidate Candidate
	serial    string
	closed    bool
}

// connect must be called with mu held or before the handle is shared.
func (h *Handle) connect() error {
	candidates, err := h.binder.Enumerate()
	if err != nil {
		return &IOError{Op: "enumerate", Err: err}
	}

	// Candidates carry the enumerated serial, which may be empty even when
	// the opened device reports one.
	want := h.requested
	if want == "" {
		want = h.candidate.SerialNumber
	}
	c, err := Select(candidates, want)
	if err != nil {
		return err
	}

	iface, err := h.binder.Open(c)
	if err != nil {
		return &IOError{Op: "open " + c.Path, Err: err}
	}

	serial := c.SerialNumber
	if serial == "" {
		if s, err := iface.SerialNumber(); err == nil {
			serial = s
		}
	}

	h.iface = iface
	h.candidate = c
	h.serial = serial
	return nil
}

// SerialNumber of the bound device, possibly empty.
func (h *Handle) SerialNumber() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.serial
}

// Candidate describes the bound device.
func (h *Handle) Candidate() Candidate {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.candidate
}

// ReadRegisters reads the configuration window and one status report.
// Short responses are passed through so the codec rejects them.
func (h *Handle) ReadRegisters(ctx context.Context) (Registers, error) {
	if err := ctx.Err(); err != nil {
		return Registers{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return Registers{}, &IOError{Op: "read", Err: errClosed}
	}
	if h.iface == nil {
		return Registers{}, &IOError{Op: "read", Err: errNoIface}
	}

	feature := make([]byte, featureReportSize)
	n, err := h.iface.FeatureReport(configReportID, feature)
	if err != nil {
		return Registers{}, &IOError{Op: "read config", Err: err}
	}
	if n > len(feature) {
		n = len(feature)
	}
	if n > ConfigLen {
		n = ConfigLen
	}

	status := make([]byte, StatusLen)
	m, err := h.iface.ReadInputReport(status, h.binder.ReadTimeout)
	if err != nil {
		return Registers{}, &IOError{Op: "read status", Err: err}
	}
	if m == 0 {
		return Registers{}, &IOError{Op: "read status", Err: errTimeout}
	}
	if m > len(status) {
		m = len(status)
	}

	return Registers{Config: feature[:n], Status: status[:m]}, nil
}

// Reconnect closes the current interface and binds again, preferring the
// enumerated serial number of the previously bound device.
func (h *Handle) Reconnect() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errClosed
	}
	if h.iface != nil {
		_ = h.iface.Close()
		h.iface = nil
	}
	return h.connect()
}

// Close releases the device. Only the first call has an effect.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if h.iface == nil {
		return nil
	}
	err := h.iface.Close()
	h.iface = nil
	return err
}
