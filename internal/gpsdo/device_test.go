package gpsdo

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeInterface struct {
	path    string
	config  []byte
	status  []byte
	serial  string
	failErr error
	closed  int
}

func (f *fakeInterface) FeatureReport(id byte, buf []byte) (int, error) {
	if f.failErr != nil {
		return 0, f.failErr
	}
	if id != configReportID {
		return 0, errors.New("unexpected report id")
	}
	return copy(buf, f.config), nil
}

func (f *fakeInterface) ReadInputReport(buf []byte, timeout time.Duration) (int, error) {
	if f.failErr != nil {
		return 0, f.failErr
	}
	return copy(buf, f.status), nil
}

func (f *fakeInterface) SerialNumber() (string, error) { return f.serial, nil }

func (f *fakeInterface) Close() error {
	f.closed++
	return nil
}

// fakeBus hands out one fakeInterface per candidate path.
type fakeBus struct {
	candidates []Candidate
	ifaces     map[string]*fakeInterface
	opened     []string
	enumErr    error
}

func (b *fakeBus) binder() Binder {
	return Binder{
		Enumerate: func() ([]Candidate, error) {
			return b.candidates, b.enumErr
		},
		Open: func(c Candidate) (Interface, error) {
			b.opened = append(b.opened, c.Path)
			iface, ok := b.ifaces[c.Path]
			if !ok {
				return nil, errors.New("no such device")
			}
			return iface, nil
		},
		ReadTimeout: time.Second,
	}
}

func newFakeBus(serials ...string) *fakeBus {
	b := &fakeBus{ifaces: map[string]*fakeInterface{}}
	for _, s := range serials {
		path := "/dev/hidraw-" + s
		b.candidates = append(b.candidates, Candidate{
			Path:         path,
			VendorID:     VendorLeoBodnar,
			ProductID:    ProductGPSDO,
			SerialNumber: s,
		})
		b.ifaces[path] = &fakeInterface{
			path:   path,
			config: append(configFixture(), make([]byte, 39)...),
			status: []byte{0, 0x02},
		}
	}
	return b
}

func TestSelect(t *testing.T) {
	two := newFakeBus("A1", "B2").candidates
	one := newFakeBus("A1").candidates

	c, err := Select(two, "B2")
	if err != nil {
		t.Fatalf("Select(B2) err=%v", err)
	}
	if c.SerialNumber != "B2" {
		t.Fatalf("selected %q want B2", c.SerialNumber)
	}

	if _, err := Select(two, "C3"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Select(C3): expected ErrNotFound, got %v", err)
	}

	if _, err := Select(two, ""); !errors.Is(err, ErrAmbiguousDevice) {
		t.Fatalf("Select(none) with two: expected ErrAmbiguousDevice, got %v", err)
	}

	c, err = Select(one, "")
	if err != nil {
		t.Fatalf("Select(none) with one err=%v", err)
	}
	if c.SerialNumber != "A1" {
		t.Fatalf("selected %q want A1", c.SerialNumber)
	}

	if _, err := Select(nil, ""); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("Select(none) with zero: expected ErrNoDevice, got %v", err)
	}
}

func TestIsSupported(t *testing.T) {
	if !IsSupported(0x1dd2, 0x2210) || !IsSupported(0x1dd2, 0x2211) {
		t.Fatalf("leo bodnar gpsdo models must be supported")
	}
	if IsSupported(0x1dd2, 0x1001) || IsSupported(0x0483, 0x2210) {
		t.Fatalf("unexpected device reported as supported")
	}
}

func TestBind_OpensSelectedDevice(t *testing.T) {
	bus := newFakeBus("A1", "B2")

	h, err := bus.binder().Bind("B2")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}
	defer h.Close()

	if len(bus.opened) != 1 || bus.opened[0] != "/dev/hidraw-B2" {
		t.Fatalf("opened %v, want only /dev/hidraw-B2", bus.opened)
	}
	if h.SerialNumber() != "B2" {
		t.Fatalf("serial=%q want B2", h.SerialNumber())
	}
}

func TestBind_SelectionErrors(t *testing.T) {
	if _, err := newFakeBus().binder().Bind(""); !errors.Is(err, ErrNoDevice) {
		t.Fatalf("expected ErrNoDevice, got %v", err)
	}
	if _, err := newFakeBus("A1", "B2").binder().Bind(""); !errors.Is(err, ErrAmbiguousDevice) {
		t.Fatalf("expected ErrAmbiguousDevice, got %v", err)
	}

	bus := newFakeBus("A1")
	bus.enumErr = errors.New("hidapi unavailable")
	if _, err := bus.binder().Bind(""); !IsIOError(err) {
		t.Fatalf("expected IOError, got %v", err)
	}
}

func TestBind_SerialFromInterface(t *testing.T) {
	bus := newFakeBus("X")
	bus.candidates[0].SerialNumber = ""
	bus.ifaces["/dev/hidraw-X"].serial = "FROM-DEVICE"

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}
	if h.SerialNumber() != "FROM-DEVICE" {
		t.Fatalf("serial=%q want FROM-DEVICE", h.SerialNumber())
	}
}

func TestReconnect_SerialOnlyFromInterface(t *testing.T) {
	bus := newFakeBus("X")
	bus.candidates[0].SerialNumber = ""
	iface := bus.ifaces["/dev/hidraw-X"]
	iface.serial = "FROM-DEVICE"

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	if err := h.Reconnect(); err != nil {
		t.Fatalf("Reconnect err=%v", err)
	}
	if iface.closed != 1 {
		t.Fatalf("old interface closed %d times, want 1", iface.closed)
	}
	if h.SerialNumber() != "FROM-DEVICE" {
		t.Fatalf("serial=%q want FROM-DEVICE", h.SerialNumber())
	}
	if _, err := h.ReadRegisters(context.Background()); err != nil {
		t.Fatalf("ReadRegisters after reconnect err=%v", err)
	}
}

func TestReadRegisters(t *testing.T) {
	bus := newFakeBus("A1")
	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	regs, err := h.ReadRegisters(context.Background())
	if err != nil {
		t.Fatalf("ReadRegisters err=%v", err)
	}
	if len(regs.Config) != ConfigLen {
		t.Fatalf("config window %d bytes want %d", len(regs.Config), ConfigLen)
	}

	cfg, st, err := Decode(regs)
	if err != nil {
		t.Fatalf("Decode err=%v", err)
	}
	if cfg.Fin != 4687500 {
		t.Fatalf("fin=%d", cfg.Fin)
	}
	if !st.SatLock || st.PLLLock || st.Locked {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestReadRegisters_ShortConfigIsMalformed(t *testing.T) {
	bus := newFakeBus("A1")
	bus.ifaces["/dev/hidraw-A1"].config = configFixture()[:10]

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	regs, err := h.ReadRegisters(context.Background())
	if err != nil {
		t.Fatalf("ReadRegisters err=%v", err)
	}
	if _, _, err := Decode(regs); !errors.Is(err, ErrMalformedBuffer) {
		t.Fatalf("expected ErrMalformedBuffer, got %v", err)
	}
}

func TestReadRegisters_Errors(t *testing.T) {
	bus := newFakeBus("A1")
	iface := bus.ifaces["/dev/hidraw-A1"]

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	iface.failErr = errors.New("device disconnected")
	_, err = h.ReadRegisters(context.Background())
	if !IsIOError(err) {
		t.Fatalf("expected IOError, got %v", err)
	}
	if err.Error() != "gpsdo read config: device disconnected" {
		t.Fatalf("unexpected error text %q", err.Error())
	}

	iface.failErr = nil
	iface.status = nil
	_, err = h.ReadRegisters(context.Background())
	if !IsIOError(err) || !errors.Is(err, errTimeout) {
		t.Fatalf("timeout: expected IOError wrapping errTimeout, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := h.ReadRegisters(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestReconnect(t *testing.T) {
	bus := newFakeBus("A1")
	first := bus.ifaces["/dev/hidraw-A1"]

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	// Device re-enumerates on a new path, and a second unit appears.
	replugged := newFakeBus("A1", "B2")
	replugged.candidates[0].Path = "/dev/hidraw-new"
	replugged.ifaces["/dev/hidraw-new"] = replugged.ifaces["/dev/hidraw-A1"]
	bus.candidates = replugged.candidates
	bus.ifaces = replugged.ifaces

	if err := h.Reconnect(); err != nil {
		t.Fatalf("Reconnect err=%v", err)
	}
	if first.closed != 1 {
		t.Fatalf("old interface closed %d times, want 1", first.closed)
	}
	if got := h.Candidate().Path; got != "/dev/hidraw-new" {
		t.Fatalf("reconnected to %q want /dev/hidraw-new", got)
	}
	if _, err := h.ReadRegisters(context.Background()); err != nil {
		t.Fatalf("ReadRegisters after reconnect err=%v", err)
	}
}

func TestClose_ReleasesOnce(t *testing.T) {
	bus := newFakeBus("A1")
	iface := bus.ifaces["/dev/hidraw-A1"]

	h, err := bus.binder().Bind("")
	if err != nil {
		t.Fatalf("Bind err=%v", err)
	}

	for i := 0; i < 3; i++ {
		if err := h.Close(); err != nil {
			t.Fatalf("Close err=%v", err)
		}
	}
	if iface.closed != 1 {
		t.Fatalf("closed %d times, want 1", iface.closed)
	}
	if _, err := h.ReadRegisters(context.Background()); !IsIOError(err) {
		t.Fatalf("read after close: expected IOError, got %v", err)
	}
	if err := h.Reconnect(); err == nil {
		t.Fatalf("reconnect after close: expected error")
	}
}
