package main

import (
	"errors"
	"runtime"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

// hidInterface adapts a hidapi device to gpsdo.Interface.
type hidInterface struct {
	dev *hid.Device
}

func (h *hidInterface) FeatureReport(id byte, buf []byte) (int, error) {
	buf[0] = id
	n, err := h.dev.GetFeatureReport(buf)
	if err != nil {
		return 0, err
	}

	// Windows hidapi keeps the report ID in the first byte.
	if runtime.GOOS == "windows" && n > 0 {
		copy(buf, buf[1:])
	}
	return n, nil
}

func (h *hidInterface) ReadInputReport(buf []byte, timeout time.Duration) (int, error) {
	return inputReportResult(h.dev.ReadWithTimeout(buf, timeout))
}

// inputReportResult turns hidapi's timeout error into an empty read.
func inputReportResult(n int, err error) (int, error) {
	if errors.Is(err, hid.ErrTimeout) {
		return 0, nil
	}
	return n, err
}

func (h *hidInterface) SerialNumber() (string, error) {
	return h.dev.GetSerialNbr()
}

func (h *hidInterface) Close() error {
	return h.dev.Close()
}

// enumerateHID lists attached Leo Bodnar GPSDOs.
func enumerateHID() ([]gpsdo.Candidate, error) {
	var (
		candidates []gpsdo.Candidate
		seen       = map[string]bool{}
	)

	err := hid.Enumerate(gpsdo.VendorLeoBodnar, hid.ProductIDAny, func(info *hid.DeviceInfo) error {
		if !gpsdo.IsSupported(info.VendorID, info.ProductID) || seen[info.Path] {
			return nil
		}
		seen[info.Path] = true
		candidates = append(candidates, gpsdo.Candidate{
			Path:         info.Path,
			VendorID:     info.VendorID,
			ProductID:    info.ProductID,
			SerialNumber: info.SerialNbr,
			Product:      info.ProductStr,
		})
		return nil
	})
	return candidates, err
}

func openHID(c gpsdo.Candidate) (gpsdo.Interface, error) {
	dev, err := hid.OpenPath(c.Path)
	if err != nil {
		return nil, err
	}
	return &hidInterface{dev: dev}, nil
}
