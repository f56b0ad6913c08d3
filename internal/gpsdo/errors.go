package gpsdo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoDevice is returned when no supported device is attached.
	ErrNoDevice = errors.New("no leo bodnar gpsdo attached")
	// ErrAmbiguousDevice is returned when several devices are attached and no
	// serial number was requested.
	ErrAmbiguousDevice = errors.New("multiple leo bodnar gpsdo attached, select one by serial number")
	// ErrNotFound is returned when the requested serial number is not attached.
	ErrNotFound = errors.New("no leo bodnar gpsdo with requested serial number")
	// ErrMalformedBuffer is returned by the decoders when a register buffer
	// does not have the expected size.
	ErrMalformedBuffer = errors.New("malformed register buffer")
)

// IOError is a transport failure while talking to the device.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("gpsdo %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// IsIOError reports whether err is, or wraps, an *IOError.
func IsIOError(err error) bool {
	var ioErr *IOError
	return errors.As(err, &ioErr)
}
