package gpsdo

import (
	"encoding/binary"
	"fmt"
)

// Decode turns one register read into its configuration and status.
// Either both decode or neither is returned.
func Decode(r Registers) (Config, Status, error) {
	cfg, err := DecodeConfig(r.Config)
	if err != nil {
		return Config{}, Status{}, err
	}
	st, err := DecodeStatus(r.Status)
	if err != nil {
		return Config{}, Status{}, err
	}
	return cfg, st, nil
}

// DecodeConfig decodes the register window of feature report 9.
//
// Multi-byte fields are 24 bit little endian. Dividers are stored minus one,
// high speed dividers minus four.
func DecodeConfig(b []byte) (Config, error) {
	if len(b) != ConfigLen {
		return Config{}, fmt.Errorf("%w: config is %d bytes, want %d", ErrMalformedBuffer, len(b), ConfigLen)
	}

	return Config{
		Output1Enabled: b[0]&0x01 != 0,
		Output2Enabled: b[0]&0x02 != 0,
		Level:          b[1],
		Fin:            uint24(b[2:5]),
		N3:             uint24(b[5:8]) + 1,
		N2HS:           uint32(b[8]) + 4,
		N2LS:           uint24(b[9:12]) + 1,
		N1HS:           uint32(b[12]) + 4,
		NC1LS:          uint24(b[13:16]) + 1,
		NC2LS:          uint24(b[16:19]) + 1,
		Skew:           b[19],
		BW:             b[20],
	}, nil
}

// DecodeStatus decodes the 2 byte status input report. Lock flags are
// active low; the overall lock is taken from the device's own bits.
func DecodeStatus(b []byte) (Status, error) {
	if len(b) != StatusLen {
		return Status{}, fmt.Errorf("%w: status is %d bytes, want %d", ErrMalformedBuffer, len(b), StatusLen)
	}

	flags := b[1]
	return Status{
		LossCount: b[0],
		SatLock:   flags&statusSatUnlocked == 0,
		PLLLock:   flags&statusPLLUnlocked == 0,
		Locked:    flags&statusUnlockedMask == 0,
	}, nil
}

func uint24(b []byte) uint32 {
	var buf [4]byte
	copy(buf[:3], b)
	return binary.LittleEndian.Uint32(buf[:])
}
