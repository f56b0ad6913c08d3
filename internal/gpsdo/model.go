package gpsdo

import "time"

// Config is the synthesizer configuration reported in feature report 9.
// Divider values have the device's register offsets applied.
type Config struct {
	Output1Enabled bool   `json:"output1_enabled"`
	Output2Enabled bool   `json:"output2_enabled"`
	Level          uint8  `json:"level"`
	Fin            uint32 `json:"fin"`
	N3             uint32 `json:"n3"`
	N2HS           uint32 `json:"n2_hs"`
	N2LS           uint32 `json:"n2_ls"`
	N1HS           uint32 `json:"n1_hs"`
	NC1LS          uint32 `json:"nc1_ls"`
	NC2LS          uint32 `json:"nc2_ls"`
	Skew           uint8  `json:"skew"`
	BW             uint8  `json:"bw"`
}

// LevelMilliamps returns the output drive strength for the level code,
// or 0 for codes the firmware does not document.
func (c Config) LevelMilliamps() int {
	switch c.Level {
	case 0:
		return 8
	case 1:
		return 16
	case 2:
		return 24
	case 3:
		return 32
	default:
		return 0
	}
}

// Status is the lock state reported in the input report.
type Status struct {
	LossCount uint8 `json:"loss_count"`
	SatLock   bool  `json:"sat_lock"`
	PLLLock   bool  `json:"pll_lock"`
	Locked    bool  `json:"locked"`
}

// Frequencies are derived from a Config by a FrequencyPlan. All values in Hz.
type Frequencies struct {
	F3    uint64 `json:"f3"`
	Fosc  uint64 `json:"fosc"`
	Fout1 uint64 `json:"fout1"`
	Fout2 uint64 `json:"fout2"`
}

// Registers holds the raw bytes of one register read.
type Registers struct {
	Config []byte
	Status []byte
}

// Snapshot is the decoded result of a single register read.
type Snapshot struct {
	SerialNumber string `json:"serial_number"`
	Config       Config `json:"config"`
	Status       Status `json:"status"`
	Frequencies
	ObservedAt time.Time `json:"observed_at"`
}
