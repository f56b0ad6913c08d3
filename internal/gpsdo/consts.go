package gpsdo

// USB identifiers of the supported Leo Bodnar units.
const (
	VendorLeoBodnar  uint16 = 0x1dd2
	ProductGPSDO     uint16 = 0x2210
	ProductMiniGPSDO uint16 = 0x2211
)

// Register geometry.
const (
	// ConfigLen is the size of the configuration window at the start of
	// feature report 9.
	ConfigLen = 21
	// StatusLen is the size of the status input report.
	StatusLen = 2

	configReportID    byte = 9
	featureReportSize      = 61 // report ID + 60 data bytes
)

// Status flags, active low.
const (
	statusSatUnlocked  byte = 0x01
	statusPLLUnlocked  byte = 0x02
	statusUnlockedMask byte = 0x03
)

// IsSupported reports whether vid/pid identify a Leo Bodnar GPSDO model.
func IsSupported(vid, pid uint16) bool {
	return vid == VendorLeoBodnar && (pid == ProductGPSDO || pid == ProductMiniGPSDO)
}

// ProductName returns a human readable model name.
func ProductName(pid uint16) string {
	switch pid {
	case ProductGPSDO:
		return "GPSDO"
	case ProductMiniGPSDO:
		return "Mini GPSDO"
	default:
		return "unknown"
	}
}
