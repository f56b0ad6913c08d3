package gpsdo

// FrequencyPlan derives the synthesizer frequencies from a configuration.
type FrequencyPlan func(Config) Frequencies

// DeriveFrequencies implements the N3 / N2 / N1 divider chain of the
// Si53xx DSPLL used by the GPSDO:
//
//	f3    = fin / N3
//	fosc  = fin * N2_HS * N2_LS / N3
//	fout1 = fosc / (N1_HS * NC1_LS)
//	fout2 = fosc / (N1_HS * NC2_LS)
//
// Integer division truncates. A zero divider yields 0 for the affected outputs.
func DeriveFrequencies(c Config) Frequencies {
	var f Frequencies
	if c.N3 == 0 {
		return f
	}

	fin := uint64(c.Fin)
	n3 := uint64(c.N3)

	f.F3 = fin / n3
	f.Fosc = fin * uint64(c.N2HS) * uint64(c.N2LS) / n3
	f.Fout1 = divide(f.Fosc, uint64(c.N1HS)*uint64(c.NC1LS))
	f.Fout2 = divide(f.Fosc, uint64(c.N1HS)*uint64(c.NC2LS))
	return f
}

func divide(n, d uint64) uint64 {
	if d == 0 {
		return 0
	}
	return n / d
}
