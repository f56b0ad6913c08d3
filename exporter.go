package main

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

var (
	outputLabelNames  = []string{"output"}
	dividerLabelNames = []string{"divider"}
)

func newMetric(subsystemName, metricName, docString string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystemName, metricName), docString, labels, nil)
}

var (
	targetUpMetric = newMetric("", "up", "Was the last poll of the GPSDO successful.")
	infoMetric     = newMetric("", "info", "GPSDO identity, value is always 1.", "serial_number")
	lastPollMetric = newMetric("", "last_poll_timestamp_seconds", "Time of the last successful register read.")

	lockedMetric    = newMetric("", "locked", "GPSDO reports overall lock.")
	satLockedMetric = newMetric("", "sat_locked", "GPS receiver is locked to satellites.")
	pllLockedMetric = newMetric("", "pll_locked", "Synthesizer PLL is locked.")
	lossCountMetric = newMetric("", "loss_of_lock_count", "Loss of lock counter reported by the device.")

	outputEnabledMetric   = newMetric("output", "enabled", "Output enable state.", outputLabelNames...)
	outputFrequencyMetric = newMetric("output", "frequency_hz", "Output frequency derived from the divider settings.", outputLabelNames...)

	referenceFrequencyMetric  = newMetric("", "reference_frequency_hz", "GPS reference frequency (fin).")
	phaseDetectorMetric       = newMetric("", "phase_detector_frequency_hz", "Phase detector frequency (fin / n3).")
	oscillatorFrequencyMetric = newMetric("", "oscillator_frequency_hz", "Synthesizer oscillator frequency.")
	dividerMetric             = newMetric("", "divider", "Synthesizer divider value.", dividerLabelNames...)

	driveLevelMetric = newMetric("", "drive_level_milliamps", "Output drive strength, 0 for unknown level codes.")
	levelMetric      = newMetric("", "drive_level_code", "Raw output drive level code.")
	skewMetric       = newMetric("", "skew", "Output skew setting.")
	bandwidthMetric  = newMetric("", "bandwidth", "PLL bandwidth setting.")
)

type snapshotSource interface {
	Latest() (gpsdo.Snapshot, bool)
}

// Exporter collects the latest published snapshot. It also observes every
// poll cycle for the exporter's own metrics.
type Exporter struct {
	src   snapshotSource
	mutex sync.RWMutex
	up    bool

	totalPolls   prometheus.Counter
	pollFailures *prometheus.CounterVec
	readDuration prometheus.Histogram
}

func NewExporter(src snapshotSource) *Exporter {
	return &Exporter{
		src: src,
		totalPolls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exporter_polls_total",
			Help:      "Current total GPSDO polls.",
		}),
		pollFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exporter_poll_failures_total",
			Help:      "Number of failed GPSDO polls.",
		}, []string{"reason"}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "exporter_read_duration_seconds",
			Help:      "Histogram of GPSDO register read latencies.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
	}
}

// ObservePoll records the outcome of one poll cycle.
func (e *Exporter) ObservePoll(d time.Duration, err error) {
	e.totalPolls.Inc()
	e.readDuration.Observe(d.Seconds())
	if err != nil {
		e.pollFailures.WithLabelValues(failureReason(err)).Inc()
	}

	e.mutex.Lock()
	e.up = err == nil
	e.mutex.Unlock()
}

func failureReason(err error) string {
	switch {
	case gpsdo.IsIOError(err):
		return "io"
	case errors.Is(err, gpsdo.ErrMalformedBuffer):
		return "malformed"
	default:
		return "other"
	}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		targetUpMetric, infoMetric, lastPollMetric,
		lockedMetric, satLockedMetric, pllLockedMetric, lossCountMetric,
		outputEnabledMetric, outputFrequencyMetric,
		referenceFrequencyMetric, phaseDetectorMetric, oscillatorFrequencyMetric, dividerMetric,
		driveLevelMetric, levelMetric, skewMetric, bandwidthMetric,
	} {
		ch <- d
	}

	ch <- e.totalPolls.Desc()
	e.pollFailures.Describe(ch)
	ch <- e.readDuration.Desc()
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mutex.RLock()
	up := e.up
	e.mutex.RUnlock()

	s, ready := e.src.Latest()
	if ready {
		collectSnapshot(ch, s)
	} else {
		up = false
	}
	ch <- prometheus.MustNewConstMetric(targetUpMetric, prometheus.GaugeValue, boolToFloat(up))

	ch <- e.totalPolls
	e.pollFailures.Collect(ch)
	ch <- e.readDuration
}

func collectSnapshot(ch chan<- prometheus.Metric, s gpsdo.Snapshot) {
	gauge := func(desc *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, v, labels...)
	}

	gauge(infoMetric, 1, s.SerialNumber)
	gauge(lastPollMetric, float64(s.ObservedAt.UnixNano())/1e9)

	gauge(lockedMetric, boolToFloat(s.Status.Locked))
	gauge(satLockedMetric, boolToFloat(s.Status.SatLock))
	gauge(pllLockedMetric, boolToFloat(s.Status.PLLLock))
	gauge(lossCountMetric, float64(s.Status.LossCount))

	gauge(outputEnabledMetric, boolToFloat(s.Config.Output1Enabled), "1")
	gauge(outputEnabledMetric, boolToFloat(s.Config.Output2Enabled), "2")
	gauge(outputFrequencyMetric, float64(s.Fout1), "1")
	gauge(outputFrequencyMetric, float64(s.Fout2), "2")

	gauge(referenceFrequencyMetric, float64(s.Config.Fin))
	gauge(phaseDetectorMetric, float64(s.F3))
	gauge(oscillatorFrequencyMetric, float64(s.Fosc))

	for name, v := range map[string]uint32{
		"n3":     s.Config.N3,
		"n2_hs":  s.Config.N2HS,
		"n2_ls":  s.Config.N2LS,
		"n1_hs":  s.Config.N1HS,
		"nc1_ls": s.Config.NC1LS,
		"nc2_ls": s.Config.NC2LS,
	} {
		gauge(dividerMetric, float64(v), name)
	}

	gauge(driveLevelMetric, float64(s.Config.LevelMilliamps()))
	gauge(levelMetric, float64(s.Config.Level))
	gauge(skewMetric, float64(s.Config.Skew))
	gauge(bandwidthMetric, float64(s.Config.BW))
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
