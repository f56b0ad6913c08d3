// Package console prints GPSDO snapshots to a terminal or log pipe.
package console

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/common/log"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/config"
	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
)

// Source supplies the latest snapshot.
type Source interface {
	Latest() (gpsdo.Snapshot, bool)
}

// Writer writes each new snapshot exactly once. It is driven by the poll
// loop as a poller.Observer.
type Writer struct {
	out    io.Writer
	src    Source
	format string

	mu   sync.Mutex
	last time.Time
}

// NewWriter returns a writer for format "json" or "line".
func NewWriter(out io.Writer, src Source, format string) (*Writer, error) {
	switch format {
	case config.FormatJSON, config.FormatLine:
	default:
		return nil, fmt.Errorf("console: unknown format %q", format)
	}
	return &Writer{out: out, src: src, format: format}, nil
}

// ObservePoll writes the snapshot published by a successful poll.
func (w *Writer) ObservePoll(_ time.Duration, err error) {
	if err != nil {
		return
	}
	if _, err := w.WriteLatest(); err != nil {
		log.Errorln("Writing snapshot to console failed:", err)
	}
}

// WriteLatest writes the current snapshot unless it was already written.
// It reports whether anything was written.
func (w *Writer) WriteLatest() (bool, error) {
	s, ready := w.src.Latest()
	if !ready {
		return false, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.last.IsZero() && s.ObservedAt.Equal(w.last) {
		return false, nil
	}

	var err error
	switch w.format {
	case config.FormatJSON:
		err = json.NewEncoder(w.out).Encode(s)
	default:
		_, err = io.WriteString(w.out, FormatLine(s)+"\n")
	}
	if err != nil {
		return false, err
	}
	w.last = s.ObservedAt
	return true, nil
}

// FormatLine renders a snapshot as space separated key=value pairs.
func FormatLine(s gpsdo.Snapshot) string {
	var b strings.Builder
	kv := func(k string, v interface{}) {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s=%v", k, v)
	}

	kv("time", s.ObservedAt.Format(time.RFC3339))
	kv("serial", s.SerialNumber)
	kv("locked", s.Status.Locked)
	kv("sat_lock", s.Status.SatLock)
	kv("pll_lock", s.Status.PLLLock)
	kv("loss_count", s.Status.LossCount)
	kv("out1", s.Config.Output1Enabled)
	kv("out2", s.Config.Output2Enabled)
	kv("fout1", s.Fout1)
	kv("fout2", s.Fout2)
	kv("fin", s.Config.Fin)
	kv("level_ma", s.Config.LevelMilliamps())
	return b.String()
}
