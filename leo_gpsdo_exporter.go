package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/log"
	"github.com/prometheus/common/version"
	"github.com/sstallion/go-hid"
	"golang.org/x/net/netutil"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/config"
	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/console"
	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/gpsdo"
	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/poller"
	"github.com/markuslindenberg/leo_gpsdo_exporter/internal/web"
)

const (
	exporterName = "leo_gpsdo_exporter"
	namespace    = "leo_gpsdo"
	pageTitle    = "Leo Bodnar GPSDO Exporter"

	shutdownTimeout = 5 * time.Second
)

func main() {
	var (
		listenAddress  = kingpin.Flag("web.listen-address", "Address to listen on for web interface and telemetry.").Default(":9625").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_PORT").String()
		metricsPath    = kingpin.Flag("web.telemetry-path", "Path under which to expose metrics.").Default("/metrics").String()
		maxConnections = kingpin.Flag("web.max-connections", "Maximum number of simultaneous HTTP connections, 0 for no limit.").Default("64").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_MAXCONNECTIONS").Int()
		serialNumber   = kingpin.Flag("gpsdo.serial-number", "Serial number of the GPSDO to use. Required when more than one is attached.").Default("").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_SERIALNUMBER").String()
		pollInterval   = kingpin.Flag("gpsdo.interval", "Interval between register reads.").Default("5s").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_INTERVAL").Duration()
		readTimeout    = kingpin.Flag("gpsdo.read-timeout", "Timeout for reading the status report.").Default("2s").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_READTIMEOUT").Duration()
		reconnectAfter = kingpin.Flag("gpsdo.reconnect-after", "Reopen the device after this many consecutive I/O errors, 0 to disable.").Default("3").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_RECONNECTAFTER").Int()
		stdout         = kingpin.Flag("output.stdout", "Print the status of the GPSDO to the console.").Default("false").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_STDOUT").Bool()
		outputFormat   = kingpin.Flag("output.format", "Console output format.").Default(config.FormatJSON).OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_FORMAT").Enum(config.FormatJSON, config.FormatLine)
		configFile     = kingpin.Flag("config.file", "Optional YAML configuration file. Its values take precedence over flags.").Default("").OverrideDefaultFromEnvar("LEO_GPSDO_EXPORTER_CONFIG").String()
	)

	log.AddFlags(kingpin.CommandLine)
	kingpin.Version(version.Print(exporterName))
	kingpin.HelpFlag.Short('h')
	kingpin.Parse()

	log.Infoln("Starting", exporterName, version.Info())
	log.Infoln("Build context", version.BuildContext())

	cfg := config.Config{
		Web: config.WebConfig{
			ListenAddress:  *listenAddress,
			TelemetryPath:  *metricsPath,
			MaxConnections: *maxConnections,
		},
		GPSDO: config.GPSDOConfig{
			SerialNumber:   *serialNumber,
			Interval:       *pollInterval,
			ReadTimeout:    *readTimeout,
			ReconnectAfter: *reconnectAfter,
		},
		Output: config.OutputConfig{
			Stdout: *stdout,
			Format: *outputFormat,
		},
	}
	if *configFile != "" {
		fileCfg, err := config.Load(*configFile)
		if err != nil {
			log.Fatal(err)
		}
		cfg.Overlay(fileCfg)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatal(err)
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// run owns the HID device; every exit path returns through its deferred
// Close.
func run(cfg config.Config) error {
	if err := hid.Init(); err != nil {
		return fmt.Errorf("initializing hidapi: %w", err)
	}
	defer hid.Exit()

	binder := gpsdo.Binder{
		Enumerate:   enumerateHID,
		Open:        openHID,
		ReadTimeout: cfg.GPSDO.ReadTimeout,
	}
	handle, err := binder.Bind(cfg.GPSDO.SerialNumber)
	if err != nil {
		logCandidates(err)
		return err
	}
	defer handle.Close()
	log.Infoln("Using", handle.Candidate())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pub := poller.NewPublisher()
	exporter := NewExporter(pub)
	prometheus.MustRegister(exporter)
	prometheus.MustRegister(version.NewCollector(exporterName))

	observers := poller.Observers{exporter}
	if cfg.Output.Stdout {
		w, err := console.NewWriter(os.Stdout, pub, cfg.Output.Format)
		if err != nil {
			return err
		}
		observers = append(observers, w)
	}

	p, err := poller.New(poller.Config{
		Interval:       cfg.GPSDO.Interval,
		ReconnectAfter: cfg.GPSDO.ReconnectAfter,
	}, handle, pub, observers)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()

	err = serve(ctx, cfg.Web, web.Handler(pub, pageTitle, cfg.Web.TelemetryPath, promhttp.Handler()))
	stop()
	wg.Wait()
	log.Infoln("Stopped", exporterName)
	return err
}

func serve(ctx context.Context, cfg config.WebConfig, handler http.Handler) error {
	listener, err := net.Listen("tcp", cfg.ListenAddress)
	if err != nil {
		return err
	}
	if cfg.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.MaxConnections)
	}

	srv := &http.Server{Handler: handler}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	log.Infoln("Listening on", cfg.ListenAddress)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Infoln("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func logCandidates(err error) {
	if !errors.Is(err, gpsdo.ErrNotFound) && !errors.Is(err, gpsdo.ErrAmbiguousDevice) {
		return
	}
	candidates, enumErr := enumerateHID()
	if enumErr != nil {
		return
	}
	for _, c := range candidates {
		log.Errorln("Available device:", c)
	}
}
