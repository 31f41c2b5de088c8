// vdynsim runs scripted driving scenarios through the vehicle dynamics
// core and fans the telemetry out to InfluxDB, a live WebSocket stream,
// and the run archive.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/stuntrig/vdyn/internal/archive"
	"github.com/stuntrig/vdyn/internal/config"
	"github.com/stuntrig/vdyn/internal/dispatcher"
	"github.com/stuntrig/vdyn/internal/influx"
	"github.com/stuntrig/vdyn/internal/logging"
	"github.com/stuntrig/vdyn/internal/monitor"
	intOtel "github.com/stuntrig/vdyn/internal/otel"
	"github.com/stuntrig/vdyn/internal/sim"
	"github.com/stuntrig/vdyn/internal/stream"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"
)

// global services
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger with run-context stamping
	Logger *slog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	logFile *os.File

	// sinkLogger is the zerolog logger shared by influx and the archive
	sinkLogger zerolog.Logger

	runContext      *sim.RunContext = sim.NewRunContext()
	eventDispatcher *dispatcher.Dispatcher
	influxManager   *influx.Manager
	streamClient    *stream.Client
	archiveBackend  archive.Backend
	monitorService  *monitor.Service
)

// initialize brings up config, logging and OTel. Failures here are fatal;
// everything after this can degrade instead.
func initialize(configDir string) error {
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	Logger = SlogManager.Logger()

	if err := config.Load(configDir); err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("creating logs dir: %w", err)
		}
	}

	logFilePath := logging.LogFilePath(logsDir, "vdynsim", SessionStartTime)
	var err error
	logFile, err = os.OpenFile(logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: otelCfg.ServiceVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      logFile,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
			OTelProvider = nil
		}
	}

	// Re-setup logging with file output and optional OTel, then stamp
	// every record with the live run identity.
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}
	SlogManager.Setup(logFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = slog.New(logging.NewContextHandler(SlogManager.Logger().Handler(), runContext.LogAttrs))
	Logger.Info("Logging to file", "path", logFilePath)

	sinkLogger = zerolog.New(logFile).With().Timestamp().Logger()

	return nil
}

// setupSinks wires the dispatcher and the optional telemetry sinks. A sink
// that fails to come up is disabled with a warning; only the dispatcher
// itself is required.
func setupSinks() error {
	var err error
	eventDispatcher, err = dispatcher.New(logging.NewDispatcherLogger(sinkLogger))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	influxCfg := config.GetInfluxConfig()
	if influxCfg.Enabled {
		if err := os.MkdirAll(influxCfg.BackupDir, 0755); err != nil {
			Logger.Warn("Failed to create influx backup dir, influx disabled", "error", err)
		} else {
			backupPath := filepath.Join(influxCfg.BackupDir,
				fmt.Sprintf("vdynsim_%s.lp.gz", SessionStartTime.Format("20060102_150405")))
			influxManager = influx.NewManager(sinkLogger, backupPath)
			if err := influxManager.Connect(); err != nil {
				Logger.Warn("Influx sink disabled", "error", err)
				influxManager = nil
			}
		}
	}

	streamCfg := config.GetStreamConfig()
	if streamCfg.Enabled {
		streamClient = stream.New(stream.Config{
			URL:    streamCfg.URL,
			Secret: streamCfg.Secret,
		})
		if err := streamClient.Init(); err != nil {
			Logger.Warn("Stream sink disabled", "error", err)
			streamClient = nil
		}
	}

	archiveCfg := config.GetArchiveConfig()
	if archiveCfg.Backend != "none" {
		archiveBackend, err = archive.NewBackend(archiveCfg, sinkLogger)
		if err == nil {
			err = archiveBackend.Init()
		}
		if err != nil {
			Logger.Warn("Archive sink disabled", "error", err)
			archiveBackend = nil
		}
	}

	sim.RegisterHandlers(eventDispatcher, sim.Sinks{
		Influx:  influxManager,
		Stream:  streamClient,
		Archive: archiveBackend,
		Run:     runContext,
	}, streamCfg.BufferSize)

	Logger.Info("Sinks registered",
		"influx", influxManager != nil,
		"stream", streamClient != nil,
		"archive", archiveBackend != nil)
	return nil
}

// shutdown drains buffered events and closes every service. Called on the
// way out whether the runs succeeded or not.
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if eventDispatcher != nil {
		if err := eventDispatcher.Drain(ctx); err != nil {
			Logger.Warn("Dispatcher drain timed out, events lost", "error", err)
		}
	}
	if monitorService != nil {
		monitorService.Stop()
	}
	if influxManager != nil {
		if err := influxManager.Close(); err != nil {
			Logger.Error("Error closing influx sink", "error", err)
		}
	}
	if streamClient != nil {
		if err := streamClient.Close(); err != nil {
			Logger.Error("Error closing stream sink", "error", err)
		}
	}
	if archiveBackend != nil {
		if err := archiveBackend.Close(); err != nil {
			Logger.Error("Error closing archive", "error", err)
		}
	}
	if SlogManager != nil {
		if err := SlogManager.Flush(ctx); err != nil {
			Logger.Warn("Failed to flush OTel logs", "error", err)
		}
	}
	if OTelProvider != nil {
		if err := OTelProvider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if logFile != nil {
		logFile.Close()
	}
}

func run() error {
	configDir := flag.String("config", ".", "directory containing vdynsim.cfg.yaml")
	presetName := flag.String("preset", "", "vehicle preset, overrides sim.preset")
	scenarioList := flag.String("scenarios", "", "comma-separated scenarios, overrides sim.scenarios")
	realtime := flag.Bool("realtime", false, "pace the sim at the tick rate instead of free-running")
	list := flag.Bool("list", false, "list built-in scenarios and exit")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Printf("vdynsim %s (built %s)\n", Version, BuildDate)
		return nil
	}
	if *list {
		for _, name := range sim.BuiltinNames() {
			sc, _ := sim.Builtin(name)
			fmt.Printf("%-14s %s\n", name, sc.Description)
		}
		return nil
	}

	if err := initialize(*configDir); err != nil {
		return err
	}
	defer shutdown()

	Logger.Info("Starting up...", "version", Version, "build", BuildDate)

	if err := setupSinks(); err != nil {
		return err
	}

	simCfg := config.GetSimConfig()
	if *presetName != "" {
		simCfg.Preset = *presetName
	}
	if *scenarioList != "" {
		simCfg.Scenarios = strings.Split(*scenarioList, ",")
	}

	// A malformed preset is a configuration error, not a degradable sink.
	registry := config.NewRegistry(simCfg.PresetsDir)
	preset, err := registry.Get(simCfg.Preset)
	if err != nil {
		return fmt.Errorf("loading preset: %w", err)
	}
	Logger.Info("Preset loaded", "preset", preset.Name, "description", preset.Description)

	runner, err := sim.NewRunner(sim.RunnerConfig{
		Vehicle:  preset.Vehicle,
		Preset:   preset.Name,
		MaxTicks: simCfg.MaxTicks,
		Realtime: *realtime,
	}, eventDispatcher, runContext, Logger)
	if err != nil {
		return fmt.Errorf("creating runner: %w", err)
	}

	monitorService = monitor.NewService(monitor.Dependencies{
		Logger:     Logger,
		Run:        runContext,
		QueueDepth: eventDispatcher.QueueDepth,
		StatusPath: simCfg.StatusPath,
		Interval:   simCfg.StatusInterval,
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Failed to start status monitor", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var errs []error
	for _, name := range simCfg.Scenarios {
		sc, err := sim.Builtin(strings.TrimSpace(name))
		if err != nil {
			errs = append(errs, err)
			Logger.Error("Unknown scenario skipped", "scenario", name)
			continue
		}

		res, err := runner.Run(ctx, sc)
		if err != nil {
			errs = append(errs, fmt.Errorf("scenario %s: %w", sc.Name, err))
			if ctx.Err() != nil {
				Logger.Warn("Interrupted, stopping scenario loop")
				break
			}
			continue
		}

		fmt.Printf("%-14s %6d ticks  top %5.1f m/s  peak %4.2f g  damage %4.2f  %s\n",
			res.Scenario, res.Ticks, res.TopSpeed, res.PeakGForce, res.Damage.Overall, res.Digest[:12])
	}

	return errors.Join(errs...)
}

func main() {
	if err := run(); err != nil {
		if Logger != nil {
			Logger.Error("vdynsim failed", "error", err)
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
