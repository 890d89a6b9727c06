package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dontlook/stalker/internal/cache"
	"github.com/dontlook/stalker/internal/config"
	"github.com/dontlook/stalker/internal/dispatcher"
	"github.com/dontlook/stalker/internal/influx"
	"github.com/dontlook/stalker/internal/logging"
	"github.com/dontlook/stalker/internal/monitor"
	intOtel "github.com/dontlook/stalker/internal/otel"
	"github.com/dontlook/stalker/internal/parser"
	"github.com/dontlook/stalker/internal/scenario"
	"github.com/dontlook/stalker/internal/session"
	"github.com/dontlook/stalker/internal/sim"
	"github.com/dontlook/stalker/internal/worker"

	"github.com/spf13/viper"
)

// DefaultScenario is played when run gets no scenario argument.
const DefaultScenario = "scenarios/corridor.yaml"

func runCommand(args []string) error {
	fs := newFlagSet("run")
	fs.String("storage", "", "storage backend (memory, sqlite, postgres, websocket)")
	fs.String("policy", "", "visibility policy when the scenario sets none (angle, occlusion)")
	fs.Float64("dt", 0, "seconds per tick when the scenario sets none")
	fs.Int("ticks", 0, "number of ticks when the scenario sets none")
	fs.Bool("realtime", false, "pace ticks at wall clock speed")
	fs.String("status-file", "", "status snapshot file (default <logsDir>/status.json)")
	fs.Bool("influx", false, "send tick metrics to InfluxDB")
	fs.Bool("otel", false, "export OpenTelemetry metrics")
	fs.Bool("upload", false, "upload the export to the viewer")
	if err := fs.Parse(args); err != nil {
		return err
	}

	err := loadConfig(fs, map[string]string{
		"storage":  "storage.type",
		"policy":   "vision.policy",
		"dt":       "sim.dt",
		"ticks":    "sim.ticks",
		"realtime": "sim.realtime",
		"influx":   "influx.enabled",
		"otel":     "otel.enabled",
		"upload":   "api.upload",
	})
	if err != nil {
		return err
	}

	sessionCtx := session.NewContext()
	setupLogging(sessionCtx.LogAttrs)

	path := DefaultScenario
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	s, err := scenario.Load(path)
	if err != nil {
		return err
	}

	pursuitCfg := config.GetPursuitConfig()
	simCfg := config.GetSimConfig()
	storageCfg := config.GetStorageConfig()
	if s.Policy == "" {
		s.Policy = pursuitCfg.Policy
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the meter provider must be global before the dispatcher and worker
	// create their instruments
	provider, closeMetrics, err := setupOTel()
	if err != nil {
		Logger.Error("Failed to initialize OTel provider", "error", err)
	}
	defer closeMetrics()

	influxManager := setupInflux(ctx)
	if influxManager != nil {
		defer func() {
			if err := influxManager.Close(); err != nil {
				Logger.Warn("Failed to close InfluxDB", "error", err)
			}
		}()
	}

	backend, err := createStorageBackend(storageCfg)
	if err != nil {
		return err
	}
	if err := backend.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s storage: %w", storageCfg.Type, err)
	}
	defer func() {
		if err := backend.Close(); err != nil {
			Logger.Error("Failed to close storage backend", "error", err)
		}
	}()
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	eventDispatcher, err := dispatcher.New(logging.NewDispatcherLogger(DBLog))
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	defer eventDispatcher.Close()

	pursuers := cache.NewPursuerCache()
	workerManager, err := worker.NewManager(worker.Dependencies{
		Logger:   SlogManager.Component("worker"),
		Parser:   parser.NewParser(Logger, pursuitCfg.Settings),
		Session:  sessionCtx,
		Pursuers: pursuers,
		Backend:  backend,
		Influx:   influxManager,
		Config:   configSnapshot(pursuitCfg, storageCfg),
	})
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}
	workerManager.RegisterHandlers(eventDispatcher)
	Logger.Debug("Worker handlers registered with dispatcher", "commands", eventDispatcher.Commands())

	statusFile, _ := fs.GetString("status-file")
	if statusFile == "" {
		statusFile = filepath.Join(viper.GetString("logsDir"), "status.json")
	}
	monitorService := monitor.NewService(monitor.Dependencies{
		Logger:     SlogManager.Component("monitor"),
		Session:    sessionCtx,
		Pursuers:   pursuers,
		Worker:     workerManager,
		DB:         backendDB(backend),
		StatusFile: statusFile,
		Interval:   config.GetDuration("monitor.interval"),
	})
	if err := monitorService.Start(); err != nil {
		Logger.Warn("Status monitor not started", "error", err)
	} else {
		defer monitorService.Stop()
	}

	host := sim.New(eventDispatcher, sim.Config{
		Dt:       simCfg.Dt,
		Ticks:    simCfg.Ticks,
		Realtime: simCfg.Realtime,
		Defaults: pursuitCfg.Settings,
		OnTick:   progressLogger(s.Ticks),
	}, SlogManager.Component("sim"))

	start := time.Now()
	result, err := host.Run(ctx, s)
	if err != nil {
		return fmt.Errorf("scenario %s failed at tick %d: %w", s.Name, result.Ticks, err)
	}

	Logger.Info("Scenario finished",
		"scenario", s.Name,
		"ticks", result.Ticks,
		"cancelled", result.Cancelled,
		"session", result.End.Session.ID,
		"duration", time.Since(start))
	if result.End.ExportPath != "" {
		fmt.Println(result.End.ExportPath)
		_, simTime := sessionCtx.Clock()
		uploadExport(ctx, result.End.ExportPath, result.End.Session, simTime)
	}

	if provider != nil {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Flush(flushCtx); err != nil {
			Logger.Warn("Failed to flush metrics", "error", err)
		}
	}
	return nil
}

// setupOTel installs the meter provider. The returned close func is always
// safe to call.
func setupOTel() (*intOtel.Provider, func(), error) {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil, func() {}, nil
	}

	// metrics share the log file unless they get their own
	var w io.Writer = os.Stdout
	if LogFile != nil {
		w = LogFile
	}
	var out *os.File
	if otelCfg.OutputFile != "" {
		f, err := os.OpenFile(otelCfg.OutputFile, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0666)
		if err != nil {
			return nil, func() {}, fmt.Errorf("failed to open metrics file: %w", err)
		}
		w, out = f, f
	}

	provider, err := intOtel.New(intOtel.Config{
		Enabled:     true,
		ServiceName: otelCfg.ServiceName,
		Interval:    otelCfg.ExportInterval,
		Writer:      w,
	})
	if err != nil {
		if out != nil {
			_ = out.Close()
		}
		return nil, func() {}, err
	}
	Logger.Info("OTel provider initialized", "interval", otelCfg.ExportInterval)

	return provider, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			Logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		if out != nil {
			_ = out.Close()
		}
	}, nil
}

// setupInflux connects to InfluxDB when enabled. An unreachable server is
// not an error: points go to the gzip backup file instead.
func setupInflux(ctx context.Context) *influx.Manager {
	influxCfg := config.GetInfluxConfig()
	if !influxCfg.Enabled {
		return nil
	}

	m := influx.NewManager(influxCfg, DBLog)
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := m.Connect(connectCtx); err != nil {
		Logger.Error("Failed to set up InfluxDB, metrics disabled", "error", err)
		return nil
	}
	if m.IsValid {
		Logger.Info("Connected to InfluxDB", "url", influxCfg.URL(), "bucket", influxCfg.Bucket)
	} else {
		Logger.Warn("InfluxDB unavailable, writing metrics to backup", "backup", m.BackupPath())
	}
	return m
}

// configSnapshot is the tuning stored with each session. Credentials are
// left out.
func configSnapshot(p config.PursuitConfig, s config.StorageConfig) map[string]any {
	return map[string]any{
		"version":  CurrentVersion,
		"pursuit":  p.Settings,
		"policy":   p.Policy,
		"storage":  s.Type,
		"realtime": viper.GetBool("sim.realtime"),
	}
}

// progressLogger logs every tenth of a run.
func progressLogger(total int) func(worker.TickResult) {
	if total <= 0 {
		total = config.GetSimConfig().Ticks
	}
	every := uint(total / 10)
	if every == 0 {
		every = 1
	}
	return func(res worker.TickResult) {
		if res.Tick%every != 0 {
			return
		}
		advancing := 0
		for _, c := range res.Commands {
			if c.Advancing {
				advancing++
			}
		}
		Logger.Debug("Tick", "tick", res.Tick, "simTime", res.SimTime, "advancing", advancing)
	}
}
