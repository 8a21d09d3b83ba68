package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Azure-Framework/Az-Opticom/internal/api"
	"github.com/Azure-Framework/Az-Opticom/internal/broadcast"
	"github.com/Azure-Framework/Az-Opticom/internal/config"
	"github.com/Azure-Framework/Az-Opticom/internal/controller"
	"github.com/Azure-Framework/Az-Opticom/internal/dispatcher"
	"github.com/Azure-Framework/Az-Opticom/internal/geo"
	"github.com/Azure-Framework/Az-Opticom/internal/journal"
	"github.com/Azure-Framework/Az-Opticom/internal/lease"
	"github.com/Azure-Framework/Az-Opticom/internal/logging"
	"github.com/Azure-Framework/Az-Opticom/internal/metrics"
	"github.com/Azure-Framework/Az-Opticom/internal/monitor"
	"github.com/Azure-Framework/Az-Opticom/internal/notify"
	intOtel "github.com/Azure-Framework/Az-Opticom/internal/otel"
	"github.com/Azure-Framework/Az-Opticom/internal/scan"
	"github.com/Azure-Framework/Az-Opticom/internal/util"
	"github.com/Azure-Framework/Az-Opticom/internal/world"
	"github.com/Azure-Framework/Az-Opticom/internal/world/memory"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.1.0"
	BuildDate      string = "unknown"

	ExtensionName string = "az_opticom"
)

// file paths
var (
	// WorkDir is where config, logs and local databases live.
	WorkDir string

	LogFilePath string
	LogFile     *os.File
)

// global services
var (
	SessionStartTime time.Time = time.Now()

	// SlogManager handles all slog-based logging
	SlogManager *logging.SlogManager

	// Logger is the slog logger (convenience reference)
	Logger *slog.Logger

	// RootLog is the zerolog logger used by the storage-side managers
	RootLog zerolog.Logger

	// OTelProvider handles OpenTelemetry
	OTelProvider *intOtel.Provider

	// gameWorld is the entity surface the control side runs against. Driven
	// by :WORLD: commands from the host, or by the demo simulation.
	gameWorld *memory.World

	journalManager  *journal.Manager
	metricsManager  *metrics.Manager
	broadcastClient *broadcast.Client
	leaseManager    *lease.Manager
	agents          *controller.Registry
	monitorService  *monitor.Service
	eventDispatcher *dispatcher.Dispatcher

	// publisher is the broadcast surface handed to controllers; Nop until a
	// client connects.
	publisher broadcast.Publisher = broadcast.Nop{}

	// recorder is the journal surface handed to controllers; Nop until the
	// database is up.
	recorder journal.Recorder = journal.Nop{}
)

func setup() error {
	var err error

	WorkDir, err = os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to resolve working directory: %w", err)
	}

	// Initialize slog manager with initial config
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, viper.GetString("logLevel"), nil)
	Logger = SlogManager.Logger()

	// load config
	err = config.Load(WorkDir)
	if err != nil {
		Logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		Logger.Info("Loaded config")
	}

	// create logs dir if it doesn't exist
	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		os.Mkdir(logsDir, 0755)
	}

	LogFilePath = logging.LogFilePath(logsDir, ExtensionName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		Logger.Error("Failed to create/open log file!", "error", err, "path", LogFilePath)
	}

	// Initialize OTel provider if enabled (after log file is created)
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		OTelProvider, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    LogFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			Logger.Info("OTel provider initialized", "file", LogFilePath)
		}
	}

	// Re-setup logging with file output and optional OTel
	var otelLogProvider *sdklog.LoggerProvider
	if OTelProvider != nil {
		otelLogProvider = OTelProvider.LoggerProvider()
	}

	// Dynamic state stamped on every record.
	SlogManager.ContextAttrs = func() []slog.Attr {
		attrs := []slog.Attr{}
		if journalManager != nil && journalManager.SessionID() != 0 {
			attrs = append(attrs, slog.Uint64("session", uint64(journalManager.SessionID())))
			attrs = append(attrs, slog.Bool("localDB", journalManager.ShouldSaveLocal))
		}
		return attrs
	}

	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider)
	Logger = SlogManager.Logger()
	Logger.Info("Logging to file", "path", LogFilePath)

	// zerolog root for the storage-side managers, with optional Graylog tee
	graylogAddr := ""
	if viper.GetBool("graylog.enabled") {
		graylogAddr = viper.GetString("graylog.address")
	}
	RootLog, err = logging.NewRootLogger(os.Stdout, LogFile, viper.GetString("logLevel"), graylogAddr)
	if err != nil {
		Logger.Warn("Graylog unreachable, continuing without it", "error", err)
	}

	gameWorld = memory.New()

	if err := setupJournal(); err != nil {
		Logger.Error("Journal unavailable, override history will not be persisted", "error", err)
	}
	setupMetrics()

	leaseCfg := config.GetLeaseConfig()
	leaseManager = lease.NewManager(gameWorld, leaseCfg.GreenDuration, leaseCfg.SweepInterval, Logger)
	leaseManager.SetReleaseHook(func(h world.Handle) {
		now := time.Now()
		publisher.SignalChange(0, uint64(h), false, now)
		recorder.RecordRelease(uint64(h), now)
	})
	leaseManager.Start()

	if err := setupBroadcast(); err != nil {
		Logger.Error("Broadcast unavailable, running without live events", "error", err)
	}

	agents = controller.NewRegistry(newAgentController)

	monitorService = monitor.NewService(monitor.Dependencies{
		Leases:     leaseManager,
		AgentCount: agents.Count,
		LogManager: SlogManager,
		Metrics:    metricsManager,
		StatusDir:  WorkDir,
	})
	monitorService.Start()

	dispatcherLogger := logging.NewDispatcherLogger(Logger)
	eventDispatcher, err = dispatcher.New(dispatcherLogger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	registerHandlers(eventDispatcher)
	Logger.Info("Dispatcher initialized with command handlers")

	go checkServerStatus()

	return nil
}

// checkServerStatus logs whether the companion web frontend is reachable.
func checkServerStatus() {
	if !viper.GetBool("api.enabled") {
		return
	}
	client := api.New(viper.GetString("api.serverUrl"), viper.GetString("api.apiKey"))
	if err := client.Healthcheck(); err != nil {
		Logger.Info("Web frontend is offline", "error", err)
	} else {
		Logger.Info("Web frontend is online")
	}
}

// setupJournal connects the override event journal and opens the session.
func setupJournal() error {
	journalManager = journal.NewManager(RootLog)
	journalManager.SqliteFilePath = filepath.Join(
		WorkDir,
		fmt.Sprintf("%s_%s.db", ExtensionName, SessionStartTime.Format("20060102_150405")),
	)

	if err := journalManager.Connect(); err != nil {
		return err
	}
	if err := journalManager.Setup(); err != nil {
		return err
	}

	sessionName := fmt.Sprintf("%s_%s", ExtensionName, SessionStartTime.Format("20060102_150405"))
	if err := journalManager.StartSession(sessionName, SessionStartTime); err != nil {
		return err
	}

	recorder = journalManager
	return nil
}

// setupMetrics connects InfluxDB when enabled. A failed connection is not
// fatal; points spool to the gzip backup file.
func setupMetrics() {
	if !viper.GetBool("influx.enabled") {
		return
	}

	backupPath := filepath.Join(
		WorkDir,
		fmt.Sprintf("%s_metrics_%s.lp.gz", ExtensionName, SessionStartTime.Format("20060102_150405")),
	)
	metricsManager = metrics.NewManager(RootLog, backupPath)
	if err := metricsManager.Connect(); err != nil {
		Logger.Warn("InfluxDB not available", "error", err)
		metricsManager = nil
	}
}

// setupBroadcast dials the event server and announces the session.
func setupBroadcast() error {
	bcCfg := config.GetBroadcastConfig()
	if !bcCfg.Enabled {
		return nil
	}

	broadcastClient = broadcast.New(broadcast.Config{
		URL:    bcCfg.URL,
		Secret: bcCfg.Secret,
	}, Logger)
	if err := broadcastClient.Connect(); err != nil {
		broadcastClient = nil
		return err
	}

	sessionName := fmt.Sprintf("%s_%s", ExtensionName, SessionStartTime.Format("20060102_150405"))
	if err := broadcastClient.StartSession(sessionName, SessionStartTime); err != nil {
		Logger.Warn("Broadcast session announce failed", "error", err)
	}

	publisher = broadcastClient
	Logger.Info("Broadcast client connected", "url", bcCfg.URL)
	return nil
}

// newAgentController builds a fully wired controller for one agent.
func newAgentController(agent world.Handle) *controller.Controller {
	scanCfg := config.GetScanConfig()
	gateCfg := config.GetGateConfig()
	ctrlCfg := config.GetControlConfig()

	kinds := make([]world.Kind, 0, len(scanCfg.LightKinds))
	for _, k := range scanCfg.LightKinds {
		kinds = append(kinds, world.Kind(k))
	}

	searcher := scan.NewSearcher(gameWorld, scan.Params{
		StepSize:         scanCfg.StepSize,
		MinDistance:      scanCfg.MinDistance,
		MaxDistance:      scanCfg.MaxDistance,
		SearchRadius:     scanCfg.SearchRadius,
		HeadingThreshold: scanCfg.HeadingThreshold,
		Kinds:            kinds,
	})

	notifier := notify.New(config.GetNotifyCooldown(), notify.SinkFunc(func(msg string) {
		Logger.Info("Driver notification", "agent", agent, "message", msg)
	}))

	return controller.New(agent, controller.Dependencies{
		World:         gameWorld,
		Searcher:      searcher,
		Gate:          scan.NewGate(gateCfg.MinScanInterval, gateCfg.RescanDistance, gateCfg.RescanHeading),
		Leases:        leaseManager,
		Publisher:     publisher,
		Recorder:      recorder,
		Notifier:      notifier,
		Logger:        Logger,
		PollInterval:  ctrlCfg.PollInterval,
		IdleInterval:  ctrlCfg.IdleInterval,
		RefreshMargin: ctrlCfg.RefreshMargin,
	})
}

// registerHandlers wires the host command surface to the services.
func registerHandlers(d *dispatcher.Dispatcher) {
	d.Register(":INIT:", func(e dispatcher.Event) (any, error) {
		return "ok", nil
	})

	d.Register(":VERSION:", func(e dispatcher.Event) (any, error) {
		return []string{CurrentVersion, BuildDate}, nil
	})

	d.Register(":AGENT:START:", func(e dispatcher.Event) (any, error) {
		h, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		if err := agents.StartAgent(h); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":AGENT:STOP:", func(e dispatcher.Event) (any, error) {
		h, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		if err := agents.StopAgent(h); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Logged())

	d.Register(":STATUS:", func(e dispatcher.Event) (any, error) {
		data, err := json.Marshal(monitorService.Snapshot())
		if err != nil {
			return nil, err
		}
		return string(data), nil
	})

	// Host script log lines: function name, message, level.
	d.Register(":LOG:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 3 {
			return nil, fmt.Errorf(":LOG: expects 3 args, got %d", len(e.Args))
		}
		SlogManager.WriteLog(
			util.TrimQuotes(e.Args[0]),
			util.FixEscapeQuotes(util.TrimQuotes(e.Args[1])),
			util.TrimQuotes(e.Args[2]),
		)
		return "ok", nil
	}, dispatcher.Buffered(1000))

	// Host script metric points, shipped to InfluxDB.
	d.Register(":METRIC:", func(e dispatcher.Event) (any, error) {
		if metricsManager == nil {
			return "dropped", nil
		}
		bucket, point, err := metrics.ProcessMetricData(e.Args, util.FixEscapeQuotes, util.TrimQuotes)
		if err != nil {
			return nil, err
		}
		if err := metricsManager.WritePoint(context.Background(), bucket, point); err != nil {
			return nil, err
		}
		return "ok", nil
	}, dispatcher.Buffered(2500))

	registerWorldHandlers(d)

	d.Register(":SAVE:", func(e dispatcher.Event) (any, error) {
		Logger.Info("Received :SAVE: command, flushing session state")
		if journalManager != nil && journalManager.ShouldSaveLocal {
			if err := journalManager.DumpMemoryToDisk(); err != nil {
				Logger.Error("Failed to dump journal to disk", "error", err)
			}
		}
		if OTelProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := OTelProvider.Flush(ctx); err != nil {
				Logger.Warn("Failed to flush OTel data", "error", err)
			}
		}
		return "ok", nil
	})
}

// registerWorldHandlers exposes the in-memory world to the host. A native
// integration would implement world.World against the game runtime instead
// and never touch these.
func registerWorldHandlers(d *dispatcher.Dispatcher) {
	// kind, x, y, z, heading
	d.Register(":WORLD:SPAWN:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 5 {
			return nil, fmt.Errorf(":WORLD:SPAWN: expects 5 args, got %d", len(e.Args))
		}
		kind := world.Kind(util.TrimQuotes(e.Args[0]))
		pos, err := parsePosition(e.Args[1:4])
		if err != nil {
			return nil, err
		}
		heading, err := strconv.ParseFloat(util.TrimQuotes(e.Args[4]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid heading %q: %w", e.Args[4], err)
		}
		h := gameWorld.Spawn(kind, pos, heading)
		return strconv.FormatUint(uint64(h), 10), nil
	})

	// handle, x, y, z [, heading]
	d.Register(":WORLD:MOVE:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 4 {
			return nil, fmt.Errorf(":WORLD:MOVE: expects at least 4 args, got %d", len(e.Args))
		}
		h, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		pos, err := parsePosition(e.Args[1:4])
		if err != nil {
			return nil, err
		}
		gameWorld.MoveTo(h, pos)
		if len(e.Args) >= 5 {
			heading, err := strconv.ParseFloat(util.TrimQuotes(e.Args[4]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid heading %q: %w", e.Args[4], err)
			}
			gameWorld.SetHeading(h, heading)
		}
		return "ok", nil
	}, dispatcher.Buffered(4096))

	// vehicle, on
	d.Register(":WORLD:SIREN:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 2 {
			return nil, fmt.Errorf(":WORLD:SIREN: expects 2 args, got %d", len(e.Args))
		}
		h, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		on, err := strconv.ParseBool(util.TrimQuotes(e.Args[1]))
		if err != nil {
			return nil, fmt.Errorf("invalid siren flag %q: %w", e.Args[1], err)
		}
		gameWorld.SetSiren(h, on)
		return "ok", nil
	})

	// agent, vehicle (vehicle 0 exits)
	d.Register(":WORLD:ENTER:", func(e dispatcher.Event) (any, error) {
		if len(e.Args) < 2 {
			return nil, fmt.Errorf(":WORLD:ENTER: expects 2 args, got %d", len(e.Args))
		}
		agent, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		vehicle, err := parseHandle(e.Args, 1)
		if err != nil {
			return nil, err
		}
		gameWorld.EnterVehicle(agent, vehicle)
		return "ok", nil
	})

	d.Register(":WORLD:REMOVE:", func(e dispatcher.Event) (any, error) {
		h, err := parseHandle(e.Args, 0)
		if err != nil {
			return nil, err
		}
		gameWorld.Remove(h)
		return "ok", nil
	})
}

func parseHandle(args []string, i int) (world.Handle, error) {
	if i >= len(args) {
		return world.None, fmt.Errorf("missing handle argument %d", i)
	}
	v, err := strconv.ParseUint(util.TrimQuotes(args[i]), 10, 64)
	if err != nil {
		return world.None, fmt.Errorf("invalid handle %q: %w", args[i], err)
	}
	return world.Handle(v), nil
}

func parsePosition(args []string) (geo.Position, error) {
	var coords [3]float64
	for i := 0; i < 3; i++ {
		v, err := strconv.ParseFloat(util.TrimQuotes(args[i]), 64)
		if err != nil {
			return geo.Position{}, fmt.Errorf("invalid coordinate %q: %w", args[i], err)
		}
		coords[i] = v
	}
	return geo.Position{X: coords[0], Y: coords[1], Z: coords[2]}, nil
}

// shutdown stops the goroutines and flushes everything that buffers.
func shutdown() {
	Logger.Info("Shutting down")

	agents.StopAll()
	monitorService.Stop()
	leaseManager.Stop()

	if broadcastClient != nil {
		if err := broadcastClient.EndSession(); err != nil {
			Logger.Warn("Broadcast session end failed", "error", err)
		}
		broadcastClient.Close()
	}
	if journalManager != nil {
		if err := journalManager.Close(); err != nil {
			Logger.Error("Failed to close journal", "error", err)
		}
	}
	if OTelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		OTelProvider.Shutdown(ctx)
	}
	if LogFile != nil {
		LogFile.Close()
	}
}

// commandLoop reads dispatcher commands from stdin, one per line:
// the command token followed by space-separated arguments.
func commandLoop() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == ":QUIT:" {
			return
		}

		result, err := eventDispatcher.Dispatch(dispatcher.Event{
			Command:   fields[0],
			Args:      fields[1:],
			Timestamp: time.Now(),
		})
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		fmt.Println(result)
	}
}

func main() {
	if err := setup(); err != nil {
		panic(err)
	}
	defer shutdown()

	Logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate)

	args := os.Args[1:]
	if len(args) == 0 {
		fmt.Println("Reading commands from stdin; :QUIT: to exit.")
		commandLoop()
		return
	}

	switch strings.ToLower(args[0]) {
	case "demo":
		Logger.Info("Running demo simulation...")
		demoStart := time.Now()
		if err := runDemo(); err != nil {
			panic(err)
		}
		Logger.Info("Demo finished.", "duration", time.Since(demoStart))

	case "export":
		sessionIDs := args[1:]
		if len(sessionIDs) == 0 {
			fmt.Println("No session IDs provided.")
			return
		}
		if err := exportSessions(sessionIDs); err != nil {
			panic(err)
		}

	default:
		fmt.Println("Unknown command:", args[0])
	}
}
