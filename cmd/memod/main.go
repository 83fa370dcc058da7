// Package main provides the voice memo daemon entry point.
package main

import (
	"context"
	"fmt"
	"maps"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/voicememo/internal/api/connect"
	"github.com/osa030/voicememo/internal/app/guard"
	"github.com/osa030/voicememo/internal/app/notification"
	"github.com/osa030/voicememo/internal/app/session"
	"github.com/osa030/voicememo/internal/app/session/state"
	"github.com/osa030/voicememo/internal/domain/audio"
	"github.com/osa030/voicememo/internal/infra/config"
	"github.com/osa030/voicememo/internal/infra/device"
	"github.com/osa030/voicememo/internal/infra/logger"
	"github.com/osa030/voicememo/internal/infra/metrics"
)

var (
	app        = kingpin.New("memod", "Voice memo recording and playback daemon")
	configPath = app.Flag("config", "Path to config file").Default("config/memod.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listGuardsCmd = app.Command("list-guards", "List command guards and exit")
)

const (
	permissionTimeout = 10 * time.Second
	hookTimeout       = 30 * time.Second
)

func init() {
	app.Command("start", "Start the daemon (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listGuardsCmd.FullCommand() {
		printGuards()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	closeLog, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = closeLog() }()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Daemon error: %v", err)
		_ = closeLog()
		os.Exit(1)
	}
}

// run executes the main daemon logic so deferred cleanup runs on every
// return path.
func run(cfg *config.Config) error {
	backend, err := device.New(cfg.Device)
	if err != nil {
		return errors.Wrap(err, "failed to create audio device")
	}

	permitted := requestPermission(backend)

	var (
		opts      []session.Option
		collector *metrics.Collector
	)
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector()
		opts = append(opts, session.WithObserver(collector))
	}

	ctrl, err := session.NewController(backend, sessionConfig(cfg.Session), opts...)
	if err != nil {
		return errors.Wrap(err, "failed to create session controller")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifMgr := notification.NewManager()
	go notifMgr.Relay(ctx, ctrl.Events())

	sessionID := uuid.New().String()
	svc := apiconnect.NewSessionService(ctrl, notifMgr, sessionID, permitted)

	mux := http.NewServeMux()
	path, handler := apiconnect.NewHandler(
		svc,
		connect.WithInterceptors(apiconnect.NewControlAuthInterceptor(cfg.Server.ControlToken)),
	)
	mux.Handle(path, handler)
	if collector != nil {
		mux.Handle(cfg.Metrics.Path, collector.Handler())
		zlog.Info().Msgf("Metrics enabled: path=%s", cfg.Metrics.Path)
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", cfg.Server.Addr)
	}
	server := &http.Server{
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()
	zlog.Info().Msgf("Serving session: addr=%s session_id=%s", ln.Addr(), sessionID)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-ctrl.Done():
		zlog.Info().Msg("Session controller stopped, shutting down...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Subscribe handlers return once the controller is done.
	if err := ctrl.Close(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to close session controller: %v", err)
	}
	notifMgr.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Daemon stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// requestPermission asks the backend for microphone access. A failed
// request counts as denied.
func requestPermission(p audio.PermissionRequester) bool {
	ctx, cancel := context.WithTimeout(context.Background(), permissionTimeout)
	defer cancel()

	granted, err := p.RequestRecordingPermission(ctx)
	if err != nil {
		zlog.Warn().Msgf("Recording permission request failed: %v", err)
		return false
	}
	if !granted {
		zlog.Warn().Msg("Recording permission denied, record commands will be refused")
		return false
	}
	zlog.Info().Msg("Recording permission granted")
	return true
}

func sessionConfig(cfg config.SessionConfig) session.Config {
	sc := session.DefaultConfig()
	sc.Preset = audio.QualityPreset(cfg.QualityPreset)
	sc.Looping = cfg.LoopingEnabled()
	sc.QueueSize = cfg.QueueSize
	sc.Prefs = state.Preferences{
		Volume:             cfg.InitialVolume(),
		Rate:               cfg.Rate,
		Muted:              cfg.Muted,
		ShouldCorrectPitch: cfg.PitchCorrection(),
	}
	return sc
}

// printGuards prints the registered command guards.
func printGuards() {
	fmt.Println("Available Guards:")
	registry := guard.GetRegistered()
	for _, name := range slices.Sorted(maps.Keys(registry)) {
		g := registry[name]()
		codes := strings.Join(g.ReturnCodes(), ", ")
		fmt.Printf("  %-26s - %s [codes: %s]\n", g.Name(), g.Description(), codes)
	}
}

// executeHooks runs each lifecycle hook through sh. A failing hook is
// logged and the remaining hooks still run.
func executeHooks(hooks []string, stage string) {
	for i, hook := range hooks {
		ctx, cancel := context.WithTimeout(context.Background(), hookTimeout)
		cmd := exec.CommandContext(ctx, "sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		zlog.Info().Msgf("Running %s hook %d/%d: %s", stage, i+1, len(hooks), hook)
		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("%s hook failed: %s", stage, hook)
		}
		cancel()
	}
}
