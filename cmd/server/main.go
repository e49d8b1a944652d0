// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/tubebox/internal/api/connect"
	"github.com/osa030/tubebox/internal/app/filter"
	"github.com/osa030/tubebox/internal/app/playback"
	"github.com/osa030/tubebox/internal/app/player"
	"github.com/osa030/tubebox/internal/app/search"
	"github.com/osa030/tubebox/internal/app/session"
	"github.com/osa030/tubebox/internal/infra/config"
	"github.com/osa030/tubebox/internal/infra/logger"
	"github.com/osa030/tubebox/internal/infra/widget/sim"
	"github.com/osa030/tubebox/internal/infra/ytplaylist"
	"github.com/osa030/tubebox/internal/store"
	"github.com/osa030/tubebox/internal/store/memory"
	"github.com/osa030/tubebox/internal/store/postgres"
	"github.com/osa030/tubebox/internal/store/sqlite"
)

var (
	app        = kingpin.New("tubebox-server", "tubebox playback server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()
	logMaxSize = app.Flag("log-max-size", "Maximum log file size in MB before rotation").Default("50").Int()
	logBackups = app.Flag("log-max-backups", "Number of rotated log files to keep").Default("5").Int()
	logMaxAge  = app.Flag("log-max-age", "Days to keep rotated log files").Default("14").Int()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
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
		loggerConfig.Output = *logfile
		loggerConfig.File = *logfile
		loggerConfig.MaxSizeMB = *logMaxSize
		loggerConfig.MaxBackups = *logBackups
		loggerConfig.MaxAgeDays = *logMaxAge
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %+v", err)
		logger.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx := context.Background()

	filters, err := filter.NewChainFromConfig(filterSettings(cfg))
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	chain, err := search.NewProviderChainFromConfig(ctx, cfg.Search)
	if err != nil {
		return errors.Wrap(err, "failed to create search providers")
	}
	importers := append(chain.Importers(), ytplaylist.New(chain.DurationLookup()))

	st, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			zlog.Error().Msgf("Failed to close store: %v", err)
		}
	}()

	widget := sim.New(sim.Config{
		ReadyDelay: cfg.WidgetReadyDelay(),
		Tick:       cfg.WidgetTick(),
		FailIDs:    cfg.Widget.FailIDs,
	})
	adapter, err := player.NewWidgetAdapter(widget)
	if err != nil {
		return errors.Wrap(err, "failed to create player adapter")
	}
	controller, err := playback.NewController(adapter, playback.Config{
		InitialVolume:        cfg.Player.InitialVolume,
		SleepTimerResolution: cfg.SleepTimerResolution(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to create playback controller")
	}

	sessionMgr, err := session.NewManager(session.Options{
		Controller: controller,
		Searcher:   chain,
		Importers:  importers,
		Filters:    filters,
		Store:      st,
		Config: session.Config{
			DefaultUserID:   cfg.User.DefaultID,
			SearchLimit:     cfg.Search.Limit,
			SleepTimerScope: cfg.SleepTimer.Scope,
			InitTimeout:     cfg.InitTimeout(),
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}
	sessionMgr.Start()

	if cfg.Control.Token == "" {
		zlog.Warn().Msg("Control token is empty, the API accepts unauthenticated calls")
	}
	mux := http.NewServeMux()
	path, handler := apiconnect.NewPlayerService(sessionMgr).Handler(
		connect.WithInterceptors(apiconnect.NewTokenInterceptor(cfg.Control.Token)),
	)
	mux.Handle(path, handler)

	// h2c lets plain-HTTP clients use HTTP/2 for streaming
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Listen before running hooks so they can reach the server
	ln, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		sessionMgr.Close()
		return errors.Wrapf(err, "failed to listen on %s", cfg.Server.Addr)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", ln.Addr())
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		runErr = errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Close the session first so watch streams end
	if err := sessionMgr.Close(); err != nil {
		zlog.Error().Msgf("Failed to close session: %v", err)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}

	zlog.Info().Msg("Server stopped")

	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")

	return runErr
}

// openStore opens the configured persistence backend.
func openStore(ctx context.Context, cfg config.StorageConfig) (store.Store, error) {
	zlog.Info().Msgf("Opening store: driver=%s", cfg.Driver)
	switch cfg.Driver {
	case config.StorageMemory:
		return memory.New(), nil
	case config.StorageSQLite:
		s, err := sqlite.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open sqlite store")
		}
		return s, nil
	case config.StoragePostgres:
		s, err := postgres.Open(ctx, cfg.DSN)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open postgres store")
		}
		return s, nil
	default:
		return nil, errors.Newf("unsupported storage driver: %s", cfg.Driver)
	}
}

// filterSettings converts the filter section of the config.
func filterSettings(cfg *config.Config) map[string]filter.Settings {
	out := make(map[string]filter.Settings, len(cfg.Filters))
	for name, fc := range cfg.Filters {
		out[name] = filter.Settings{Enabled: fc.Enabled, Settings: fc.Settings}
	}
	return out
}

// printFilters prints available filters.
func printFilters() {
	registry := filter.GetRegistered()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available Filters:")
	for _, name := range names {
		f := registry[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		// sh -c allows redirection and pipes
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
