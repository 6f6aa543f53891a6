package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mediabatch/mediabatch-agent/internal/api"
	"github.com/mediabatch/mediabatch-agent/internal/app"
	"github.com/mediabatch/mediabatch-agent/internal/backend"
	"github.com/mediabatch/mediabatch-agent/internal/config"
	"github.com/mediabatch/mediabatch-agent/internal/db"
	"github.com/mediabatch/mediabatch-agent/internal/jobs"
	"github.com/mediabatch/mediabatch-agent/internal/logging"
	"github.com/mediabatch/mediabatch-agent/internal/playback"
	"github.com/mediabatch/mediabatch-agent/internal/resolver"
	"github.com/mediabatch/mediabatch-agent/internal/shell"
	"github.com/mediabatch/mediabatch-agent/internal/store"
	"github.com/mediabatch/mediabatch-agent/internal/ui"
	"github.com/mediabatch/mediabatch-agent/internal/view"
)

const usage = `usage: mediabatch [serve|shell|version]

  serve    run the local control page and system tray (default)
  shell    run the interactive terminal front-end
  version  print version information
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

// agent is what both front-ends share.
type agent struct {
	cfg       *config.EnvConfig
	logger    *slog.Logger
	repo      store.Repository
	client    *backend.HTTPClient
	bus       *jobs.EventBus
	state     *jobs.State
	view      *view.View
	clientID  string
	authToken string
	startTime time.Time
}

func run(args []string) error {
	mode := "serve"
	if len(args) > 0 {
		mode = args[0]
	}
	switch mode {
	case "serve", "shell":
	case "version":
		fmt.Printf("mediabatch %s (commit %s, built %s)\n", config.Version, config.GitCommit, config.BuildTime)
		return nil
	case "help", "-h", "--help":
		fmt.Print(usage)
		return nil
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", mode)
	}

	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// The shell owns the terminal, so its logs go to a file.
	var logger *slog.Logger
	if mode == "shell" {
		logFile, err := os.OpenFile(filepath.Join(cfg.DataDir(), "mediabatch.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logFile.Close()
		logger = logging.NewLoggerTo(logFile, cfg.LogLevel())
	} else {
		logger = logging.NewLogger(cfg.LogLevel())
	}
	logger.Info("starting mediabatch agent",
		"version", config.Version,
		"mode", mode,
		"data_dir", logging.SanitizePath(cfg.DataDir()),
		"backend_url", cfg.BackendURL(),
		"features", cfg.FeatureSet(),
	)

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := store.NewRepository(database.Conn())

	initCtx, initCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer initCancel()

	clientID, err := store.EnsureClientID(initCtx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure client ID: %w", err)
	}
	authToken, err := store.EnsureAuthToken(initCtx, repo)
	if err != nil {
		return fmt.Errorf("failed to ensure auth token: %w", err)
	}

	client := backend.NewHTTPClient(cfg.BackendURL(), cfg.RequestTimeout(), logger)
	client.SetClientID(clientID)

	features := enabledFeatures(cfg.FeatureSet())
	bus := jobs.NewEventBus(500)
	a := &agent{
		cfg:       cfg,
		logger:    logger,
		repo:      repo,
		client:    client,
		bus:       bus,
		state:     jobs.NewState(bus),
		view:      view.New(cfg.BackendURL(), features, bus),
		clientID:  clientID,
		authToken: authToken,
		startTime: startTime,
	}

	if mode == "shell" {
		return a.runShell()
	}
	return a.serve()
}

func enabledFeatures(set string) []jobs.Feature {
	if set == config.FeatureSetLegacy {
		return []jobs.Feature{jobs.FeatureBatch}
	}
	return jobs.AllFeatures
}

func (a *agent) serve() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	alerts := app.NewAlertQueue(50, a.bus)
	ctrl := app.New(ctx, app.Options{
		Client: a.client,
		State:  a.state,
		View:   a.view,
		Resolver: &resolver.Resolver{
			Dialogs: resolver.AutoDialogs{Notify: func(in resolver.Instructions) {
				alerts.Alert(resolver.FormatInstructions(in))
			}},
			Platform: resolver.ParsePlatform(a.cfg.Platform()),
			Logger:   a.logger,
		},
		Alerter:      alerts,
		PollInterval: a.cfg.PollInterval(),
		DownloadDir:  a.cfg.DownloadDir(),
		Logger:       a.logger,
	})
	defer ctrl.Shutdown()

	apiServer := api.NewServer(api.ServerConfig{
		Port:       a.cfg.Port(),
		Controller: ctrl,
		Alerts:     alerts,
		Bus:        a.bus,
		Outputs:    playback.NewServer(a.cfg.DownloadDir(), a.logger),
		Repository: a.repo,
		Logger:     a.logger,
		StartTime:  a.startTime,
		ClientID:   a.clientID,
		Version:    config.Version,
	})
	pageURL := apiServer.URL(a.authToken)

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════════════════════════╗")
	fmt.Printf("║                 MEDIABATCH AGENT v%-24s║\n", config.Version)
	fmt.Println("╠═══════════════════════════════════════════════════════════╣")
	fmt.Printf("║  Control:   http://%-39s║\n", apiServer.Addr())
	fmt.Printf("║  Backend:   %-46s║\n", a.cfg.BackendURL())
	fmt.Printf("║  Token:     %-46s║\n", logging.SanitizeToken(a.authToken))
	fmt.Println("╚═══════════════════════════════════════════════════════════╝")
	fmt.Println()
	fmt.Println("Open:", pageURL)
	fmt.Println()

	go func() {
		if err := apiServer.Start(); err != nil {
			a.logger.Error("HTTP server error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	quitCh := make(chan struct{})

	go func() {
		select {
		case sig := <-sigCh:
			a.logger.Info("received shutdown signal", "signal", sig)
			close(quitCh)
		case <-quitCh:
		}
	}()

	if a.cfg.Headless() {
		a.logger.Info("running in headless mode (no system tray)")
	} else {
		tray := ui.NewTray(ui.TrayConfig{
			State:    a.state,
			Bus:      a.bus,
			Features: a.view.Features(),
			Logger:   a.logger,
			OnOpen: func() error {
				return ui.OpenURL(pageURL)
			},
			OnQuit: func() {
				close(quitCh)
			},
		})
		go tray.Run(ctx)
	}

	<-quitCh

	a.logger.Info("initiating graceful shutdown", "active_polls", ctrl.Poller().ActiveCount())
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", "error", err)
	}

	a.logger.Info("shutdown complete")
	return nil
}

func (a *agent) runShell() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rl, err := shell.OpenReadline(filepath.Join(a.cfg.DataDir(), "shell_history"))
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer rl.Close()

	sh := shell.New(shell.Config{
		Reader:  rl,
		Out:     rl.Stdout(),
		Bus:     a.bus,
		Outputs: playback.NewServer(a.cfg.DownloadDir(), a.logger),
		Logger:  a.logger,
	})

	ctrl := app.New(ctx, app.Options{
		Client: a.client,
		State:  a.state,
		View:   a.view,
		Resolver: &resolver.Resolver{
			Files:     sh,
			Dialogs:   sh,
			Clipboard: shell.OSC52Clipboard{W: rl.Stdout()},
			Platform:  resolver.ParsePlatform(a.cfg.Platform()),
			Logger:    a.logger,
		},
		Alerter:      sh,
		PollInterval: a.cfg.PollInterval(),
		DownloadDir:  a.cfg.DownloadDir(),
		Logger:       a.logger,
	})
	defer ctrl.Shutdown()

	err = sh.Run(ctx, ctrl)
	a.logger.Info("shell exited", "active_polls", ctrl.Poller().ActiveCount())
	return err
}
