package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/app"
	"github.com/ternarybob/adsum/internal/common"
	"github.com/ternarybob/adsum/internal/services/orchestrator"
)

var (
	// Command-line flags
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	onlyAccount  = flag.String("account", "", "Run only the account with this identity")
	prepareOnly  = flag.Bool("prepare", false, "Authenticate and persist sessions without checking in")
	showKeys     = flag.Bool("show-keys", false, "Include full API keys in the run summary")
	daemon       = flag.Bool("daemon", false, "Run on the configured cron schedule instead of once")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func main() {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Adsum version %s\n", common.GetVersion())
		os.Exit(0)
	}

	// Startup sequence (REQUIRED ORDER):
	// 1. Load config (defaults -> file -> env)
	// 2. Initialize logger
	// 3. Print banner
	configPath := *configFile
	if *configFileC != "" {
		configPath = *configFileC
	}
	if configPath == "" {
		// Auto-discover config file in the working directory
		if _, err := os.Stat("adsum.toml"); err == nil {
			configPath = "adsum.toml"
		}
	}

	config, err := common.LoadFromFile(configPath)
	if err != nil {
		tempLogger := arbor.NewLogger()
		tempLogger.Fatal().Str("path", configPath).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	if *prepareOnly {
		// Delegated session preparation needs a visible browser for the
		// operator to complete the provider flow
		config.Settings.Headless = false
	}

	logger := common.InitLogger(config)
	common.PrintBanner(common.GetFullVersion())

	logger.Info().
		Str("config_file", configPath).
		Str("environment", config.Environment).
		Int("accounts", len(config.Accounts)).
		Bool("headless", config.Settings.Headless).
		Msg("Application configuration loaded")

	application, err := app.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info().Msg("Interrupt signal received, shutting down")
		cancel()
	}()

	if *daemon || config.Scheduler.Enabled {
		runDaemon(ctx, application, logger)
		return
	}

	opts := orchestrator.RunOptions{
		OnlyAccount: *onlyAccount,
		PrepareOnly: *prepareOnly,
	}
	if err := application.RunBatch(ctx, opts, *showKeys); err != nil {
		logger.Error().Err(err).Msg("Batch run finished with errors")
		os.Exit(1)
	}
}

// runDaemon keeps the process alive and lets the scheduler fire batch runs.
func runDaemon(ctx context.Context, application *app.App, logger arbor.ILogger) {
	if err := application.Scheduler.Start(application.Config.Scheduler.Schedule); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start scheduler")
		os.Exit(1)
	}

	logger.Info().
		Str("schedule", application.Config.Scheduler.Schedule).
		Msg("Daemon ready - Press Ctrl+C to stop")

	<-ctx.Done()

	if err := application.Scheduler.Stop(); err != nil {
		logger.Error().Err(err).Msg("Scheduler shutdown failed")
	}
	logger.Info().Msg("Daemon stopped")
}
