package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/browser"
	"github.com/ternarybob/adsum/internal/common"
	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
	"github.com/ternarybob/adsum/internal/report"
	"github.com/ternarybob/adsum/internal/services/auth"
	"github.com/ternarybob/adsum/internal/services/checkin"
	"github.com/ternarybob/adsum/internal/services/orchestrator"
	"github.com/ternarybob/adsum/internal/services/scheduler"
	badgerstore "github.com/ternarybob/adsum/internal/storage/badger"
	"github.com/ternarybob/adsum/internal/storage/session"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	DB           *badgerstore.BadgerDB
	RunHistory   interfaces.RunHistoryStorage
	SessionStore interfaces.SessionStore

	// PreviousRun is the most recent persisted run, loaded at startup so its
	// tally can be reported before the new batch begins. Nil on first run.
	PreviousRun *models.RunRecord

	AuthService     *auth.Service
	CheckinExecutor *checkin.Executor
	Orchestrator    *orchestrator.Orchestrator
	Scheduler       *scheduler.Service
	ReportWriter    *report.Writer
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := badgerstore.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.RunHistory = badgerstore.NewRunStorage(db, logger)
	app.surfacePreviousRun(context.Background())

	sessions, err := session.NewStore(cfg.Storage.Sessions, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	app.SessionStore = sessions

	app.AuthService = auth.NewService(sessions, cfg.Settings.Headless, logger)
	app.CheckinExecutor = checkin.NewExecutor(logger)
	app.ReportWriter = report.NewWriter(cfg.Reports.Dir, logger)

	engineFactory := browser.NewFactory(&cfg.Browser, logger)
	app.Orchestrator = orchestrator.New(
		cfg,
		engineFactory,
		app.AuthService,
		app.CheckinExecutor,
		app.RunHistory,
		logger,
	)

	app.Scheduler = scheduler.NewService(func(ctx context.Context) error {
		return app.RunBatch(ctx, orchestrator.RunOptions{}, false)
	}, logger)

	return app, nil
}

// surfacePreviousRun loads the most recent persisted run so operators see
// where the last batch left off. Missing history is not an error.
func (a *App) surfacePreviousRun(ctx context.Context) {
	prev, err := a.RunHistory.LatestRun(ctx)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to load previous run")
		return
	}
	if prev == nil {
		a.Logger.Info().Msg("No previous run recorded")
		return
	}
	a.PreviousRun = prev
	a.Logger.Info().
		Str("run_id", prev.ID).
		Str("finished_at", prev.FinishedAt.Format("2006-01-02 15:04:05")).
		Int("success", prev.Success).
		Int("already_done", prev.AlreadyDone).
		Int("failed", prev.Failed).
		Int("skipped", prev.Skipped).
		Msg("Previous run")
}

// RunBatch executes one batch run and writes its reports. showKeys puts full
// API keys in the terminal rendering and the shared summary file. A report
// write failure surfaces in the returned error without discarding the
// already-computed results.
func (a *App) RunBatch(ctx context.Context, opts orchestrator.RunOptions, showKeys bool) error {
	record, err := a.Orchestrator.Run(ctx, opts)
	if err != nil {
		return err
	}

	if showKeys {
		fmt.Println(a.ReportWriter.RenderSummaryWithKeys(record))
	} else {
		fmt.Println(a.ReportWriter.RenderSummary(record))
	}

	var reportErr error
	if err := a.ReportWriter.WriteAll(record, showKeys); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to write reports")
		reportErr = fmt.Errorf("report write failed: %w", err)
	}

	var failedErr error
	if record.Failed > 0 {
		failedErr = fmt.Errorf("%d account(s) failed", record.Failed)
	}
	return errors.Join(failedErr, reportErr)
}

// Close releases all application resources.
func (a *App) Close() error {
	if a.Scheduler != nil && a.Scheduler.IsRunning() {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
