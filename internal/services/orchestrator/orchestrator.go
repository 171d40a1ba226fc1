package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mazen160/go-random"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/common"
	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
)

// ErrNoAccounts means the configuration produced zero runnable accounts.
var ErrNoAccounts = errors.New("no accounts configured")

// RunOptions narrows a batch run.
type RunOptions struct {
	// OnlyAccount restricts the run to the account with this identity
	OnlyAccount string
	// PrepareOnly authenticates and persists sessions without checking in
	PrepareOnly bool
}

// Orchestrator runs the account pipelines sequentially with randomized
// spacing. One failed or panicking account never takes the batch down.
type Orchestrator struct {
	config   *common.Config
	engines  interfaces.EngineFactory
	auth     interfaces.Authenticator
	executor interfaces.CheckinExecutor
	history  interfaces.RunHistoryStorage
	logger   arbor.ILogger

	// injectable for deterministic tests
	sleep     func(ctx context.Context, d time.Duration) error
	pickDelay func(min, max time.Duration) time.Duration
	now       func() time.Time
}

func New(
	config *common.Config,
	engines interfaces.EngineFactory,
	auth interfaces.Authenticator,
	executor interfaces.CheckinExecutor,
	history interfaces.RunHistoryStorage,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		config:    config,
		engines:   engines,
		auth:      auth,
		executor:  executor,
		history:   history,
		logger:    logger,
		sleep:     sleepCtx,
		pickDelay: randomDelay,
		now:       time.Now,
	}
}

// Run executes the batch: every configured account in declared order, with a
// randomized pause between executed accounts. The returned record always
// carries one result per selected account.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*models.RunRecord, error) {
	runID := common.NewRunID()
	log := o.logger.WithCorrelationId(runID)

	accounts := o.selectAccounts(opts)
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}

	record := &models.RunRecord{
		ID:        runID,
		StartedAt: o.now(),
	}
	log.Info().
		Int("accounts", len(accounts)).
		Bool("prepare_only", opts.PrepareOnly).
		Msg("Starting batch run")

	executed := 0
	for _, account := range accounts {
		resolved, err := account.Resolve(o.config.Settings.Site, o.config.Settings.Proxy)
		if err != nil {
			record.Results = append(record.Results, skippedResult(&account, err, o.now()))
			if errors.Is(err, models.ErrPlaceholderAccount) {
				log.Info().Str("account", account.Identity).Msg("Skipping placeholder account")
			} else {
				log.Warn().Err(err).Str("account", account.Identity).Msg("Skipping invalid account")
			}
			continue
		}

		if executed > 0 {
			delay := o.pickDelay(o.config.Settings.MinDelay, o.config.Settings.MaxDelay)
			log.Info().
				Str("account", resolved.Identity).
				Dur("delay", delay).
				Msg("Pausing before next account")
			if err := o.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}
		executed++

		result := o.runAccount(ctx, log, resolved, opts.PrepareOnly)
		record.Results = append(record.Results, *result)
	}

	record.FinishedAt = o.now()
	tally(record)
	log.Info().
		Int("success", record.Success).
		Int("already_done", record.AlreadyDone).
		Int("failed", record.Failed).
		Int("skipped", record.Skipped).
		Msg("Batch run complete")

	if o.history != nil {
		if err := o.history.StoreRun(ctx, record); err != nil {
			log.Warn().Err(err).Msg("Failed to persist run history")
		}
	}
	return record, nil
}

// runAccount executes one account pipeline in full isolation: its own browser
// instance and a panic boundary.
func (o *Orchestrator) runAccount(ctx context.Context, log arbor.ILogger, account *models.ResolvedAccount, prepareOnly bool) (result *models.CheckinResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("account", account.Identity).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Account pipeline panicked")
			result = failedResult(account, fmt.Errorf("pipeline panic: %v", r), o.now())
		}
	}()

	engine, err := o.engines(interfaces.EngineOptions{
		Headless:      o.config.Settings.Headless,
		Proxy:         account.Proxy,
		ScreenshotDir: o.config.Reports.ScreenshotDir,
	})
	if err != nil {
		log.Error().Err(err).Str("account", account.Identity).Msg("Failed to launch browser")
		return failedResult(account, err, o.now())
	}
	defer engine.Close()

	state, err := o.auth.Authenticate(ctx, engine, account)
	if err != nil || state != interfaces.AuthStateAuthenticated {
		o.captureDiagnostic(ctx, engine, "auth_failed_"+account.Identity)
		if err == nil {
			err = fmt.Errorf("authentication ended in state %s", state)
		}
		return failedResult(account, err, o.now())
	}

	if prepareOnly {
		log.Info().Str("account", account.Identity).Msg("Session prepared, skipping check-in")
		return &models.CheckinResult{
			AccountIdentity: account.Identity,
			Site:            account.Site.Name,
			Outcome:         models.OutcomeSuccess,
			CompletedAt:     o.now(),
		}
	}

	result, err = o.executor.Execute(ctx, engine, account)
	if err != nil {
		o.captureDiagnostic(ctx, engine, "checkin_failed_"+account.Identity)
		return failedResult(account, err, o.now())
	}
	return result
}

// captureDiagnostic takes a best-effort screenshot around a failure.
func (o *Orchestrator) captureDiagnostic(ctx context.Context, engine interfaces.AutomationEngine, name string) {
	if _, err := engine.Screenshot(ctx, name); err != nil {
		o.logger.Debug().Err(err).Str("name", name).Msg("Failed to capture diagnostic screenshot")
	}
}

// selectAccounts applies the OnlyAccount filter to the configured accounts.
func (o *Orchestrator) selectAccounts(opts RunOptions) []models.AccountConfig {
	if opts.OnlyAccount == "" {
		return o.config.Accounts
	}
	var selected []models.AccountConfig
	for _, account := range o.config.Accounts {
		if account.Identity == opts.OnlyAccount {
			selected = append(selected, account)
		}
	}
	return selected
}

func skippedResult(account *models.AccountConfig, err error, at time.Time) models.CheckinResult {
	return models.CheckinResult{
		AccountIdentity: account.Identity,
		Outcome:         models.OutcomeSkipped,
		ErrorDetail:     err.Error(),
		CompletedAt:     at,
	}
}

func failedResult(account *models.ResolvedAccount, err error, at time.Time) *models.CheckinResult {
	return &models.CheckinResult{
		AccountIdentity: account.Identity,
		Site:            account.Site.Name,
		Outcome:         models.OutcomeFailed,
		ErrorDetail:     err.Error(),
		CompletedAt:     at,
	}
}

func tally(record *models.RunRecord) {
	for _, result := range record.Results {
		switch result.Outcome {
		case models.OutcomeSuccess:
			record.Success++
		case models.OutcomeAlreadyDone:
			record.AlreadyDone++
		case models.OutcomeFailed:
			record.Failed++
		case models.OutcomeSkipped:
			record.Skipped++
		}
	}
}

// randomDelay picks a pause uniformly inside [min, max].
func randomDelay(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	ms, err := random.IntRange(int(min.Milliseconds()), int(max.Milliseconds()))
	if err != nil {
		return min
	}
	return time.Duration(ms) * time.Millisecond
}

// sleepCtx sleeps for d unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
