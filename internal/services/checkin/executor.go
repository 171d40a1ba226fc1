package checkin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
	"github.com/ternarybob/adsum/internal/services/quota"
)

// alreadyDoneMarkers identify the site's "already checked in today" notice.
// The site reports it in Chinese; the english marker covers localized builds.
var alreadyDoneMarkers = []string{"已签到", "already"}

// userProfile is the slice of the user API payload the executor needs.
type userProfile struct {
	ID        int64 `json:"id"`
	Quota     int64 `json:"quota"`
	UsedQuota int64 `json:"used_quota"`
}

// tokenPayload mirrors one entry of the token API response.
type tokenPayload struct {
	Name         string `json:"name"`
	Key          string `json:"key"`
	RemainQuota  int64  `json:"remain_quota"`
	UsedQuota    int64  `json:"used_quota"`
	Status       int    `json:"status"`
	ExpiredTime  int64  `json:"expired_time"`
	CreatedTime  int64  `json:"created_time"`
}

// Executor performs the check-in action against an authenticated browser
// context and collects the account's quota and token data around it.
type Executor struct {
	logger arbor.ILogger
	now    func() time.Time
}

func NewExecutor(logger arbor.ILogger) *Executor {
	return &Executor{logger: logger, now: time.Now}
}

// Execute runs the check-in pipeline for one authenticated account: profile
// before, tokens, the check-in call itself, then profile after to measure the
// granted quota.
func (e *Executor) Execute(ctx context.Context, engine interfaces.AutomationEngine, account *models.ResolvedAccount) (*models.CheckinResult, error) {
	site := account.Site
	result := &models.CheckinResult{
		AccountIdentity: account.Identity,
		Site:            site.Name,
	}

	before, err := e.fetchUser(ctx, engine, &site)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account profile: %w", err)
	}
	result.UserID = before.ID
	result.QuotaRawBefore = before.Quota
	result.QuotaUSDBefore = quota.RoundUSD(quota.ToUSD(before.Quota))

	if site.TokensAPIPath != "" {
		tokens, err := e.fetchTokens(ctx, engine, &site)
		if err != nil {
			// Token data enriches the report but is not required for the
			// check-in itself
			e.logger.Warn().Err(err).Str("account", account.Identity).Msg("Failed to fetch tokens")
		} else {
			result.Tokens = tokens
		}
	}

	outcome, message, err := e.performCheckin(ctx, engine, &site)
	if err != nil {
		return nil, err
	}
	result.Outcome = outcome
	result.CompletedAt = e.now()

	switch outcome {
	case models.OutcomeSuccess:
		after, err := e.fetchUser(ctx, engine, &site)
		if err != nil {
			e.logger.Warn().Err(err).Str("account", account.Identity).Msg("Failed to measure granted quota")
			break
		}
		result.GrantedRaw = after.Quota - before.Quota
		result.GrantedUSD = quota.RoundUSD(quota.ToUSD(result.GrantedRaw))
		e.logger.Info().
			Str("account", account.Identity).
			Float64("granted_usd", result.GrantedUSD).
			Float64("balance_usd", quota.RoundUSD(quota.ToUSD(after.Quota))).
			Msg("Check-in granted quota")
	case models.OutcomeAlreadyDone:
		e.logger.Info().
			Str("account", account.Identity).
			Str("site_message", message).
			Msg("Already checked in today")
	case models.OutcomeFailed:
		result.ErrorDetail = message
		e.logger.Warn().
			Str("account", account.Identity).
			Str("site_message", message).
			Msg("Check-in rejected")
	}

	return result, nil
}

// performCheckin issues the check-in call and classifies the site's answer.
// The already-checked-in notice is a distinct outcome, never a failure.
func (e *Executor) performCheckin(ctx context.Context, engine interfaces.AutomationEngine, site *models.SiteProfile) (models.CheckinOutcome, string, error) {
	resp, err := engine.CallAPI(ctx, site.CheckinAPIPath, "POST", nil)
	if err != nil {
		return models.OutcomeFailed, "", fmt.Errorf("check-in call failed: %w", err)
	}

	envelope, err := models.DecodeEnvelope(resp.Body)
	if err != nil {
		return models.OutcomeFailed, "", fmt.Errorf("check-in call returned status %d: %w", resp.StatusCode, err)
	}

	if envelope.Success {
		if isAlreadyDone(envelope.Message) {
			return models.OutcomeAlreadyDone, envelope.Message, nil
		}
		return models.OutcomeSuccess, envelope.Message, nil
	}
	if isAlreadyDone(envelope.Message) {
		return models.OutcomeAlreadyDone, envelope.Message, nil
	}
	return models.OutcomeFailed, envelope.Message, nil
}

func isAlreadyDone(message string) bool {
	lower := strings.ToLower(message)
	for _, marker := range alreadyDoneMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// fetchUser retrieves the account profile through the in-page API.
func (e *Executor) fetchUser(ctx context.Context, engine interfaces.AutomationEngine, site *models.SiteProfile) (*userProfile, error) {
	resp, err := engine.CallAPI(ctx, site.UserAPIPath, "GET", nil)
	if err != nil {
		return nil, err
	}
	envelope, err := models.DecodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, fmt.Errorf("user API reported failure: %s", envelope.Message)
	}

	var profile userProfile
	if err := json.Unmarshal(envelope.Data, &profile); err != nil {
		return nil, fmt.Errorf("unexpected user payload: %w", err)
	}
	return &profile, nil
}

// fetchTokens retrieves the account's API tokens. The endpoint returns either
// a bare array or a paginated object depending on the site build.
func (e *Executor) fetchTokens(ctx context.Context, engine interfaces.AutomationEngine, site *models.SiteProfile) ([]models.TokenRecord, error) {
	resp, err := engine.CallAPI(ctx, site.TokensAPIPath, "GET", nil)
	if err != nil {
		return nil, err
	}
	envelope, err := models.DecodeEnvelope(resp.Body)
	if err != nil {
		return nil, err
	}
	if !envelope.Success {
		return nil, fmt.Errorf("token API reported failure: %s", envelope.Message)
	}

	payloads, err := decodeTokenList(envelope.Data)
	if err != nil {
		return nil, err
	}

	records := make([]models.TokenRecord, 0, len(payloads))
	for _, p := range payloads {
		record := models.TokenRecord{
			Name:         p.Name,
			Key:          normalizeKey(p.Key),
			QuotaRaw:     p.RemainQuota,
			QuotaUSD:     quota.RoundUSD(quota.ToUSD(p.RemainQuota)),
			UsedQuotaRaw: p.UsedQuota,
			UsedQuotaUSD: quota.RoundUSD(quota.ToUSD(p.UsedQuota)),
			Status:       p.Status,
		}
		if p.ExpiredTime > 0 {
			record.ExpiredAt = time.Unix(p.ExpiredTime, 0)
		}
		if p.CreatedTime > 0 {
			record.CreatedAt = time.Unix(p.CreatedTime, 0)
		}
		records = append(records, record)
	}
	return records, nil
}

// decodeTokenList accepts both payload shapes: a bare array, or an object
// wrapping the array under items or records.
func decodeTokenList(data json.RawMessage) ([]tokenPayload, error) {
	var direct []tokenPayload
	if err := json.Unmarshal(data, &direct); err == nil {
		return direct, nil
	}

	var wrapped struct {
		Items   []tokenPayload `json:"items"`
		Records []tokenPayload `json:"records"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("unexpected token payload: %w", err)
	}
	if wrapped.Items != nil {
		return wrapped.Items, nil
	}
	return wrapped.Records, nil
}

// normalizeKey prefixes bare token keys the way the site displays them.
func normalizeKey(key string) string {
	if key == "" || strings.HasPrefix(key, "sk-") {
		return key
	}
	return "sk-" + key
}
