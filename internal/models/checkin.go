package models

import "time"

// CheckinOutcome classifies the terminal state of one account's pipeline.
type CheckinOutcome string

const (
	// OutcomeSuccess means the check-in call granted quota this run
	OutcomeSuccess CheckinOutcome = "success"
	// OutcomeAlreadyDone means the site reported a prior check-in today.
	// This is the expected steady state for repeated daily runs, not an error.
	OutcomeAlreadyDone CheckinOutcome = "already_done"
	// OutcomeFailed covers auth failures, server-reported errors and
	// connectivity problems
	OutcomeFailed CheckinOutcome = "failed"
	// OutcomeSkipped means the account was excluded before execution
	// (placeholder or invalid configuration)
	OutcomeSkipped CheckinOutcome = "skipped"
)

// TokenRecord is one API token owned by an account.
type TokenRecord struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	QuotaRaw     int64     `json:"quota_raw"`
	QuotaUSD     float64   `json:"quota_usd"`
	UsedQuotaRaw int64     `json:"used_quota_raw"`
	UsedQuotaUSD float64   `json:"used_quota_usd"`
	Status       int       `json:"status"`
	ExpiredAt    time.Time `json:"expired_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// CheckinResult is the aggregated outcome of one account's pipeline.
type CheckinResult struct {
	AccountIdentity string         `json:"account_identity"`
	Site            string         `json:"site"`
	UserID          int64          `json:"user_id"`
	QuotaRawBefore  int64          `json:"quota_raw_before"`
	QuotaUSDBefore  float64        `json:"quota_usd_before"`
	GrantedRaw      int64          `json:"granted_raw"`
	GrantedUSD      float64        `json:"granted_usd"`
	Tokens          []TokenRecord  `json:"tokens"`
	Outcome         CheckinOutcome `json:"outcome"`
	ErrorDetail     string         `json:"error_detail,omitempty"`
	CompletedAt     time.Time      `json:"completed_at"`
}

// RunRecord is the persisted history entry for one batch run.
type RunRecord struct {
	ID          string          `json:"id" badgerhold:"key"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
	Results     []CheckinResult `json:"results"`
	Skipped     int             `json:"skipped"`
	Success     int             `json:"success"`
	AlreadyDone int             `json:"already_done"`
	Failed      int             `json:"failed"`
}
