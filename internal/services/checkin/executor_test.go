package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/interfaces"
	"github.com/ternarybob/adsum/internal/models"
)

// apiEngine fakes only the API surface; the executor never drives the page.
type apiEngine struct {
	// responses maps "METHOD path" to a queue of bodies returned in order
	responses map[string][]string
	calls     []string
	failWith  error
}

func newAPIEngine() *apiEngine {
	return &apiEngine{responses: make(map[string][]string)}
}

func (a *apiEngine) queue(method, path, body string) {
	key := method + " " + path
	a.responses[key] = append(a.responses[key], body)
}

func (a *apiEngine) CallAPI(ctx context.Context, path, method string, body any) (*interfaces.APIResponse, error) {
	key := method + " " + path
	a.calls = append(a.calls, key)
	if a.failWith != nil {
		return nil, a.failWith
	}
	queue := a.responses[key]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted response for %s", key)
	}
	next := queue[0]
	if len(queue) > 1 {
		a.responses[key] = queue[1:]
	}
	return &interfaces.APIResponse{StatusCode: 200, Body: []byte(next)}, nil
}

func (a *apiEngine) Navigate(ctx context.Context, url string) error          { return nil }
func (a *apiEngine) Fill(ctx context.Context, selector, value string) error { return nil }
func (a *apiEngine) Click(ctx context.Context, selector string) error       { return nil }
func (a *apiEngine) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return nil
}
func (a *apiEngine) WaitFor(ctx context.Context, cond interfaces.Condition, timeout time.Duration) error {
	return nil
}
func (a *apiEngine) SessionState(ctx context.Context) ([]byte, error)       { return nil, nil }
func (a *apiEngine) LoadSessionState(ctx context.Context, blob []byte) error { return nil }
func (a *apiEngine) Screenshot(ctx context.Context, name string) (string, error) {
	return "", nil
}
func (a *apiEngine) Close() error { return nil }

func testAccount() *models.ResolvedAccount {
	return &models.ResolvedAccount{
		Identity: "alice",
		Site:     models.DefaultSiteProfile(),
	}
}

const (
	userBefore = `{"success":true,"data":{"id":42,"quota":12500000,"used_quota":100000}}`
	userAfter  = `{"success":true,"data":{"id":42,"quota":12550000,"used_quota":100000}}`
	tokensBody = `{"success":true,"data":[{"name":"default","key":"abcdef1234567890","remain_quota":12500000,"used_quota":50000,"status":1}]}`
)

func TestExecuteSuccessMeasuresGrantedQuota(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/user/self", userAfter)
	engine.queue("GET", "/api/token/", tokensBody)
	engine.queue("POST", "/api/user/sign_in", `{"success":true,"message":"签到成功"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSuccess, result.Outcome)
	assert.Equal(t, int64(42), result.UserID)
	assert.Equal(t, int64(12500000), result.QuotaRawBefore)
	assert.Equal(t, 25.0, result.QuotaUSDBefore)
	assert.Equal(t, int64(50000), result.GrantedRaw)
	assert.Equal(t, 0.1, result.GrantedUSD)
	assert.False(t, result.CompletedAt.IsZero())
}

func TestExecuteAlreadyDone(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/token/", tokensBody)
	engine.queue("POST", "/api/user/sign_in", `{"success":false,"message":"今日已签到"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyDone, result.Outcome)
	assert.Zero(t, result.GrantedRaw)
	assert.Empty(t, result.ErrorDetail)
	// No second profile fetch when nothing was granted
	count := 0
	for _, call := range engine.calls {
		if call == "GET /api/user/self" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExecuteRejected(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/token/", tokensBody)
	engine.queue("POST", "/api/user/sign_in", `{"success":false,"message":"服务器繁忙"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeFailed, result.Outcome)
	assert.Equal(t, "服务器繁忙", result.ErrorDetail)
}

func TestExecuteTokenNormalization(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/token/", tokensBody)
	engine.queue("POST", "/api/user/sign_in", `{"success":false,"message":"今日已签到"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)
	token := result.Tokens[0]
	assert.Equal(t, "sk-abcdef1234567890", token.Key)
	assert.Equal(t, 25.0, token.QuotaUSD)
	assert.Equal(t, 0.1, token.UsedQuotaUSD)
}

func TestExecuteTokenFetchFailureIsNonFatal(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/token/", `{"success":false,"message":"forbidden"}`)
	engine.queue("POST", "/api/user/sign_in", `{"success":false,"message":"今日已签到"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadyDone, result.Outcome)
	assert.Empty(t, result.Tokens)
}

func TestExecutePaginatedTokenPayload(t *testing.T) {
	engine := newAPIEngine()
	engine.queue("GET", "/api/user/self", userBefore)
	engine.queue("GET", "/api/token/", `{"success":true,"data":{"items":[{"name":"a","key":"sk-already-prefixed","remain_quota":2500000}]}}`)
	engine.queue("POST", "/api/user/sign_in", `{"success":false,"message":"今日已签到"}`)

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.NoError(t, err)
	require.Len(t, result.Tokens, 1)
	assert.Equal(t, "sk-already-prefixed", result.Tokens[0].Key)
	assert.Equal(t, 5.0, result.Tokens[0].QuotaUSD)
}

func TestExecuteProfileFetchFailure(t *testing.T) {
	engine := newAPIEngine()
	engine.failWith = errors.New("connection reset")

	executor := NewExecutor(arbor.NewLogger())
	result, err := executor.Execute(context.Background(), engine, testAccount())

	require.Error(t, err)
	assert.Nil(t, result)
}
