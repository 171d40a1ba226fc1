package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/models"
)

func sampleRecord() *models.RunRecord {
	return &models.RunRecord{
		ID:         "run_test",
		StartedAt:  time.Now().Add(-time.Minute),
		FinishedAt: time.Now(),
		Success:    1,
		Failed:     1,
		Results: []models.CheckinResult{
			{
				AccountIdentity: "alice",
				Site:            "anyrouter",
				Outcome:         models.OutcomeSuccess,
				QuotaUSDBefore:  25.0,
				GrantedUSD:      0.5,
				Tokens: []models.TokenRecord{
					{Name: "default", Key: "sk-abcdef1234567890", QuotaUSD: 25.0, UsedQuotaUSD: 0.1},
					{Name: "spare", Key: "sk-zyxwvu0987654321", QuotaUSD: 4.2},
				},
			},
			{
				AccountIdentity: "bob",
				Site:            "anyrouter",
				Outcome:         models.OutcomeFailed,
				ErrorDetail:     "authentication failed",
			},
		},
	}
}

func TestRenderSummaryRedactsKeys(t *testing.T) {
	w := NewWriter(t.TempDir(), arbor.NewLogger())

	summary := w.RenderSummary(sampleRecord())

	assert.Contains(t, summary, "alice")
	assert.Contains(t, summary, "sk-a********7890")
	assert.NotContains(t, summary, "sk-abcdef1234567890", "full keys never appear in the summary")
	assert.Contains(t, summary, "$25")
	assert.Contains(t, summary, "other")
	assert.Contains(t, summary, "authentication failed")
}

func TestWriteAllProducesReportSet(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())

	require.NoError(t, w.WriteAll(sampleRecord(), false))

	summaries, err := filepath.Glob(filepath.Join(dir, "summary_*.txt"))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	dumps, err := filepath.Glob(filepath.Join(dir, "run_*.json"))
	require.NoError(t, err)
	require.Len(t, dumps, 1)

	tierFiles, err := filepath.Glob(filepath.Join(dir, "keys_25_*.txt"))
	require.NoError(t, err)
	require.Len(t, tierFiles, 1)

	combined, err := filepath.Glob(filepath.Join(dir, "keys_all_*.txt"))
	require.NoError(t, err)
	require.Len(t, combined, 1)
}

func TestWriteAllFilePermissions(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())

	require.NoError(t, w.WriteAll(sampleRecord(), false))

	assertMode := func(pattern string, want os.FileMode) {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		require.NoError(t, err)
		require.NotEmpty(t, matches)
		info, err := os.Stat(matches[0])
		require.NoError(t, err)
		assert.Equal(t, want, info.Mode().Perm(), pattern)
	}

	assertMode("summary_*.txt", 0644)
	assertMode("run_*.json", 0600)
	assertMode("keys_all_*.txt", 0600)
}

func TestWriteAllShowKeysUnredactsSummary(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())

	require.NoError(t, w.WriteAll(sampleRecord(), true))

	summaries, err := filepath.Glob(filepath.Join(dir, "summary_*.txt"))
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	data, err := os.ReadFile(summaries[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "sk-abcdef1234567890")

	info, err := os.Stat(summaries[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm(), "full-key summary is owner-only")
}

func TestWriteAllDumpCarriesFullKeys(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())

	require.NoError(t, w.WriteAll(sampleRecord(), false))

	dumps, err := filepath.Glob(filepath.Join(dir, "run_*.json"))
	require.NoError(t, err)
	data, err := os.ReadFile(dumps[0])
	require.NoError(t, err)

	var restored models.RunRecord
	require.NoError(t, json.Unmarshal(data, &restored))
	require.Len(t, restored.Results, 2)
	assert.Equal(t, "sk-abcdef1234567890", restored.Results[0].Tokens[0].Key)
}

func TestWriteAllNoTokensSkipsKeyExports(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, arbor.NewLogger())

	record := sampleRecord()
	for i := range record.Results {
		record.Results[i].Tokens = nil
	}
	require.NoError(t, w.WriteAll(record, false))

	keyFiles, err := filepath.Glob(filepath.Join(dir, "keys_*"))
	require.NoError(t, err)
	assert.Empty(t, keyFiles)
}

func TestWriteKeyFileFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keys.txt")

	require.NoError(t, writeKeyFile(path, []string{"sk-one", "sk-two"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-one\nsk-two\n", string(data))
	assert.True(t, strings.HasSuffix(string(data), "\n"))
}
