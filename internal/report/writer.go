package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/adsum/internal/models"
	"github.com/ternarybob/adsum/internal/services/quota"
)

// Writer renders run reports. The shared summary redacts API keys unless
// full keys are explicitly requested; machine-readable dumps and key exports
// always carry full keys. Anything with full keys is written owner-only.
type Writer struct {
	dir    string
	logger arbor.ILogger
	now    func() time.Time
}

func NewWriter(dir string, logger arbor.ILogger) *Writer {
	return &Writer{
		dir:    dir,
		logger: logger,
		now:    time.Now,
	}
}

// WriteAll produces the full report set for one run: the shared summary, the
// unredacted JSON dump, and the per-tier key exports. showKeys switches the
// summary from redacted to full keys.
func (w *Writer) WriteAll(record *models.RunRecord, showKeys bool) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}

	stamp := w.now().Format("20060102_150405")

	if err := w.writeSummary(record, stamp, showKeys); err != nil {
		return err
	}
	if err := w.writeDump(record, stamp); err != nil {
		return err
	}
	if err := w.writeKeyExports(record, stamp); err != nil {
		return err
	}

	w.logger.Info().Str("dir", w.dir).Msg("Reports written")
	return nil
}

// RenderSummary builds the redacted, human-readable run summary.
func (w *Writer) RenderSummary(record *models.RunRecord) string {
	return w.renderSummary(record, false)
}

// RenderSummaryWithKeys is the operator-requested variant with full keys.
func (w *Writer) RenderSummaryWithKeys(record *models.RunRecord) string {
	return w.renderSummary(record, true)
}

func (w *Writer) renderSummary(record *models.RunRecord, showKeys bool) string {
	var b strings.Builder

	t := table.NewWriter()
	t.SetTitle("Check-in Run %s", record.ID)
	t.AppendHeader(table.Row{"Account", "Outcome", "Balance (USD)", "Granted (USD)", "Tokens", "Detail"})
	for _, result := range record.Results {
		t.AppendRow(table.Row{
			result.AccountIdentity,
			string(result.Outcome),
			fmt.Sprintf("%.2f", result.QuotaUSDBefore+result.GrantedUSD),
			fmt.Sprintf("%.2f", result.GrantedUSD),
			len(result.Tokens),
			result.ErrorDetail,
		})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d accounts", len(record.Results)), "",
		"", "",
		"", fmt.Sprintf("success=%d already=%d failed=%d skipped=%d",
			record.Success, record.AlreadyDone, record.Failed, record.Skipped),
	})
	b.WriteString(t.Render())
	b.WriteString("\n\n")

	tokens := table.NewWriter()
	tokens.SetTitle("Tokens by Tier")
	tokens.AppendHeader(table.Row{"Account", "Token", "Key", "Tier", "Remaining (USD)", "Used (USD)"})
	for _, result := range record.Results {
		for _, token := range result.Tokens {
			key := quota.RedactKey(token.Key)
			if showKeys {
				key = token.Key
			}
			tokens.AppendRow(table.Row{
				result.AccountIdentity,
				token.Name,
				key,
				quota.Tier(token.QuotaUSD),
				fmt.Sprintf("%.2f", token.QuotaUSD),
				fmt.Sprintf("%.2f", token.UsedQuotaUSD),
			})
		}
	}
	b.WriteString(tokens.Render())
	b.WriteString("\n")
	return b.String()
}

// writeSummary writes the shared summary. The redacted form may be read by
// anyone; with full keys it drops to owner-only like the other key-bearing
// artifacts.
func (w *Writer) writeSummary(record *models.RunRecord, stamp string, showKeys bool) error {
	mode := os.FileMode(0644)
	if showKeys {
		mode = 0600
	}
	path := filepath.Join(w.dir, fmt.Sprintf("summary_%s.txt", stamp))
	if err := os.WriteFile(path, []byte(w.renderSummary(record, showKeys)), mode); err != nil {
		return fmt.Errorf("failed to write summary report: %w", err)
	}
	return nil
}

// writeDump writes the complete run record, full keys included.
func (w *Writer) writeDump(record *models.RunRecord, stamp string) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run record: %w", err)
	}
	path := filepath.Join(w.dir, fmt.Sprintf("run_%s.json", stamp))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write run dump: %w", err)
	}
	return nil
}

// writeKeyExports groups full keys by balance tier, one file per tier plus a
// combined file. Files only appear for tiers that have keys.
func (w *Writer) writeKeyExports(record *models.RunRecord, stamp string) error {
	byTier := make(map[string][]string)
	var all []string
	for _, result := range record.Results {
		for _, token := range result.Tokens {
			tier := quota.Tier(token.QuotaUSD)
			byTier[tier] = append(byTier[tier], token.Key)
			all = append(all, token.Key)
		}
	}
	if len(all) == 0 {
		return nil
	}

	for tier, keys := range byTier {
		path := filepath.Join(w.dir, fmt.Sprintf("keys_%s_%s.txt", tierFileName(tier), stamp))
		if err := writeKeyFile(path, keys); err != nil {
			return err
		}
	}
	path := filepath.Join(w.dir, fmt.Sprintf("keys_all_%s.txt", stamp))
	return writeKeyFile(path, all)
}

func writeKeyFile(path string, keys []string) error {
	content := strings.Join(keys, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write key export: %w", err)
	}
	return nil
}

func tierFileName(tier string) string {
	return strings.TrimPrefix(tier, "$")
}
