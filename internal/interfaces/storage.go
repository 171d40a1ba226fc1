package interfaces

import (
	"context"

	"github.com/ternarybob/adsum/internal/models"
)

// RunHistoryStorage persists batch run records for later inspection.
type RunHistoryStorage interface {
	StoreRun(ctx context.Context, run *models.RunRecord) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	LatestRun(ctx context.Context) (*models.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*models.RunRecord, error)
}
