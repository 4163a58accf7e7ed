package ports

import (
	"context"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// Notifier presenta resultados al jugador (consola, etc.).
type Notifier interface {
	NotifySnapshot(ctx context.Context, session *domain.Session, snapshot *domain.Snapshot) error
	NotifyReport(ctx context.Context, report *domain.Report) error
	NotifyRanking(ctx context.Context, entries []domain.RankingEntry) error
}
