package ports

import (
	"context"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// RankingStore persiste puntuaciones finalizadas para el leaderboard.
type RankingStore interface {
	// Append registra una entrada; una por sesión (re-publicar reemplaza).
	Append(ctx context.Context, entry domain.RankingEntry) error

	// List devuelve hasta limit entradas, mejor score primero.
	List(ctx context.Context, limit int) ([]domain.RankingEntry, error)
}
