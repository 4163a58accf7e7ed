package ports

import (
	"context"

	"github.com/alejandrodnm/careersim/internal/domain"
)

// SessionStore persiste sesiones de carrera. Save es atómico por sesión:
// un lector concurrente ve el estado anterior o el nuevo, nunca uno parcial.
type SessionStore interface {
	// Load devuelve una copia de la sesión, o domain.ErrSessionNotFound.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Save inserta o reemplaza la sesión completa.
	Save(ctx context.Context, session *domain.Session) error

	// Close cierra la conexión limpiamente.
	Close() error
}
