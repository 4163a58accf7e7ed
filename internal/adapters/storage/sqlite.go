package storage

// sqlite.go: persistencia de sesiones y ranking.
//
// Estrategia:
//   - `sessions`: una fila por sesión; el estado completo (turnos,
//     decisiones, snapshots, eventos) viaja como documento JSON. Las
//     columnas extraídas (player, difficulty, closed) existen solo para
//     listar e indexar sin deserializar.
//   - Save reemplaza el documento entero en un solo UPSERT: un lector
//     concurrente ve la sesión anterior o la nueva, nunca una a medias.
//   - `ranking`: una fila por sesión publicada; re-publicar reemplaza.

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/careersim/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    player     TEXT     NOT NULL DEFAULT '',
    difficulty TEXT     NOT NULL DEFAULT '',
    closed     INTEGER  NOT NULL DEFAULT 0,
    payload    TEXT     NOT NULL,
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_player  ON sessions(player);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

CREATE TABLE IF NOT EXISTS ranking (
    session_id   TEXT PRIMARY KEY,
    player       TEXT     NOT NULL DEFAULT '',
    difficulty   TEXT     NOT NULL DEFAULT '',
    score        REAL     NOT NULL DEFAULT 0,
    stars        INTEGER  NOT NULL DEFAULT 0,
    total_return REAL     NOT NULL DEFAULT 0,
    created_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_ranking_score ON ranking(score DESC, created_at DESC);
`

// SQLite implementa ports.SessionStore y ports.RankingStore sobre un solo
// archivo (pure Go, sin CGo).
type SQLite struct {
	db *sql.DB
}

// NewSQLite abre (o crea) la base de datos en la ruta dada y aplica el
// schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLite: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLite: apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load deserializa la sesión completa desde su documento JSON.
func (s *SQLite) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE id = ?`, sessionID,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("storage.Load: %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.Load: query %q: %w", sessionID, err)
	}

	var session domain.Session
	if err := json.Unmarshal([]byte(payload), &session); err != nil {
		return nil, fmt.Errorf("storage.Load: decode %q: %w", sessionID, err)
	}
	return &session, nil
}

// Save serializa y reemplaza la sesión entera.
func (s *SQLite) Save(ctx context.Context, session *domain.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("storage.Save: encode %q: %w", session.ID, err)
	}

	now := time.Now().UTC()
	closed := 0
	if session.Closed {
		closed = 1
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, player, difficulty, closed, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			player     = excluded.player,
			difficulty = excluded.difficulty,
			closed     = excluded.closed,
			payload    = excluded.payload,
			updated_at = excluded.updated_at
	`, session.ID, session.Player, session.Difficulty, closed, string(payload),
		session.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("storage.Save: upsert %q: %w", session.ID, err)
	}
	return nil
}

// Append registra (o reemplaza) la puntuación publicada de una sesión.
func (s *SQLite) Append(ctx context.Context, entry domain.RankingEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ranking (session_id, player, difficulty, score, stars, total_return, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			player       = excluded.player,
			difficulty   = excluded.difficulty,
			score        = excluded.score,
			stars        = excluded.stars,
			total_return = excluded.total_return,
			created_at   = excluded.created_at
	`, entry.SessionID, entry.Player, entry.Difficulty, entry.Score, entry.Stars,
		entry.TotalReturn, entry.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("storage.Append: upsert %q: %w", entry.SessionID, err)
	}
	return nil
}

// List devuelve hasta limit entradas, mejor score primero y, a igual score,
// la más reciente.
func (s *SQLite) List(ctx context.Context, limit int) ([]domain.RankingEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, player, difficulty, score, stars, total_return, created_at
		FROM ranking
		ORDER BY score DESC, created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.List: query: %w", err)
	}
	defer rows.Close()

	var entries []domain.RankingEntry
	for rows.Next() {
		var e domain.RankingEntry
		var createdAt string
		if err := rows.Scan(&e.SessionID, &e.Player, &e.Difficulty,
			&e.Score, &e.Stars, &e.TotalReturn, &createdAt); err != nil {
			return nil, fmt.Errorf("storage.List: scan row: %w", err)
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLite) Close() error {
	return s.db.Close()
}
