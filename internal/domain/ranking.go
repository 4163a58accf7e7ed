package domain

import "time"

// RankingEntry is one finalized score on the leaderboard. Entries are only
// appended with the player's consent; they never feed back into sessions.
type RankingEntry struct {
	SessionID   string    `json:"session_id"`
	Player      string    `json:"player"`
	Difficulty  string    `json:"difficulty"`
	Score       float64   `json:"score"`
	Stars       int       `json:"stars"`
	TotalReturn float64   `json:"total_return"`
	CreatedAt   time.Time `json:"created_at"`
}
