package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsUserCorrectable(t *testing.T) {
	assert.True(t, IsUserCorrectable(&ValidationError{Kind: ValidationEmpty}))
	assert.True(t, IsUserCorrectable(&NoHistoricalDataError{Tickers: []string{"XXXX"}}))
	assert.True(t, IsUserCorrectable(ErrNotPendingTurn))
	assert.True(t, IsUserCorrectable(fmt.Errorf("close turn: %w", ErrNotPendingTurn)))

	assert.False(t, IsUserCorrectable(ErrSessionNotFound))
	assert.False(t, IsUserCorrectable(ErrSessionClosed))
	assert.False(t, IsUserCorrectable(fmt.Errorf("boom")))
	assert.False(t, IsUserCorrectable(nil))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Kind: ValidationWeightSum, Detail: "weights sum to 1.200000, max 1.0"}
	assert.Contains(t, err.Error(), "weight_sum_exceeded")
	assert.Contains(t, err.Error(), "1.200000")
}

func TestNoHistoricalDataError_Message(t *testing.T) {
	err := &NoHistoricalDataError{Tickers: []string{"AAAA", "BBBB"}}
	assert.Contains(t, err.Error(), "AAAA, BBBB")
}

func TestValidDifficulty(t *testing.T) {
	assert.True(t, ValidDifficulty(DifficultyBeginner))
	assert.True(t, ValidDifficulty(DifficultyIntermediate))
	assert.True(t, ValidDifficulty(DifficultyExpert))
	assert.False(t, ValidDifficulty("imposible"))
}
