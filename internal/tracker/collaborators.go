package tracker

import (
	"context"

	"github.com/rewired-gh/paceoracle/internal/models"
)

// StateStore durably holds per-game state between ticks.
type StateStore interface {
	// Load returns nil, nil when the game has no stored state.
	Load(ctx context.Context, gameID string) (*models.GameState, error)
	Save(ctx context.Context, state *models.GameState) error
	Delete(ctx context.Context, gameID string) error
	List(ctx context.Context) ([]*models.GameState, error)
}

// OddsSource supplies market lines. A nil result means no line is available.
type OddsSource interface {
	LineFor(ctx context.Context, gameID string) (*models.Odds, error)
}

// Recorder keeps an audit trail of samples and emitted alerts.
type Recorder interface {
	RecordSample(ctx context.Context, rec models.SampleRecord) error
	RecordAlert(ctx context.Context, alert models.Alert) error
}
