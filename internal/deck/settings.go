// internal/deck/settings.go
package deck

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
)

// Settings is the versioned ranking configuration. A single row holds the
// current weights and caps; every admin update bumps the version.
type Settings struct {
	Weights   Weights `json:"weights"`
	Caps      Caps    `json:"caps"`
	Version   int     `json:"version"`
	UpdatedBy string  `json:"updatedBy,omitempty"`
}

// SettingsStore persists ranking settings as jsonb in a single-row table.
type SettingsStore struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSettingsStore(db *sql.DB, log logger.Logger) *SettingsStore {
	return &SettingsStore{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "settingsStore"}),
	}
}

// Get returns the current settings, or the built-in defaults at version 0
// when no row has ever been written.
func (s *SettingsStore) Get(ctx context.Context) (*Settings, error) {
	var (
		weightsRaw []byte
		capsRaw    []byte
		version    int
		updatedBy  sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT weights, caps, version, updated_by FROM ranking_settings WHERE id = 1`,
	).Scan(&weightsRaw, &capsRaw, &version, &updatedBy)
	if err == sql.ErrNoRows {
		return &Settings{Weights: DefaultWeights(), Caps: DefaultCaps(), Version: 0}, nil
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getRankingSettings", err)
	}

	out := &Settings{Version: version, UpdatedBy: updatedBy.String}
	if err := json.Unmarshal(weightsRaw, &out.Weights); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getRankingSettings", err)
	}
	if err := json.Unmarshal(capsRaw, &out.Caps); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getRankingSettings", err)
	}
	return out, nil
}

// Update validates and persists new weights and caps, returning the stored
// settings with the incremented version.
func (s *SettingsStore) Update(ctx context.Context, weights Weights, caps Caps, updatedBy string) (*Settings, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	if err := ValidateCaps(caps); err != nil {
		return nil, err
	}

	weightsRaw, err := json.Marshal(weights)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}
	capsRaw, err := json.Marshal(caps)
	if err != nil {
		return nil, apperrors.NewInvalidInputError(err.Error())
	}

	var version int
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO ranking_settings (id, weights, caps, version, updated_by, updated_at)
		VALUES (1, $1, $2, 1, $3, NOW())
		ON CONFLICT (id)
		DO UPDATE SET weights = EXCLUDED.weights,
		              caps = EXCLUDED.caps,
		              version = ranking_settings.version + 1,
		              updated_by = EXCLUDED.updated_by,
		              updated_at = NOW()
		RETURNING version`,
		weightsRaw, capsRaw, updatedBy,
	).Scan(&version)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("updateRankingSettings", err)
	}

	s.logger.Info("Ranking settings updated", map[string]interface{}{
		"version":   version,
		"updatedBy": updatedBy,
	})
	return &Settings{Weights: weights, Caps: caps, Version: version, UpdatedBy: updatedBy}, nil
}

// ValidateWeights requires every coefficient to sit in [0,1]. The sum is
// deliberately unconstrained.
func ValidateWeights(w Weights) error {
	checks := []struct {
		name  string
		value float64
	}{
		{"type", w.Type},
		{"age", w.Age},
		{"breed", w.Breed},
		{"recency", w.Recency},
		{"popularity", w.Popularity},
		{"coldstart", w.Coldstart},
	}
	for _, c := range checks {
		if c.value < 0 || c.value > 1 {
			return apperrors.NewWeightsValidationError(
				fmt.Sprintf("weight %q must be between 0 and 1, got %v", c.name, c.value))
		}
	}
	return nil
}

// ValidateCaps requires every diversity limit to be at least 1.
func ValidateCaps(c Caps) error {
	checks := []struct {
		name  string
		value int
	}{
		{"maxPerShelter", c.MaxPerShelter},
		{"maxConsecutiveSameType", c.MaxConsecutiveSameType},
		{"windowSize", c.WindowSize},
	}
	for _, chk := range checks {
		if chk.value < 1 {
			return apperrors.NewCapsValidationError(
				fmt.Sprintf("cap %q must be at least 1, got %d", chk.name, chk.value))
		}
	}
	return nil
}
