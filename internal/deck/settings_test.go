package deck

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func setupSettingsStore(t *testing.T) (*SettingsStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSettingsStore(db, logger.NewZapAdapter(zaptest.NewLogger(t))), mock
}

func mustJSON(t *testing.T, v interface{}) []byte {
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

// ==========================
// Get Tests
// ==========================

func TestSettingsStore_Get_ReturnsStoredRow(t *testing.T) {
	store, mock := setupSettingsStore(t)
	weights := Weights{Type: 0.3, Age: 0.1, Breed: 0.1, Recency: 0.2, Popularity: 0.2, Coldstart: 0.1}
	caps := Caps{MaxPerShelter: 3, MaxConsecutiveSameType: 2, WindowSize: 8}

	rows := sqlmock.NewRows([]string{"weights", "caps", "version", "updated_by"}).
		AddRow(mustJSON(t, weights), mustJSON(t, caps), 4, "admin@shelter.org")
	mock.ExpectQuery(`FROM ranking_settings WHERE id = 1`).WillReturnRows(rows)

	got, err := store.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, weights, got.Weights)
	assert.Equal(t, caps, got.Caps)
	assert.Equal(t, 4, got.Version)
	assert.Equal(t, "admin@shelter.org", got.UpdatedBy)
}

func TestSettingsStore_Get_NoRowFallsBackToDefaults(t *testing.T) {
	store, mock := setupSettingsStore(t)

	mock.ExpectQuery(`FROM ranking_settings WHERE id = 1`).
		WillReturnRows(sqlmock.NewRows([]string{"weights", "caps", "version", "updated_by"}))

	got, err := store.Get(context.Background())
	require.NoError(t, err)

	assert.Equal(t, DefaultWeights(), got.Weights)
	assert.Equal(t, DefaultCaps(), got.Caps)
	assert.Equal(t, 0, got.Version)
}

// ==========================
// Update Tests
// ==========================

func TestSettingsStore_Update_PersistsAndReturnsNewVersion(t *testing.T) {
	store, mock := setupSettingsStore(t)
	weights := DefaultWeights()
	caps := DefaultCaps()

	mock.ExpectQuery(`INSERT INTO ranking_settings`).
		WithArgs(mustJSON(t, weights), mustJSON(t, caps), "admin@shelter.org").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(5))

	got, err := store.Update(context.Background(), weights, caps, "admin@shelter.org")
	require.NoError(t, err)

	assert.Equal(t, 5, got.Version)
	assert.Equal(t, weights, got.Weights)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsStore_Update_RejectsOutOfRangeWeight(t *testing.T) {
	store, _ := setupSettingsStore(t)
	weights := DefaultWeights()
	weights.Popularity = 1.5

	_, err := store.Update(context.Background(), weights, DefaultCaps(), "admin")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeWeightsValidationFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "popularity")
}

func TestSettingsStore_Update_RejectsNonPositiveCap(t *testing.T) {
	store, _ := setupSettingsStore(t)
	caps := DefaultCaps()
	caps.WindowSize = 0

	_, err := store.Update(context.Background(), DefaultWeights(), caps, "admin")

	var stdErr *apperrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, apperrors.ErrCodeCapsValidationFailed, stdErr.Code)
	assert.Contains(t, stdErr.Details, "windowSize")
}

// ==========================
// Validation Tests
// ==========================

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, ValidateWeights(DefaultWeights()))
	assert.NoError(t, ValidateWeights(Weights{})) // all-zero is allowed

	bad := DefaultWeights()
	bad.Type = -0.1
	assert.Error(t, ValidateWeights(bad))
}

func TestValidateCaps(t *testing.T) {
	assert.NoError(t, ValidateCaps(DefaultCaps()))
	assert.NoError(t, ValidateCaps(Caps{MaxPerShelter: 1, MaxConsecutiveSameType: 1, WindowSize: 1}))
	assert.Error(t, ValidateCaps(Caps{MaxPerShelter: 0, MaxConsecutiveSameType: 3, WindowSize: 10}))
}
