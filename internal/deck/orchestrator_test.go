package deck

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"petswipe-workers/internal/common/logger"
)

// ==========================
// In-memory Fakes
// ==========================

type fakeStore struct {
	user       *User
	userErr    error
	candidates []Pet
	likeRates  map[string]float64

	candidateCalls int
}

func (f *fakeStore) GetUser(_ context.Context, _ string) (*User, error) {
	return f.user, f.userErr
}

func (f *fakeStore) FindCandidates(_ context.Context, _ string, _ Filters, _ int) ([]Pet, error) {
	f.candidateCalls++
	return f.candidates, nil
}

func (f *fakeStore) LikeRates(_ context.Context, _ []string) (map[string]float64, error) {
	if f.likeRates == nil {
		return map[string]float64{}, nil
	}
	return f.likeRates, nil
}

func (f *fakeStore) GetPetsByIDs(_ context.Context, ids []string) ([]Pet, error) {
	byID := make(map[string]Pet)
	for _, p := range f.candidates {
		byID[p.ID] = p
	}
	var out []Pet
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeCache struct {
	decks       map[string][]string
	getErr      error
	setErr      error
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{decks: make(map[string][]string)}
}

func (f *fakeCache) Get(_ context.Context, userID string) ([]string, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.decks[userID], nil
}

func (f *fakeCache) Set(_ context.Context, userID string, ids []string, _ time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.decks[userID] = ids
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, userID string) error {
	f.invalidated = append(f.invalidated, userID)
	delete(f.decks, userID)
	return nil
}

type fakeSettings struct {
	settings *Settings
}

func (f *fakeSettings) Get(_ context.Context) (*Settings, error) {
	if f.settings == nil {
		return &Settings{Weights: DefaultWeights(), Caps: DefaultCaps(), Version: 1}, nil
	}
	return f.settings, nil
}

type fakeAudit struct {
	records []AuditRecord
	err     error
}

func (f *fakeAudit) Write(_ context.Context, rec AuditRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

func candidatePool(n int) []Pet {
	pets := make([]Pet, n)
	types := []string{"dog", "cat", "rabbit"}
	for i := 0; i < n; i++ {
		shelter := fmt.Sprintf("shelter-%d", i%7)
		pets[i] = Pet{
			ID:          fmt.Sprintf("pet-%03d", i),
			Name:        fmt.Sprintf("Pet %d", i),
			Type:        types[i%len(types)],
			AgeMonths:   intPtr(6 + i%50),
			ShelterName: &shelter,
			CreatedAt:   daysAgo(i % 20),
		}
	}
	return pets
}

func newTestOrchestrator(t *testing.T, store *fakeStore, cache *fakeCache, audit *fakeAudit) *Orchestrator {
	return NewOrchestrator(
		store, cache, &fakeSettings{}, audit,
		logger.NewZapAdapter(zaptest.NewLogger(t)),
		WithClock(fixedClock),
		WithRand(rand.New(rand.NewSource(42))),
	)
}

// ==========================
// Fresh Generation Tests
// ==========================

func TestOrchestrator_GenerateDeck_FreshPath(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	audit := &fakeAudit{}
	orch := newTestOrchestrator(t, store, cache, audit)

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.Len(t, deck.Items, 10)
	assert.False(t, deck.Meta.CacheHit)
	assert.Equal(t, StrategyWeightedV1, deck.Meta.Strategy)
	assert.Equal(t, 60, deck.Meta.TotalCandidates)

	for i, item := range deck.Items {
		assert.Equal(t, i+1, item.Rank)
		assert.NotEmpty(t, item.ID)
		assert.GreaterOrEqual(t, item.Score, 0.0)
		assert.LessOrEqual(t, item.Score, 1.0)
	}

	// Deck ids were cached, at most limit*3 of them.
	cached := cache.decks["user-1"]
	assert.NotEmpty(t, cached)
	assert.LessOrEqual(t, len(cached), 30)

	// One audit record per fresh generation.
	require.Len(t, audit.records, 1)
	assert.Equal(t, "user-1", audit.records[0].UserID)
	assert.Equal(t, 60, audit.records[0].PoolSize)
	assert.Equal(t, DefaultWeights(), audit.records[0].Weights)
}

func TestOrchestrator_GenerateDeck_RespectsDiversityCaps(t *testing.T) {
	// Everything from one shelter: the default cap of 2 per window bounds
	// the whole deck.
	shelter := "only-shelter"
	pets := candidatePool(40)
	for i := range pets {
		pets[i].ShelterName = &shelter
	}
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: pets}
	orch := newTestOrchestrator(t, store, newFakeCache(), &fakeAudit{})

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.Len(t, deck.Items, 2)
}

func TestOrchestrator_GenerateDeck_UnknownUser(t *testing.T) {
	store := &fakeStore{userErr: errors.New("user not found")}
	orch := newTestOrchestrator(t, store, newFakeCache(), &fakeAudit{})

	_, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "ghost", Limit: 10})
	assert.Error(t, err)
}

func TestOrchestrator_GenerateDeck_LimitClamping(t *testing.T) {
	tests := []struct {
		name     string
		limit    int
		expected int
	}{
		{"zero becomes default", 0, DefaultLimit},
		{"negative becomes default", -5, DefaultLimit},
		{"above max clamps", 500, MaxLimit},
		{"in range passes through", 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampLimit(tt.limit))
		})
	}
}

// ==========================
// Strategy Tag Tests
// ==========================

func TestOrchestrator_GenerateDeck_CallerStrategyTag(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	audit := &fakeAudit{}
	orch := newTestOrchestrator(t, store, cache, audit)

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{
		UserID: "user-1", Limit: 10, Strategy: "weighted_v2_experiment",
	})
	require.NoError(t, err)

	assert.Equal(t, "weighted_v2_experiment", deck.Meta.Strategy)
	require.Len(t, audit.records, 1)
	assert.Equal(t, "weighted_v2_experiment", audit.records[0].Strategy)

	// The tag follows the deck onto the cached path too.
	cached, err := orch.GenerateDeck(context.Background(), GenerateRequest{
		UserID: "user-1", Limit: 10, Strategy: "weighted_v2_experiment",
	})
	require.NoError(t, err)
	assert.True(t, cached.Meta.CacheHit)
	assert.Equal(t, "weighted_v2_experiment", cached.Meta.Strategy)
}

func TestOrchestrator_GenerateDeck_EmptyStrategyDefaults(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	audit := &fakeAudit{}
	orch := newTestOrchestrator(t, store, newFakeCache(), audit)

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.Equal(t, StrategyWeightedV1, deck.Meta.Strategy)
	require.Len(t, audit.records, 1)
	assert.Equal(t, StrategyWeightedV1, audit.records[0].Strategy)
}

// ==========================
// Empty Pool Tests
// ==========================

func TestOrchestrator_GenerateDeck_EmptyPool(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}}
	cache := newFakeCache()
	audit := &fakeAudit{}
	orch := newTestOrchestrator(t, store, cache, audit)

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.Empty(t, deck.Items)
	assert.Equal(t, 0, deck.Meta.TotalCandidates)
	assert.Empty(t, cache.decks, "empty decks are not cached")

	// The exhausted pool is still audited.
	require.Len(t, audit.records, 1)
	assert.Equal(t, 0, audit.records[0].DeckSize)
}

// ==========================
// Cache Path Tests
// ==========================

func TestOrchestrator_GenerateDeck_CacheHitSkipsPipeline(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	audit := &fakeAudit{}
	orch := newTestOrchestrator(t, store, cache, audit)

	first, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)
	require.False(t, first.Meta.CacheHit)

	second, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.True(t, second.Meta.CacheHit)
	assert.Len(t, second.Items, 10)
	assert.Equal(t, 1, store.candidateCalls, "cache hit must not hit the pool query")
	assert.Len(t, audit.records, 1, "cache hits are not audited")

	// Cached items carry the placeholder score, not a recomputed one.
	for _, item := range second.Items {
		assert.Equal(t, cacheHitScore, item.Score)
	}
}

func TestOrchestrator_GenerateDeck_ShortCacheFallsThrough(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	cache.decks["user-1"] = []string{"pet-000", "pet-001"} // fewer than limit
	orch := newTestOrchestrator(t, store, cache, &fakeAudit{})

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)

	assert.False(t, deck.Meta.CacheHit)
	assert.Equal(t, 1, store.candidateCalls)
}

func TestOrchestrator_GenerateDeck_ForceRefreshInvalidates(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	cache.decks["user-1"] = []string{
		"pet-000", "pet-001", "pet-002", "pet-003", "pet-004",
		"pet-005", "pet-006", "pet-007", "pet-008", "pet-009",
	}
	orch := newTestOrchestrator(t, store, cache, &fakeAudit{})

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10, ForceRefresh: true})
	require.NoError(t, err)

	assert.False(t, deck.Meta.CacheHit)
	assert.Equal(t, []string{"user-1"}, cache.invalidated)
	assert.Equal(t, 1, store.candidateCalls)
}

// ==========================
// Degraded Dependency Tests
// ==========================

func TestOrchestrator_GenerateDeck_SurvivesCacheFailures(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	cache := newFakeCache()
	cache.getErr = errors.New("redis down")
	cache.setErr = errors.New("redis down")
	orch := newTestOrchestrator(t, store, cache, &fakeAudit{})

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, deck.Items, 10)
}

func TestOrchestrator_GenerateDeck_SurvivesAuditFailure(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	orch := newTestOrchestrator(t, store, newFakeCache(), &fakeAudit{err: errors.New("audit table gone")})

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)
	assert.Len(t, deck.Items, 10)
}

// ==========================
// Option Tests
// ==========================

func TestOrchestrator_MinScoreFiltersWeakCandidates(t *testing.T) {
	store := &fakeStore{user: &User{ID: "user-1", CreatedAt: daysAgo(90)}, candidates: candidatePool(60)}
	orch := NewOrchestrator(
		store, newFakeCache(), &fakeSettings{}, &fakeAudit{},
		logger.NewZapAdapter(zaptest.NewLogger(t)),
		WithClock(fixedClock),
		WithRand(rand.New(rand.NewSource(42))),
		WithMinScore(0.99),
	)

	deck, err := orch.GenerateDeck(context.Background(), GenerateRequest{UserID: "user-1", Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, deck.Items, "no candidate clears an extreme threshold")
}
