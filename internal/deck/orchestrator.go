// internal/deck/orchestrator.go
package deck

import (
	"context"
	"math"
	"math/rand"
	"time"

	"petswipe-workers/internal/common/logger"
	"petswipe-workers/internal/common/metrics"
)

const (
	// DefaultLimit and MaxLimit bound requested deck sizes; non-positive
	// requests fall back to the default.
	DefaultLimit = 10
	MaxLimit     = 100

	// StrategyWeightedV1 is the default strategy tag; callers may supply
	// their own to label experiments in meta and audit.
	StrategyWeightedV1 = "weighted_v1"

	// cacheHitScore is the placeholder attached to items served from the
	// cached id list, where the original breakdown is not retained.
	cacheHitScore = 0.5

	maxReasons = 3
)

// PetStore is the persistence surface the orchestrator depends on.
type PetStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	FindCandidates(ctx context.Context, userID string, filters Filters, poolLimit int) ([]Pet, error)
	LikeRates(ctx context.Context, petIDs []string) (map[string]float64, error)
	GetPetsByIDs(ctx context.Context, ids []string) ([]Pet, error)
}

// DeckCache holds previously generated decks keyed by user.
type DeckCache interface {
	Get(ctx context.Context, userID string) ([]string, error)
	Set(ctx context.Context, userID string, ids []string, ttl time.Duration) error
	Invalidate(ctx context.Context, userID string) error
}

// SettingsSource provides the active weights and caps.
type SettingsSource interface {
	Get(ctx context.Context) (*Settings, error)
}

// AuditWriter records each fresh generation.
type AuditWriter interface {
	Write(ctx context.Context, rec AuditRecord) error
}

// GenerateRequest is one deck request. Strategy tags the generation in the
// response meta and the audit trail; empty means StrategyWeightedV1.
type GenerateRequest struct {
	UserID       string
	Limit        int
	Filters      Filters
	Strategy     string
	ForceRefresh bool
}

// Orchestrator runs the full pipeline: candidate retrieval, scoring,
// diversity, tiered shuffle, caching, and audit.
type Orchestrator struct {
	store    PetStore
	cache    DeckCache
	settings SettingsSource
	audit    AuditWriter
	scorer   *Scorer
	logger   logger.Logger

	tierSize int
	cacheTTL time.Duration
	minScore float64
	rng      *rand.Rand
	now      func() time.Time
}

// Option tweaks orchestrator behavior; defaults suit production.
type Option func(*Orchestrator)

// WithTierSize overrides the shuffle band width.
func WithTierSize(n int) Option {
	return func(o *Orchestrator) { o.tierSize = n }
}

// WithCacheTTL overrides how long generated decks are served from cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) { o.cacheTTL = ttl }
}

// WithMinScore drops candidates scoring below the threshold before the
// diversity pass. Zero disables the filter.
func WithMinScore(min float64) Option {
	return func(o *Orchestrator) { o.minScore = min }
}

// WithRand injects a deterministic source for the tier shuffle.
func WithRand(rng *rand.Rand) Option {
	return func(o *Orchestrator) { o.rng = rng }
}

// WithClock injects a fixed clock.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
		o.scorer = NewScorer(now)
	}
}

func NewOrchestrator(store PetStore, cache DeckCache, settings SettingsSource, audit AuditWriter, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:    store,
		cache:    cache,
		settings: settings,
		audit:    audit,
		scorer:   NewScorer(nil),
		logger:   log.WithFields(map[string]interface{}{"component": "deckOrchestrator"}),
		tierSize: DefaultTierSize,
		cacheTTL: DefaultCacheTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// GenerateDeck serves a cached deck when one with enough entries exists,
// otherwise runs the full pipeline. Cache and audit failures degrade to a
// fresh, un-cached generation rather than failing the request.
func (o *Orchestrator) GenerateDeck(ctx context.Context, req GenerateRequest) (*Deck, error) {
	limit := clampLimit(req.Limit)
	strategy := req.Strategy
	if strategy == "" {
		strategy = StrategyWeightedV1
	}

	user, err := o.store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	if req.ForceRefresh {
		if err := o.cache.Invalidate(ctx, req.UserID); err != nil {
			o.logger.Warn("Deck cache invalidation failed", map[string]interface{}{
				"userId": req.UserID,
				"error":  err.Error(),
			})
		}
	} else {
		if deck := o.fromCache(ctx, req.UserID, limit, strategy); deck != nil {
			metrics.DecksGenerated.WithLabelValues(strategy, "cache").Inc()
			return deck, nil
		}
	}

	deck, err := o.generateFresh(ctx, user, req.Filters, limit, strategy)
	if err != nil {
		return nil, err
	}
	metrics.DecksGenerated.WithLabelValues(strategy, "fresh").Inc()
	return deck, nil
}

// fromCache rebuilds a deck from the cached id list. Any failure, a short
// list, or pets having since become unavailable falls through to fresh
// generation.
func (o *Orchestrator) fromCache(ctx context.Context, userID string, limit int, strategy string) *Deck {
	ids, err := o.cache.Get(ctx, userID)
	if err != nil {
		o.logger.Warn("Deck cache read failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil
	}
	if len(ids) < limit {
		return nil
	}

	pets, err := o.store.GetPetsByIDs(ctx, ids)
	if err != nil {
		o.logger.Warn("Cached deck hydration failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil
	}

	byID := make(map[string]Pet, len(pets))
	for _, p := range pets {
		byID[p.ID] = p
	}

	items := make([]Item, 0, limit)
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		item := toItem(p, cacheHitScore, nil)
		item.Rank = len(items) + 1
		items = append(items, item)
		if len(items) == limit {
			break
		}
	}
	if len(items) < limit {
		return nil
	}

	return &Deck{
		Items: items,
		Meta: Meta{
			Limit:           limit,
			GeneratedAt:     o.now().UTC(),
			Strategy:        strategy,
			TotalCandidates: len(ids),
			CacheHit:        true,
		},
	}
}

func (o *Orchestrator) generateFresh(ctx context.Context, user *User, filters Filters, limit int, strategy string) (*Deck, error) {
	settings, err := o.settings.Get(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := o.store.FindCandidates(ctx, user.ID, filters, PoolLimit(limit))
	if err != nil {
		return nil, err
	}
	metrics.DeckCandidatesRetrieved.Observe(float64(len(pool)))

	generatedAt := o.now().UTC()
	if len(pool) == 0 {
		deck := &Deck{
			Items: []Item{},
			Meta: Meta{
				Limit:           limit,
				GeneratedAt:     generatedAt,
				Strategy:        strategy,
				TotalCandidates: 0,
			},
		}
		o.writeAudit(ctx, user.ID, 0, 0, strategy, settings, generatedAt)
		return deck, nil
	}

	petIDs := make([]string, len(pool))
	for i, p := range pool {
		petIDs[i] = p.ID
	}
	likeRates, err := o.store.LikeRates(ctx, petIDs)
	if err != nil {
		return nil, err
	}

	scored := make([]ScoredPet, 0, len(pool))
	for _, p := range pool {
		rate, ok := likeRates[p.ID]
		if !ok {
			rate = DefaultLikeRate
		}
		sp := o.scorer.Score(*user, p, settings.Weights, rate)
		if o.minScore > 0 && sp.Score < o.minScore {
			continue
		}
		scored = append(scored, sp)
	}

	diversified := EnforceDiversity(scored, settings.Caps)
	if rejected := len(scored) - len(diversified); rejected > 0 {
		metrics.DeckDiversityRejections.Add(float64(rejected))
	}
	final := ShuffleTiers(diversified, o.tierSize, o.rng)

	o.cacheDeck(ctx, user.ID, final, limit)
	o.writeAudit(ctx, user.ID, min(len(final), limit), len(pool), strategy, settings, generatedAt)

	items := make([]Item, 0, limit)
	for i, sp := range final {
		if i == limit {
			break
		}
		item := toItem(sp.Pet, round2(sp.Score), reasons(sp))
		item.Rank = i + 1
		items = append(items, item)
	}

	return &Deck{
		Items: items,
		Meta: Meta{
			Limit:           limit,
			GeneratedAt:     generatedAt,
			Strategy:        strategy,
			TotalCandidates: len(pool),
		},
	}, nil
}

// cacheDeck stores up to limit*3 ordered ids so follow-up requests with the
// same or smaller limit hit the cache. Nothing is cached for an empty deck.
func (o *Orchestrator) cacheDeck(ctx context.Context, userID string, final []ScoredPet, limit int) {
	if len(final) == 0 {
		return
	}
	n := limit * 3
	if n > len(final) {
		n = len(final)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = final[i].Pet.ID
	}
	if err := o.cache.Set(ctx, userID, ids, o.cacheTTL); err != nil {
		o.logger.Warn("Deck cache write failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// writeAudit records the generation; failures are logged, never surfaced.
func (o *Orchestrator) writeAudit(ctx context.Context, userID string, deckSize, poolSize int, strategy string, settings *Settings, generatedAt time.Time) {
	rec := AuditRecord{
		UserID:      userID,
		DeckSize:    deckSize,
		Strategy:    strategy,
		PoolSize:    poolSize,
		Weights:     settings.Weights,
		Caps:        settings.Caps,
		GeneratedAt: generatedAt,
	}
	if err := o.audit.Write(ctx, rec); err != nil {
		o.logger.Warn("Deck audit write failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
	}
}

// clampLimit treats an absent or nonsensical limit as "use the default" and
// caps explicit limits at MaxLimit.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

func toItem(p Pet, score float64, reasons []string) Item {
	return Item{
		ID:          p.ID,
		Name:        p.Name,
		Type:        p.Type,
		AgeMonths:   p.AgeMonths,
		Breed:       p.Breed,
		ShelterName: p.Shelter(),
		PhotoURL:    p.PhotoURL,
		Description: p.Description,
		Score:       score,
		Reasons:     reasons,
		CreatedAt:   p.CreatedAt,
	}
}

// reasons surfaces the strongest signals behind an item's placement, in a
// fixed check order, capped at three.
func reasons(sp ScoredPet) []string {
	var out []string
	add := func(s string) {
		if len(out) < maxReasons {
			out = append(out, s)
		}
	}
	if sp.Breakdown["recency"] >= 0.8 {
		add("recently listed")
	}
	if sp.Breakdown["popularity"] >= 0.6 {
		add("popular with other adopters")
	}
	if sp.Breakdown["age"] >= 1.0 {
		add("great adoption age")
	}
	if sp.Breakdown["breed"] >= 0.7 {
		add("mixed breed")
	}
	if sp.Breakdown["coldstart"] >= 0.8 {
		add("picked to explore your tastes")
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
