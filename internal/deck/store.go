// internal/deck/store.go
package deck

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	apperrors "petswipe-workers/internal/common/errors"
	"petswipe-workers/internal/common/logger"
)

const (
	// DefaultLikeRate stands in for pets with no swipe history yet.
	DefaultLikeRate = 0.3

	maxPoolLimit = 300
	minPoolLimit = 100
)

// PoolLimit sizes the candidate pool fetched for a deck request: ten times
// the requested deck, floored so small requests still see enough variety
// and capped so large ones stay bounded.
func PoolLimit(limit int) int {
	n := limit * 10
	if n < minPoolLimit {
		n = minPoolLimit
	}
	if n > maxPoolLimit {
		n = maxPoolLimit
	}
	return n
}

// Store reads users, candidate pets, and swipe aggregates from postgres.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "deckStore"}),
	}
}

// GetUser loads the requester; an unknown id is a business error, not an
// infrastructure one.
func (s *Store) GetUser(ctx context.Context, userID string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at FROM users WHERE id = $1 AND deleted_at IS NULL`,
		userID,
	).Scan(&u.ID, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewUserNotFoundError(userID)
	}
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getUser", err)
	}
	return &u, nil
}

// FindCandidates returns available, non-deleted pets the user has not yet
// swiped, newest first, narrowed by the optional filters.
func (s *Store) FindCandidates(ctx context.Context, userID string, filters Filters, poolLimit int) ([]Pet, error) {
	var (
		conds []string
		args  []interface{}
	)
	args = append(args, userID)
	conds = append(conds,
		"p.status = 'available'",
		"p.deleted_at IS NULL",
		"p.id NOT IN (SELECT pet_id FROM swipes WHERE user_id = $1)",
	)

	if filters.Type != "" {
		args = append(args, filters.Type)
		conds = append(conds, fmt.Sprintf("LOWER(p.type) = LOWER($%d)", len(args)))
	}
	if filters.MinAge != nil {
		args = append(args, *filters.MinAge)
		conds = append(conds, fmt.Sprintf("p.age_months >= $%d", len(args)))
	}
	if filters.MaxAge != nil {
		args = append(args, *filters.MaxAge)
		conds = append(conds, fmt.Sprintf("p.age_months <= $%d", len(args)))
	}

	args = append(args, poolLimit)
	query := fmt.Sprintf(`
		SELECT p.id, p.name, p.type, p.age_months, p.breed, p.shelter_name,
		       p.photo_url, p.description, p.created_at
		FROM pets p
		WHERE %s
		ORDER BY p.created_at DESC
		LIMIT $%d`,
		strings.Join(conds, " AND "), len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("findCandidates", err)
	}
	defer rows.Close()

	var pets []Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("findCandidates", err)
		}
		pets = append(pets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("findCandidates", err)
	}
	return pets, nil
}

// LikeRates aggregates swipe outcomes per pet for the popularity boost.
// Every requested id gets an entry; pets with no interactions carry
// DefaultLikeRate.
func (s *Store) LikeRates(ctx context.Context, petIDs []string) (map[string]float64, error) {
	rates := make(map[string]float64, len(petIDs))
	if len(petIDs) == 0 {
		return rates, nil
	}
	for _, id := range petIDs {
		rates[id] = DefaultLikeRate
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pet_id,
		       COUNT(*) FILTER (WHERE liked) AS likes,
		       COUNT(*) AS total
		FROM swipes
		WHERE pet_id = ANY($1)
		GROUP BY pet_id`,
		pq.Array(petIDs))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("likeRates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			petID        string
			likes, total int64
		)
		if err := rows.Scan(&petID, &likes, &total); err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("likeRates", err)
		}
		if total > 0 {
			rates[petID] = float64(likes) / float64(total)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("likeRates", err)
	}
	return rates, nil
}

// GetPetsByIDs loads pets for a cached deck. Unavailable or deleted pets
// are silently dropped; callers restore the cached ordering themselves.
func (s *Store) GetPetsByIDs(ctx context.Context, ids []string) ([]Pet, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, p.type, p.age_months, p.breed, p.shelter_name,
		       p.photo_url, p.description, p.created_at
		FROM pets p
		WHERE p.id = ANY($1) AND p.status = 'available' AND p.deleted_at IS NULL`,
		pq.Array(ids))
	if err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getPetsByIDs", err)
	}
	defer rows.Close()

	var pets []Pet
	for rows.Next() {
		p, err := scanPet(rows)
		if err != nil {
			return nil, apperrors.NewQueryExecutionFailedError("getPetsByIDs", err)
		}
		pets = append(pets, p)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewQueryExecutionFailedError("getPetsByIDs", err)
	}
	return pets, nil
}

// RecordSwipe upserts the user's decision on a pet. Swiping the same pet
// twice keeps the latest outcome.
func (s *Store) RecordSwipe(ctx context.Context, userID, petID string, liked bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO swipes (user_id, pet_id, liked, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, pet_id)
		DO UPDATE SET liked = EXCLUDED.liked, created_at = NOW()`,
		userID, petID, liked)
	if err != nil {
		return apperrors.NewSwipeRecordFailedError(err)
	}
	return nil
}

func scanPet(rows *sql.Rows) (Pet, error) {
	var (
		p       Pet
		age     sql.NullInt64
		breed   sql.NullString
		shelter sql.NullString
		photo   sql.NullString
		desc    sql.NullString
	)
	err := rows.Scan(&p.ID, &p.Name, &p.Type, &age, &breed, &shelter, &photo, &desc, &p.CreatedAt)
	if err != nil {
		return Pet{}, err
	}
	if age.Valid {
		v := int(age.Int64)
		p.AgeMonths = &v
	}
	if breed.Valid {
		v := breed.String
		p.Breed = &v
	}
	if shelter.Valid {
		v := shelter.String
		p.ShelterName = &v
	}
	p.PhotoURL = photo.String
	p.Description = desc.String
	return p, nil
}
