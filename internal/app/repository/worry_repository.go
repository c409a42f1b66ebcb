package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pyrelog/pyre/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrWorryNotFound signals that no row exists for the id. Callers
	// report it identically for never-existed and already-purged ids.
	ErrWorryNotFound = errors.New("worry not found")

	// ErrIDCollision signals that an insert hit an existing primary key.
	// Distinct from transient failures so the caller can regenerate the id.
	ErrIDCollision = errors.New("worry id collision")

	// ErrAlreadyBurned signals that a conditional burn lost to an earlier one.
	ErrAlreadyBurned = errors.New("worry already burned")

	// ErrNoLiveWorries signals an empty eligible set for the random pick.
	ErrNoLiveWorries = errors.New("no live worries")
)

const pgUniqueViolation = "23505"

// WorryRepository is the storage contract the lifecycle engine depends on.
// Every state-changing operation is atomic at the database: conditional
// update for burn, single-statement increment for pats, plain DELETE for
// the purge. Nothing here decomposes a read-modify-write into separate
// round-trips.
type WorryRepository interface {
	Create(ctx context.Context, worry *model.Worry) error
	GetByID(ctx context.Context, id string) (*model.Worry, error)
	Burn(ctx context.Context, id string, at time.Time) (time.Time, error)
	IncrementPat(ctx context.Context, id string) (int, error)
	RandomLive(ctx context.Context, now time.Time) (*model.Worry, error)
	PurgeExpired(ctx context.Context, before time.Time) ([]string, error)
	ListLiveIDs(ctx context.Context) ([]string, error)
}

type worryRepository struct {
	db   *gorm.DB
	pool *pgxpool.Pool
}

// NewWorryRepository returns a Postgres-backed WorryRepository. GORM covers
// the plain CRUD; the pgx pool runs the conditional and counting SQL where
// RETURNING matters.
func NewWorryRepository(db *gorm.DB, pool *pgxpool.Pool) WorryRepository {
	return &worryRepository{db: db, pool: pool}
}

func (r *worryRepository) Create(ctx context.Context, worry *model.Worry) error {
	if err := r.db.WithContext(ctx).Create(worry).Error; err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrIDCollision
		}
		return fmt.Errorf("insert worry: %w", err)
	}
	return nil
}

func (r *worryRepository) GetByID(ctx context.Context, id string) (*model.Worry, error) {
	var worry model.Worry
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&worry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWorryNotFound
		}
		return nil, fmt.Errorf("select worry: %w", err)
	}
	return &worry, nil
}

// Burn flips is_burned exactly once. Concurrent attempts race on the
// conditional UPDATE; the losers then probe the row to distinguish
// already-burned from gone.
func (r *worryRepository) Burn(ctx context.Context, id string, at time.Time) (time.Time, error) {
	var burnedAt time.Time
	err := r.pool.QueryRow(ctx,
		`UPDATE worries
		    SET is_burned = TRUE, burned_at = $2
		  WHERE id = $1 AND NOT is_burned
		  RETURNING burned_at`,
		id, at,
	).Scan(&burnedAt)
	if err == nil {
		return burnedAt, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, fmt.Errorf("burn worry: %w", err)
	}

	var exists bool
	if probeErr := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM worries WHERE id = $1)`, id,
	).Scan(&exists); probeErr != nil {
		return time.Time{}, fmt.Errorf("probe worry after burn miss: %w", probeErr)
	}
	if exists {
		return time.Time{}, ErrAlreadyBurned
	}
	return time.Time{}, ErrWorryNotFound
}

// IncrementPat bumps the counter server-side. Burned rows are frozen, so
// the guard keeps a racing pat from mutating a record that burned between
// the caller's read and this write.
func (r *worryRepository) IncrementPat(ctx context.Context, id string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`UPDATE worries
		    SET pat_count = pat_count + 1
		  WHERE id = $1 AND NOT is_burned
		  RETURNING pat_count`,
		id,
	).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("increment pat: %w", err)
	}

	var exists bool
	if probeErr := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM worries WHERE id = $1)`, id,
	).Scan(&exists); probeErr != nil {
		return 0, fmt.Errorf("probe worry after pat miss: %w", probeErr)
	}
	if exists {
		return 0, ErrAlreadyBurned
	}
	return 0, ErrWorryNotFound
}

// RandomLive picks one non-burned, non-expired row with a server-side
// random ordering, so the selection is not correlated with creation order.
func (r *worryRepository) RandomLive(ctx context.Context, now time.Time) (*model.Worry, error) {
	var worry model.Worry
	err := r.pool.QueryRow(ctx,
		`SELECT id, content, expires_at, is_burned, burned_at, pat_count, created_at
		   FROM worries
		  WHERE NOT is_burned AND expires_at > $1
		  ORDER BY random()
		  LIMIT 1`,
		now,
	).Scan(&worry.ID, &worry.Content, &worry.ExpiresAt, &worry.IsBurned,
		&worry.BurnedAt, &worry.PatCount, &worry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoLiveWorries
		}
		return nil, fmt.Errorf("select random worry: %w", err)
	}
	return &worry, nil
}

// PurgeExpired deletes everything past its expiry and returns the removed
// ids so callers can drop derived state (the pat ledger) for them.
// Naturally idempotent: rows removed by one invocation are simply absent
// for the next.
func (r *worryRepository) PurgeExpired(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`DELETE FROM worries WHERE expires_at < $1 RETURNING id`, before)
	if err != nil {
		return nil, fmt.Errorf("purge expired worries: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan purged worry id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("purge expired worries: %w", err)
	}
	return ids, nil
}

func (r *worryRepository) ListLiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&model.Worry{}).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list worry ids: %w", err)
	}
	return ids, nil
}
