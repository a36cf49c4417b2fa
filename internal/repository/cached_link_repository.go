package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/hopnet-labs/hoplink/internal/model"
)

// LinkRepositoryInterface is the narrow directory contract consumed by the
// service layer: lookup, create, lifecycle mutation and the click-count
// increment primitive.
type LinkRepositoryInterface interface {
	GetByCode(ctx context.Context, code string) (*model.Link, error)
	Create(ctx context.Context, link *model.Link) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error
	IncrementClickCount(ctx context.Context, id uuid.UUID) error
}

// CachedLinkRepository wraps LinkRepository with a cache-aside read layer.
// All Redis calls go through a circuit breaker so a misbehaving cache
// degrades to direct database reads instead of adding per-request
// timeouts. The database remains the source of truth; cache entries are
// strictly a read optimization and staleness of the active flag is
// tolerated (resolution does not promise linearizability against
// concurrent deactivation).
type CachedLinkRepository struct {
	db      *LinkRepository
	cache   *redis.Client
	breaker *gobreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

// NewCachedLinkRepository creates a cached repository. A nil cache client
// disables caching entirely.
func NewCachedLinkRepository(db *LinkRepository, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedLinkRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "link-cache",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})
	return &CachedLinkRepository{
		db:      db,
		cache:   cache,
		breaker: cb,
		ttl:     ttl,
		logger:  logger,
	}
}

func cacheKey(code string) string {
	return fmt.Sprintf("link:%s", code)
}

// GetByCode reads through the cache. Cache misses and cache failures both
// fall back to the database; only database errors propagate to the caller.
func (r *CachedLinkRepository) GetByCode(ctx context.Context, code string) (*model.Link, error) {
	if r.cache != nil {
		if link := r.cacheGet(ctx, code); link != nil {
			return link, nil
		}
	}

	link, err := r.db.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		r.cacheSet(ctx, link)
	}
	return link, nil
}

// Create writes to the database only. The first resolution populates the
// cache.
func (r *CachedLinkRepository) Create(ctx context.Context, link *model.Link) error {
	return r.db.Create(ctx, link)
}

// SetActive updates the database and invalidates the cached entry so the
// next lookup observes the new lifecycle state.
func (r *CachedLinkRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	if err := r.db.SetActive(ctx, id, active); err != nil {
		return err
	}
	r.invalidateByID(ctx, id)
	return nil
}

// Delete removes the link and invalidates its cached entry.
func (r *CachedLinkRepository) Delete(ctx context.Context, id uuid.UUID) error {
	// Fetch first so the short code is known for invalidation.
	r.invalidateByID(ctx, id)
	return r.db.Delete(ctx, id)
}

// IncrementClickCount delegates to the database. The cached copy keeps its
// stale counter until the TTL expires; the counter is analytics data, not
// resolution policy.
func (r *CachedLinkRepository) IncrementClickCount(ctx context.Context, id uuid.UUID) error {
	return r.db.IncrementClickCount(ctx, id)
}

func (r *CachedLinkRepository) cacheGet(ctx context.Context, code string) *model.Link {
	result, err := r.breaker.Execute(func() (interface{}, error) {
		val, err := r.cache.Get(ctx, cacheKey(code)).Result()
		if err == redis.Nil {
			// A miss is a normal outcome, not a cache failure.
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		return val, nil
	})
	if err != nil {
		if r.logger != nil {
			r.logger.DebugContext(ctx, "cache read failed",
				slog.String("code", code),
				slog.String("error", err.Error()))
		}
		return nil
	}
	if result == nil {
		return nil
	}

	var link model.Link
	if err := json.Unmarshal([]byte(result.(string)), &link); err != nil {
		return nil
	}
	return &link
}

func (r *CachedLinkRepository) cacheSet(ctx context.Context, link *model.Link) {
	data, err := json.Marshal(link)
	if err != nil {
		return
	}
	if _, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Set(ctx, cacheKey(link.ShortCode), data, r.ttl).Err()
	}); err != nil && r.logger != nil {
		r.logger.DebugContext(ctx, "cache write failed",
			slog.String("code", link.ShortCode),
			slog.String("error", err.Error()))
	}
}

// invalidateByID resolves the short code for a link id and deletes its
// cache entry. Failures are logged and ignored; the entry ages out via TTL.
func (r *CachedLinkRepository) invalidateByID(ctx context.Context, id uuid.UUID) {
	if r.cache == nil {
		return
	}
	var code string
	err := r.db.db.QueryRow(ctx, `SELECT short_code FROM links WHERE id = $1`, id).Scan(&code)
	if err != nil {
		return
	}
	if _, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, r.cache.Del(ctx, cacheKey(code)).Err()
	}); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "cache invalidation failed",
			slog.String("code", code),
			slog.String("error", err.Error()))
	}
}

var _ LinkRepositoryInterface = (*CachedLinkRepository)(nil)
