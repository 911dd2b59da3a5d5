package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/societyhub/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/societyhub/pkg/cache"
)

const (
	flatCachePrefix      = "societyhub:flats:"
	flatGenerationPrefix = "societyhub:flatgen:"
)

func flatCacheKey(societyCode string, generation uint64) string {
	return flatCachePrefix + societyCode + ":" + strconv.FormatUint(generation, 10)
}

func flatGenerationKey(societyCode string) string {
	return flatGenerationPrefix + societyCode
}

// MemoryFlatCache keeps flat listings in process
type MemoryFlatCache struct {
	mu          sync.Mutex
	c           *cache.Cache[[]*domain.FlatDetails]
	generations map[string]uint64
	ttl         time.Duration
}

// NewMemoryFlatCache creates an in-process listing cache
func NewMemoryFlatCache(ttl time.Duration) *MemoryFlatCache {
	return &MemoryFlatCache{
		c:           cache.New[[]*domain.FlatDetails](),
		generations: make(map[string]uint64),
		ttl:         ttl,
	}
}

func (m *MemoryFlatCache) Get(_ context.Context, societyCode string) ([]*domain.FlatDetails, uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.generations[societyCode]
	flats, ok := m.c.Get(flatCacheKey(societyCode, gen))
	return flats, gen, ok
}

func (m *MemoryFlatCache) Set(_ context.Context, societyCode string, generation uint64, flats []*domain.FlatDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.generations[societyCode] != generation {
		return
	}
	m.c.Set(flatCacheKey(societyCode, generation), flats, m.ttl)
}

func (m *MemoryFlatCache) Invalidate(_ context.Context, societyCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen := m.generations[societyCode]
	m.c.Delete(flatCacheKey(societyCode, gen))
	m.generations[societyCode] = gen + 1
}

// RedisFlatCache shares flat listings between instances. Every Redis error is
// treated as a miss; the breaker stops calling Redis while it is unhealthy.
type RedisFlatCache struct {
	client  *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	ttl     time.Duration
	logger  *slog.Logger
}

// NewRedisFlatCache creates a listing cache backed by Redis
func NewRedisFlatCache(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisFlatCache {
	if logger == nil {
		logger = slog.Default()
	}

	cb := circuitbreaker.New(5, 2, 30*time.Second)
	cb.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Warn("flat cache circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})

	return &RedisFlatCache{client: client, breaker: cb, ttl: ttl, logger: logger}
}

// Get reads the society's generation and then the listing stored under it.
// An unreachable Redis reports a miss at generation 0.
func (r *RedisFlatCache) Get(ctx context.Context, societyCode string) ([]*domain.FlatDetails, uint64, bool) {
	var (
		gen uint64
		raw []byte
	)
	err := r.breaker.Execute(func() error {
		n, err := r.client.Counter(ctx, flatGenerationKey(societyCode))
		if err != nil {
			return err
		}
		gen = uint64(n)

		b, err := r.client.Get(ctx, flatCacheKey(societyCode, gen))
		if errors.Is(err, redis.ErrMiss) {
			return nil
		}
		raw = b
		return err
	})
	if err != nil {
		return nil, 0, false
	}
	if raw == nil {
		return nil, gen, false
	}

	var flats []*domain.FlatDetails
	if err := json.Unmarshal(raw, &flats); err != nil {
		r.logger.Warn("discarding undecodable flat cache entry",
			slog.String("society_code", societyCode),
			slog.String("error", err.Error()),
		)
		return nil, gen, false
	}
	return flats, gen, true
}

// Set stores flats under generation only if that is still the society's
// generation. The value key carries the generation, so a Set that loses a
// race with Invalidate lands on a key no Get reads and ages out with its TTL.
func (r *RedisFlatCache) Set(ctx context.Context, societyCode string, generation uint64, flats []*domain.FlatDetails) {
	raw, err := json.Marshal(flats)
	if err != nil {
		return
	}
	if err := r.breaker.Execute(func() error {
		current, err := r.client.Counter(ctx, flatGenerationKey(societyCode))
		if err != nil {
			return err
		}
		if uint64(current) != generation {
			return nil
		}
		return r.client.Set(ctx, flatCacheKey(societyCode, generation), raw, r.ttl)
	}); err != nil && !errors.Is(err, circuitbreaker.ErrOpen) {
		r.logger.Warn("failed to cache flats",
			slog.String("society_code", societyCode),
			slog.String("error", err.Error()),
		)
	}
}

// Invalidate bypasses the breaker so a write always tries to retire the
// current entry. It moves the generation on and drops the retired listing.
func (r *RedisFlatCache) Invalidate(ctx context.Context, societyCode string) {
	gen, err := r.client.Incr(ctx, flatGenerationKey(societyCode))
	if err == nil {
		err = r.client.Delete(ctx, flatCacheKey(societyCode, uint64(gen-1)))
	}
	if err != nil {
		r.breaker.RecordFailure()
		r.logger.Warn("failed to invalidate flat cache",
			slog.String("society_code", societyCode),
			slog.String("error", err.Error()),
		)
	}
}
