// Package subscription resolves a user's billing tier from the mirrored
// customer and subscription tables.
package subscription

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

// Repository reads the billing mirror.
type Repository interface {
	GetCustomerID(ctx context.Context, userID string) (string, error)
	LatestSubscription(ctx context.Context, customerID string) (models.SubscriptionRecord, error)
}

// Subscription is a resolved tier plus the row it came from, if any.
type Subscription struct {
	Tier plans.Tier `json:"tier"`
	models.SubscriptionRecord
}

// DefaultCacheTTL is how long a resolved subscription is trusted before the
// next session start looks it up again.
const DefaultCacheTTL = 5 * time.Minute

type entry struct {
	sub       Subscription
	fetchedAt time.Time
}

// Store caches resolved subscriptions per user.
type Store struct {
	repo   Repository
	prices plans.PriceTable
	log    zerolog.Logger
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]entry
}

// Option configures a Store.
type Option func(*Store)

// WithCacheTTL sets how long a resolved subscription stays fresh.
func WithCacheTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(repo Repository, prices plans.PriceTable, logger zerolog.Logger, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		prices: prices,
		log:    logger,
		ttl:    DefaultCacheTTL,
		now:    time.Now,
		cache:  map[string]entry{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchSubscription looks up the customer mapping and then its subscription.
// A missing mapping, a missing or inactive subscription, an unknown price or
// any lookup error all resolve to the free tier. Only answers backed by a
// successful lookup are cached. Concurrent calls for the same user share one
// lookup.
func (s *Store) FetchSubscription(ctx context.Context, userID string) Subscription {
	v, _, _ := s.group.Do(userID, func() (any, error) {
		sub, err := s.resolve(ctx, userID)
		if err != nil {
			return sub, nil
		}
		s.mu.Lock()
		s.cache[userID] = entry{sub: sub, fetchedAt: s.now()}
		s.mu.Unlock()
		return sub, nil
	})
	return v.(Subscription)
}

func (s *Store) resolve(ctx context.Context, userID string) (Subscription, error) {
	free := Subscription{Tier: plans.TierFree}

	customerID, err := s.repo.GetCustomerID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return free, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Msg("customer lookup failed; using free tier")
		return free, err
	}

	rec, err := s.repo.LatestSubscription(ctx, customerID)
	if errors.Is(err, store.ErrNotFound) {
		return free, nil
	}
	if err != nil {
		s.log.Error().Err(err).Str("user", userID).Str("customer", customerID).
			Msg("subscription lookup failed; using free tier")
		return free, err
	}

	if !rec.IsActive() {
		return Subscription{Tier: plans.TierFree, SubscriptionRecord: rec}, nil
	}
	return Subscription{
		Tier:               s.prices.TierFromPriceID(rec.PriceID),
		SubscriptionRecord: rec,
	}, nil
}

// Cached returns the last resolved subscription without a lookup. ok is
// false when nothing was resolved or the entry is older than the TTL.
func (s *Store) Cached(userID string) (Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.cache[userID]
	if !ok {
		return Subscription{}, false
	}
	return e.sub, s.now().Sub(e.fetchedAt) < s.ttl
}

// Tier returns the last resolved tier, expired or not, and free when nothing
// has been resolved.
func (s *Store) Tier(userID string) plans.Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.cache[userID]; ok {
		return e.sub.Tier
	}
	return plans.TierFree
}

// HasFeatureAccess checks the cached tier's capability set.
func (s *Store) HasFeatureAccess(userID string, f plans.Feature) bool {
	return plans.TierHasFeature(s.Tier(userID), f)
}

// CanPerformOperation is true for quota-exempt tiers. Free users defer to
// the usage store.
func (s *Store) CanPerformOperation(userID string, _ plans.Feature) bool {
	return s.Tier(userID).IsPremium()
}

// IsPremium re-resolves the subscription and reports whether the tier is
// quota-exempt.
func (s *Store) IsPremium(ctx context.Context, userID string) bool {
	return s.FetchSubscription(ctx, userID).Tier.IsPremium()
}

// Invalidate drops the cached entry so the next read refetches.
func (s *Store) Invalidate(userID string) {
	s.mu.Lock()
	delete(s.cache, userID)
	s.mu.Unlock()
}
