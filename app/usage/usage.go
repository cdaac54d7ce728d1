// Package usage enforces the free tier's daily operation quota.
//
// Counters are cached in process, keyed by user, and persisted to a
// per-user-per-day row. Every increment re-reads the row and writes it back
// with a version check, so several processes sharing one database enforce a
// single limit. A failed write is logged and the increment still counts
// locally; the next read reconciles the two.
package usage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

const (
	// DefaultDailyLimit is the number of operations a free user gets per day.
	DefaultDailyLimit = 10
	// DefaultRefreshInterval bounds how long EnsureLoaded trusts the cache.
	DefaultRefreshInterval = 30 * time.Second

	maxSaveAttempts = 3
)

// Repository persists daily usage rows.
type Repository interface {
	GetDailyUsage(ctx context.Context, userID, date string) (models.UsageRecord, error)
	// SaveDailyUsage writes rec if the stored version still equals
	// rec.Version and returns store.ErrConflict otherwise.
	SaveDailyUsage(ctx context.Context, rec models.UsageRecord) error
}

// TierChecker reports whether a user currently holds a quota-exempt tier.
type TierChecker interface {
	IsPremium(ctx context.Context, userID string) bool
}

type userState struct {
	mu            sync.Mutex
	loaded        bool
	loadedAt      time.Time
	lastResetDate string
	total         int
	counts        map[string]int
	// version of the remote row the counters were last synced with
	version int64
	// updatedAt of the last local change; dirty while it is not persisted
	updatedAt time.Time
	dirty     bool
}

// Store tracks per-day usage for every user seen by this process.
type Store struct {
	repo            Repository
	tiers           TierChecker
	dailyLimit      int
	opLimits        map[string]int
	loc             *time.Location
	now             func() time.Time
	refreshInterval time.Duration
	log             zerolog.Logger

	mu    sync.Mutex
	users map[string]*userState
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the timezone that defines a calendar day.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger used for swallowed persistence failures.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithRefreshInterval sets how often EnsureLoaded re-reads a user's row.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithOperationLimits sets per-operation ceilings keyed by operation name.
// Operations without an entry use the daily limit.
func WithOperationLimits(limits map[string]int) Option {
	return func(s *Store) {
		for k, v := range limits {
			s.opLimits[k] = v
		}
	}
}

// New builds a Store. tiers may be nil, in which case every caller is
// treated as free.
func New(repo Repository, tiers TierChecker, dailyLimit int, opts ...Option) *Store {
	s := &Store{
		repo:            repo,
		tiers:           tiers,
		dailyLimit:      dailyLimit,
		opLimits:        map[string]int{},
		loc:             time.Local,
		now:             time.Now,
		refreshInterval: DefaultRefreshInterval,
		log:             zerolog.Nop(),
		users:           map[string]*userState{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DailyLimit returns the global per-day ceiling.
func (s *Store) DailyLimit() int {
	return s.dailyLimit
}

// OperationLimit returns the ceiling for a single operation.
func (s *Store) OperationLimit(op plans.Feature) int {
	if n, ok := s.opLimits[op.String()]; ok {
		return n
	}
	return s.dailyLimit
}

func (s *Store) today() string {
	return s.now().In(s.loc).Format(models.DateLayout)
}

func (s *Store) user(userID string) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.users[userID]
	if !ok {
		st = &userState{counts: map[string]int{}}
		s.users[userID] = st
	}
	return st
}

// CanPerformOperation reports whether a free user may run op today. A cached
// day that is not today counts as a fresh day; the reset is applied on the
// next write.
func (s *Store) CanPerformOperation(userID string, op plans.Feature) bool {
	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.canPerformLocked(st, s.today(), op)
}

func (s *Store) canPerformLocked(st *userState, today string, op plans.Feature) bool {
	if st.lastResetDate != today {
		return true
	}
	if st.total >= s.dailyLimit {
		return false
	}
	if st.counts[op.String()] >= s.OperationLimit(op) {
		return false
	}
	return true
}

// IncrementUsage counts one run of op. Premium users are let through without
// counting. It returns false, before any write, when the quota is exhausted,
// and also when the row keeps changing under it.
func (s *Store) IncrementUsage(ctx context.Context, userID string, op plans.Feature) bool {
	if s.tiers != nil && s.tiers.IsPremium(ctx, userID) {
		return true
	}

	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	for attempt := 0; attempt < maxSaveAttempts; attempt++ {
		today := s.today()
		synced := s.syncLocked(ctx, userID, st, today) == nil
		if !s.canPerformLocked(st, today, op) {
			return false
		}
		if st.lastResetDate != today {
			resetLocked(st, today)
		}

		now := s.now()
		next := recordLocked(userID, st, now)
		next.TotalOperations++
		next.OperationCounts[op.String()]++

		if !synced {
			s.applyLocked(st, next, now, true)
			return true
		}

		err := s.repo.SaveDailyUsage(ctx, next)
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("user", userID).Str("operation", op.String()).
				Msg("usage write failed; keeping local count")
			s.applyLocked(st, next, now, true)
			return true
		}
		s.applyLocked(st, next, now, false)
		st.version++
		return true
	}

	s.log.Warn().Str("user", userID).Str("operation", op.String()).Msg("usage write kept conflicting")
	return false
}

func (s *Store) applyLocked(st *userState, rec models.UsageRecord, at time.Time, dirty bool) {
	st.total = rec.TotalOperations
	st.counts = rec.OperationCounts
	st.updatedAt = at
	st.dirty = dirty
}

// syncLocked brings st in line with today's stored row. The stored row wins
// unless the cache holds an unpersisted change newer than it, in which case
// that change is written back.
func (s *Store) syncLocked(ctx context.Context, userID string, st *userState, today string) error {
	rec, err := s.repo.GetDailyUsage(ctx, userID, today)
	switch {
	case errors.Is(err, store.ErrNotFound):
		rec = models.UsageRecord{UserID: userID, Date: today}
	case err != nil:
		s.log.Error().Err(err).Str("user", userID).Msg("usage read failed")
		return err
	}
	st.loaded = true
	st.loadedAt = s.now()

	if st.dirty && st.lastResetDate == today && st.updatedAt.After(rec.UpdatedAt) {
		s.log.Warn().Str("user", userID).
			Int("local", st.total).
			Int("remote", rec.TotalOperations).
			Msg("stored usage behind local count; writing back")
		pending := recordLocked(userID, st, st.updatedAt)
		pending.Version = rec.Version
		if err := s.repo.SaveDailyUsage(ctx, pending); err != nil {
			s.log.Error().Err(err).Str("user", userID).Msg("usage write-back failed")
			st.version = rec.Version
			return nil
		}
		st.version = rec.Version + 1
		st.dirty = false
		return nil
	}

	resetLocked(st, today)
	st.total = rec.TotalOperations
	for k, v := range rec.OperationCounts {
		st.counts[k] = v
	}
	st.version = rec.Version
	st.updatedAt = rec.UpdatedAt
	st.dirty = false
	return nil
}

// ResetDailyUsage zeroes the cached counters and stamps them with today's
// date. The stored row is not touched.
func (s *Store) ResetDailyUsage(userID string) {
	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	resetLocked(st, s.today())
	st.dirty = false
}

func resetLocked(st *userState, today string) {
	st.lastResetDate = today
	st.total = 0
	st.counts = map[string]int{}
}

// LoadUsage hydrates the cache from today's stored row, or zeroes it when no
// row exists. An unpersisted local change newer than the row is written back
// instead.
func (s *Store) LoadUsage(ctx context.Context, userID string) error {
	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()
	return s.syncLocked(ctx, userID, st, s.today())
}

// EnsureLoaded runs LoadUsage when the user's cache has never been loaded or
// is older than the refresh interval.
func (s *Store) EnsureLoaded(ctx context.Context, userID string) error {
	st := s.user(userID)
	st.mu.Lock()
	fresh := st.loaded && s.now().Sub(st.loadedAt) < s.refreshInterval
	st.mu.Unlock()
	if fresh {
		return nil
	}
	return s.LoadUsage(ctx, userID)
}

// GetRemainingOperations returns how many operations are left today.
func (s *Store) GetRemainingOperations(userID string) int {
	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.lastResetDate != s.today() {
		return s.dailyLimit
	}
	remaining := s.dailyLimit - st.total
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Snapshot returns today's counters for userID. A stale cache yields a zero
// record for today.
func (s *Store) Snapshot(userID string) models.UsageRecord {
	st := s.user(userID)
	st.mu.Lock()
	defer st.mu.Unlock()

	today := s.today()
	if st.lastResetDate != today {
		return models.UsageRecord{UserID: userID, Date: today, OperationCounts: map[string]int{}}
	}
	return recordLocked(userID, st, time.Time{})
}

func recordLocked(userID string, st *userState, at time.Time) models.UsageRecord {
	rec := models.UsageRecord{
		UserID:          userID,
		Date:            st.lastResetDate,
		TotalOperations: st.total,
		OperationCounts: st.counts,
		UpdatedAt:       at,
		Version:         st.version,
	}
	return rec.Clone()
}
