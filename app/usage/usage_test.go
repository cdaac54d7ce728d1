package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theChefEngineer/ai-tool-app-sub001/app/models"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/plans"
	"github.com/theChefEngineer/ai-tool-app-sub001/app/store"
)

type fakeRepo struct {
	mu       sync.Mutex
	rows     map[string]models.UsageRecord
	writes   int
	writeErr error
	readErr  error
	// beforeSave runs once ahead of the next save, outside the lock
	beforeSave func()
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: map[string]models.UsageRecord{}}
}

func (r *fakeRepo) GetDailyUsage(_ context.Context, userID, date string) (models.UsageRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.readErr != nil {
		return models.UsageRecord{}, r.readErr
	}
	rec, ok := r.rows[userID+"|"+date]
	if !ok {
		return models.UsageRecord{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *fakeRepo) SaveDailyUsage(_ context.Context, rec models.UsageRecord) error {
	r.mu.Lock()
	hook := r.beforeSave
	r.beforeSave = nil
	r.mu.Unlock()
	if hook != nil {
		hook()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes++
	if r.writeErr != nil {
		return r.writeErr
	}
	key := rec.UserID + "|" + rec.Date
	if r.rows[key].Version != rec.Version {
		return store.ErrConflict
	}
	saved := rec.Clone()
	saved.Version++
	r.rows[key] = saved
	return nil
}

// put overwrites a row the way another writer would.
func (r *fakeRepo) put(rec models.UsageRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := rec.UserID + "|" + rec.Date
	rec.Version = r.rows[key].Version + 1
	r.rows[key] = rec.Clone()
}

func (r *fakeRepo) row(userID, date string) (models.UsageRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.rows[userID+"|"+date]
	return rec, ok
}

type fakeTiers struct {
	premium map[string]bool
	calls   int
}

func (f *fakeTiers) IsPremium(_ context.Context, userID string) bool {
	f.calls++
	return f.premium[userID]
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestStore(repo Repository, tiers TierChecker, opts ...Option) (*Store, *clock) {
	clk := &clock{t: time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.Now), WithLocation(time.UTC)}, opts...)
	return New(repo, tiers, DefaultDailyLimit, opts...), clk
}

func TestRemainingAfterIncrements(t *testing.T) {
	ctx := context.Background()
	for n := 0; n < DefaultDailyLimit; n++ {
		s, _ := newTestStore(newFakeRepo(), &fakeTiers{})
		for i := 0; i < n; i++ {
			require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureParaphrase))
		}
		assert.Equal(t, DefaultDailyLimit-n, s.GetRemainingOperations("u1"), "after %d increments", n)
	}
}

func TestLimitReachedAndRollover(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	s, clk := newTestStore(repo, &fakeTiers{})

	for i := 0; i < DefaultDailyLimit; i++ {
		op := plans.MeteredOperations()[i%len(plans.MeteredOperations())]
		require.True(t, s.IncrementUsage(ctx, "u1", op))
	}
	assert.False(t, s.CanPerformOperation("u1", plans.FeatureSummary))
	assert.Equal(t, 0, s.GetRemainingOperations("u1"))

	writes := repo.writes
	assert.False(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
	assert.Equal(t, writes, repo.writes, "denied increment must not write")

	clk.Advance(24 * time.Hour)
	assert.True(t, s.CanPerformOperation("u1", plans.FeatureSummary))
	assert.Equal(t, DefaultDailyLimit, s.GetRemainingOperations("u1"))

	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
	assert.Equal(t, DefaultDailyLimit-1, s.GetRemainingOperations("u1"))

	rec, ok := repo.row("u1", "2024-03-11")
	require.True(t, ok)
	assert.Equal(t, 1, rec.TotalOperations)
	assert.Equal(t, map[string]int{"summary": 1}, rec.OperationCounts)
}

func TestNineOfTenThenDenied(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(newFakeRepo(), &fakeTiers{})

	for i := 0; i < 9; i++ {
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureParaphrase))
	}
	assert.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
	assert.Equal(t, 10, s.Snapshot("u1").TotalOperations)
	assert.False(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
	assert.Equal(t, 10, s.Snapshot("u1").TotalOperations)
}

func TestPremiumUsersAreNotCounted(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	tiers := &fakeTiers{premium: map[string]bool{"pro-user": true}}
	s, _ := newTestStore(repo, tiers)

	for i := 0; i < 3*DefaultDailyLimit; i++ {
		assert.True(t, s.IncrementUsage(ctx, "pro-user", plans.FeatureParaphrase))
	}
	assert.Equal(t, 0, s.Snapshot("pro-user").TotalOperations)
	assert.Equal(t, 0, repo.writes)
	assert.Equal(t, 3*DefaultDailyLimit, tiers.calls)
}

func TestMirrorFailureStillCountsLocally(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.writeErr = errors.New("network down")
	s, _ := newTestStore(repo, nil)

	assert.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureTranslation))
	assert.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureTranslation))
	assert.Equal(t, DefaultDailyLimit-2, s.GetRemainingOperations("u1"))
	_, ok := repo.row("u1", "2024-03-10")
	assert.False(t, ok)
}

func TestPerOperationLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(newFakeRepo(), nil, WithOperationLimits(map[string]int{"ocr": 2}))

	assert.Equal(t, 2, s.OperationLimit(plans.FeatureOCR))
	assert.Equal(t, DefaultDailyLimit, s.OperationLimit(plans.FeatureGrammar))

	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureOCR))
	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureOCR))
	assert.False(t, s.CanPerformOperation("u1", plans.FeatureOCR))
	assert.True(t, s.CanPerformOperation("u1", plans.FeatureGrammar))
}

func TestResetDailyUsage(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(newFakeRepo(), nil)

	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureGrammar))
	s.ResetDailyUsage("u1")
	snap := s.Snapshot("u1")
	assert.Equal(t, 0, snap.TotalOperations)
	assert.Equal(t, "2024-03-10", snap.Date)
	assert.Empty(t, snap.OperationCounts)
}

func TestLoadUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("hydrates from remote", func(t *testing.T) {
		repo := newFakeRepo()
		repo.put(models.UsageRecord{
			UserID: "u1", Date: "2024-03-10", TotalOperations: 7,
			OperationCounts: map[string]int{"summary": 7},
		})
		s, _ := newTestStore(repo, nil)
		require.NoError(t, s.LoadUsage(ctx, "u1"))
		assert.Equal(t, 3, s.GetRemainingOperations("u1"))
		assert.Equal(t, 7, s.Snapshot("u1").OperationCounts["summary"])
	})

	t.Run("no row resets", func(t *testing.T) {
		repo := newFakeRepo()
		s, clk := newTestStore(repo, nil)
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
		clk.Advance(24 * time.Hour)
		require.NoError(t, s.LoadUsage(ctx, "u1"))
		snap := s.Snapshot("u1")
		assert.Equal(t, "2024-03-11", snap.Date)
		assert.Equal(t, 0, snap.TotalOperations)
	})

	t.Run("local ahead of remote is re-pushed", func(t *testing.T) {
		repo := newFakeRepo()
		s, _ := newTestStore(repo, nil)

		repo.writeErr = errors.New("timeout")
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
		repo.writeErr = nil

		require.NoError(t, s.LoadUsage(ctx, "u1"))
		assert.Equal(t, 2, s.Snapshot("u1").TotalOperations)
		rec, ok := repo.row("u1", "2024-03-10")
		require.True(t, ok)
		assert.Equal(t, 2, rec.TotalOperations)
	})

	t.Run("read error keeps state", func(t *testing.T) {
		repo := newFakeRepo()
		s, _ := newTestStore(repo, nil)
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
		repo.readErr = errors.New("boom")
		assert.Error(t, s.LoadUsage(ctx, "u1"))
		assert.Equal(t, 1, s.Snapshot("u1").TotalOperations)
	})
}

func TestConcurrentIncrementsNeverExceedLimit(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(newFakeRepo(), nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.IncrementUsage(ctx, "u1", plans.FeatureParaphrase) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, DefaultDailyLimit, allowed)
	assert.Equal(t, 0, s.GetRemainingOperations("u1"))
}

func TestDayBoundaryFollowsLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 20:00 UTC on the 10th is already the 11th in Tokyo
	at := time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC)
	s := New(newFakeRepo(), nil, DefaultDailyLimit, WithClock(func() time.Time { return at }), WithLocation(tokyo))
	s.ResetDailyUsage("u1")
	assert.Equal(t, "2024-03-11", s.Snapshot("u1").Date)
}

func TestEnsureLoadedRefreshesAfterInterval(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	repo.put(models.UsageRecord{UserID: "u1", Date: "2024-03-10", TotalOperations: 4})
	s, clk := newTestStore(repo, nil)

	require.NoError(t, s.EnsureLoaded(ctx, "u1"))
	assert.Equal(t, 6, s.GetRemainingOperations("u1"))

	repo.put(models.UsageRecord{UserID: "u1", Date: "2024-03-10", TotalOperations: 9})
	require.NoError(t, s.EnsureLoaded(ctx, "u1"))
	assert.Equal(t, 6, s.GetRemainingOperations("u1"), "cache is trusted inside the interval")

	clk.Advance(DefaultRefreshInterval)
	require.NoError(t, s.EnsureLoaded(ctx, "u1"))
	assert.Equal(t, 1, s.GetRemainingOperations("u1"))
}

func TestStoresSharingOneRepositoryShareTheLimit(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	a, _ := newTestStore(repo, nil)
	b, _ := newTestStore(repo, nil)
	require.NoError(t, a.EnsureLoaded(ctx, "u1"))
	require.NoError(t, b.EnsureLoaded(ctx, "u1"))

	allowed := 0
	for i := 0; i < DefaultDailyLimit; i++ {
		if a.IncrementUsage(ctx, "u1", plans.FeatureParaphrase) {
			allowed++
		}
		if b.IncrementUsage(ctx, "u1", plans.FeatureSummary) {
			allowed++
		}
	}
	assert.Equal(t, DefaultDailyLimit, allowed)

	rec, ok := repo.row("u1", "2024-03-10")
	require.True(t, ok)
	assert.Equal(t, DefaultDailyLimit, rec.TotalOperations)
	assert.Equal(t, DefaultDailyLimit/2, rec.OperationCounts["paraphrase"])
	assert.Equal(t, DefaultDailyLimit/2, rec.OperationCounts["summary"])
}

func TestConcurrentStoresNeverExceedLimit(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	stores := []*Store{}
	for i := 0; i < 3; i++ {
		s, _ := newTestStore(repo, nil)
		stores = append(stores, s)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 60; i++ {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			if s.IncrementUsage(ctx, "u1", plans.FeatureGrammar) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(stores[i%len(stores)])
	}
	wg.Wait()

	rec, ok := repo.row("u1", "2024-03-10")
	require.True(t, ok)
	assert.LessOrEqual(t, allowed, DefaultDailyLimit)
	assert.Equal(t, allowed, rec.TotalOperations)
}

func TestConflictingWriteIsRetried(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	s, _ := newTestStore(repo, nil)

	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureOCR))

	// another process uses up the day between our read and our write
	repo.beforeSave = func() {
		repo.put(models.UsageRecord{UserID: "u1", Date: "2024-03-10", TotalOperations: DefaultDailyLimit,
			OperationCounts: map[string]int{"grammar": DefaultDailyLimit}})
	}
	assert.False(t, s.IncrementUsage(ctx, "u1", plans.FeatureOCR))
	assert.Equal(t, 0, s.GetRemainingOperations("u1"))

	rec, _ := repo.row("u1", "2024-03-10")
	assert.Equal(t, DefaultDailyLimit, rec.TotalOperations)
	assert.Zero(t, rec.OperationCounts["ocr"])
}

func TestExternalResetIsSeen(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	s, clk := newTestStore(repo, nil)

	for i := 0; i < DefaultDailyLimit; i++ {
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureGrammar))
	}
	assert.False(t, s.CanPerformOperation("u1", plans.FeatureGrammar))

	repo.put(models.UsageRecord{UserID: "u1", Date: "2024-03-10", UpdatedAt: clk.Now().Add(time.Minute)})

	require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureGrammar))
	assert.Equal(t, DefaultDailyLimit-1, s.GetRemainingOperations("u1"))

	require.NoError(t, s.LoadUsage(ctx, "u1"))
	rec, _ := repo.row("u1", "2024-03-10")
	assert.Equal(t, 1, rec.TotalOperations)
	assert.Equal(t, 1, s.Snapshot("u1").TotalOperations)
}

func TestNewerStoredRowWinsOverUnsavedCount(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo()
	s, clk := newTestStore(repo, nil)

	repo.writeErr = errors.New("timeout")
	for i := 0; i < 3; i++ {
		require.True(t, s.IncrementUsage(ctx, "u1", plans.FeatureSummary))
	}
	repo.writeErr = nil

	repo.put(models.UsageRecord{UserID: "u1", Date: "2024-03-10", UpdatedAt: clk.Now().Add(time.Minute)})
	require.NoError(t, s.LoadUsage(ctx, "u1"))

	assert.Equal(t, 0, s.Snapshot("u1").TotalOperations)
	rec, _ := repo.row("u1", "2024-03-10")
	assert.Equal(t, 0, rec.TotalOperations)
}
