package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"prereport-service/internal/common/logger"
	"prereport-service/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return New(rdb, time.Minute, 5*time.Minute, logger.NewTestLogger(t)), mr, rdb
}

func TestDetailRoundTrip(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	_, ok := c.Detail(ctx, 5)
	assert.False(t, ok)

	c.StoreDetail(ctx, &models.ReportDetail{
		PreReport:      &models.PreReport{ID: 5, LeadType: models.LeadTypeClient, CurrentStep: 2},
		ClientLeadData: models.LeadData{"entityName": "Acme"},
	})
	assert.True(t, mr.Exists(DetailKey(5)))
	assert.Equal(t, time.Minute, mr.TTL(DetailKey(5)))

	detail, ok := c.Detail(ctx, 5)
	require.True(t, ok)
	assert.Equal(t, 2, detail.PreReport.CurrentStep)
	assert.Equal(t, "Acme", detail.ClientLeadData["entityName"])

	c.InvalidateDetail(ctx, 5)
	assert.False(t, mr.Exists(DetailKey(5)))
}

func TestDetail_CorruptEntryIsAMiss(t *testing.T) {
	c, mr, _ := newTestCache(t)
	require.NoError(t, mr.Set(DetailKey(9), "{not json"))

	_, ok := c.Detail(context.Background(), 9)
	assert.False(t, ok)
}

func TestDetailOrLoad_SkipsWriteBackAfterInvalidation(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	loads := 0
	load := func(ctx context.Context) (*models.ReportDetail, error) {
		loads++
		if loads == 1 {
			// a mutation lands while the first read is loading
			c.InvalidateDetail(ctx, 5)
		}
		return &models.ReportDetail{PreReport: &models.PreReport{ID: 5, CurrentStep: loads}}, nil
	}

	detail, err := c.DetailOrLoad(ctx, 5, load)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.PreReport.CurrentStep)
	assert.False(t, mr.Exists(DetailKey(5)))
	assert.True(t, mr.Exists(detailGenerationKey(5)))

	detail, err = c.DetailOrLoad(ctx, 5, load)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.PreReport.CurrentStep)
	assert.True(t, mr.Exists(DetailKey(5)))
	assert.Equal(t, time.Minute, mr.TTL(DetailKey(5)))

	detail, err = c.DetailOrLoad(ctx, 5, load)
	require.NoError(t, err)
	assert.Equal(t, 2, detail.PreReport.CurrentStep)
	assert.Equal(t, 2, loads)
}

func TestDetailOrLoad_GenerationReadFailureSkipsWriteBack(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb, time.Minute, time.Minute, logger.NewNoOpLogger())

	mock.ExpectGet(DetailKey(3)).RedisNil()
	mock.ExpectGet(detailGenerationKey(3)).SetErr(errors.New("i/o timeout"))

	detail, err := c.DetailOrLoad(context.Background(), 3, func(context.Context) (*models.ReportDetail, error) {
		return &models.ReportDetail{PreReport: &models.PreReport{ID: 3}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), detail.PreReport.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetailOrLoad_PropagatesLoadError(t *testing.T) {
	c, mr, _ := newTestCache(t)

	_, err := c.DetailOrLoad(context.Background(), 8, func(context.Context) (*models.ReportDetail, error) {
		return nil, errors.New("report not found")
	})
	assert.EqualError(t, err, "report not found")
	assert.False(t, mr.Exists(DetailKey(8)))
}

func TestClients_CacheAside(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	load := func(context.Context) ([]models.Client, error) {
		calls++
		return []models.Client{{ID: 1, Name: "Acme"}}, nil
	}

	first, err := c.Clients(ctx, load)
	require.NoError(t, err)
	second, err := c.Clients(ctx, load)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	require.NoError(t, c.InvalidateLookups(ctx))
	_, err = c.Clients(ctx, load)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestProducts_LoaderErrorIsNotCached(t *testing.T) {
	c, mr, _ := newTestCache(t)
	boom := errors.New("db down")

	_, err := c.Products(context.Background(), 3, func(context.Context) ([]models.Product, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(ProductsKey(3)))
}

func TestInvalidateLookups_RemovesEveryProductList(t *testing.T) {
	c, mr, _ := newTestCache(t)
	ctx := context.Background()

	for _, id := range []int64{1, 2} {
		_, err := c.Products(ctx, id, func(context.Context) ([]models.Product, error) {
			return []models.Product{{ID: 10, ClientID: 1, Name: "Bolts"}}, nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, c.InvalidateLookups(ctx))
	assert.False(t, mr.Exists(ProductsKey(1)))
	assert.False(t, mr.Exists(ProductsKey(2)))
}

func TestGetOrLoad_RedisFailureFallsThrough(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	c := New(rdb, time.Minute, time.Minute, logger.NewNoOpLogger())

	mock.ExpectGet(ClientsKey()).SetErr(errors.New("connection refused"))

	clients, err := c.Clients(context.Background(), func(context.Context) ([]models.Client, error) {
		return []models.Client{{ID: 2, Name: "Globex"}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, clients, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilCacheCallsLoader(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	clients, err := c.Clients(ctx, func(context.Context) ([]models.Client, error) {
		return []models.Client{{ID: 1}}, nil
	})
	require.NoError(t, err)
	assert.Len(t, clients, 1)

	_, ok := c.Detail(ctx, 1)
	assert.False(t, ok)
	detail, err := c.DetailOrLoad(ctx, 1, func(context.Context) (*models.ReportDetail, error) {
		return &models.ReportDetail{PreReport: &models.PreReport{ID: 1}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), detail.PreReport.ID)
	c.InvalidateDetail(ctx, 1)
	assert.NoError(t, c.InvalidateLookups(ctx))
}

func TestRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	locker := NewRedisLocker(rdb)
	ctx := context.Background()

	release, err := locker.Acquire(ctx, 5, 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, mr.TTL(LockKey(5)))

	_, err = locker.Acquire(ctx, 5, 30*time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := locker.Acquire(ctx, 6, 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, other(ctx))

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(LockKey(5)))

	again, err := locker.Acquire(ctx, 5, 30*time.Second)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}

func TestRedisLocker_ExpiredLockIsNotStolenOnRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	locker := NewRedisLocker(rdb)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, 5, time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Acquire(ctx, 5, 30*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(LockKey(5)))
	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists(LockKey(5)))
}

func TestMemoryLocker(t *testing.T) {
	locker := NewMemoryLocker()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	locker.clock = func() time.Time { return now }
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, 1, time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	now = now.Add(2 * time.Second)
	fresh, err := locker.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	_, err = locker.Acquire(ctx, 1, time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, fresh(ctx))
	release, err := locker.Acquire(ctx, 1, time.Second)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}
