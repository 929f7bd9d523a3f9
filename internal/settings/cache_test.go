package settings

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/cashrecon/internal/shared"
)

type stubSource struct {
	calls    atomic.Int32
	settings map[int64]Settings
	delay    time.Duration
}

func (s *stubSource) Get(ctx context.Context, storeID int64) (Settings, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	v, ok := s.settings[storeID]
	if !ok {
		return Settings{}, ErrNotFound
	}
	return v, nil
}

func (s *stubSource) StoresWithPurgeDay(ctx context.Context, day int) ([]int64, error) {
	var ids []int64
	for id, v := range s.settings {
		if v.PhotoPurgeDayOfMonth == day {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func newTestCache(t *testing.T, src Source) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(src, client, time.Minute, nil), mr
}

func sampleSettings() Settings {
	return Settings{
		StoreID:               7,
		LedgerEnabled:         true,
		DepositToleranceCents: 100,
		DenomToleranceCents:   500,
		ExpectedDrawerCents:   20000,
		PhotoRetentionDays:    90,
		PhotoPurgeDayOfMonth:  15,
	}
}

func TestCacheServesFromRedisAfterFirstLoad(t *testing.T) {
	src := &stubSource{settings: map[int64]Settings{7: sampleSettings()}}
	cache, mr := newTestCache(t, src)
	ctx := context.Background()

	first, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, sampleSettings(), first)
	assert.True(t, mr.Exists(shared.SettingsCacheKey(7)))

	second, err := cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())

	mr.FastForward(2 * time.Minute)
	_, err = cache.Get(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestCacheCollapsesConcurrentLoads(t *testing.T) {
	src := &stubSource{settings: map[int64]Settings{7: sampleSettings()}, delay: 50 * time.Millisecond}
	cache, _ := newTestCache(t, src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := cache.Get(context.Background(), 7)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestCacheDegradesWhenRedisDown(t *testing.T) {
	src := &stubSource{settings: map[int64]Settings{7: sampleSettings()}}
	cache, mr := newTestCache(t, src)
	mr.Close()

	got, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.DepositToleranceCents)
}

func TestCacheMissingStore(t *testing.T) {
	cache, _ := newTestCache(t, &stubSource{settings: map[int64]Settings{}})
	_, err := cache.Get(context.Background(), 99)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestInvalidate(t *testing.T) {
	src := &stubSource{settings: map[int64]Settings{7: sampleSettings()}}
	cache, mr := newTestCache(t, src)
	_, err := cache.Get(context.Background(), 7)
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(context.Background(), 7))
	assert.False(t, mr.Exists(shared.SettingsCacheKey(7)))
}

func TestSettingsValidate(t *testing.T) {
	require.NoError(t, sampleSettings().Validate())

	bad := sampleSettings()
	bad.PhotoPurgeDayOfMonth = 29
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)

	bad = sampleSettings()
	bad.DepositToleranceCents = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalid)
}
