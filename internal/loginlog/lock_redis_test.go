package loginlog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/password-gate/internal/config"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func newTestRedisLocker(rdb *redis.Client, path string) *RedisLocker {
	locker := NewRedisLocker(rdb, path)
	locker.retryInterval = 5 * time.Millisecond
	return locker
}

func TestLockKeyUsesAbsolutePath(t *testing.T) {
	key := lockKey("user_login.json")
	require.True(t, strings.HasPrefix(key, lockKeyPrefix))
	assert.True(t, filepath.IsAbs(strings.TrimPrefix(key, lockKeyPrefix)))
}

func TestRedisLockerUnreachableServer(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer rdb.Close()

	locker := NewRedisLocker(rdb, "user_login.json")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	unlock, err := locker.Lock(ctx)
	require.Error(t, err)
	assert.Nil(t, unlock)
}

func TestRedisLockerNilClient(t *testing.T) {
	locker := NewRedisLocker(nil, "user_login.json")
	_, err := locker.Lock(context.Background())
	assert.Error(t, err)
}

func TestRedisLockerHeldLockBlocksUntilReleased(t *testing.T) {
	mr, rdb := newMiniredis(t)
	locker := newTestRedisLocker(rdb, "user_login.json")

	unlock, err := locker.Lock(context.Background())
	require.NoError(t, err)
	assert.True(t, mr.Exists(locker.key))
	assert.Equal(t, defaultLockTTL, mr.TTL(locker.key))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	second, err := locker.Lock(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, second)

	unlock()
	assert.False(t, mr.Exists(locker.key))

	again, err := locker.Lock(context.Background())
	require.NoError(t, err)
	again()
}

func TestRedisLockerWaiterAcquiresAfterRelease(t *testing.T) {
	_, rdb := newMiniredis(t)
	locker := newTestRedisLocker(rdb, "user_login.json")

	unlock, err := locker.Lock(context.Background())
	require.NoError(t, err)

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		next, err := locker.Lock(ctx)
		if err == nil {
			next()
		}
		acquired <- err
	}()

	select {
	case err := <-acquired:
		t.Fatalf("lock acquired while held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not acquire lock after release")
	}
}

func TestRedisLockerReleaseKeepsForeignToken(t *testing.T) {
	mr, rdb := newMiniredis(t)
	locker := newTestRedisLocker(rdb, "user_login.json")

	unlock, err := locker.Lock(context.Background())
	require.NoError(t, err)

	// TTL 切れの後に別プロセスが取り直した状態
	require.NoError(t, mr.Set(locker.key, "other-owner"))
	unlock()

	got, err := mr.Get(locker.key)
	require.NoError(t, err)
	assert.Equal(t, "other-owner", got)
}

func TestAppendersSharingRedisLockKeepEveryEntry(t *testing.T) {
	_, rdb := newMiniredis(t)
	cfg := &config.Config{
		LoginLogPath:        filepath.Join(t.TempDir(), "user_login.json"),
		LoginLogLockTimeout: 10 * time.Second,
	}
	// 別プロセスを想定し、Appender ごとに独立した mutex と RedisLocker を持たせる
	appenders := []*Appender{
		NewAppender(cfg, newTestRedisLocker(rdb, cfg.LoginLogPath), nil),
		NewAppender(cfg, newTestRedisLocker(rdb, cfg.LoginLogPath), nil),
	}
	const perAppender = 20

	var wg sync.WaitGroup
	for i, a := range appenders {
		for j := 0; j < perAppender; j++ {
			wg.Add(1)
			go func(a *Appender, name string) {
				defer wg.Done()
				_ = a.Append(context.Background(), testEntry(name, baseTime, time.Second))
			}(a, fmt.Sprintf("p%du%d", i, j))
		}
	}
	wg.Wait()

	entries, err := appenders[0].Entries()
	require.NoError(t, err)
	assert.Len(t, entries, len(appenders)*perAppender)
	for _, a := range appenders {
		assert.Zero(t, a.Failures())
	}
}
