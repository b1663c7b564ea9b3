package loginlog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockKeyPrefix        = "loginlog:lock:"
	defaultLockTTL       = 30 * time.Second
	defaultRetryInterval = 50 * time.Millisecond
)

// 自分のトークンが残っている場合だけ削除する
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker は Redis の SET NX を使ったプロセス間ロックです。
type RedisLocker struct {
	rdb           *redis.Client
	key           string
	ttl           time.Duration
	retryInterval time.Duration
}

// NewRedisLocker はログファイル path 用の RedisLocker を作成します。
func NewRedisLocker(rdb *redis.Client, path string) *RedisLocker {
	return &RedisLocker{
		rdb:           rdb,
		key:           lockKey(path),
		ttl:           defaultLockTTL,
		retryInterval: defaultRetryInterval,
	}
}

// Lock はロックを取得できるまで待ちます。ctx が終了した場合はそのエラーを返します。
func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	if l.rdb == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	token := uuid.NewString()

	ticker := time.NewTicker(l.retryInterval)
	defer ticker.Stop()

	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire redis lock %s: %w", l.key, err)
		}
		if ok {
			return func() { l.release(token) }, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release の失敗は無視する（TTL 経過で解放される）。
func (l *RedisLocker) release(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
}

func lockKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return lockKeyPrefix + path
}
