package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Locker は複数のワーカー間で同じ実行枠を二重に処理しないための排他ロック。
type Locker interface {
	// TryLock はロックの取得を試みる。取得できなかった場合はokがfalseとなる。
	// 取得できた場合はreleaseを呼び出して解放する。
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// NopLocker は常にロックを取得できるLocker。単一プロセスで実行する場合に使用する。
type NopLocker struct{}

// TryLock はLockerを実装する。
func (NopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// 自分が取得したロックのみ削除する
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker はRedisのSET NX PXによる排他ロック。
type RedisLocker struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

// NewRedisLocker はRedisLockerを生成する。
func NewRedisLocker(client *redis.Client, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{client: client, prefix: "bptogether:lock:", logger: logger}
}

// NewRedisClient はREDIS_URL形式の接続文字列からRedisクライアントを生成し、疎通を確認する。
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// TryLock はLockerを実装する。
func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", fullKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// 呼び出し元のキャンセル後でも解放できるよう切り離す
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		l.release(rctx, fullKey, token)
	}
	return release, true, nil
}

// release はtokenで取得したロックを解放する。
// 失敗してもロックはTTLで失効するため、ログのみ記録する。
func (l *RedisLocker) release(ctx context.Context, fullKey, token string) {
	if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
		l.logger.Error("ロックの解放に失敗しました",
			slog.String("key", fullKey),
			slog.String("error", err.Error()),
		)
	}
}

var (
	_ Locker = NopLocker{}
	_ Locker = (*RedisLocker)(nil)
)
