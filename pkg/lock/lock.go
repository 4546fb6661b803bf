// Package lock 提供按 key 互斥的短期锁，用于保证同一会话同时只有一个聊天流。
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockLost 表示锁已过期并可能被其他持有者获取。
var ErrLockLost = errors.New("lock lost")

// Lease 是一次成功加锁的凭证。Release 可重复调用。
type Lease interface {
	// Refresh 把锁的有效期重置为 ttl，锁已不属于当前持有者时返回 ErrLockLost。
	Refresh(ctx context.Context, ttl time.Duration) error
	Release()
}

// Locker 尝试获取 key 上的锁。获取失败时 ok 为 false，不阻塞等待。
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (lease Lease, ok bool, err error)
}

// 只有持有者 token 匹配时才删除，避免误删过期后被他人重新获取的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker 基于 SET NX PX 的分布式锁，多实例部署时使用。
type RedisLocker struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisLocker 创建一个 RedisLocker，所有 key 自动加上 prefix。
func NewRedisLocker(rdb *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{rdb: rdb, prefix: prefix}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	fullKey := l.prefix + key
	holder := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, fullKey, holder, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	return &redisLease{rdb: l.rdb, key: fullKey, holder: holder}, true, nil
}

type redisLease struct {
	rdb    *redis.Client
	key    string
	holder string
	once   sync.Once
}

func (r *redisLease) Refresh(ctx context.Context, ttl time.Duration) error {
	n, err := refreshScript.Run(ctx, r.rdb, []string{r.key}, r.holder, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLockLost
	}
	return nil
}

func (r *redisLease) Release() {
	r.once.Do(func() {
		// 请求上下文可能已取消，释放时使用独立的超时
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, r.rdb, []string{r.key}, r.holder).Err()
	})
}

// MemoryLocker 是进程内实现，单实例或未配置 Redis 时使用。
type MemoryLocker struct {
	mu   sync.Mutex
	held map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	holder    string
	expiresAt time.Time
}

// NewMemoryLocker 创建一个 MemoryLocker。
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{held: make(map[string]memoryEntry), now: time.Now}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lease, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, exists := l.held[key]; exists && now.Before(e.expiresAt) {
		return nil, false, nil
	}
	holder := uuid.NewString()
	l.held[key] = memoryEntry{holder: holder, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, holder: holder}, true, nil
}

type memoryLease struct {
	locker *MemoryLocker
	key    string
	holder string
	once   sync.Once
}

func (m *memoryLease) Refresh(_ context.Context, ttl time.Duration) error {
	l := m.locker
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	e, exists := l.held[m.key]
	if !exists || e.holder != m.holder || !now.Before(e.expiresAt) {
		return ErrLockLost
	}
	l.held[m.key] = memoryEntry{holder: m.holder, expiresAt: now.Add(ttl)}
	return nil
}

func (m *memoryLease) Release() {
	m.once.Do(func() {
		l := m.locker
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, exists := l.held[m.key]; exists && e.holder == m.holder {
			delete(l.held, m.key)
		}
	})
}
