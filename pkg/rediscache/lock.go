package rediscache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/openimsdk/tools/errs"
	"github.com/openimsdk/tools/log"
	"github.com/redis/go-redis/v9"
)

const lockRetryDelay = time.Millisecond * 100

// Locker hands out distributed locks backed by redsync's Redlock
// implementation. One Locker is shared by every cache the engine manages.
type Locker struct {
	rs *redsync.Redsync
}

func NewLocker(rdb redis.UniversalClient) *Locker {
	return &Locker{rs: redsync.New(goredis.NewPool(rdb))}
}

// TryLock attempts to take name, retrying until wait elapses. lease is the
// TTL stamped on the lock so a crashed holder cannot block others forever.
// A return of (nil, false, nil) means another holder kept the lock for the
// whole wait window; that is an expected outcome, not an error.
func (l *Locker) TryLock(ctx context.Context, name string, wait, lease time.Duration) (*Lock, bool, error) {
	tries := int(wait/lockRetryDelay) + 1
	mutex := l.rs.NewMutex(name,
		redsync.WithExpiry(lease),
		redsync.WithTries(tries),
		redsync.WithRetryDelay(lockRetryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			return nil, false, nil
		}
		return nil, false, errs.WrapMsg(err, "acquire lock", "name", name)
	}
	return &Lock{mutex: mutex, name: name}, true, nil
}

// Lock is one held distributed lock.
type Lock struct {
	mutex *redsync.Mutex
	name  string
}

// Name returns the Redis key the lock lives under.
func (l *Lock) Name() string {
	return l.name
}

// Unlock releases the lock. Release failures are logged and swallowed: the
// lease expires on its own and the guarded operation already finished.
func (l *Lock) Unlock(ctx context.Context) {
	if ok, err := l.mutex.UnlockContext(ctx); err != nil {
		log.ZWarn(ctx, "release lock failed", err, "name", l.name)
	} else if !ok {
		log.ZWarn(ctx, "lock already expired", nil, "name", l.name)
	}
}
