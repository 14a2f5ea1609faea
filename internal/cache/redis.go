package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Domenick1991/visitbooking/config"
	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

var (
	// ErrLocked is returned when another caller holds the booking lock.
	ErrLocked = errors.New("booking is locked")
	// ErrLockUnavailable is returned when the lock could not be attempted,
	// for example because Redis is unreachable.
	ErrLockUnavailable = errors.New("booking lock unavailable")
)

// generationTTL bounds how long an idle generation counter lives.
const generationTTL = 24 * time.Hour

type RedisCache struct {
	client  *redis.Client
	sync    *redsync.Redsync
	viewTTL time.Duration
	lockTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, viewTTL, lockTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}), viewTTL, lockTTL)
}

func NewRedisCacheWithClient(client *redis.Client, viewTTL, lockTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		sync:    redsync.New(goredis.NewPool(client)),
		viewTTL: viewTTL,
		lockTTL: lockTTL,
	}
}

// GetBookingView returns the cached view and the booking's cache
// generation. A miss returns a nil view. The generation is passed back to
// SetBookingView so a view read before an invalidation is never stored.
func (c *RedisCache) GetBookingView(ctx context.Context, bookingID string) (*domain.BookingView, int64, error) {
	vals, err := c.client.MGet(ctx, bookingViewKey(bookingID), bookingGenKey(bookingID)).Result()
	if err != nil {
		return nil, 0, err
	}

	gen, err := parseGeneration(vals[1])
	if err != nil {
		return nil, 0, err
	}
	data, ok := vals[0].(string)
	if !ok {
		return nil, gen, nil
	}

	var view domain.BookingView
	if err := json.Unmarshal([]byte(data), &view); err != nil {
		return nil, gen, err
	}
	return &view, gen, nil
}

// SetBookingView stores the view only if the booking has not been
// invalidated since gen was read.
func (c *RedisCache) SetBookingView(ctx context.Context, view *domain.BookingView, gen int64) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}

	genKey := bookingGenKey(view.BookingID)
	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, genKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		current, err := parseGeneration(raw)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, bookingViewKey(view.BookingID), payload, c.viewTTL)
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return err
}

// InvalidateBooking drops the cached view and bumps the generation so
// in-flight reads cannot write a stale view back.
func (c *RedisCache) InvalidateBooking(ctx context.Context, bookingID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, bookingGenKey(bookingID))
		pipe.Expire(ctx, bookingGenKey(bookingID), generationTTL)
		pipe.Del(ctx, bookingViewKey(bookingID))
		return nil
	})
	return err
}

// LockBooking takes the per-booking lock without waiting. The returned
// func releases it.
func (c *RedisCache) LockBooking(ctx context.Context, bookingID string) (func(), error) {
	mutex := c.sync.NewMutex(bookingLockKey(bookingID),
		redsync.WithExpiry(c.lockTTL),
		redsync.WithTries(1),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var taken *redsync.ErrTaken
		if errors.As(err, &taken) || errors.Is(err, redsync.ErrFailed) {
			return nil, fmt.Errorf("%s: %w", bookingID, ErrLocked)
		}
		return nil, fmt.Errorf("%s: %w: %v", bookingID, ErrLockUnavailable, err)
	}
	return func() {
		_, _ = mutex.UnlockContext(context.WithoutCancel(ctx))
	}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func bookingViewKey(bookingID string) string {
	return "cache:booking:" + bookingID
}

func bookingGenKey(bookingID string) string {
	return "cache:booking:" + bookingID + ":gen"
}

func parseGeneration(v interface{}) (int64, error) {
	switch g := v.(type) {
	case nil:
		return 0, nil
	case string:
		if g == "" {
			return 0, nil
		}
		return strconv.ParseInt(g, 10, 64)
	default:
		return 0, fmt.Errorf("unexpected generation value %T", v)
	}
}

func bookingLockKey(bookingID string) string {
	return fmt.Sprintf("lock:booking:%s:verify", bookingID)
}
