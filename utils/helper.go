package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
)

var ErrLockNotObtained = errors.New("lock is held by another run")

func NewTrue() *bool {
	b := true
	return &b
}

func NewFalse() *bool {
	b := false
	return &b
}

// StartOfDay is local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

// ParseDateInLocation parses YYYY-MM-DD as local midnight.
func ParseDateInLocation(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02", value, loc)
}

// ObtainStoreLock takes a redis lock on lockType:key and returns the release func.
// A nil locker means redis is not configured; the returned release is then a no-op.
func ObtainStoreLock(ctx context.Context, locker *redislock.Client, lockType string, key string, ttl time.Duration) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	lockKey := fmt.Sprintf("%s:%s", lockType, key)
	lock, err := locker.Obtain(ctx, lockKey, ttl, nil)
	if err == redislock.ErrNotObtained {
		return nil, fmt.Errorf("%w: %s", ErrLockNotObtained, lockKey)
	} else if err != nil {
		return nil, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, nil
}
