package reservation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/chative-party-booking/booking"
)

var ErrLockUnavailable = errors.New("day lease backend unavailable")

const (
	defaultLeaseKeyPrefix = "partybot:day-lease:"
	defaultLeaseTTL       = 30 * time.Second
)

var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisDayLocker holds a short lease per date while a booking write is in
// flight, so two processes cannot pass the day check for the same date at once.
type RedisDayLocker struct {
	client    redis.Cmdable
	keyPrefix string
	ttl       time.Duration
}

func NewRedisDayLocker(client redis.Cmdable, keyPrefix string, ttl time.Duration) (*RedisDayLocker, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultLeaseKeyPrefix
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisDayLocker{client: client, keyPrefix: prefix, ttl: ttl}, nil
}

func (l *RedisDayLocker) Lock(ctx context.Context, day time.Time) (func(), error) {
	key := l.keyPrefix + day.Format(booking.DateLayout)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLockUnavailable, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: another booking for %s is in progress", ErrDayUnavailable, day.Format(booking.DateLayout))
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseLease.Run(releaseCtx, l.client, []string{key}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("day lease release failed, waiting for ttl")
		}
	}, nil
}
