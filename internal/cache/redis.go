package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisCache struct {
	Client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(url string) (*RedisCache, error) {
	client := redis.NewClient(
		&redis.Options{
			Addr:     url,
			Password: "",
			DB:       0,
		},
	)
	return NewRedisCacheFromClient(client), nil
}

func NewRedisCacheFromClient(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client, ttl: SeatMapTTL}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.Client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.Client.Close()
}

/*
* seat map of a showtime
 */

// GetSeatMap returns the cached seat map, and false on a miss.
func (r *RedisCache) GetSeatMap(ctx context.Context, showtimeID uint) (*SeatMap, bool, error) {
	data, err := r.Client.Get(ctx, MakeSeatMapKey(showtimeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var seatMap SeatMap
	if err := json.Unmarshal(data, &seatMap); err != nil {
		return nil, false, err
	}
	return &seatMap, true, nil
}

// SeatMapVersion returns the current version of a showtime's seats. Read it
// before loading the seat map from the database and hand it to PutSeatMap.
func (r *RedisCache) SeatMapVersion(ctx context.Context, showtimeID uint) (int64, error) {
	version, err := r.Client.Get(ctx, MakeSeatMapVersionKey(showtimeID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// PutSeatMap stores seatMap unless the showtime was invalidated after
// version was read. It reports whether the map was stored.
func (r *RedisCache) PutSeatMap(ctx context.Context, showtimeID uint, version int64, seatMap *SeatMap) (bool, error) {
	payload, err := json.Marshal(seatMap)
	if err != nil {
		return false, err
	}
	keys := []string{MakeSeatMapVersionKey(showtimeID), MakeSeatMapKey(showtimeID)}
	res, err := populateSeatMapScript.Run(ctx, r.Client, keys, version, string(payload), r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return res == 1, nil
}

// InvalidateSeatMap drops the cached map and bumps the version so loads
// that started earlier cannot write it back.
func (r *RedisCache) InvalidateSeatMap(ctx context.Context, showtimeID uint) error {
	keys := []string{MakeSeatMapVersionKey(showtimeID), MakeSeatMapKey(showtimeID)}
	return invalidateSeatMapScript.Run(ctx, r.Client, keys).Err()
}
