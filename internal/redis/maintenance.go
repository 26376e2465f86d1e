package redis

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// maintenanceKey holds "1" while the backend is in maintenance mode.
const maintenanceKey = "kutter:maintenance"

// MaintenanceStore reads and flips the runtime maintenance switch. The
// switch lives in Redis so it can be toggled without a deploy.
type MaintenanceStore struct {
	rdb *redis.Client
}

func NewMaintenanceStore(rdb *redis.Client) *MaintenanceStore {
	return &MaintenanceStore{rdb: rdb}
}

// Enabled reports whether maintenance mode is on. A missing key means
// off; a Redis failure is returned so the caller can decide to fail
// open.
func (s *MaintenanceStore) Enabled(ctx context.Context) (bool, error) {
	val, err := s.rdb.Get(ctx, maintenanceKey).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return val == "1", nil
}

// Set turns maintenance mode on or off.
func (s *MaintenanceStore) Set(ctx context.Context, enabled bool) error {
	if !enabled {
		return s.rdb.Del(ctx, maintenanceKey).Err()
	}
	return s.rdb.Set(ctx, maintenanceKey, "1", 0).Err()
}
