package repository

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const hasAdminKey = "scaffold:hasAdmin"

// AdminFlagRepository keeps the has-admin flag in redis. The flag is
// written once when the first admin appears and never reset, so a
// missing key is the only state that forces a directory scan.
type AdminFlagRepository struct {
	rdb *redis.Client
}

func NewAdminFlagRepository(rdb *redis.Client) *AdminFlagRepository {
	return &AdminFlagRepository{rdb: rdb}
}

func (r *AdminFlagRepository) HasAdmin(ctx context.Context) (bool, bool, error) {
	val, err := r.rdb.Get(ctx, hasAdminKey).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return val == "1", true, nil
}

func (r *AdminFlagRepository) MarkHasAdmin(ctx context.Context) error {
	return r.rdb.Set(ctx, hasAdminKey, "1", 0).Err()
}
