package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	id "bunkhouse/pkg/domain"
	"bunkhouse/pkg/platform/sentinel"
)

const keyPrefix = "bunkhouse:nid:"

// Redis implements Index on a shared Redis instance so every node sees the
// same reservations. Entries have no TTL: a national ID stays claimed until
// the worker is removed.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Reserve(ctx context.Context, nationalID id.NationalID, workerID id.WorkerID) error {
	key := keyPrefix + nationalID.String()
	ok, err := r.client.SetNX(ctx, key, workerID.String(), 0).Result()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", nationalID, err)
	}
	if ok {
		return nil
	}
	holder, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("reserve %s: %w", nationalID, err)
	}
	if holder != workerID.String() {
		return sentinel.ErrConflict
	}
	return nil
}

func (r *Redis) Release(ctx context.Context, nationalID id.NationalID) error {
	if err := r.client.Del(ctx, keyPrefix+nationalID.String()).Err(); err != nil {
		return fmt.Errorf("release %s: %w", nationalID, err)
	}
	return nil
}

func (r *Redis) Lookup(ctx context.Context, nationalID id.NationalID) (id.WorkerID, error) {
	holder, err := r.client.Get(ctx, keyPrefix+nationalID.String()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return id.WorkerID{}, sentinel.ErrNotFound
		}
		return id.WorkerID{}, fmt.Errorf("lookup %s: %w", nationalID, err)
	}
	workerID, err := id.ParseWorkerID(holder)
	if err != nil {
		return id.WorkerID{}, fmt.Errorf("lookup %s: corrupt index entry: %w", nationalID, err)
	}
	return workerID, nil
}
