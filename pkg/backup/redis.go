package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/fortix-network/fortix/pkg/util"
)

// RedisStore keeps snapshots in a Redis hash per device and block path,
// keyed by timestamp, so the most recent pre-change config is one HGET away
// from any operator host.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a Redis-backed store for the given address.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:        addr,
			DialTimeout: 5 * time.Second,
		}),
	}
}

func backupKey(device string, path []string) string {
	return fmt.Sprintf("fortix:backup|%s|%s", device, pathSlug(path))
}

// Save stores the snapshot under backup|<device>|<path> with a timestamp
// field and returns "<key>@<timestamp>".
func (s *RedisStore) Save(ctx context.Context, device string, path []string, config string) (string, error) {
	key := backupKey(device, path)
	stamp := time.Now().Format(time.RFC3339)

	if err := s.client.HSet(ctx, key, stamp, config).Err(); err != nil {
		return "", fmt.Errorf("saving backup to redis: %w", err)
	}

	util.WithDevice(device).Debugf("backup written to redis key %s field %s", key, stamp)
	return key + "@" + stamp, nil
}

// Latest returns the most recent snapshot for a device and path, or
// util.ErrNotFound if none exists.
func (s *RedisStore) Latest(ctx context.Context, device string, path []string) (string, error) {
	fields, err := s.client.HGetAll(ctx, backupKey(device, path)).Result()
	if err != nil {
		return "", fmt.Errorf("reading backups from redis: %w", err)
	}
	if len(fields) == 0 {
		return "", util.ErrNotFound
	}

	latest := ""
	for stamp := range fields {
		if stamp > latest {
			latest = stamp
		}
	}
	return fields[latest], nil
}

// Close releases the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
