package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wfunc/partyserver/room"
)

// RoomIndex publishes room summaries for listing.
type RoomIndex interface {
	Put(ctx context.Context, s room.Summary) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]room.Summary, error)
}

// RedisIndex keeps one JSON key per room with a TTL, plus a set of ids.
// Rooms whose key expired are pruned from the set on List.
type RedisIndex struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ RoomIndex = (*RedisIndex)(nil)

func NewRedisIndex(client *redis.Client, prefix string, ttl time.Duration) *RedisIndex {
	if prefix == "" {
		prefix = "party"
	}
	return &RedisIndex{client: client, prefix: prefix, ttl: ttl}
}

func (x *RedisIndex) Put(ctx context.Context, s room.Summary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	pipe := x.client.TxPipeline()
	pipe.Set(ctx, roomKey(x.prefix, s.ID), data, x.ttl)
	pipe.SAdd(ctx, roomSetKey(x.prefix), s.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (x *RedisIndex) Delete(ctx context.Context, id string) error {
	pipe := x.client.TxPipeline()
	pipe.Del(ctx, roomKey(x.prefix, id))
	pipe.SRem(ctx, roomSetKey(x.prefix), id)
	_, err := pipe.Exec(ctx)
	return err
}

func (x *RedisIndex) Get(ctx context.Context, id string) (room.Summary, bool, error) {
	data, err := x.client.Get(ctx, roomKey(x.prefix, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return room.Summary{}, false, nil
	}
	if err != nil {
		return room.Summary{}, false, err
	}
	var s room.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return room.Summary{}, false, err
	}
	return s, true, nil
}

func (x *RedisIndex) List(ctx context.Context) ([]room.Summary, error) {
	ids, err := x.client.SMembers(ctx, roomSetKey(x.prefix)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []room.Summary{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKey(x.prefix, id)
	}
	values, err := x.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]room.Summary, 0, len(values))
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		var s room.Summary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if len(stale) > 0 {
		if err := x.client.SRem(ctx, roomSetKey(x.prefix), stale...).Err(); err != nil {
			return nil, err
		}
	}
	sortSummaries(out)
	return out, nil
}

// RegistryIndex lists straight from the in-process registry. Writes are
// no-ops since the registry is the source of truth.
type RegistryIndex struct {
	rooms *room.Manager
}

var _ RoomIndex = (*RegistryIndex)(nil)

func NewRegistryIndex(rooms *room.Manager) *RegistryIndex {
	return &RegistryIndex{rooms: rooms}
}

func (RegistryIndex) Put(context.Context, room.Summary) error { return nil }

func (RegistryIndex) Delete(context.Context, string) error { return nil }

func (x *RegistryIndex) List(context.Context) ([]room.Summary, error) {
	return x.rooms.Summaries(), nil
}

func sortSummaries(s []room.Summary) {
	sort.Slice(s, func(i, j int) bool {
		if !s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].CreatedAt.Before(s[j].CreatedAt)
		}
		return s[i].ID < s[j].ID
	})
}
