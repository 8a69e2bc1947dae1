package releasestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-redis/redis"

	"lbfeed/internal/services"
)

// indexSuffix names the set of stored ids. '@' never appears in a release id.
const indexSuffix = "@index"

var errRecordExists = errors.New("record already exists")

// RedisOptions configures the Redis backend.
type RedisOptions struct {
	Addr      string
	DB        int
	KeyPrefix string
}

// RedisStore keeps each release in a hash at KeyPrefix+id and tracks ids in a set.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: opts.Addr, DB: opts.DB})
	if err := client.Ping().Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return NewRedisStore(client, opts.KeyPrefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Name implements Backend.
func (s *RedisStore) Name() string { return "redis" }

// Close closes the client.
func (s *RedisStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *RedisStore) recordKey(id string) string { return s.prefix + id }

func (s *RedisStore) indexKey() string { return s.prefix + indexSuffix }

// Lookup returns the record for id if present.
func (s *RedisStore) Lookup(ctx context.Context, id string) (Record, bool, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, false, services.Wrap(services.ErrStoreIO, "releasestore", "lookup", id, err)
	}
	fields, err := s.client.HGetAll(s.recordKey(id)).Result()
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrStoreIO, "releasestore", "lookup", id, err)
	}
	if len(fields) == 0 {
		return Record{}, false, nil
	}
	entry, err := entryFromHash(id, fields)
	if err != nil {
		return Record{}, false, services.Wrap(services.ErrStoreIO, "releasestore", "lookup", id, err)
	}
	return entry.Record, true, nil
}

// Insert writes a new record inside a WATCH/MULTI transaction so an existing
// id is never overwritten.
func (s *RedisStore) Insert(ctx context.Context, record Record) error {
	if err := ctx.Err(); err != nil {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID, err)
	}
	urls, err := EncodeLinks(record.ExternalLinks)
	if err != nil {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID, err)
	}
	key := s.recordKey(record.ID)
	err = s.client.Watch(func(tx *redis.Tx) error {
		exists, err := tx.Exists(key).Result()
		if err != nil {
			return err
		}
		if exists > 0 {
			return errRecordExists
		}
		_, err = tx.Pipelined(func(pipe redis.Pipeliner) error {
			pipe.HMSet(key, map[string]interface{}{
				"id":        record.ID,
				"has_front": boolField(record.HasFrontCoverArt),
				"urls":      urls,
				"cached_at": time.Now().Unix(),
			})
			pipe.SAdd(s.indexKey(), record.ID)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return services.Wrap(services.ErrStoreIO, "releasestore", "insert", record.ID, err)
	}
	return nil
}

// List returns all entries, newest first.
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	ids, err := s.client.SMembers(s.indexKey()).Result()
	if err != nil {
		return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", "", err)
	}
	entries := make([]Entry, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", "", err)
		}
		fields, err := s.client.HGetAll(s.recordKey(id)).Result()
		if err != nil {
			return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", id, err)
		}
		if len(fields) == 0 {
			continue
		}
		entry, err := entryFromHash(id, fields)
		if err != nil {
			return nil, services.Wrap(services.ErrStoreIO, "releasestore", "list", id, err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CachedAt.Equal(entries[j].CachedAt) {
			return entries[i].CachedAt.After(entries[j].CachedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries, nil
}

// Count returns the number of indexed records.
func (s *RedisStore) Count(context.Context) (int, error) {
	n, err := s.client.SCard(s.indexKey()).Result()
	if err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "count", "", err)
	}
	return int(n), nil
}

// Remove deletes one record.
func (s *RedisStore) Remove(_ context.Context, id string) (bool, error) {
	var deleted *redis.IntCmd
	_, err := s.client.TxPipelined(func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(s.recordKey(id))
		pipe.SRem(s.indexKey(), id)
		return nil
	})
	if err != nil {
		return false, services.Wrap(services.ErrStoreIO, "releasestore", "remove", id, err)
	}
	return deleted.Val() > 0, nil
}

// Clear deletes every indexed record.
func (s *RedisStore) Clear(context.Context) (int, error) {
	ids, err := s.client.SMembers(s.indexKey()).Result()
	if err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "clear", "", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, 0, len(ids)+1)
	for _, id := range ids {
		keys = append(keys, s.recordKey(id))
	}
	keys = append(keys, s.indexKey())
	if err := s.client.Del(keys...).Err(); err != nil {
		return 0, services.Wrap(services.ErrStoreIO, "releasestore", "clear", "", err)
	}
	return len(ids), nil
}

func entryFromHash(id string, fields map[string]string) (Entry, error) {
	entry := Entry{Record: Record{ID: id}}
	if stored := fields["id"]; stored != "" && stored != id {
		return Entry{}, fmt.Errorf("hash id %q does not match key id %q", stored, id)
	}
	hasFront, ok := fields["has_front"]
	if !ok {
		return Entry{}, errors.New("hash missing has_front field")
	}
	entry.HasFrontCoverArt = hasFront == "1" || strings.EqualFold(hasFront, "true")
	links, err := DecodeLinks(fields["urls"])
	if err != nil {
		return Entry{}, err
	}
	entry.ExternalLinks = links
	if raw := fields["cached_at"]; raw != "" {
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil && unix > 0 {
			entry.CachedAt = time.Unix(unix, 0)
		}
	}
	return entry, nil
}

func boolField(value bool) string {
	if value {
		return "1"
	}
	return "0"
}
