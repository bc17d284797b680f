package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps records as JSON strings with a TTL and a per-query
// ID list. Expiry handles pruning; Prune only trims dangling IDs from
// the lists. Search builds a throwaway in-memory index over the query's
// records, which stay small per query.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing redis client. ttl bounds record
// lifetime; zero means records never expire.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func recordKey(queryID, id string) string {
	return fmt.Sprintf("context:%s:rec:%s", queryID, id)
}

func idsKey(queryID string) string {
	return fmt.Sprintf("context:%s:ids", queryID)
}

func (s *RedisStore) Put(ctx context.Context, rec Record) (Pointer, error) {
	if rec.QueryID == "" {
		return Pointer{}, fmt.Errorf("context put: query id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return Pointer{}, fmt.Errorf("encode record: %w", err)
	}
	if err := s.client.Set(ctx, recordKey(rec.QueryID, rec.ID), data, s.ttl).Err(); err != nil {
		return Pointer{}, fmt.Errorf("write record: %w", err)
	}
	if err := s.client.RPush(ctx, idsKey(rec.QueryID), rec.ID).Err(); err != nil {
		return Pointer{}, fmt.Errorf("append record id: %w", err)
	}
	if s.ttl > 0 {
		_ = s.client.Expire(ctx, idsKey(rec.QueryID), s.ttl).Err()
	}
	return rec.pointer(), nil
}

func (s *RedisStore) records(ctx context.Context, queryID string) ([]Record, error) {
	ids, err := s.client.LRange(ctx, idsKey(queryID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("list record ids: %w", err)
	}
	out := make([]Record, 0, len(ids))
	for _, id := range ids {
		val, err := s.client.Get(ctx, recordKey(queryID, id)).Result()
		if err == redis.Nil {
			continue // expired
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		var rec Record
		if err := json.Unmarshal([]byte(val), &rec); err != nil {
			return nil, fmt.Errorf("decode record %s/%s: %w", queryID, id, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *RedisStore) Pointers(ctx context.Context, queryID string) ([]Pointer, error) {
	recs, err := s.records(ctx, queryID)
	if err != nil {
		return nil, err
	}
	out := make([]Pointer, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.pointer())
	}
	return out, nil
}

func (s *RedisStore) Read(ctx context.Context, queryID, id string) (Record, error) {
	val, err := s.client.Get(ctx, recordKey(queryID, id)).Result()
	if err == redis.Nil {
		return Record{}, fmt.Errorf("record %s/%s: %w", queryID, id, ErrRecordNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("read record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return Record{}, fmt.Errorf("decode record %s/%s: %w", queryID, id, err)
	}
	return rec, nil
}

func (s *RedisStore) Search(ctx context.Context, queryID, text string, limit int) ([]Pointer, error) {
	if limit <= 0 {
		limit = 10
	}
	recs, err := s.records(ctx, queryID)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("context search index: %w", err)
	}
	defer index.Close()

	byID := make(map[string]Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
		if err := index.Index(rec.ID, indexDoc{QueryID: rec.QueryID, ToolName: rec.ToolName, Output: rec.Output}); err != nil {
			return nil, fmt.Errorf("context search index: %w", err)
		}
	}

	req := bleve.NewSearchRequestOptions(bleve.NewQueryStringQuery(text), limit, 0, false)
	res, err := index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("context search: %w", err)
	}

	out := make([]Pointer, 0, len(res.Hits))
	for _, hit := range res.Hits {
		if rec, ok := byID[hit.ID]; ok {
			out = append(out, rec.pointer())
		}
	}
	return out, nil
}

// Prune removes dangling IDs left behind after record keys expired.
func (s *RedisStore) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	var cursor uint64
	pruned := 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, "context:*:ids", 100).Result()
		if err != nil {
			return pruned, fmt.Errorf("scan context keys: %w", err)
		}
		for _, key := range keys {
			ids, err := s.client.LRange(ctx, key, 0, -1).Result()
			if err != nil {
				return pruned, err
			}
			queryID := key[len("context:") : len(key)-len(":ids")]
			for _, id := range ids {
				exists, err := s.client.Exists(ctx, recordKey(queryID, id)).Result()
				if err != nil {
					return pruned, err
				}
				if exists == 0 {
					if err := s.client.LRem(ctx, key, 0, id).Err(); err != nil {
						return pruned, err
					}
					pruned++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return pruned, nil
		}
	}
}

func (s *RedisStore) Close() error {
	return nil
}
