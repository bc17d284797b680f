package contextstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	ctx := context.Background()
	queryID := HashQuery("test query")

	ptr, err := s.Put(ctx, Record{
		QueryID:    queryID,
		TaskID:     "iter1_task_1",
		ToolName:   "web_search",
		Output:     "Berlin is sunny today.",
		SourceURLs: []string{"https://example.com/weather"},
	})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if ptr.ID == "" {
		t.Fatal("Put did not assign an ID")
	}
	if ptr.CreatedAt.IsZero() {
		t.Fatal("Put did not assign CreatedAt")
	}

	rec, err := s.Read(ctx, queryID, ptr.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if rec.Output != "Berlin is sunny today." || rec.ToolName != "web_search" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if _, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_2", ToolName: "web_search", Output: "second"}); err != nil {
		t.Fatalf("Put second: %v", err)
	}
	pointers, err := s.Pointers(ctx, queryID)
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(pointers) != 2 {
		t.Fatalf("pointers = %d, want 2", len(pointers))
	}
	// insertion order preserved, oldest first
	if pointers[0].TaskID != "iter1_task_1" || pointers[1].TaskID != "iter1_task_2" {
		t.Fatalf("unexpected order: %+v", pointers)
	}

	if _, err := s.Put(ctx, Record{TaskID: "no-query"}); err == nil {
		t.Fatal("Put without query id should fail")
	}
}

func TestRedisStoreReadMissing(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	_, err := s.Read(context.Background(), HashQuery("q"), "no-such-id")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("err = %v, want ErrRecordNotFound", err)
	}
}

func TestRedisStoreTTL(t *testing.T) {
	ttl := time.Hour
	s, mr := newTestRedisStore(t, ttl)
	ctx := context.Background()
	queryID := HashQuery("expiring query")

	ptr, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_1", ToolName: "web_search", Output: "fleeting"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := mr.TTL(recordKey(queryID, ptr.ID)); got != ttl {
		t.Fatalf("record TTL = %v, want %v", got, ttl)
	}
	if got := mr.TTL(idsKey(queryID)); got != ttl {
		t.Fatalf("ids TTL = %v, want %v", got, ttl)
	}

	mr.FastForward(ttl + time.Minute)

	pointers, err := s.Pointers(ctx, queryID)
	if err != nil {
		t.Fatalf("Pointers after expiry: %v", err)
	}
	if len(pointers) != 0 {
		t.Fatalf("pointers after expiry = %d, want 0", len(pointers))
	}
}

func TestRedisStoreSkipsExpiredRecords(t *testing.T) {
	s, mr := newTestRedisStore(t, 0)
	ctx := context.Background()
	queryID := HashQuery("partially expired")

	gone, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_1", ToolName: "web_search", Output: "old"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	kept, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_2", ToolName: "web_search", Output: "fresh"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	// record key gone, id still listed
	mr.Del(recordKey(queryID, gone.ID))

	pointers, err := s.Pointers(ctx, queryID)
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(pointers) != 1 || pointers[0].ID != kept.ID {
		t.Fatalf("pointers = %+v, want only %s", pointers, kept.ID)
	}
}

func TestRedisStoreSearch(t *testing.T) {
	s, _ := newTestRedisStore(t, 0)
	ctx := context.Background()
	queryID := HashQuery("bird speeds")

	falcon, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_1", ToolName: "web_search",
		Output: "The peregrine falcon reaches 390 km/h in a dive."})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_2", ToolName: "web_search",
		Output: "The ostrich runs up to 70 km/h."}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	hits, err := s.Search(ctx, queryID, "falcon dive", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != falcon.ID {
		t.Fatalf("hits = %+v, want %s first", hits, falcon.ID)
	}

	hits, err = s.Search(ctx, HashQuery("some other question"), "falcon", 5)
	if err != nil {
		t.Fatalf("Search other query: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("other-query hits = %+v, want none", hits)
	}
}

func TestRedisStorePruneRemovesDanglingIDs(t *testing.T) {
	s, mr := newTestRedisStore(t, 0)
	ctx := context.Background()
	queryID := HashQuery("dangling")

	gone, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_1", ToolName: "web_search", Output: "old"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	kept, err := s.Put(ctx, Record{QueryID: queryID, TaskID: "iter1_task_2", ToolName: "web_search", Output: "fresh"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	mr.Del(recordKey(queryID, gone.ID))

	pruned, err := s.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 1 {
		t.Fatalf("pruned = %d, want 1", pruned)
	}

	pointers, err := s.Pointers(ctx, queryID)
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(pointers) != 1 || pointers[0].ID != kept.ID {
		t.Fatalf("pointers = %+v, want only %s", pointers, kept.ID)
	}

	// second pass finds nothing left to trim
	pruned, err = s.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune again: %v", err)
	}
	if pruned != 0 {
		t.Fatalf("second prune = %d, want 0", pruned)
	}
}
