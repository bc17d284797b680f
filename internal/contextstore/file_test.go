package contextstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHashQuery(t *testing.T) {
	a := HashQuery("what is the weather in berlin")
	b := HashQuery("what is the weather in berlin")
	c := HashQuery("what is the weather in paris")

	if a != b {
		t.Errorf("same query hashed differently: %s vs %s", a, b)
	}
	if a == c {
		t.Errorf("different queries collided: %s", a)
	}
	if len(a) != 16 {
		t.Errorf("hash length = %d, want 16", len(a))
	}
}

func newTestStore(t *testing.T) *FileStore {
	t.Helper()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFileStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	queryID := HashQuery("test query")

	ptr, err := s.Put(ctx, Record{
		QueryID:    queryID,
		TaskID:     "iter1_task1",
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
	if rec.Output != "Berlin is sunny today." {
		t.Errorf("output = %q", rec.Output)
	}
	if len(rec.SourceURLs) != 1 || rec.SourceURLs[0] != "https://example.com/weather" {
		t.Errorf("source urls = %v", rec.SourceURLs)
	}

	if _, err := s.Read(ctx, queryID, "missing"); !errors.Is(err, ErrRecordNotFound) {
		t.Errorf("Read(missing) = %v, want ErrRecordNotFound", err)
	}
}

func TestFileStorePointersScopedByQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	q1 := HashQuery("query one")
	q2 := HashQuery("query two")

	for i := 0; i < 3; i++ {
		if _, err := s.Put(ctx, Record{QueryID: q1, ToolName: "web_search", Output: "a"}); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if _, err := s.Put(ctx, Record{QueryID: q2, ToolName: "web_search", Output: "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ptrs, err := s.Pointers(ctx, q1)
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(ptrs) != 3 {
		t.Errorf("got %d pointers for q1, want 3", len(ptrs))
	}

	ptrs, err = s.Pointers(ctx, HashQuery("never seen"))
	if err != nil {
		t.Fatalf("Pointers(unknown): %v", err)
	}
	if len(ptrs) != 0 {
		t.Errorf("got %d pointers for unknown query, want 0", len(ptrs))
	}
}

func TestFileStoreSearch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	queryID := HashQuery("search scope")

	want, err := s.Put(ctx, Record{QueryID: queryID, ToolName: "web_search", Output: "The capital of France is Paris."})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := s.Put(ctx, Record{QueryID: queryID, ToolName: "web_search", Output: "Go modules were introduced in Go 1.11."}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Same text under a different query must not leak into results.
	if _, err := s.Put(ctx, Record{QueryID: HashQuery("other"), ToolName: "web_search", Output: "Paris has two million residents."}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	hits, err := s.Search(ctx, queryID, "Paris", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("got %d hits, want 1", len(hits))
	}
	if hits[0].ID != want.ID {
		t.Errorf("hit = %s, want %s", hits[0].ID, want.ID)
	}
}

func TestFileStoreReindexOnOpen(t *testing.T) {
	dir := t.TempDir()
	queryID := HashQuery("persisted")

	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if _, err := s.Put(context.Background(), Record{QueryID: queryID, ToolName: "web_search", Output: "orbital mechanics primer"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.Close()

	reopened, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	hits, err := reopened.Search(context.Background(), queryID, "orbital", 5)
	if err != nil {
		t.Fatalf("Search after reopen: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("got %d hits after reopen, want 1", len(hits))
	}
}

func TestFileStorePrune(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	queryID := HashQuery("prune me")

	old := Record{
		QueryID:   queryID,
		ToolName:  "web_search",
		Output:    "stale",
		CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	if _, err := s.Put(ctx, old); err != nil {
		t.Fatalf("Put old: %v", err)
	}
	fresh, err := s.Put(ctx, Record{QueryID: queryID, ToolName: "web_search", Output: "fresh"})
	if err != nil {
		t.Fatalf("Put fresh: %v", err)
	}

	n, err := s.Prune(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d records, want 1", n)
	}

	ptrs, err := s.Pointers(ctx, queryID)
	if err != nil {
		t.Fatalf("Pointers: %v", err)
	}
	if len(ptrs) != 1 || ptrs[0].ID != fresh.ID {
		t.Errorf("pointers after prune = %v, want only fresh record", ptrs)
	}
}
