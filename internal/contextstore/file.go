package contextstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve"
	"github.com/google/uuid"
)

// indexDoc is the shape indexed into bleve for each record.
type indexDoc struct {
	QueryID  string `json:"query_id"`
	ToolName string `json:"tool_name"`
	Output   string `json:"output"`
}

// FileStore keeps one JSON file per record under dir/<queryID>/<id>.json
// and an in-memory bleve index rebuilt from disk on open.
type FileStore struct {
	dir   string
	mu    sync.RWMutex
	index bleve.Index
}

// NewFileStore opens a file store rooted at dir, creating it if needed,
// and indexes any existing records.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		dir = ".wildgoose/context"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create context dir: %w", err)
	}
	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create context index: %w", err)
	}
	s := &FileStore{dir: dir, index: index}
	if err := s.reindex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reindex() error {
	queries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("scan context dir: %w", err)
	}
	for _, q := range queries {
		if !q.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.dir, q.Name()))
		if err != nil {
			return fmt.Errorf("scan query dir: %w", err)
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			rec, err := s.load(q.Name(), strings.TrimSuffix(f.Name(), ".json"))
			if err != nil {
				continue
			}
			if err := s.indexRecord(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *FileStore) indexRecord(rec Record) error {
	return s.index.Index(rec.QueryID+"/"+rec.ID, indexDoc{
		QueryID:  rec.QueryID,
		ToolName: rec.ToolName,
		Output:   rec.Output,
	})
}

func (s *FileStore) path(queryID, id string) string {
	return filepath.Join(s.dir, queryID, id+".json")
}

func (s *FileStore) load(queryID, id string) (Record, error) {
	data, err := os.ReadFile(s.path(queryID, id))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, fmt.Errorf("record %s/%s: %w", queryID, id, ErrRecordNotFound)
		}
		return Record{}, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record %s/%s: %w", queryID, id, err)
	}
	return rec, nil
}

func (s *FileStore) Put(ctx context.Context, rec Record) (Pointer, error) {
	if rec.QueryID == "" {
		return Pointer{}, fmt.Errorf("context put: query id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.dir, rec.QueryID), 0o755); err != nil {
		return Pointer{}, fmt.Errorf("create query dir: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return Pointer{}, fmt.Errorf("encode record: %w", err)
	}
	if err := os.WriteFile(s.path(rec.QueryID, rec.ID), data, 0o644); err != nil {
		return Pointer{}, fmt.Errorf("write record: %w", err)
	}
	if err := s.indexRecord(rec); err != nil {
		return Pointer{}, fmt.Errorf("index record: %w", err)
	}
	return rec.pointer(), nil
}

func (s *FileStore) Pointers(ctx context.Context, queryID string) ([]Pointer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files, err := os.ReadDir(filepath.Join(s.dir, queryID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan query dir: %w", err)
	}

	out := make([]Pointer, 0, len(files))
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		rec, err := s.load(queryID, strings.TrimSuffix(f.Name(), ".json"))
		if err != nil {
			return nil, err
		}
		out = append(out, rec.pointer())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *FileStore) Read(ctx context.Context, queryID, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.load(queryID, id)
}

func (s *FileStore) Search(ctx context.Context, queryID, text string, limit int) ([]Pointer, error) {
	if limit <= 0 {
		limit = 10
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	query := bleve.NewQueryStringQuery(fmt.Sprintf("+query_id:%s %s", queryID, text))
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("context search: %w", err)
	}

	out := make([]Pointer, 0, len(res.Hits))
	for _, hit := range res.Hits {
		qid, id, ok := strings.Cut(hit.ID, "/")
		if !ok || qid != queryID {
			continue
		}
		rec, err := s.load(queryID, id)
		if err != nil {
			continue
		}
		out = append(out, rec.pointer())
	}
	return out, nil
}

func (s *FileStore) Prune(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	queries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("scan context dir: %w", err)
	}
	for _, q := range queries {
		if !q.IsDir() {
			continue
		}
		qdir := filepath.Join(s.dir, q.Name())
		files, err := os.ReadDir(qdir)
		if err != nil {
			return pruned, err
		}
		remaining := 0
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
				continue
			}
			id := strings.TrimSuffix(f.Name(), ".json")
			rec, err := s.load(q.Name(), id)
			if err != nil {
				continue
			}
			if rec.CreatedAt.Before(cutoff) {
				if err := os.Remove(s.path(q.Name(), id)); err != nil {
					return pruned, err
				}
				if err := s.index.Delete(q.Name() + "/" + id); err != nil {
					return pruned, err
				}
				pruned++
				continue
			}
			remaining++
		}
		if remaining == 0 {
			_ = os.Remove(qdir)
		}
	}
	return pruned, nil
}

func (s *FileStore) Close() error {
	return s.index.Close()
}
