// Package contextstore persists tool outputs per query so later phases
// can reference them without re-running tools. Records are keyed by a
// query hash; the answer phase resolves pointers back to source URLs.
package contextstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Kris4js/WildGooseAgent/config"
)

// ErrRecordNotFound is returned when a record ID is unknown for a query.
var ErrRecordNotFound = errors.New("context record not found")

// Record is one saved tool output.
type Record struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	TaskID     string    `json:"task_id"`
	ToolName   string    `json:"tool_name"`
	Output     string    `json:"output"`
	SourceURLs []string  `json:"source_urls,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Pointer is a lightweight reference to a stored record.
type Pointer struct {
	ID         string    `json:"id"`
	QueryID    string    `json:"query_id"`
	TaskID     string    `json:"task_id"`
	ToolName   string    `json:"tool_name"`
	SourceURLs []string  `json:"source_urls,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (r Record) pointer() Pointer {
	return Pointer{
		ID:         r.ID,
		QueryID:    r.QueryID,
		TaskID:     r.TaskID,
		ToolName:   r.ToolName,
		SourceURLs: r.SourceURLs,
		CreatedAt:  r.CreatedAt,
	}
}

// Store is the query-scoped tool-output store.
type Store interface {
	// Put saves a record and returns its pointer. The store assigns
	// ID and CreatedAt when unset.
	Put(ctx context.Context, rec Record) (Pointer, error)
	// Pointers returns all pointers for a query, oldest first.
	Pointers(ctx context.Context, queryID string) ([]Pointer, error)
	// Read loads a full record by query and ID.
	Read(ctx context.Context, queryID, id string) (Record, error)
	// Search returns up to limit pointers for a query whose output
	// matches the text query, most relevant first.
	Search(ctx context.Context, queryID, text string, limit int) ([]Pointer, error)
	// Prune deletes records older than maxAge and returns the count.
	Prune(ctx context.Context, maxAge time.Duration) (int, error)
	// Close releases store resources.
	Close() error
}

// HashQuery derives a stable query ID from the query text.
func HashQuery(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:])[:16]
}

// New selects a store backend from configuration. The redis client is
// only required for the redis backend and may be nil otherwise.
func New(cfg config.ContextStoreConfig, rdb *redis.Client) (Store, error) {
	switch cfg.Backend {
	case "", "file":
		return NewFileStore(cfg.Dir)
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis context store backend selected but no redis client configured")
		}
		return NewRedisStore(rdb, cfg.MaxAge), nil
	default:
		return nil, fmt.Errorf("unknown context store backend %q", cfg.Backend)
	}
}
