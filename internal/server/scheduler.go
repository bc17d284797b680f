package server

import (
	"context"
	"log"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/Kris4js/WildGooseAgent/internal/contextstore"
)

// Scheduler prunes aged context-store records on a cron cadence. A Redis
// SetNX lock keeps replicas from pruning concurrently; without Redis the
// prune runs unguarded.
type Scheduler struct {
	Store  contextstore.Store
	Rdb    *redis.Client
	Cron   string
	MaxAge time.Duration
	Logger *log.Logger
	Stop   chan struct{}

	lastRun *time.Time
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	if !isDue(s.Cron, s.lastRun) {
		return
	}
	if s.Rdb != nil {
		ok, _ := s.Rdb.SetNX(ctx, "sched:lock:context_prune", "1", 2*time.Minute).Result()
		if !ok {
			return
		}
		defer s.Rdb.Del(ctx, "sched:lock:context_prune")
	}
	now := time.Now()
	s.lastRun = &now
	if _, err := s.Store.Prune(ctx, s.MaxAge); err != nil {
		s.Logger.Printf("context prune failed: %v", err)
		return
	}
	s.Logger.Printf("context store pruned (max age %v)", s.MaxAge)
}

// isDue determines if a job with cronSpec should run now based on its last
// run time. Supports "@daily", "@hourly", and standard 5-field cron
// expressions.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			// Fallback: treat as @daily if invalid
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
