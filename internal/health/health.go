// Package health provides health check implementations for external dependencies.
package health

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CheckTimeout bounds each individual dependency probe.
const CheckTimeout = 2 * time.Second

// Checker probes one external dependency.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db *sql.DB
}

// NewDBChecker creates a new database health checker.
func NewDBChecker(db *sql.DB) *DBChecker {
	return &DBChecker{db: db}
}

// HealthCheck pings the database.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// RedisChecker implements health checking for Redis.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a new Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING command to Redis.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Registry holds named checkers for the readiness endpoint.
type Registry struct {
	mu       sync.RWMutex
	checkers map[string]Checker
}

// NewRegistry creates an empty checker registry.
func NewRegistry() *Registry {
	return &Registry{checkers: make(map[string]Checker)}
}

// Add registers a checker under the given dependency name.
func (r *Registry) Add(name string, c Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkers[name] = c
}

// CheckAll runs every registered checker with a per-check timeout. The
// returned map holds one entry per dependency: nil when healthy, the probe
// error otherwise.
func (r *Registry) CheckAll(ctx context.Context) map[string]error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := make(map[string]error, len(r.checkers))
	for name, checker := range r.checkers {
		checkCtx, cancel := context.WithTimeout(ctx, CheckTimeout)
		results[name] = checker.HealthCheck(checkCtx)
		cancel()
	}
	return results
}

// Healthy reports whether every result in a CheckAll map is nil.
func Healthy(results map[string]error) bool {
	for _, err := range results {
		if err != nil {
			return false
		}
	}
	return true
}
