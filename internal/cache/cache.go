// Package cache holds the in-process caches: the ledger's report cache and
// the HTTP session table.
package cache

import (
	"context"
	"log/slog"
	"time"
)

// Cache is a keyed store with expiry.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry.
	Purge()
	Size() int
}

// Cleaner is implemented by caches whose expired entries can be swept.
type Cleaner interface {
	CleanExpired() int
}

// Manager sweeps expired entries of its registered caches on a fixed interval.
type Manager struct {
	caches []Cleaner
	logger *slog.Logger
}

func NewManager(logger *slog.Logger, caches ...Cleaner) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{caches: caches, logger: logger}
}

// Register adds a cache to the sweep. It must be called before Run.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// Sweep cleans every registered cache once and returns the number of removed entries.
func (m *Manager) Sweep() int {
	total := 0
	for _, c := range m.caches {
		total += c.CleanExpired()
	}
	return total
}

// Run sweeps until ctx is cancelled.
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.DebugContext(ctx, "Expired cache entries removed", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
