package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"log/slog"
)

// Lister is the subset of backend.Client the catalog depends on, kept as an
// interface so tests can supply a fake without a real HTTP backend.
type Lister interface {
	ListModels(ctx context.Context) ([]ModelInfo, error)
}

// ModelInfo mirrors backend.ModelInfo to avoid an import-cycle-prone
// dependency from catalog to backend; the cmd wiring layer adapts one to
// the other.
type ModelInfo struct {
	ID      string
	Object  string
	OwnedBy string

	// SupportedFeatures lists feature names the backend advertised for this
	// model (e.g. "function_calling"). A backend that doesn't report this at
	// all leaves it empty; Supports treats that as "unknown", not "none".
	SupportedFeatures []string
}

// Catalog holds a periodically refreshed, case-folded snapshot of the
// backend's model list.
type Catalog struct {
	lister Lister
	period time.Duration

	mu       sync.RWMutex
	byName   map[string]ModelInfo // normalized name -> entry
	lastGood time.Time

	stop chan struct{}
	once sync.Once
}

// New creates a Catalog that refreshes from lister every period. Call
// Start to begin the background refresh loop.
func New(lister Lister, period time.Duration) *Catalog {
	if period <= 0 {
		period = 5 * time.Minute
	}
	return &Catalog{
		lister: lister,
		period: period,
		byName: make(map[string]ModelInfo),
		stop:   make(chan struct{}),
	}
}

// Normalize case-folds a model name for lookup purposes.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Start performs an initial synchronous refresh (best-effort — a failure
// here just leaves the catalog empty, which callers must treat as
// "no opinion", not "model invalid") and then refreshes on a timer until
// ctx is done or Stop is called.
func (c *Catalog) Start(ctx context.Context) {
	c.refresh(ctx)

	go func() {
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-c.stop:
				return
			case <-ticker.C:
				c.refresh(ctx)
			}
		}
	}()
}

// Stop ends the background refresh loop.
func (c *Catalog) Stop() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Catalog) refresh(ctx context.Context) {
	reqCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	models, err := c.lister.ListModels(reqCtx)
	if err != nil {
		// Non-fatal: keep serving the previous snapshot. On the very first
		// refresh there is no previous snapshot, so lookups simply find
		// nothing and callers fall through unchanged (no validation
		// opinion, not a rejection).
		slog.Warn("model catalog refresh failed, keeping previous snapshot", "error", err.Error())
		return
	}

	next := make(map[string]ModelInfo, len(models))
	for _, m := range models {
		next[Normalize(m.ID)] = m
	}

	c.mu.Lock()
	c.byName = next
	c.lastGood = time.Now()
	c.mu.Unlock()
}

// Lookup returns the catalog entry for name (case-insensitively), if known.
func (c *Catalog) Lookup(name string) (ModelInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[Normalize(name)]
	return m, ok
}

// Known reports whether the catalog has ever successfully refreshed and has
// at least one entry — distinguishing "never populated, don't reject
// anything" from "populated but this particular model is absent".
func (c *Catalog) Known() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName) > 0
}

// Supports reports whether name advertises feature in its supported_features
// set. An empty catalog, or a model the catalog has no opinion on (absent
// from a populated catalog, or present with no feature list at all), is
// treated as supporting the feature — the gateway only degrades to the
// inline tool-call preamble when a backend has positively told it a model
// lacks native function-calling, never by default.
func (c *Catalog) Supports(name, feature string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.byName[Normalize(name)]
	if !ok || len(m.SupportedFeatures) == 0 {
		return true
	}
	for _, f := range m.SupportedFeatures {
		if f == feature {
			return true
		}
	}
	return false
}

// Size returns the number of cached model entries, for metrics.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}
