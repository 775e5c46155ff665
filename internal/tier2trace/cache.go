// cache.go - the JIT trace cache spec.md §7 describes: "Traces are
// owned by a JIT cache keyed by (entry RIP, code-page versions used by
// the trace); an invalidation bumps the version and the next
// execution's GuardCodeVersion side-exits."
//
// Grounded in coprocessor_manager.go's mu sync.Mutex + map[...]*T
// bookkeeping, generalized two ways the teacher's plain mutex didn't
// need to cover: two callers racing to compile the same cold (entry
// RIP, page-versions) key must build it once, not twice
// (golang.org/x/sync/singleflight.Group), and a caller warming several
// entry points ahead of time wants them compiled in parallel with one
// first-error short-circuit (golang.org/x/sync/errgroup).
package tier2trace

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/aerocore/aerocore/internal/tier2ir"
	"github.com/aerocore/aerocore/internal/tier2opt"
)

// Cache holds compiled-and-optimized Traces keyed by entry RIP plus the
// code-page versions they were built against.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*tier2ir.Trace
	group   singleflight.Group
}

// NewCache returns an empty trace cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*tier2ir.Trace)}
}

// key serializes (entry block's start RIP, the sorted page->version
// pairs the builder's profile currently reports) into the cache's
// lookup string. Sorted so the same version set always hashes the same
// way regardless of map iteration order.
func (c *Cache) key(tb *TraceBuilder, start tier2ir.BlockId) string {
	b := tb.Fn.Block(start)
	entryRIP := uint64(0)
	if b != nil {
		entryRIP = b.StartRIP
	}
	pages := make([]uint64, 0, len(tb.Profile.CodePageVersions))
	for p := range tb.Profile.CodePageVersions {
		pages = append(pages, p)
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i] < pages[j] })

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d", entryRIP)
	for _, p := range pages {
		fmt.Fprintf(&sb, "|%d:%d", p, tb.Profile.CodePageVersions[p])
	}
	return sb.String()
}

// Get returns a previously cached Trace for start, if any.
func (c *Cache) Get(tb *TraceBuilder, start tier2ir.BlockId) (*tier2ir.Trace, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tr, ok := c.entries[c.key(tb, start)]
	return tr, ok
}

// Invalidate drops every cached Trace; callers reach for this when a
// code-page write bumps code_page_versions broadly enough that
// per-key invalidation isn't worth tracking individually. Per-page
// invalidation falls out naturally: a bumped version changes the cache
// key itself, so stale entries are simply never looked up again rather
// than requiring an explicit sweep.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*tier2ir.Trace)
}

// GetOrBuild returns the cached Trace for (tb, start), building and
// optimizing it at most once even if multiple goroutines race to
// request the same key concurrently.
func (c *Cache) GetOrBuild(tb *TraceBuilder, start tier2ir.BlockId) (*tier2ir.Trace, error) {
	key := c.key(tb, start)

	c.mu.RLock()
	if tr, ok := c.entries[key]; ok {
		c.mu.RUnlock()
		return tr, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		c.mu.RLock()
		if tr, ok := c.entries[key]; ok {
			c.mu.RUnlock()
			return tr, nil
		}
		c.mu.RUnlock()

		tr, err := tb.BuildFrom(start)
		if err != nil {
			return nil, fmt.Errorf("tier2trace: build %s: %w", key, err)
		}
		tier2opt.Optimize(tr)

		c.mu.Lock()
		c.entries[key] = tr
		c.mu.Unlock()
		return tr, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*tier2ir.Trace), nil
}

// WarmMany compiles every start block's trace concurrently, returning
// the first build error encountered (if any) after every goroutine has
// finished. Used ahead of a hot loop where several entry points are
// known in advance, so compilation latency overlaps instead of
// serializing one build after another.
func (c *Cache) WarmMany(ctx context.Context, tb *TraceBuilder, starts []tier2ir.BlockId) error {
	g, _ := errgroup.WithContext(ctx)
	for _, start := range starts {
		start := start
		g.Go(func() error {
			_, err := c.GetOrBuild(tb, start)
			return err
		})
	}
	return g.Wait()
}
