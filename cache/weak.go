package cache

import (
	"container/list"
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/agentuity/go-cache/logger"
	"github.com/agentuity/go-cache/sys"
)

// weakBox is the heap cell a weak pointer refers to. Holding the box keeps
// the value alive.
type weakBox struct {
	value any
}

// weakEntry is what WeakCache stores in its delegate.
type weakEntry struct {
	ptr weak.Pointer[weakBox]
}

type reclaimed struct {
	key   any
	entry *weakEntry
}

// reclaimQueue collects notifications from runtime cleanups. push is called
// on the runtime's cleanup goroutine and never blocks for long.
type reclaimQueue struct {
	mu    sync.Mutex
	items []reclaimed
}

func (q *reclaimQueue) push(r reclaimed) {
	q.mu.Lock()
	q.items = append(q.items, r)
	q.mu.Unlock()
}

func (q *reclaimQueue) drain() []reclaimed {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// WeakCache lets the garbage collector reclaim cached values that nothing
// else references. The most recently read values are pinned in a bounded
// FIFO of hard links; older values survive only as long as the collector
// allows. Entries whose values were reclaimed are purged from the delegate
// on the next Put, Size, Remove or Clear, or when a Get finds them.
//
// The hard link FIFO is not safe for concurrent use; the reclaim queue is.
// The delegate must be a store, since it holds WeakCache's wrappers.
type WeakCache struct {
	delegate          Cache
	logger            logger.Logger
	hardLinks         int
	hard              *list.List // front is most recently read
	queue             *reclaimQueue
	pressureThreshold float64
	pressureProbe     func() float64
	released          int
}

var (
	_ Cache        = (*WeakCache)(nil)
	_ Sizer        = (*WeakCache)(nil)
	_ Configurable = (*WeakCache)(nil)
)

// NewWeak wraps delegate. WithHardLinks sets the FIFO capacity and
// WithMemoryPressure enables releasing hard links under host memory pressure.
func NewWeak(delegate Cache, opts ...Option) *WeakCache {
	cfg := applyOptions(opts)
	return &WeakCache{
		delegate:          delegate,
		logger:            cfg.logger.WithPrefix("[weak]"),
		hardLinks:         cfg.hardLinks,
		hard:              list.New(),
		queue:             &reclaimQueue{},
		pressureThreshold: cfg.pressureThreshold,
		pressureProbe:     cfg.pressureProbe,
	}
}

// SetSize sets the number of hard links.
func (c *WeakCache) SetSize(size int) {
	c.hardLinks = size
}

func (c *WeakCache) SetMemoryPressure(threshold float64) {
	c.pressureThreshold = threshold
}

func (c *WeakCache) Setters() map[string]Setter {
	return map[string]Setter{
		"size":           Bind(c.SetSize),
		"memoryPressure": Bind(c.SetMemoryPressure),
	}
}

// Initialize turns memory pressure tracking on with the host probe when a
// threshold was configured through properties.
func (c *WeakCache) Initialize() error {
	if c.pressureThreshold > 0 && c.pressureProbe == nil {
		c.pressureProbe = sys.MemoryUsedPercent
	}
	return nil
}

func (c *WeakCache) Delegate() Cache { return c.delegate }
func (c *WeakCache) ID() string      { return c.delegate.ID() }

func (c *WeakCache) Size() int {
	c.removeReclaimed(context.Background())
	return c.delegate.Size()
}

func (c *WeakCache) Put(ctx context.Context, key any, value any) error {
	if err := c.removeReclaimed(ctx); err != nil {
		return err
	}
	c.relieveMemoryPressure()
	if value == nil {
		return c.delegate.Put(ctx, key, nil)
	}
	box := &weakBox{value: value}
	entry := &weakEntry{ptr: weak.Make(box)}
	runtime.AddCleanup(box, c.queue.push, reclaimed{key: key, entry: entry})
	return c.delegate.Put(ctx, key, entry)
}

func (c *WeakCache) Get(ctx context.Context, key any) (bool, any, error) {
	found, val, err := c.delegate.Get(ctx, key)
	if err != nil || !found {
		return false, nil, err
	}
	entry, ok := val.(*weakEntry)
	if !ok {
		return true, val, nil
	}
	box := entry.ptr.Value()
	if box == nil {
		_, _, err := c.delegate.Remove(ctx, key)
		return false, nil, err
	}
	c.hard.PushFront(box)
	if c.hard.Len() > c.hardLinks {
		c.hard.Remove(c.hard.Back())
		c.released++
	}
	return true, box.value, nil
}

func (c *WeakCache) Remove(ctx context.Context, key any) (bool, any, error) {
	if err := c.removeReclaimed(ctx); err != nil {
		return false, nil, err
	}
	found, val, err := c.delegate.Remove(ctx, key)
	if err != nil || !found {
		return false, nil, err
	}
	entry, ok := val.(*weakEntry)
	if !ok {
		return true, val, nil
	}
	if box := entry.ptr.Value(); box != nil {
		return true, box.value, nil
	}
	return false, nil, nil
}

func (c *WeakCache) Clear(ctx context.Context) error {
	c.hard.Init()
	if err := c.removeReclaimed(ctx); err != nil {
		return err
	}
	return c.delegate.Clear(ctx)
}

// HardLinks returns the values currently pinned, most recent first.
func (c *WeakCache) HardLinks() []any {
	out := make([]any, 0, c.hard.Len())
	for el := c.hard.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*weakBox).value)
	}
	return out
}

// Released returns how many hard links were dropped, either because the FIFO
// was full or under memory pressure.
func (c *WeakCache) Released() int {
	return c.released
}

// removeReclaimed purges entries whose values were collected. An entry is
// only removed if the delegate still holds that same wrapper, so a value
// stored again under the same key is not lost.
func (c *WeakCache) removeReclaimed(ctx context.Context) error {
	for _, r := range c.queue.drain() {
		found, val, err := c.delegate.Get(ctx, r.key)
		if err != nil {
			return err
		}
		if !found || val != any(r.entry) {
			continue
		}
		if _, _, err := c.delegate.Remove(ctx, r.key); err != nil {
			return err
		}
	}
	return nil
}

func (c *WeakCache) relieveMemoryPressure() {
	if c.pressureProbe == nil || c.hard.Len() == 0 {
		return
	}
	if used := c.pressureProbe(); used >= c.pressureThreshold {
		c.logger.Debug("host memory at %.1f%%, releasing %d hard links of cache %s", used, c.hard.Len(), c.ID())
		c.released += c.hard.Len()
		c.hard.Init()
	}
}
