package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/JonMunkholm/assessx/internal/assessment"
)

// MemoryCatalog keeps records in process. It is used when no database URL
// is configured, and by tests.
type MemoryCatalog struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
	now     func() time.Time
}

// NewMemoryCatalog creates an empty catalog.
func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{
		byID: make(map[string]int),
		now:  time.Now,
	}
}

// SearchByName ranks names that fuzzily contain partial, closest first.
func (c *MemoryCatalog) SearchByName(ctx context.Context, partial string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if partial == "" {
		return append([]Record(nil), c.records...), nil
	}

	names := make([]string, len(c.records))
	for i, r := range c.records {
		names[i] = r.Name
	}
	ranks := fuzzy.RankFindNormalizedFold(partial, names)
	sort.Sort(ranks)

	out := make([]Record, 0, len(ranks))
	for _, rank := range ranks {
		out = append(out, c.records[rank.OriginalIndex])
	}
	return out, nil
}

// Create stores t under a new id.
func (c *MemoryCatalog) Create(ctx context.Context, t assessment.Template) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if NameTaken(c.records, t.Name) {
		return Record{}, ErrNameTaken
	}

	rec := newRecord(uuid.NewString(), t, c.now())
	c.byID[rec.ID] = len(c.records)
	c.records = append(c.records, rec)
	return rec, nil
}

// Get returns the record with id.
func (c *MemoryCatalog) Get(ctx context.Context, id string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	i, ok := c.byID[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return c.records[i], nil
}

// List returns every record in creation order.
func (c *MemoryCatalog) List(ctx context.Context) ([]Record, error) {
	return c.SearchByName(ctx, "")
}
