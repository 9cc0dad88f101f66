package filter

import (
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of compiled filter sets a Cache keeps.
const DefaultCacheSize = 1024

// Cache memoizes CompileAll results keyed by schema fingerprint and filter
// list. Compiled expressions are immutable, so cached trees are shared.
// Safe for concurrent use.
type Cache struct {
	entries *lru.Cache[string, Expression]
}

// NewCache creates a cache holding up to size compiled filter sets.
// A non-positive size uses DefaultCacheSize.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, Expression](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries}, nil
}

// CompileAll returns the cached conjunction of filters against schema,
// compiling and storing it on a miss. Failed compilations are not cached.
func (c *Cache) CompileAll(filters []string, schema *arrow.Schema) (Expression, error) {
	key := schema.Fingerprint() + "\x00" + strings.Join(filters, "\x00")
	if expr, ok := c.entries.Get(key); ok {
		return expr, nil
	}

	expr, err := CompileAll(filters, schema)
	if err != nil {
		return nil, err
	}
	c.entries.Add(key, expr)
	return expr, nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.entries.Len()
}
