package streamkit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Catalog indexes the variables published by the stats API.
type Catalog struct {
	vars   []Variable
	byName map[string]Variable
}

// NewCatalog builds a catalog. When a name repeats the first entry wins.
func NewCatalog(vars []Variable) *Catalog {
	c := &Catalog{
		vars:   make([]Variable, 0, len(vars)),
		byName: make(map[string]Variable, len(vars)),
	}
	for _, v := range vars {
		if v.Name == "" {
			continue
		}
		if _, exists := c.byName[v.Name]; exists {
			continue
		}
		v.ExtraArgs = append([]string(nil), v.ExtraArgs...)
		c.vars = append(c.vars, v)
		c.byName[v.Name] = v
	}
	return c
}

// Lookup returns the variable with the given name.
func (c *Catalog) Lookup(name string) (Variable, bool) {
	if c == nil {
		return Variable{}, false
	}
	v, ok := c.byName[name]
	return v, ok
}

// Variables returns every variable in API order.
func (c *Catalog) Variables() []Variable {
	if c == nil {
		return nil
	}
	return append([]Variable(nil), c.vars...)
}

// Selectable returns the variables the widget builder offers as stat tiles.
func (c *Catalog) Selectable() []Variable {
	if c == nil {
		return nil
	}
	out := make([]Variable, 0, len(c.vars))
	for _, v := range c.vars {
		if v.IsImage() {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Categories lists distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	if c == nil {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, v := range c.vars {
		if v.Category == "" {
			continue
		}
		if _, ok := seen[v.Category]; ok {
			continue
		}
		seen[v.Category] = struct{}{}
		out = append(out, v.Category)
	}
	return out
}

// Len reports the number of variables.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.vars)
}

// lazyValue loads a remote value once. Failed loads are retried on the next
// call. Readers never wait on an in-flight load.
type lazyValue[T any] struct {
	loadMu sync.Mutex
	value  atomic.Pointer[T]
}

func (l *lazyValue[T]) get(ctx context.Context, load func(context.Context) (T, error)) (T, error) {
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	l.loadMu.Lock()
	defer l.loadMu.Unlock()
	if v := l.value.Load(); v != nil {
		return *v, nil
	}
	value, err := load(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value.Store(&value)
	return value, nil
}

func (l *lazyValue[T]) peek() (T, bool) {
	if v := l.value.Load(); v != nil {
		return *v, true
	}
	var zero T
	return zero, false
}

// CatalogCache fetches the variable catalog on first use.
type CatalogCache struct {
	client CatalogClient
	value  lazyValue[*Catalog]
}

// NewCatalogCache wraps a catalog client.
func NewCatalogCache(client CatalogClient) *CatalogCache {
	return &CatalogCache{client: client}
}

// Load returns the catalog, fetching it if needed.
func (c *CatalogCache) Load(ctx context.Context) (*Catalog, error) {
	if c == nil || c.client == nil {
		return NewCatalog(nil), nil
	}
	return c.value.get(ctx, func(ctx context.Context) (*Catalog, error) {
		vars, err := c.client.FetchVariables(ctx)
		if err != nil {
			return nil, fmt.Errorf("streamkit: load variables: %w", err)
		}
		return NewCatalog(vars), nil
	})
}

// Current returns the loaded catalog or an empty one when nothing loaded yet.
func (c *CatalogCache) Current() *Catalog {
	if c == nil {
		return NewCatalog(nil)
	}
	if catalog, ok := c.value.peek(); ok {
		return catalog
	}
	return NewCatalog(nil)
}
