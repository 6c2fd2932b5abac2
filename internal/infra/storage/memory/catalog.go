package memory

import (
	"context"
	"sync"

	"storefront/internal/app/policies"
	domaincatalog "storefront/internal/domain/catalog"
)

// Catalog is an in-memory product projection.
type Catalog struct {
	mu       sync.RWMutex
	products map[string]domaincatalog.Product
}

func NewCatalog(products ...domaincatalog.Product) *Catalog {
	c := &Catalog{products: make(map[string]domaincatalog.Product)}
	for _, p := range products {
		_ = c.UpsertProduct(context.Background(), p)
	}
	return c
}

func (c *Catalog) ResolveProduct(_ context.Context, id string) (domaincatalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domaincatalog.Product{}, domaincatalog.ErrProductNotFound
	}
	return p.Clone(), nil
}

func (c *Catalog) ResolveProducts(_ context.Context, ids []string) (map[string]domaincatalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]domaincatalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := c.products[id]; ok {
			out[id] = p.Clone()
		}
	}
	return out, nil
}

func (c *Catalog) UpsertProduct(_ context.Context, p domaincatalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.products[p.ID]; ok && !p.UpdatedAt.IsZero() && p.UpdatedAt.Before(existing.UpdatedAt) {
		return nil
	}
	c.products[p.ID] = p.Clone()
	return nil
}

func (c *Catalog) RemoveProduct(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.products, id)
	return nil
}

var (
	_ policies.ProductCatalog    = (*Catalog)(nil)
	_ policies.ProductProjection = (*Catalog)(nil)
)
