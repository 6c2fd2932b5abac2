package policies

import (
	"context"

	domaincatalog "storefront/internal/domain/catalog"
)

// ProductCatalog reads the product projection. ResolveProduct returns
// catalog.ErrProductNotFound for unknown ids; ResolveProducts omits them.
type ProductCatalog interface {
	ResolveProduct(ctx context.Context, id string) (domaincatalog.Product, error)
	ResolveProducts(ctx context.Context, ids []string) (map[string]domaincatalog.Product, error)
}

// ProductProjection is written by the catalog event consumer.
type ProductProjection interface {
	UpsertProduct(ctx context.Context, product domaincatalog.Product) error
	RemoveProduct(ctx context.Context, id string) error
}
