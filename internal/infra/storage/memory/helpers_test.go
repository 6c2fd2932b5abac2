package memory

import (
	"time"

	"storefront/internal/app/middleware"
	domaincatalog "storefront/internal/domain/catalog"
)

func middlewareRecord(key string, at time.Time) middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{Key: key, Payload: []byte(`{}`), OccurredAt: at}
}

func productAt(id, name string, at time.Time) domaincatalog.Product {
	return domaincatalog.Product{ID: id, SellerID: "s1", Name: name, UpdatedAt: at}
}
