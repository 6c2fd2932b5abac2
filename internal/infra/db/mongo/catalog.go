package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"storefront/internal/app/policies"
	domaincatalog "storefront/internal/domain/catalog"
)

// Catalog is the product projection fed by catalog events.
type Catalog struct {
	col *mongo.Collection
}

func NewCatalog(db *mongo.Database) *Catalog {
	return &Catalog{col: db.Collection(productsCollection)}
}

func (c *Catalog) ResolveProduct(ctx context.Context, id string) (domaincatalog.Product, error) {
	var doc productDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domaincatalog.Product{}, domaincatalog.ErrProductNotFound
		}
		return domaincatalog.Product{}, err
	}
	return doc.toProduct(), nil
}

func (c *Catalog) ResolveProducts(ctx context.Context, ids []string) (map[string]domaincatalog.Product, error) {
	out := make(map[string]domaincatalog.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := c.col.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []productDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d.toProduct()
	}
	return out, nil
}

// UpsertProduct ignores events older than the stored version. The stale case
// surfaces as a duplicate key on the upsert and is swallowed.
func (c *Catalog) UpsertProduct(ctx context.Context, p domaincatalog.Product) error {
	if err := p.Validate(); err != nil {
		return err
	}
	doc := newProductDocument(p)
	filter := bson.M{"_id": doc.ID, "updated_at": bson.M{"$lte": doc.UpdatedAt}}
	_, err := c.col.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil && mongo.IsDuplicateKeyError(err) {
		return nil
	}
	return err
}

func (c *Catalog) RemoveProduct(ctx context.Context, id string) error {
	_, err := c.col.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

var (
	_ policies.ProductCatalog    = (*Catalog)(nil)
	_ policies.ProductProjection = (*Catalog)(nil)
)

type productDocument struct {
	ID         string    `bson:"_id"`
	SellerID   string    `bson:"seller_id"`
	Name       string    `bson:"name"`
	Images     []string  `bson:"images"`
	PriceCents int64     `bson:"price_cents"`
	Currency   string    `bson:"currency"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

func newProductDocument(p domaincatalog.Product) productDocument {
	return productDocument{
		ID:         p.ID,
		SellerID:   p.SellerID,
		Name:       p.Name,
		Images:     append([]string(nil), p.Images...),
		PriceCents: p.PriceCents,
		Currency:   p.Currency,
		UpdatedAt:  p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toProduct() domaincatalog.Product {
	return domaincatalog.Product{
		ID:         d.ID,
		SellerID:   d.SellerID,
		Name:       d.Name,
		Images:     append([]string(nil), d.Images...),
		PriceCents: d.PriceCents,
		Currency:   d.Currency,
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
}
