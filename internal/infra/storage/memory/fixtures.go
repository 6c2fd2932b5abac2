package memory

import (
	"encoding/json"
	"fmt"
	"os"

	domaincatalog "storefront/internal/domain/catalog"
	domainuser "storefront/internal/domain/user"
)

// Fixtures seeds the directory and catalog for local runs.
type Fixtures struct {
	UserRows []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"users"`
	ProductRows []struct {
		ID         string   `json:"id"`
		SellerID   string   `json:"seller_id"`
		Name       string   `json:"name"`
		Images     []string `json:"images"`
		PriceCents int64    `json:"price_cents"`
		Currency   string   `json:"currency"`
	} `json:"products"`
}

func LoadFixtures(path string) (Fixtures, error) {
	var f Fixtures
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("memory: read fixtures: %w", err)
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, fmt.Errorf("memory: decode fixtures: %w", err)
	}
	return f, nil
}

func (f Fixtures) Profiles() []domainuser.Profile {
	out := make([]domainuser.Profile, 0, len(f.UserRows))
	for _, u := range f.UserRows {
		out = append(out, domainuser.Profile{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	return out
}

func (f Fixtures) Products() []domaincatalog.Product {
	out := make([]domaincatalog.Product, 0, len(f.ProductRows))
	for _, p := range f.ProductRows {
		out = append(out, domaincatalog.Product{
			ID:         p.ID,
			SellerID:   p.SellerID,
			Name:       p.Name,
			Images:     p.Images,
			PriceCents: p.PriceCents,
			Currency:   p.Currency,
		})
	}
	return out
}
