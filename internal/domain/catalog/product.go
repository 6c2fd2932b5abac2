package catalog

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrProductIDMissing = errors.New("catalog: product id is required")
	ErrSellerIDMissing  = errors.New("catalog: seller id is required")
)

// Product is the read-only projection of a catalog item that chats reference.
// The catalog service owns the full record; this side only keeps what chat views need.
type Product struct {
	ID         string
	SellerID   string
	Name       string
	Images     []string
	PriceCents int64
	Currency   string
	UpdatedAt  time.Time
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrProductIDMissing
	}
	if strings.TrimSpace(p.SellerID) == "" {
		return ErrSellerIDMissing
	}
	return nil
}

// Thumbnail returns the first image or an empty string.
func (p Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p Product) Clone() Product {
	out := p
	out.Images = append([]string(nil), p.Images...)
	return out
}
