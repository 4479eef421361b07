package domain

import (
	"time"
)

// Product is a vendor-owned catalog entry. Variants are part of the
// aggregate and are always written and read together with it.
type Product struct {
	ID               string    `json:"id"`
	VendorID         string    `json:"vendorId"`
	Name             string    `json:"name"`
	Slug             string    `json:"slug"`
	Category         string    `json:"category"`
	Subcategories    []string  `json:"subcategories"`
	Brand            string    `json:"brand"`
	ShortDescription string    `json:"shortDescription"`
	Description      string    `json:"description"`
	IsAvailable      bool      `json:"isAvailable"`
	ImageURLs        []string  `json:"imageUrls"`
	Variants         []Variant `json:"variants"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Variant is a purchasable configuration of a product. SKU is unique across
// the whole catalog. Position records the variant's index in the creation
// request and fixes the read-back order.
type Variant struct {
	ID              string         `json:"id"`
	ProductID       string         `json:"productId"`
	Position        int            `json:"position"`
	SKU             string         `json:"sku"`
	Attributes      map[string]any `json:"attributes"`
	ActualPrice     float64        `json:"actualPrice"`
	Price           float64        `json:"price"`
	DiscountPercent float64        `json:"discountPercent"`
	FinalPrice      float64        `json:"finalPrice"`
	StockQuantity   int            `json:"stockQuantity"`
	IsActive        bool           `json:"isActive"`
	ImageURLs       []string       `json:"imageUrls"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

// VendorRef is the public projection of a vendor attached to product reads.
type VendorRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductDetail is a product enriched with its vendor. Vendor is nil when the
// referenced vendor no longer exists.
type ProductDetail struct {
	Product
	Vendor *VendorRef `json:"vendor"`
}

// SKUs returns the variant SKUs in position order.
func (p *Product) SKUs() []string {
	skus := make([]string, 0, len(p.Variants))
	for _, v := range p.Variants {
		skus = append(skus, v.SKU)
	}
	return skus
}

// VariantBySKU returns the variant with the given SKU, or nil.
func (p *Product) VariantBySKU(sku string) *Variant {
	for i := range p.Variants {
		if p.Variants[i].SKU == sku {
			return &p.Variants[i]
		}
	}
	return nil
}

// OwnedBy reports whether vendorID owns the product.
func (p *Product) OwnedBy(vendorID string) bool {
	return vendorID != "" && p.VendorID == vendorID
}
