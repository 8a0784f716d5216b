package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SizeStock struct {
	Size  string `bson:"size" json:"size" binding:"required"`
	Stock int    `bson:"stock" json:"stock" binding:"gte=0"`
}

type Rating struct {
	Average float64 `bson:"average" json:"average"`
	Count   int     `bson:"count" json:"count"`
}

type Product struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Seller       primitive.ObjectID   `bson:"seller" json:"seller"`
	Name         string               `bson:"name" json:"name"`
	Slug         string               `bson:"slug" json:"slug"`
	Description  string               `bson:"description" json:"description"`
	Brand        string               `bson:"brand,omitempty" json:"brand,omitempty"`
	Category     primitive.ObjectID   `bson:"category" json:"category"`
	CategoryPath []primitive.ObjectID `bson:"categoryPath" json:"-"`
	Price        float64              `bson:"price" json:"price"`
	MRP          float64              `bson:"mrp,omitempty" json:"mrp,omitempty"`
	Images       []string             `bson:"images" json:"images"`
	Sizes        []SizeStock          `bson:"sizes" json:"sizes"`
	Stock        int                  `bson:"stock" json:"stock"`
	SKU          string               `bson:"sku" json:"sku"`
	Tags         []string             `bson:"tags" json:"tags"`
	IsActive     bool                 `bson:"isActive" json:"isActive"`
	IsFeatured   bool                 `bson:"isFeatured" json:"isFeatured"`
	Rating       Rating               `bson:"rating" json:"rating"`
	SoldCount    int                  `bson:"soldCount" json:"soldCount"`
	CreatedAt    time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// TotalStock is the sum of per-size stock, or fallback when the product is
// not sold by size.
func TotalStock(sizes []SizeStock, fallback int) int {
	if len(sizes) == 0 {
		return fallback
	}
	total := 0
	for _, s := range sizes {
		total += s.Stock
	}
	return total
}

// StockFor returns the available quantity for size. Products without sizes
// only accept the empty size.
func (p *Product) StockFor(size string) (int, bool) {
	if len(p.Sizes) == 0 {
		return p.Stock, size == ""
	}
	for _, s := range p.Sizes {
		if strings.EqualFold(s.Size, size) {
			return s.Stock, true
		}
	}
	return 0, false
}

// CanonicalSize returns the size label as stored on the product.
func (p *Product) CanonicalSize(size string) string {
	for _, s := range p.Sizes {
		if strings.EqualFold(s.Size, size) {
			return s.Size
		}
	}
	return size
}

func (p *Product) Thumbnail() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func NormalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
