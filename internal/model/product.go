package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MaxProductNameLength = 100
	LowStockThreshold    = 10
)

// Owner is the denormalized projection of a product's owner
type Owner struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// Product is a catalog entry owned by exactly one user
type Product struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Quantity    int64     `json:"quantity"`
	Category    string    `json:"category"`
	Image       string    `json:"image"`
	Owner       Owner     `json:"owner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ProductAttrs are the client-supplied fields of a new product. The owner
// is never taken from here.
type ProductAttrs struct {
	Name        string   `json:"name" validate:"required,max=100"`
	Description string   `json:"description"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Quantity    *int64   `json:"quantity" validate:"omitnil,gte=0"`
	Category    string   `json:"category" validate:"max=100"`
	Image       string   `json:"image"`
}

// ProductPatch holds a partial update. Nil fields are left unchanged.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty" validate:"omitnil,min=1,max=100"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" validate:"omitnil,gte=0"`
	Quantity    *int64   `json:"quantity,omitempty" validate:"omitnil,gte=0"`
	Category    *string  `json:"category,omitempty" validate:"omitnil,max=100"`
	Image       *string  `json:"image,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Description == nil && p.Price == nil &&
		p.Quantity == nil && p.Category == nil && p.Image == nil
}

// Pagination is the metadata returned alongside a product page
type Pagination struct {
	CurrentPage   int64 `json:"currentPage"`
	TotalPages    int64 `json:"totalPages"`
	TotalProducts int64 `json:"totalProducts"`
	HasNext       bool  `json:"hasNext"`
	HasPrev       bool  `json:"hasPrev"`
}

type ProductPage struct {
	Products   []Product  `json:"products"`
	Pagination Pagination `json:"pagination"`
}

// ProductStats aggregates a single owner's inventory.
// TotalValue is the sum of prices.
type ProductStats struct {
	TotalProducts    int64    `json:"totalProducts"`
	TotalValue       float64  `json:"totalValue"`
	AveragePrice     float64  `json:"averagePrice"`
	TotalStock       int64    `json:"totalStock"`
	MinPrice         float64  `json:"minPrice"`
	MaxPrice         float64  `json:"maxPrice"`
	Categories       []string `json:"categories"`
	CategoryCount    int64    `json:"categoryCount"`
	LowStockProducts int64    `json:"lowStockProducts"`
}

// CategoryStat aggregates products sharing a category.
// TotalValue is the sum of price × quantity.
type CategoryStat struct {
	Category     string  `json:"category"`
	Count        int64   `json:"count"`
	TotalValue   float64 `json:"totalValue"`
	AveragePrice float64 `json:"averagePrice"`
	TotalStock   int64   `json:"totalStock"`
}
