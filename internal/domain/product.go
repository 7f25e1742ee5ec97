package domain

import (
	"encoding/json"
	"strings"
)

// Product as exposed by the remote catalog.
type Product struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Stock    int     `json:"stock"`
	SKU      *string `json:"sku"`
	Active   bool    `json:"active"`
	ImageURL *string `json:"imageUrl"`
}

// UnmarshalJSON reads a product as the backend sends it. A missing active
// flag means the product is active.
func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	aux := struct {
		*plain
		Active *bool `json:"active"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	p.Active = aux.Active == nil || *aux.Active
	return nil
}

// Ref returns the cart reference for p. Products without a SKU cannot be
// sold and yield ok=false.
func (p Product) Ref() (ProductRef, bool) {
	if p.SKU == nil || *p.SKU == "" {
		return ProductRef{}, false
	}
	return ProductRef{SKU: *p.SKU, Name: p.Name, Price: p.Price}, true
}

// ProductInput is the body for creating a product.
type ProductInput struct {
	Name     string  `json:"name" validate:"required,min=1,max=120"`
	Price    float64 `json:"price" validate:"gte=0"`
	SKU      *string `json:"sku" validate:"omitempty,sku"`
	Stock    *int    `json:"stock" validate:"omitempty,gte=0"`
	Active   *bool   `json:"active"`
	ImageURL *string `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// Normalize trims the name and fills the defaults the backend expects:
// stock 0, active true.
func (in ProductInput) Normalize() ProductInput {
	in.Name = strings.TrimSpace(in.Name)
	if in.Stock == nil {
		zero := 0
		in.Stock = &zero
	}
	if in.Active == nil {
		active := true
		in.Active = &active
	}
	return in
}

// ProductPatch is a partial product update. Nil fields are left unchanged.
type ProductPatch struct {
	Name     *string  `json:"name,omitempty" validate:"omitempty,min=1,max=120"`
	Price    *float64 `json:"price,omitempty" validate:"omitempty,gte=0"`
	SKU      *string  `json:"sku,omitempty" validate:"omitempty,sku"`
	Active   *bool    `json:"active,omitempty"`
	ImageURL *string  `json:"imageUrl,omitempty" validate:"omitempty,url"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ProductPatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.SKU == nil && p.Active == nil && p.ImageURL == nil
}

// StockChange sets or adjusts stock. Exactly one field must be set.
type StockChange struct {
	Stock *int `json:"stock,omitempty" validate:"omitempty,gte=0"`
	Delta *int `json:"delta,omitempty"`
}

// IsValid reports whether exactly one of Stock and Delta is set.
func (s StockChange) IsValid() bool {
	return (s.Stock == nil) != (s.Delta == nil)
}
