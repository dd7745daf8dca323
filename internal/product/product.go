package product

import "github.com/shopspring/decimal"

// Product is a catalog row. It is read-only from the storefront's point of
// view; carts copy the fields they need at add time.
type Product struct {
	ID    int             `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image"`
}

// SampleProducts is the catalog loaded by `shopctl seed-products`.
func SampleProducts() []Product {
	return []Product{
		{Name: "Yerba Mate 1kg", Price: decimal.RequireFromString("12.50"), Image: "/static/img/yerba.jpg"},
		{Name: "Gourd and Bombilla Set", Price: decimal.RequireFromString("19.99"), Image: "/static/img/mate-set.jpg"},
		{Name: "Alfajores (box of 12)", Price: decimal.RequireFromString("9.75"), Image: "/static/img/alfajores.jpg"},
		{Name: "Dulce de Leche 450g", Price: decimal.RequireFromString("5.00"), Image: "/static/img/dulce.jpg"},
	}
}
