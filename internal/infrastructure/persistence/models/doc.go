// Package models contains GORM persistence models. Domain entities stay free
// of ORM tags; each model converts to and from its domain type.
//
//   - base.go: BaseModel and AggregateModel
//   - catalog.go: products and product_variants
//   - order.go: orders and order_items
package models
