package services

import (
	"context"

	"github.com/yeremiapane/restaurant-table-cart/models"
	"gorm.io/gorm"
)

// Catalog resolves product ids to their current name and price. It is
// consulted only when a product first enters a guest's cart.
type Catalog interface {
	Lookup(ctx context.Context, restaurantID uint, productIDs []uint) (map[uint]models.Product, error)
}

// DBCatalog reads the local products projection.
type DBCatalog struct {
	DB *gorm.DB
}

func NewDBCatalog(db *gorm.DB) *DBCatalog {
	return &DBCatalog{DB: db}
}

// Lookup fails with a ValidationError when a product is unknown, belongs to
// another restaurant, or is unavailable.
func (c *DBCatalog) Lookup(ctx context.Context, restaurantID uint, productIDs []uint) (map[uint]models.Product, error) {
	found := make(map[uint]models.Product, len(productIDs))
	if len(productIDs) == 0 {
		return found, nil
	}

	var products []models.Product
	if err := c.DB.WithContext(ctx).
		Where("restaurant_id = ? AND id IN ?", restaurantID, productIDs).
		Find(&products).Error; err != nil {
		return nil, transient("catalog lookup", err)
	}

	for _, p := range products {
		found[p.ID] = p
	}
	for _, id := range productIDs {
		p, ok := found[id]
		if !ok {
			return nil, invalid("items", "unknown product %d", id)
		}
		if !p.Available {
			return nil, invalid("items", "product %d (%s) is not available", id, p.Name)
		}
	}
	return found, nil
}

var _ Catalog = (*DBCatalog)(nil)
