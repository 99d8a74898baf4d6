package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/yeremiapane/restaurant-table-cart/models"
	"github.com/yeremiapane/restaurant-table-cart/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SeedProduct is a catalog entry with its price as written on the menu.
type SeedProduct struct {
	Name  string
	Price string
}

// Seed describes the demo restaurant created for local runs.
type Seed struct {
	Restaurant    string
	TableCodes    []string
	Products      []SeedProduct
	AdminEmail    string
	AdminPassword string
}

var DemoSeed = Seed{
	Restaurant: "Warung Demo",
	TableCodes: []string{"T01", "T02", "T03", "T04"},
	Products: []SeedProduct{
		{Name: "Nasi Goreng", Price: "5.00"},
		{Name: "Es Teh", Price: "2.50"},
		{Name: "Sate Ayam", Price: "7.25"},
		{Name: "Mie Ayam", Price: "4.75"},
	},
	AdminEmail:    "admin@tablecart.local",
	AdminPassword: "change-me-please",
}

// Apply inserts the seed unless a restaurant with the same name exists.
func (s Seed) Apply(ctx context.Context, db *gorm.DB) (*models.Restaurant, error) {
	var existing models.Restaurant
	err := db.WithContext(ctx).Where("name = ?", s.Restaurant).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	restaurant := &models.Restaurant{Name: s.Restaurant}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(restaurant).Error; err != nil {
			return fmt.Errorf("create restaurant: %w", err)
		}
		for _, code := range s.TableCodes {
			table := models.Table{RestaurantID: restaurant.ID, Code: code, Status: models.TableOpen}
			if err := tx.Create(&table).Error; err != nil {
				return fmt.Errorf("create table %s: %w", code, err)
			}
		}
		for _, p := range s.Products {
			price, err := utils.ParseAmount(p.Price)
			if err != nil {
				return fmt.Errorf("product %s: %w", p.Name, err)
			}
			product := models.Product{RestaurantID: restaurant.ID, Name: p.Name, Price: price, Available: true}
			if err := tx.Create(&product).Error; err != nil {
				return fmt.Errorf("create product %s: %w", p.Name, err)
			}
		}
		if s.AdminEmail == "" {
			return nil
		}
		hashed, err := bcrypt.GenerateFromPassword([]byte(s.AdminPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		admin := models.User{Name: "Admin", Email: s.AdminEmail, Password: string(hashed), Role: models.RoleAdmin}
		return tx.Where("email = ?", admin.Email).FirstOrCreate(&admin).Error
	})
	if err != nil {
		return nil, err
	}

	utils.InfoLogger.Printf("Seeded restaurant %q with %d tables and %d products", s.Restaurant, len(s.TableCodes), len(s.Products))
	return restaurant, nil
}
