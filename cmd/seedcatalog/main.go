// cmd/seedcatalog/main.go: loads a demo menu, delivery zones and tables.
// Safe to re-run: rows are upserted by name / number.
// Uso: go run ./cmd/seedcatalog
package main

import (
	"context"
	"fmt"
	"os"

	"imperio/internal/config"
	"imperio/internal/infra"
	"imperio/internal/model"
	"imperio/internal/textnorm"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tableCount = 12

var menu = map[string][]struct {
	name  string
	price string
}{
	"Lanches": {
		{"X-Burguer", "22.00"},
		{"X-Salada", "24.00"},
		{"Misto Quente", "12.00"},
	},
	"Porções": {
		{"Batata Frita", "18.00"},
		{"Calabresa Acebolada", "32.00"},
	},
	"Pizzas": {
		{"Pizza Margherita", "45.00"},
		{"Pizza Calabresa", "42.00"},
	},
	"Bebidas": {
		{"Coca-Cola lata", "6.50"},
		{"Guaraná lata", "6.00"},
		{"Suco de Laranja", "9.00"},
	},
}

var categoryOrder = []string{"Lanches", "Porções", "Pizzas", "Bebidas"}

var zones = []struct {
	name string
	fee  string
}{
	{"Centro", "8.00"},
	{"Jardim América", "10.00"},
	{"Vila Nova", "12.00"},
	{"São José", "14.00"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	err = db.WithContext(context.Background()).Transaction(func(tx *gorm.DB) error {
		if err := seedMenu(tx); err != nil {
			return err
		}
		if err := seedZones(tx); err != nil {
			return err
		}
		return seedTables(tx)
	})
	if err != nil {
		log.Error().Err(err).Msg("seed failed")
		os.Exit(1)
	}
	fmt.Printf("Cardápio, %d bairros e %d mesas carregados\n", len(zones), tableCount)
}

func seedMenu(tx *gorm.DB) error {
	for i, name := range categoryOrder {
		cat := model.Category{Name: name, Active: true, SortOrder: i}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"sort_order", "active"}),
		}).Create(&cat).Error; err != nil {
			return fmt.Errorf("category %s: %w", name, err)
		}
		if err := tx.Where("name = ?", name).First(&cat).Error; err != nil {
			return err
		}
		for _, item := range menu[name] {
			p := model.Product{
				Name:       item.name,
				Price:      decimal.RequireFromString(item.price),
				CategoryID: &cat.ID,
				Available:  true,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"price", "category_id", "available"}),
			}).Create(&p).Error; err != nil {
				return fmt.Errorf("product %s: %w", item.name, err)
			}
		}
	}
	return nil
}

func seedZones(tx *gorm.DB) error {
	for _, z := range zones {
		zone := model.DeliveryZone{
			Name:        textnorm.Fold(z.name),
			DisplayName: z.name,
			Fee:         decimal.RequireFromString(z.fee),
			Active:      true,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"display_name", "fee", "active"}),
		}).Create(&zone).Error; err != nil {
			return fmt.Errorf("zone %s: %w", z.name, err)
		}
	}
	return nil
}

func seedTables(tx *gorm.DB) error {
	for n := 1; n <= tableCount; n++ {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&model.DiningTable{Number: n}).Error; err != nil {
			return fmt.Errorf("table %d: %w", n, err)
		}
	}
	return nil
}
