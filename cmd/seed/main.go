// Seeds the flower catalog with a small set of products for local
// development. Safe to run repeatedly; existing products are left alone.
package main

import (
	"context"
	"fmt"
	"os"

	"bloomkart/internal/config"
	"bloomkart/internal/database"

	"github.com/shopspring/decimal"
)

type seedProduct struct {
	name        string
	description string
	price       string
	stock       int
}

var catalog = []seedProduct{
	{"Red Rose Bouquet", "A dozen long-stemmed red roses", "25.99", 40},
	{"Tulip Mix", "Seasonal tulips in mixed colours", "18.50", 60},
	{"White Lily Arrangement", "Fragrant white lilies with greenery", "32.00", 25},
	{"Sunflower Bunch", "Five bright sunflowers", "14.75", 50},
	{"Peony Bouquet", "Soft pink peonies, seasonal", "34.50", 15},
	{"Orchid in Pot", "Phalaenopsis orchid, ceramic pot", "45.00", 12},
	{"Wildflower Posy", "Hand-tied mixed wildflowers", "12.25", 80},
	{"Eucalyptus Bundle", "Dried eucalyptus stems", "9.99", 100},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := config.NewLogger(cfg.Logger)

	ctx := context.Background()
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	inserted := 0
	for _, p := range catalog {
		tag, err := pool.Exec(ctx, `
			INSERT INTO products (name, description, price, stock, active)
			SELECT $1, $2, $3, $4, TRUE
			WHERE NOT EXISTS (SELECT 1 FROM products WHERE name = $1)
		`, p.name, p.description, decimal.RequireFromString(p.price), p.stock)
		if err != nil {
			return fmt.Errorf("failed to seed product %q: %w", p.name, err)
		}
		inserted += int(tag.RowsAffected())
	}

	logger.Info().
		Int("inserted", inserted).
		Int("catalog_size", len(catalog)).
		Msg("catalog seed completed")

	return nil
}
