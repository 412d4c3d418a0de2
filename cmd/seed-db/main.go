package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promo-engine/internal/domain/discount"
	"github.com/xenking/promo-engine/internal/domain/product"
	"github.com/xenking/promo-engine/internal/repository"
)

type productJSON struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedDiscounts(ctx, repository.NewDiscountRepository(pool), time.Now()); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	return nil
}

func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var raw []productJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	products := make([]product.Product, 0, len(raw))
	for _, p := range raw {
		products = append(products, product.Product{
			ID:         p.ID,
			Name:       p.Name,
			Price:      p.Price,
			CategoryID: p.Category,
		})
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	return repo.Upsert(ctx, products)
}

// demoDiscounts covers each constraint family once.
func demoDiscounts(now time.Time) []discount.Discount {
	dec := func(v int64) *decimal.Decimal { d := decimal.NewFromInt(v); return &d }
	intp := func(v int) *int { return &v }
	at := func(d time.Duration) *time.Time { t := now.Add(d).UTC().Truncate(time.Second); return &t }

	return []discount.Discount{
		{
			Code: "WELCOME10", Type: discount.TypePercentage, Value: decimal.NewFromInt(10),
			Description: "10% off your first order", AllowAutoApply: true, FirstOrderOnly: true,
		},
		{
			Code: "BIGSPENDER", Type: discount.TypePercentage, Value: decimal.NewFromInt(10),
			MinOrderAmount: dec(1000),
		},
		{
			Code: "FIVEOFF", Type: discount.TypeFixed, Value: decimal.NewFromInt(5),
			AllowAutoApply: true, MaxUsage: intp(100), ExpiresAt: at(30 * 24 * time.Hour),
		},
		{
			Code: "WAFFLES15", Type: discount.TypePercentage, Value: decimal.NewFromInt(15),
			CategoryIDs: []string{"Waffle"}, AllowAutoApply: true,
		},
		{
			Code: "BROWNIE2", Type: discount.TypeFixed, Value: decimal.NewFromInt(2),
			ProductIDs: []string{"8"},
		},
		{
			Code: "FRIENDS20", Type: discount.TypePercentage, Value: decimal.NewFromInt(20),
			ReferralCode: "FRIEND", Description: "20% off for referred friends",
		},
		{
			Code: "WEEKEND", Type: discount.TypePercentage, Value: decimal.NewFromInt(12),
			Status: discount.StatusScheduled, StartsAt: at(48 * time.Hour), ExpiresAt: at(96 * time.Hour),
		},
	}
}

func seedDiscounts(ctx context.Context, repo *repository.DiscountRepository, now time.Time) error {
	ds := demoDiscounts(now)
	slog.Info("seeding demo discounts", slog.Int("count", len(ds)))

	if err := repo.Upsert(ctx, ds); err != nil {
		return err
	}
	for _, d := range ds {
		slog.Info("upserted discount", slog.String("code", d.Code), slog.String("description", discount.Describe(&d)))
	}
	return nil
}
