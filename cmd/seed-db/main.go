// Command seed-db creates a demo site with products, users, coupons, and an
// API key. Intended for local development and integration tests.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/merchkit/storefront/internal/repository"
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
		siteID       string
		siteSlug     string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&siteID, "site", "demo", "site ID to seed")
	flag.StringVar(&siteSlug, "site-slug", "demo-store", "site slug")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or STOREFRONT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or STOREFRONT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("STOREFRONT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or STOREFRONT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("STOREFRONT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, siteID, siteSlug, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, siteID, siteSlug, productsFile, apiKey, pepper string) error {
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

	if err := seedSite(ctx, pool, siteID, siteSlug); err != nil {
		return errors.Wrap(err, "seed site")
	}

	if err := seedProducts(ctx, pool, siteID, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedUsers(ctx, pool, siteID); err != nil {
		return errors.Wrap(err, "seed users")
	}

	if err := seedCoupons(ctx, pool, siteID); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedAPIKey(ctx, pool, siteID, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedSite(ctx context.Context, pool *pgxpool.Pool, siteID, slug string) error {
	slog.Info("seeding site", slog.String("id", siteID))

	_, err := pool.Exec(ctx, `
		INSERT INTO sites (id, slug, name, currency, tax_rate, shipping_fee, active)
		VALUES ($1, $2, $3, 'USD', 0.0825, 5.00, TRUE)
		ON CONFLICT (id) DO UPDATE SET slug = EXCLUDED.slug, name = EXCLUDED.name
	`, siteID, slug, "Demo Store")
	return err
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, siteID, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		_, err := pool.Exec(ctx, `
			INSERT INTO products (id, site_id, name, price, category, active)
			VALUES ($1, $2, $3, $4, $5, TRUE)
			ON CONFLICT (site_id, id) DO UPDATE SET
				name = EXCLUDED.name, price = EXCLUDED.price, category = EXCLUDED.category
		`, p.ID, siteID, p.Name, p.Price, p.Category)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, siteID string) error {
	slog.Info("seeding demo users")

	users := []struct {
		id, email, name, customerType string
	}{
		{"user-alice", "alice@example.com", "Alice", "individual"},
		{"user-acme", "purchasing@acme.example.com", "Acme Corp", "business"},
	}

	for _, u := range users {
		_, err := pool.Exec(ctx, `
			INSERT INTO users (id, site_id, email, name, customer_type)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, name = EXCLUDED.name
		`, u.id, siteID, u.email, u.name, u.customerType)
		if err != nil {
			return errors.Wrapf(err, "upsert user %s", u.id)
		}
	}

	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, siteID string) error {
	slog.Info("seeding demo coupons")

	coupons := []struct {
		id, code, typ  string
		value          decimal.Decimal
		minimumAmount  decimal.Decimal
		maximumDiscnt  decimal.Decimal
		maxUsages      int
		description    string
		firstOrderOnly bool
	}{
		{
			id: siteID + "-welcome10", code: "WELCOME10", typ: "percentage",
			value: decimal.NewFromInt(10), maximumDiscnt: decimal.NewFromInt(20),
			description: "Welcome: 10% off your first order", firstOrderOnly: true,
		},
		{
			id: siteID + "-save5", code: "SAVE5", typ: "fixed_amount",
			value: decimal.NewFromInt(5), minimumAmount: decimal.NewFromInt(25),
			description: "$5 off orders over $25",
		},
		{
			id: siteID + "-freeship", code: "FREESHIP", typ: "free_shipping",
			value: decimal.Zero, maxUsages: 1000,
			description: "Free shipping",
		},
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, `
			INSERT INTO coupons (id, site_id, code, type, value, minimum_amount,
				maximum_discount, max_usages, first_order_only, description, active)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, TRUE)
			ON CONFLICT (id) DO UPDATE SET
				value = EXCLUDED.value, description = EXCLUDED.description
		`, c.id, siteID, c.code, c.typ, c.value, c.minimumAmount,
			c.maximumDiscnt, c.maxUsages, c.firstOrderOnly, c.description)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}

		slog.Info("upserted coupon", slog.String("code", c.code), slog.String("description", c.description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, siteID, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `
		INSERT INTO api_keys (id, site_id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, $5, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash
	`, siteID+"-default", siteID, keyHash, "Default test key", []string{"checkout", "orders"})
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", siteID+"-default"))

	return nil
}
