// Command catalog-seed pre-warms a catalog database from a gzipped JSON dump.
// The dump is an array of product records; existing rows are replaced by id
// in a single atomic batch, so a live daemon sees the seed all at once.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/catalog-cache/internal/domain/product"
	"github.com/xenking/catalog-cache/internal/store/boltstore"
)

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	ImageURL    string          `json:"imageUrl"`
	IsFavorite  bool            `json:"isFavorite"`
}

func main() {
	var (
		dbPath   string
		dumpFile string
	)

	flag.StringVar(&dbPath, "db-path", "catalog.db", "path to the bbolt catalog database file")
	flag.StringVar(&dumpFile, "dump-file", "catalog.json.gz", "path to the gzipped catalog dump")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dbPath, dumpFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, dbPath, dumpFile string) error {
	products, err := readDump(dumpFile)
	if err != nil {
		return errors.Wrapf(err, "read dump %s", dumpFile)
	}
	slog.Info("dump loaded", slog.Int("products", len(products)))

	store, err := boltstore.Open(dbPath, zap.NewNop())
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer func() { _ = store.Close() }()

	if err := store.UpsertAll(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

func readDump(path string) ([]product.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "open gzip stream")
	}
	defer func() { _ = gz.Close() }()

	var rows []productJSON
	if err := json.NewDecoder(gz).Decode(&rows); err != nil {
		return nil, errors.Wrap(err, "decode dump")
	}

	products := make([]product.Product, len(rows))
	for i, r := range rows {
		category := r.Category
		if category == "" {
			category = product.CategoryUncategorized
		}
		products[i] = product.Product{
			ID:          r.ID,
			Name:        r.Name,
			Description: r.Description,
			Category:    category,
			Price:       r.Price,
			ImageURL:    r.ImageURL,
			IsFavorite:  r.IsFavorite,
		}
	}
	return products, nil
}
