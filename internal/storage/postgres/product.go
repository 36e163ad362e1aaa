package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-voice/internal/catalog"
	"github.com/xenking/kart-voice/internal/domain/product"
)

const (
	listProductsSQL = `SELECT id, name, price, image, description, category, collections, in_stock
		FROM products ORDER BY position`

	getProductSQL = `SELECT id, name, price, image, description, category, collections, in_stock
		FROM products WHERE id = $1`

	upsertProductSQL = `INSERT INTO products (id, name, price, image, description, category, collections, in_stock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			price = EXCLUDED.price,
			image = EXCLUDED.image,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			collections = EXCLUDED.collections,
			in_stock = EXCLUDED.in_stock,
			updated_at = now()`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository serves the fallback catalog from PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all products in insertion order.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, errors.Wrap(err, "scan products")
	}
	return products, nil
}

// Get returns a single product by id, or product.ErrNotFound.
func (r *ProductRepository) Get(ctx context.Context, id string) (product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return product.Product{}, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return product.Product{}, product.ErrNotFound
		}
		return product.Product{}, errors.Wrapf(err, "get product %q", id)
	}
	return p, nil
}

// Upsert inserts or updates products in a single batch.
func (r *ProductRepository) Upsert(ctx context.Context, products []product.Product) error {
	batch := &pgx.Batch{}
	for _, p := range products {
		p = catalog.Canonicalize(p)
		collections := p.Collections
		if collections == nil {
			collections = []string{}
		}
		batch.Queue(upsertProductSQL,
			p.ID, p.Name, decimal.NewFromInt(int64(p.Price)),
			p.Image, p.Description, p.Category, collections, p.InStock,
		)
	}
	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return errors.Wrap(err, "upsert products")
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var (
		p     product.Product
		price decimal.Decimal
	)
	if err := row.Scan(
		&p.ID, &p.Name, &price, &p.Image, &p.Description,
		&p.Category, &p.Collections, &p.InStock,
	); err != nil {
		return product.Product{}, err
	}
	p.Price = int(price.Round(0).IntPart())
	p.Source = product.SourceFallback
	if len(p.Collections) == 0 {
		p.Collections = nil
	}
	return catalog.Canonicalize(p), nil
}
