package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"product_catalog/internal/model"
	"product_catalog/internal/pipeline"

	"github.com/jackc/pgx/v5"
)

// Row is one output document of an aggregation pipeline, keyed by the group
// key and accumulator names.
type Row map[pipeline.Field]any

// Int reads a count; numeric values of either kind are accepted
func (r Row) Int(f pipeline.Field) int64 {
	switch v := r[f].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	}
	return 0
}

func (r Row) Float(f pipeline.Field) float64 {
	switch v := r[f].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (r Row) String(f pipeline.Field) string {
	s, _ := r[f].(string)
	return s
}

// Strings reads a distinct set, never nil
func (r Row) Strings(f pipeline.Field) []string {
	if s, ok := r[f].([]string); ok && s != nil {
		return s
	}
	return []string{}
}

// ProductRepository defines operations for product data. Every read and
// mutation takes its predicate from the pipeline package so ownership is
// part of the same statement.
type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	CreateMany(ctx context.Context, products []*model.Product) error
	Find(ctx context.Context, stages []pipeline.Stage) ([]model.Product, error)
	Count(ctx context.Context, filter pipeline.Match) (int64, error)
	// FindOneAndUpdate returns nil, nil when nothing matched
	FindOneAndUpdate(ctx context.Context, filter pipeline.Match, patch model.ProductPatch) (*model.Product, error)
	// FindOneAndDelete reports whether a product matched
	FindOneAndDelete(ctx context.Context, filter pipeline.Match) (bool, error)
	Aggregate(ctx context.Context, stages []pipeline.Stage) ([]Row, error)
}

type productRepository struct {
	db DB
}

// NewProductRepository creates a new ProductRepository
func NewProductRepository(db DB) ProductRepository {
	return &productRepository{db: db}
}

// insertProductSQL inserts one product and returns it in ProductProjection order
const insertProductSQL = `WITH ins AS (
    INSERT INTO products (owner_id, name, description, price, quantity, category, image)
    VALUES ($1, $2, $3, $4, $5, $6, $7)
    RETURNING id, owner_id, name, description, price, quantity, category, image, created_at, updated_at
)
SELECT ins.id, ins.name, ins.description, ins.price, ins.quantity, ins.category, ins.image,
       ins.owner_id, COALESCE(u.name, ''), COALESCE(u.email, ''), ins.created_at, ins.updated_at
FROM ins LEFT JOIN users u ON u.id = ins.owner_id`

func insertArgs(p *model.Product) []any {
	return []any{p.Owner.ID, p.Name, p.Description, p.Price, p.Quantity, p.Category, p.Image}
}

// Create inserts a new product; ID, timestamps and owner projection are filled in
func (r *productRepository) Create(ctx context.Context, p *model.Product) error {
	if err := scanProductInto(r.db.QueryRow(ctx, insertProductSQL, insertArgs(p)...), p); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// CreateMany inserts all products in one transaction; nothing is written on failure
func (r *productRepository) CreateMany(ctx context.Context, products []*model.Product) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin bulk insert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	for i, p := range products {
		if err := scanProductInto(tx.QueryRow(ctx, insertProductSQL, insertArgs(p)...), p); err != nil {
			return fmt.Errorf("failed to insert product %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit bulk insert: %w", err)
	}
	return nil
}

// Find runs a listing pipeline
func (r *productRepository) Find(ctx context.Context, stages []pipeline.Stage) ([]model.Product, error) {
	sql, args, err := compileFind(stages)
	if err != nil {
		return nil, fmt.Errorf("failed to compile product query: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []model.Product{}
	for rows.Next() {
		var p model.Product
		if err := scanProductInto(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating product rows: %w", err)
	}
	return products, nil
}

// Count returns the number of products matching filter
func (r *productRepository) Count(ctx context.Context, filter pipeline.Match) (int64, error) {
	sql, args, err := compileCount(filter)
	if err != nil {
		return 0, fmt.Errorf("failed to compile count query: %w", err)
	}
	var total int64
	if err := r.db.QueryRow(ctx, sql, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return total, nil
}

// FindOneAndUpdate applies patch to the single product matching filter
func (r *productRepository) FindOneAndUpdate(ctx context.Context, filter pipeline.Match, patch model.ProductPatch) (*model.Product, error) {
	q := &sqlQuery{}
	sets := []string{}
	if patch.Name != nil {
		sets = append(sets, "name = "+q.arg(*patch.Name))
	}
	if patch.Description != nil {
		sets = append(sets, "description = "+q.arg(*patch.Description))
	}
	if patch.Price != nil {
		sets = append(sets, "price = "+q.arg(*patch.Price))
	}
	if patch.Quantity != nil {
		sets = append(sets, "quantity = "+q.arg(*patch.Quantity))
	}
	if patch.Category != nil {
		sets = append(sets, "category = "+q.arg(*patch.Category))
	}
	if patch.Image != nil {
		sets = append(sets, "image = "+q.arg(*patch.Image))
	}
	sets = append(sets, "updated_at = NOW()")

	where, err := q.where([]pipeline.Match{filter})
	if err != nil {
		return nil, fmt.Errorf("failed to compile update filter: %w", err)
	}

	q.write(`WITH upd AS (
    UPDATE products AS p SET `, strings.Join(sets, ", "), where, `
    RETURNING p.id, p.owner_id, p.name, p.description, p.price, p.quantity, p.category, p.image, p.created_at, p.updated_at
)
SELECT upd.id, upd.name, upd.description, upd.price, upd.quantity, upd.category, upd.image,
       upd.owner_id, COALESCE(u.name, ''), COALESCE(u.email, ''), upd.created_at, upd.updated_at
FROM upd LEFT JOIN users u ON u.id = upd.owner_id`)

	var p model.Product
	if err := scanProductInto(r.db.QueryRow(ctx, q.String(), q.args...), &p); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}
	return &p, nil
}

// FindOneAndDelete removes the single product matching filter
func (r *productRepository) FindOneAndDelete(ctx context.Context, filter pipeline.Match) (bool, error) {
	q := &sqlQuery{}
	where, err := q.where([]pipeline.Match{filter})
	if err != nil {
		return false, fmt.Errorf("failed to compile delete filter: %w", err)
	}
	q.write("DELETE FROM products AS p", where)

	cmdTag, err := r.db.Exec(ctx, q.String(), q.args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}

// Aggregate runs a grouping pipeline
func (r *productRepository) Aggregate(ctx context.Context, stages []pipeline.Stage) ([]Row, error) {
	sql, args, group, err := compileGroup(stages)
	if err != nil {
		return nil, fmt.Errorf("failed to compile aggregation: %w", err)
	}

	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run aggregation: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		names, dest := groupDestinations(group)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan aggregation row: %w", err)
		}
		row := make(Row, len(names))
		for i, name := range names {
			row[name] = deref(dest[i])
		}
		out = append(out, row)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating aggregation rows: %w", err)
	}
	return out, nil
}

// groupDestinations allocates typed scan targets in output column order
func groupDestinations(g *pipeline.Group) ([]pipeline.Field, []any) {
	var names []pipeline.Field
	var dest []any
	if g.By != "" {
		names = append(names, g.By)
		dest = append(dest, new(string))
	}
	for _, acc := range g.Accumulators {
		names = append(names, acc.Name)
		switch acc.Op {
		case pipeline.AccCount, pipeline.AccDistinctCount, pipeline.AccCountBelow:
			dest = append(dest, new(int64))
		case pipeline.AccDistinct:
			dest = append(dest, new([]string))
		default:
			dest = append(dest, new(float64))
		}
	}
	return names, dest
}

func deref(v any) any {
	switch p := v.(type) {
	case *string:
		return *p
	case *int64:
		return *p
	case *float64:
		return *p
	case *[]string:
		if *p == nil {
			return []string{}
		}
		return *p
	default:
		return v
	}
}

func scanProductInto(row pgx.Row, p *model.Product) error {
	return row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.Quantity, &p.Category, &p.Image,
		&p.Owner.ID, &p.Owner.Name, &p.Owner.Email, &p.CreatedAt, &p.UpdatedAt)
}
