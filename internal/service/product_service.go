package service

import (
	"context"
	"fmt"
	"strings"

	"product_catalog/internal/apperr"
	"product_catalog/internal/model"
	"product_catalog/internal/pipeline"
	"product_catalog/internal/repository"

	"github.com/google/uuid"
)

// MaxBulkItems caps a single bulk create request
const MaxBulkItems = 100

var ErrProductNotFound = apperr.New(apperr.KindNotFound, "product not found")

// ProductService defines catalog operations. Every operation is scoped to
// the principal passed in; products of other owners behave as absent.
type ProductService interface {
	Create(ctx context.Context, principal model.Principal, attrs model.ProductAttrs) (*model.Product, error)
	// BulkCreate validates every item before writing any of them
	BulkCreate(ctx context.Context, principal model.Principal, items []model.ProductAttrs) ([]model.Product, error)
	List(ctx context.Context, principal model.Principal, opts pipeline.ListOptions) (*model.ProductPage, error)
	GetByID(ctx context.Context, principal model.Principal, productID uuid.UUID) (*model.Product, error)
	Update(ctx context.Context, principal model.Principal, productID uuid.UUID, patch model.ProductPatch) (*model.Product, error)
	Delete(ctx context.Context, principal model.Principal, productID uuid.UUID) error
	Stats(ctx context.Context, principal model.Principal) (*model.ProductStats, error)
	CategoryStats(ctx context.Context, principal model.Principal) ([]model.CategoryStat, error)
}

type productService struct {
	repo repository.ProductRepository
}

// NewProductService creates a new ProductService
func NewProductService(repo repository.ProductRepository) ProductService {
	return &productService{repo: repo}
}

func normalizeAttrs(attrs *model.ProductAttrs) {
	attrs.Name = strings.TrimSpace(attrs.Name)
	attrs.Category = strings.TrimSpace(attrs.Category)
}

// newProduct builds the record to insert; the owner always comes from the principal
func newProduct(ownerID uuid.UUID, attrs model.ProductAttrs) *model.Product {
	p := &model.Product{
		Name:        attrs.Name,
		Description: attrs.Description,
		Category:    attrs.Category,
		Image:       attrs.Image,
		Owner:       model.Owner{ID: ownerID},
	}
	if attrs.Price != nil {
		p.Price = *attrs.Price
	}
	if attrs.Quantity != nil {
		p.Quantity = *attrs.Quantity
	}
	return p
}

func (s *productService) Create(ctx context.Context, principal model.Principal, attrs model.ProductAttrs) (*model.Product, error) {
	normalizeAttrs(&attrs)
	if err := validate(productValidator, attrs); err != nil {
		return nil, err
	}

	product := newProduct(principal.ID, attrs)
	if err := s.repo.Create(ctx, product); err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to create product: %w", err))
	}
	return product, nil
}

func (s *productService) BulkCreate(ctx context.Context, principal model.Principal, items []model.ProductAttrs) ([]model.Product, error) {
	switch {
	case len(items) == 0:
		return nil, apperr.Validation("validation failed", map[string]string{"items": "at least one product is required"})
	case len(items) > MaxBulkItems:
		return nil, apperr.Validation("validation failed", map[string]string{
			"items": fmt.Sprintf("must contain at most %d products", MaxBulkItems),
		})
	}

	fields := map[string]string{}
	products := make([]*model.Product, 0, len(items))
	for i, attrs := range items {
		normalizeAttrs(&attrs)
		if err := collectViolations(productValidator, attrs, fmt.Sprintf("items[%d].", i), fields); err != nil {
			return nil, apperr.Internal(err)
		}
		products = append(products, newProduct(principal.ID, attrs))
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("validation failed", fields)
	}

	if err := s.repo.CreateMany(ctx, products); err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to create products: %w", err))
	}

	created := make([]model.Product, 0, len(products))
	for _, p := range products {
		created = append(created, *p)
	}
	return created, nil
}

// List returns one page plus pagination metadata. The total is counted with
// the same predicate the page was selected with.
func (s *productService) List(ctx context.Context, principal model.Principal, opts pipeline.ListOptions) (*model.ProductPage, error) {
	opts = opts.WithDefaults()
	if opts.Limit > pipeline.MaxLimit {
		return nil, apperr.Validation("validation failed", map[string]string{
			"limit": fmt.Sprintf("must be at most %d", pipeline.MaxLimit),
		})
	}
	if opts.Page > pipeline.MaxPage {
		return nil, apperr.Validation("validation failed", map[string]string{
			"page": fmt.Sprintf("must be at most %d", pipeline.MaxPage),
		})
	}

	products, err := s.repo.Find(ctx, pipeline.BuildListPipeline(principal.ID, opts))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to list products: %w", err))
	}
	total, err := s.repo.Count(ctx, pipeline.BuildFilter(principal.ID, opts))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to count products: %w", err))
	}

	return &model.ProductPage{
		Products:   products,
		Pagination: paginate(opts.Page, opts.Limit, total),
	}, nil
}

func paginate(page, limit, total int64) model.Pagination {
	return model.Pagination{
		CurrentPage:   page,
		TotalPages:    (total + limit - 1) / limit,
		TotalProducts: total,
		HasNext:       page*limit < total,
		HasPrev:       page > 1,
	}
}

func (s *productService) GetByID(ctx context.Context, principal model.Principal, productID uuid.UUID) (*model.Product, error) {
	products, err := s.repo.Find(ctx, pipeline.BuildGetPipeline(principal.ID, productID))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to get product: %w", err))
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	return &products[0], nil
}

func (s *productService) Update(ctx context.Context, principal model.Principal, productID uuid.UUID, patch model.ProductPatch) (*model.Product, error) {
	if patch.IsEmpty() {
		return nil, apperr.Validation("validation failed", map[string]string{"body": "at least one field must be provided"})
	}
	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		patch.Name = &trimmed
	}
	if patch.Category != nil {
		trimmed := strings.TrimSpace(*patch.Category)
		patch.Category = &trimmed
	}
	if err := validate(productValidator, patch); err != nil {
		return nil, err
	}

	product, err := s.repo.FindOneAndUpdate(ctx, pipeline.ByOwnerAndID(principal.ID, productID), patch)
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to update product: %w", err))
	}
	if product == nil {
		return nil, ErrProductNotFound
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, principal model.Principal, productID uuid.UUID) error {
	deleted, err := s.repo.FindOneAndDelete(ctx, pipeline.ByOwnerAndID(principal.ID, productID))
	if err != nil {
		return apperr.Internal(fmt.Errorf("failed to delete product: %w", err))
	}
	if !deleted {
		return ErrProductNotFound
	}
	return nil
}

// Stats summarizes the principal's inventory; an empty inventory yields zeros
func (s *productService) Stats(ctx context.Context, principal model.Principal) (*model.ProductStats, error) {
	rows, err := s.repo.Aggregate(ctx, pipeline.BuildStatsPipeline(principal.ID))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to compute stats: %w", err))
	}

	stats := &model.ProductStats{Categories: []string{}}
	if len(rows) == 0 || rows[0].Int(pipeline.StatTotalProducts) == 0 {
		return stats, nil
	}

	row := rows[0]
	stats.TotalProducts = row.Int(pipeline.StatTotalProducts)
	stats.TotalValue = row.Float(pipeline.StatTotalValue)
	stats.AveragePrice = row.Float(pipeline.StatAveragePrice)
	stats.TotalStock = row.Int(pipeline.StatTotalStock)
	stats.MinPrice = row.Float(pipeline.StatMinPrice)
	stats.MaxPrice = row.Float(pipeline.StatMaxPrice)
	stats.Categories = row.Strings(pipeline.StatCategories)
	stats.CategoryCount = row.Int(pipeline.StatCategoryCount)
	stats.LowStockProducts = row.Int(pipeline.StatLowStockProducts)
	return stats, nil
}

func (s *productService) CategoryStats(ctx context.Context, principal model.Principal) ([]model.CategoryStat, error) {
	rows, err := s.repo.Aggregate(ctx, pipeline.BuildCategoryStatsPipeline(principal.ID))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("failed to compute category stats: %w", err))
	}

	out := make([]model.CategoryStat, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.CategoryStat{
			Category:     row.String(pipeline.FieldCategory),
			Count:        row.Int(pipeline.StatCount),
			TotalValue:   row.Float(pipeline.StatTotalValue),
			AveragePrice: row.Float(pipeline.StatAveragePrice),
			TotalStock:   row.Int(pipeline.StatTotalStock),
		})
	}
	return out, nil
}
