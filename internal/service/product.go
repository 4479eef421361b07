package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/slug"
)

// Store constraint names the writer reacts to.
const (
	constraintProductSlug = "products_slug_key"
	constraintVariantSKU  = "product_variants_sku_key"
)

// maxSlugAttempts bounds how often a write is retried after losing a slug
// race to a concurrent creation.
const maxSlugAttempts = 5

var (
	productsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_products_created_total",
		Help: "Total number of products created with their variants",
	})

	slugConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "catalog_slug_conflicts_total",
		Help: "Total number of product writes retried after a concurrent slug collision",
	})
)

// ProductEventPublisher publishes product lifecycle events.
type ProductEventPublisher interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
	PublishProductUpdated(ctx context.Context, product *domain.Product) error
}

// ProductService implements the catalog writer and reader.
type ProductService struct {
	repo       repository.ProductRepository
	categories repository.CategoryRepository
	vendors    repository.VendorRepository
	producer   ProductEventPublisher
	logger     *slog.Logger
}

// NewProductService creates a new product service.
func NewProductService(
	repo repository.ProductRepository,
	categories repository.CategoryRepository,
	vendors repository.VendorRepository,
	producer ProductEventPublisher,
	logger *slog.Logger,
) *ProductService {
	return &ProductService{
		repo:       repo,
		categories: categories,
		vendors:    vendors,
		producer:   producer,
		logger:     logger,
	}
}

// CreateProductInput holds the parameters for creating a product. Variants
// and Subcategories are kept raw because clients send them either as JSON
// values or as JSON-encoded strings.
type CreateProductInput struct {
	Name             string
	Category         string
	Subcategories    json.RawMessage
	Brand            string
	ShortDescription string
	Description      string
	IsAvailable      *bool
	Variants         json.RawMessage

	// DefaultImages are product-level media references. VariantImages maps
	// a variant's index in Variants to its media references.
	DefaultImages []string
	VariantImages map[int][]string
}

// UpdateProductInput holds the parameters for a partial product update.
type UpdateProductInput struct {
	Name             *string
	Category         *string
	Subcategories    json.RawMessage
	Brand            *string
	ShortDescription *string
	Description      *string
	IsAvailable      *bool
}

// CreateProductWithVariants validates and normalizes the input, then writes
// the product and all of its variants atomically. Nothing is written when
// any variant fails normalization.
func (s *ProductService) CreateProductWithVariants(ctx context.Context, vendorID string, input CreateProductInput) (*domain.Product, error) {
	if strings.TrimSpace(vendorID) == "" {
		return nil, apperrors.Unauthorized("vendor identity is required")
	}

	rawVariants, err := DecodeVariants(input.Variants)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	categoryRef := strings.TrimSpace(input.Category)

	missing := make(map[string]string)
	if name == "" {
		missing["name"] = "is required"
	}
	if categoryRef == "" {
		missing["category"] = "is required"
	}
	if len(rawVariants) == 0 {
		missing["variants"] = "at least one variant is required"
	}
	if len(missing) > 0 {
		return nil, apperrors.Validation(missing)
	}

	if err := s.requireActiveVendor(ctx, vendorID); err != nil {
		return nil, err
	}

	category, err := s.resolveCategory(ctx, categoryRef)
	if err != nil {
		return nil, err
	}

	subcategories, err := ParseSubcategories(input.Subcategories)
	if err != nil {
		return nil, err
	}

	productID := uuid.New().String()
	variants := make([]domain.Variant, 0, len(rawVariants))
	seen := make(map[string]struct{}, len(rawVariants))
	for i, raw := range rawVariants {
		v, err := NormalizeVariant(i, raw, input.VariantImages[i])
		if err != nil {
			return nil, err
		}
		if _, dup := seen[v.SKU]; dup {
			return nil, apperrors.AlreadyExists("variant", "sku", v.SKU)
		}
		seen[v.SKU] = struct{}{}
		v.ProductID = productID
		variants = append(variants, v)
	}

	isAvailable := true
	if input.IsAvailable != nil {
		isAvailable = *input.IsAvailable
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:               productID,
		VendorID:         vendorID,
		Name:             name,
		Category:         category.Name,
		Subcategories:    subcategories,
		Brand:            strings.TrimSpace(input.Brand),
		ShortDescription: strings.TrimSpace(input.ShortDescription),
		Description:      input.Description,
		IsAvailable:      isAvailable,
		ImageURLs:        append([]string{}, input.DefaultImages...),
		Variants:         variants,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.writeWithUniqueSlug(ctx, product, "", s.repo.CreateWithVariants); err != nil {
		return nil, err
	}

	productsCreated.Inc()

	if err := s.producer.PublishProductCreated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.created event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("vendor_id", vendorID),
		slog.String("slug", product.Slug),
		slog.Int("variants", len(product.Variants)),
	)

	return product, nil
}

// writeWithUniqueSlug assigns product a unique slug and runs write. When the
// store rejects the slug because a concurrent request claimed it first, a
// fresh slug is generated and the write repeated. currentSlug is the slug the
// product already owns, which does not count as taken.
func (s *ProductService) writeWithUniqueSlug(ctx context.Context, product *domain.Product, currentSlug string, write func(context.Context, *domain.Product) error) error {
	exists := func(ctx context.Context, candidate string) (bool, error) {
		if currentSlug != "" && candidate == currentSlug {
			return false, nil
		}
		return s.repo.ExistsBySlug(ctx, candidate)
	}

	for attempt := 1; ; attempt++ {
		generated, err := slug.GenerateUnique(ctx, product.Name, exists)
		if err != nil {
			if slug.IsEmptySlug(err) {
				return apperrors.Validation(map[string]string{"name": "must contain at least one letter or digit"})
			}
			return fmt.Errorf("generate slug: %w", err)
		}
		product.Slug = generated

		err = write(ctx, product)
		if err == nil {
			return nil
		}

		constraint, unique := database.UniqueViolation(err)
		switch {
		case !unique:
			return fmt.Errorf("write product: %w", err)
		case constraint == constraintVariantSKU:
			sku := database.ConflictValue(err)
			if sku == "" {
				sku = strings.Join(product.SKUs(), ", ")
			}
			return apperrors.AlreadyExists("variant", "sku", sku)
		case constraint == constraintProductSlug && attempt < maxSlugAttempts:
			slugConflicts.Inc()
			s.logger.WarnContext(ctx, "slug taken concurrently, retrying",
				slog.String("slug", generated),
				slog.Int("attempt", attempt),
			)
		default:
			return apperrors.AlreadyExists("product", "slug", generated)
		}
	}
}

func (s *ProductService) requireActiveVendor(ctx context.Context, vendorID string) error {
	if _, err := uuid.Parse(vendorID); err != nil {
		return apperrors.Unauthorized("vendor identity is invalid")
	}
	vendor, err := s.vendors.GetByID(ctx, vendorID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Unauthorized("vendor account does not exist")
		}
		return fmt.Errorf("get vendor: %w", err)
	}
	if !vendor.IsActive {
		return apperrors.Unauthorized("vendor account is inactive")
	}
	return nil
}

func (s *ProductService) resolveCategory(ctx context.Context, ref string) (*domain.Category, error) {
	category, err := s.categories.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Validation(map[string]string{"category": "does not reference an existing category"})
		}
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	return category, nil
}

// ListProducts returns products newest first. An empty page is an empty
// slice, never an error.
func (s *ProductService) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error) {
	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	filter.Page, filter.PerPage = page.Page, page.PerPage

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, total, nil
}

// ListVendorProducts lists the products owned by vendorID.
func (s *ProductService) ListVendorProducts(ctx context.Context, vendorID string, page pagination.Params) ([]domain.Product, int, error) {
	if vendorID == "" {
		return nil, 0, apperrors.Unauthorized("vendor identity is required")
	}
	return s.ListProducts(ctx, repository.ProductFilter{
		VendorID: &vendorID,
		Page:     page.Page,
		PerPage:  page.PerPage,
	})
}

// GetProductByID retrieves a product with its variants and vendor. A
// malformed id is reported as not found.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*domain.ProductDetail, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound("product", id)
	}
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product by id: %w", err)
	}
	return product, nil
}

// GetProductBySlug retrieves a product by its slug.
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*domain.ProductDetail, error) {
	product, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, fmt.Errorf("get product by slug: %w", err)
	}
	return product, nil
}

// UpdateProduct applies a partial update to a product owned by vendorID.
// Renaming regenerates the slug.
func (s *ProductService) UpdateProduct(ctx context.Context, vendorID, productID string, input UpdateProductInput) (*domain.Product, error) {
	detail, err := s.ownedProduct(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}
	product := &detail.Product

	renamed := false
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.Validation(map[string]string{"name": "must not be empty"})
		}
		renamed = name != product.Name
		product.Name = name
	}

	if input.Category != nil {
		category, err := s.resolveCategory(ctx, strings.TrimSpace(*input.Category))
		if err != nil {
			return nil, err
		}
		product.Category = category.Name
	}

	if input.Subcategories != nil {
		subcategories, err := ParseSubcategories(input.Subcategories)
		if err != nil {
			return nil, err
		}
		product.Subcategories = subcategories
	}

	if input.Brand != nil {
		product.Brand = strings.TrimSpace(*input.Brand)
	}
	if input.ShortDescription != nil {
		product.ShortDescription = strings.TrimSpace(*input.ShortDescription)
	}
	if input.Description != nil {
		product.Description = *input.Description
	}
	if input.IsAvailable != nil {
		product.IsAvailable = *input.IsAvailable
	}

	if renamed {
		err = s.writeWithUniqueSlug(ctx, product, product.Slug, s.repo.Update)
	} else {
		err = s.repo.Update(ctx, product)
	}
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) || errors.Is(err, apperrors.ErrAlreadyExists) || errors.Is(err, apperrors.ErrValidation) {
			return nil, err
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	s.publishUpdated(ctx, product)

	s.logger.InfoContext(ctx, "product updated",
		slog.String("product_id", product.ID),
		slog.String("slug", product.Slug),
	)

	return product, nil
}

// UpdateVariantStock sets the stock of one variant of a product owned by
// vendorID.
func (s *ProductService) UpdateVariantStock(ctx context.Context, vendorID, productID, sku string, quantity int) (*domain.Product, error) {
	if quantity < 0 {
		return nil, apperrors.Validation(map[string]string{"stockQuantity": "must be greater than or equal to 0"})
	}

	detail, err := s.ownedProduct(ctx, vendorID, productID)
	if err != nil {
		return nil, err
	}
	product := &detail.Product

	variant := product.VariantBySKU(sku)
	if variant == nil {
		return nil, apperrors.NotFound("variant", sku)
	}

	if err := s.repo.UpdateVariantStock(ctx, product.ID, sku, quantity); err != nil {
		return nil, fmt.Errorf("update variant stock: %w", err)
	}
	variant.StockQuantity = quantity

	s.publishUpdated(ctx, product)

	return product, nil
}

func (s *ProductService) ownedProduct(ctx context.Context, vendorID, productID string) (*domain.ProductDetail, error) {
	if vendorID == "" {
		return nil, apperrors.Unauthorized("vendor identity is required")
	}
	detail, err := s.GetProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !detail.OwnedBy(vendorID) {
		return nil, apperrors.Forbidden("product belongs to another vendor")
	}
	return detail, nil
}

func (s *ProductService) publishUpdated(ctx context.Context, product *domain.Product) {
	if err := s.producer.PublishProductUpdated(ctx, product); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish product.updated event",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
}
