package repository

import (
	"context"
	"time"

	"github.com/utafrali/marketplace/internal/domain"
)

// ProductFilter defines filter criteria for listing products. Results are
// always ordered newest first.
type ProductFilter struct {
	VendorID    *string
	Category    *string
	Subcategory *string
	Search      *string
	IsAvailable *bool
	Page        int
	PerPage     int
}

// ProductRepository defines persistence for the product aggregate.
type ProductRepository interface {
	// CreateWithVariants writes the product row and every variant row in a
	// single transaction. Store errors are returned unclassified so callers
	// can react to the violated constraint.
	CreateWithVariants(ctx context.Context, product *domain.Product) error

	// ExistsBySlug reports whether any product already uses slug.
	ExistsBySlug(ctx context.Context, slug string) (bool, error)

	// GetByID retrieves a product with its variants and vendor projection.
	GetByID(ctx context.Context, id string) (*domain.ProductDetail, error)

	// GetBySlug retrieves a product by its URL-friendly slug.
	GetBySlug(ctx context.Context, slug string) (*domain.ProductDetail, error)

	// List returns products matching the filter along with the total count.
	List(ctx context.Context, filter ProductFilter) ([]domain.Product, int, error)

	// Update modifies the mutable product columns. vendor_id is never written.
	Update(ctx context.Context, product *domain.Product) error

	// UpdateVariantStock sets the stock of one variant of a product.
	UpdateVariantStock(ctx context.Context, productID, sku string, quantity int) error
}

// CategoryRepository defines persistence for top-level categories.
type CategoryRepository interface {
	Create(ctx context.Context, category *domain.Category) error
	GetByID(ctx context.Context, id string) (*domain.Category, error)

	// Resolve finds a non-deleted category by id, slug or exact name.
	Resolve(ctx context.Context, ref string) (*domain.Category, error)

	List(ctx context.Context) ([]domain.Category, error)
	Update(ctx context.Context, category *domain.Category) error

	// SoftDelete marks the category and all of its subcategories deleted in
	// one transaction.
	SoftDelete(ctx context.Context, id string, at time.Time) error

	// ImportMany inserts categories in one transaction, skipping rows whose
	// name or slug already exists. It returns the number inserted.
	ImportMany(ctx context.Context, categories []domain.Category) (int, error)
}

// SubCategoryRepository defines persistence for subcategories.
type SubCategoryRepository interface {
	Create(ctx context.Context, sub *domain.SubCategory) error
	GetByID(ctx context.Context, id string) (*domain.SubCategory, error)
	List(ctx context.Context) ([]domain.SubCategory, error)
	Update(ctx context.Context, sub *domain.SubCategory) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	ImportMany(ctx context.Context, subs []domain.SubCategory) (int, error)
}

// VendorRepository defines persistence for vendor accounts.
type VendorRepository interface {
	Create(ctx context.Context, vendor *domain.Vendor) error
	GetByID(ctx context.Context, id string) (*domain.Vendor, error)
	GetByEmail(ctx context.Context, email string) (*domain.Vendor, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Vendor, error)
	MarkVerified(ctx context.Context, id string) error
}

// AdminRepository defines read access to admin accounts.
type AdminRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Admin, error)
}

// CodeStore keeps short-lived verification codes outside process memory.
type CodeStore interface {
	// Save stores code for key, replacing any previous code, and expires it
	// after ttl.
	Save(ctx context.Context, key, code string, ttl time.Duration) error

	// Consume returns and deletes the code for key atomically. A missing or
	// expired code yields apperrors.ErrNotFound.
	Consume(ctx context.Context, key string) (string, error)
}
