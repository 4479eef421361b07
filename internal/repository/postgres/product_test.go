package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var productCols = []string{
	"id", "vendor_id", "name", "slug", "category", "subcategories", "brand",
	"short_description", "description", "is_available", "image_urls", "created_at", "updated_at",
}

var variantCols = []string{
	"id", "product_id", "position", "sku", "attributes", "actual_price", "price",
	"discount_percent", "final_price", "stock_quantity", "is_active", "image_urls", "created_at", "updated_at",
}

func sampleProduct() domain.Product {
	return domain.Product{
		ID:               "prod-1",
		VendorID:         "vendor-1",
		Name:             "Red Shirt",
		Slug:             "red-shirt",
		Category:         "Apparel",
		Subcategories:    []string{"Shirts"},
		Brand:            "Acme",
		ShortDescription: "A shirt",
		Description:      "A red cotton shirt",
		IsAvailable:      true,
		ImageURLs:        []string{"a.jpg"},
		Variants: []domain.Variant{
			sampleVariant("var-1", 0, "RS-1"),
			sampleVariant("var-2", 1, "RS-2"),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleVariant(id string, pos int, sku string) domain.Variant {
	return domain.Variant{
		ID:              id,
		ProductID:       "prod-1",
		Position:        pos,
		SKU:             sku,
		Attributes:      map[string]any{"size": "M"},
		ActualPrice:     100,
		Price:           80,
		DiscountPercent: 20,
		FinalPrice:      64,
		StockQuantity:   5,
		IsActive:        true,
		ImageURLs:       []string{"v.jpg"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func productRow(p domain.Product) []any {
	return []any{
		p.ID, p.VendorID, p.Name, p.Slug, p.Category, p.Subcategories, p.Brand,
		p.ShortDescription, p.Description, p.IsAvailable, p.ImageURLs, p.CreatedAt, p.UpdatedAt,
	}
}

func variantRow(v domain.Variant) []any {
	return []any{
		v.ID, v.ProductID, v.Position, v.SKU, []byte(`{"size":"M"}`), v.ActualPrice, v.Price,
		v.DiscountPercent, v.FinalPrice, v.StockQuantity, v.IsActive, v.ImageURLs, v.CreatedAt, v.UpdatedAt,
	}
}

func expectProductInsert(mock pgxmock.PgxPoolIface, p domain.Product) {
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.VendorID, p.Name, p.Slug, p.Category, p.Subcategories, p.Brand,
			p.ShortDescription, p.Description, p.IsAvailable, p.ImageURLs, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func expectVariantInsert(mock pgxmock.PgxPoolIface, v domain.Variant) *pgxmock.ExpectedExec {
	return mock.ExpectExec("INSERT INTO product_variants").
		WithArgs(v.ID, "prod-1", v.Position, v.SKU, []byte(`{"size":"M"}`), v.ActualPrice, v.Price,
			v.DiscountPercent, v.FinalPrice, v.StockQuantity, v.IsActive, v.ImageURLs, v.CreatedAt, v.UpdatedAt)
}

// ─── CreateWithVariants ─────────────────────────────────────────────────────

func TestProductRepository_CreateWithVariants_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectBegin()
	expectProductInsert(mock, p)
	expectVariantInsert(mock, p.Variants[0]).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectVariantInsert(mock, p.Variants[1]).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithVariants(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_CreateWithVariants_VariantFailureRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectBegin()
	expectProductInsert(mock, p)
	expectVariantInsert(mock, p.Variants[0]).WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectVariantInsert(mock, p.Variants[1]).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "product_variants_sku_key"})
	mock.ExpectRollback()

	err := repo.CreateWithVariants(context.Background(), &p)
	require.Error(t, err)

	constraint, ok := database.UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "product_variants_sku_key", constraint)
	assert.Contains(t, err.Error(), "insert variant RS-2")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_CreateWithVariants_SlugConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(anyArgs(13)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "products_slug_key"})
	mock.ExpectRollback()

	err := repo.CreateWithVariants(context.Background(), &p)
	constraint, ok := database.UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "products_slug_key", constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_CreateWithVariants_NilSlicesWrittenEmpty(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()
	p.Subcategories = nil
	p.ImageURLs = nil
	p.Variants = nil

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").
		WithArgs(p.ID, p.VendorID, p.Name, p.Slug, p.Category, []string{}, p.Brand,
			p.ShortDescription, p.Description, p.IsAvailable, []string{}, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, repo.CreateWithVariants(context.Background(), &p))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─── ExistsBySlug ───────────────────────────────────────────────────────────

func TestProductRepository_ExistsBySlug(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("red-shirt").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsBySlug(context.Background(), "red-shirt")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_ExistsBySlug_Error(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("red-shirt").
		WillReturnError(errors.New("connection lost"))

	_, err := repo.ExistsBySlug(context.Background(), "red-shirt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check product slug")
}

// ─── GetByID / GetBySlug ────────────────────────────────────────────────────

func TestProductRepository_GetByID_WithVendor(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products p LEFT JOIN vendors v ON v.id = p.vendor_id WHERE p.id").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(append(productCols, "vendor_id", "vendor_name")).
			AddRow(append(productRow(p), strPtr("vendor-1"), strPtr("Acme Traders"))...))
	mock.ExpectQuery("SELECT .+ FROM product_variants WHERE product_id = ANY").
		WithArgs([]string{p.ID}).
		WillReturnRows(pgxmock.NewRows(variantCols).
			AddRow(variantRow(p.Variants[0])...).
			AddRow(variantRow(p.Variants[1])...))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Vendor)
	assert.Equal(t, domain.VendorRef{ID: "vendor-1", Name: "Acme Traders"}, *got.Vendor)
	assert.Equal(t, []string{"RS-1", "RS-2"}, got.SKUs())
	assert.Equal(t, map[string]any{"size": "M"}, got.Variants[0].Attributes)
	assert.Equal(t, 64.0, got.Variants[1].FinalPrice)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_MissingVendorIsNull(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products p LEFT JOIN vendors").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(append(productCols, "vendor_id", "vendor_name")).
			AddRow(append(productRow(p), (*string)(nil), (*string)(nil))...))
	mock.ExpectQuery("SELECT .+ FROM product_variants").
		WithArgs([]string{p.ID}).
		WillReturnRows(pgxmock.NewRows(variantCols))

	got, err := repo.GetByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Vendor)
	assert.NotNil(t, got.Variants)
	assert.Empty(t, got.Variants)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products p").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_GetBySlug(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectQuery("SELECT .+ FROM products p LEFT JOIN vendors .+ WHERE p.slug").
		WithArgs("red-shirt").
		WillReturnRows(pgxmock.NewRows(append(productCols, "vendor_id", "vendor_name")).
			AddRow(append(productRow(p), strPtr("vendor-1"), (*string)(nil))...))
	mock.ExpectQuery("SELECT .+ FROM product_variants").
		WithArgs([]string{p.ID}).
		WillReturnRows(pgxmock.NewRows(variantCols).AddRow(variantRow(p.Variants[0])...))

	got, err := repo.GetBySlug(context.Background(), "red-shirt")
	require.NoError(t, err)
	require.NotNil(t, got.Vendor)
	assert.Equal(t, "vendor-1", got.Vendor.ID)
	assert.Empty(t, got.Vendor.Name)
	assert.Len(t, got.Variants, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─── List ───────────────────────────────────────────────────────────────────

func TestProductRepository_List_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	newer := sampleProduct()
	older := sampleProduct()
	older.ID = "prod-2"
	older.Slug = "red-shirt-1"

	mock.ExpectQuery("SELECT .+ FROM products p ORDER BY p.created_at DESC").
		WithArgs(20, 0).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")).
			AddRow(append(productRow(newer), 2)...).
			AddRow(append(productRow(older), 2)...))

	v := sampleVariant("var-9", 0, "OLD-1")
	v.ProductID = "prod-2"
	mock.ExpectQuery("SELECT .+ FROM product_variants WHERE product_id = ANY").
		WithArgs([]string{"prod-1", "prod-2"}).
		WillReturnRows(pgxmock.NewRows(variantCols).
			AddRow(variantRow(newer.Variants[0])...).
			AddRow(variantRow(v)...))

	products, total, err := repo.List(context.Background(), repository.ProductFilter{Page: 1, PerPage: 20})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, products, 2)
	assert.Equal(t, "prod-1", products[0].ID)
	assert.Equal(t, []string{"RS-1"}, products[0].SKUs())
	assert.Equal(t, []string{"OLD-1"}, products[1].SKUs())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_WithFilters(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	filter := repository.ProductFilter{
		VendorID:    strPtr("vendor-1"),
		Category:    strPtr("Apparel"),
		Subcategory: strPtr("Shirts"),
		Search:      strPtr("red"),
		IsAvailable: boolPtr(true),
		Page:        2,
		PerPage:     10,
	}

	// vendor=$1, category=$2, subcategory=$3, search=$4, available=$5, LIMIT $6 OFFSET $7
	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.vendor_id = .+ AND p.category = .+ ANY\\(p.subcategories\\) .+ ILIKE .+ p.is_available").
		WithArgs("vendor-1", "Apparel", "Shirts", "%red%", true, 10, 10).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")))

	products, total, err := repo.List(context.Background(), filter)
	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
	assert.Equal(t, 0, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_PastLastPageStillCounts(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	vendor := "vendor-1"

	mock.ExpectQuery("SELECT .+ FROM products p WHERE p.vendor_id = \\$1 ORDER BY").
		WithArgs(vendor, 20, 180).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM products p WHERE p.vendor_id = \\$1").
		WithArgs(vendor).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(42))

	products, total, err := repo.List(context.Background(), repository.ProductFilter{VendorID: &vendor, Page: 10, PerPage: 20})
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, 42, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_ClampsPageSize(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products p").
		WithArgs(100, 0).
		WillReturnRows(pgxmock.NewRows(append(productCols, "total_count")))

	_, _, err := repo.List(context.Background(), repository.ProductFilter{PerPage: 1000})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_List_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM products p").
		WithArgs(20, 0).
		WillReturnError(errors.New("boom"))

	_, _, err := repo.List(context.Background(), repository.ProductFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list products")
}

// ─── Update ─────────────────────────────────────────────────────────────────

func TestProductRepository_Update_Success(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("UPDATE products").
		WithArgs(p.Name, p.Slug, p.Category, p.Subcategories, p.Brand,
			p.ShortDescription, p.Description, p.IsAvailable, pgxmock.AnyArg(), p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), &p))
	assert.True(t, p.UpdatedAt.After(now))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)
	p := sampleProduct()

	mock.ExpectExec("UPDATE products").
		WithArgs(anyArgs(10)...).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &p)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ─── UpdateVariantStock ─────────────────────────────────────────────────────

func TestProductRepository_UpdateVariantStock(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("UPDATE product_variants SET stock_quantity").
		WithArgs(12, "prod-1", "RS-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.UpdateVariantStock(context.Background(), "prod-1", "RS-1", 12))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepository_UpdateVariantStock_UnknownSKU(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepository(mock)

	mock.ExpectExec("UPDATE product_variants").
		WithArgs(1, "prod-1", "NOPE").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.UpdateVariantStock(context.Background(), "prod-1", "NOPE", 1)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}
