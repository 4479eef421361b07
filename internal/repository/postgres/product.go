package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const productColumns = `p.id, p.vendor_id, p.name, p.slug, p.category, p.subcategories, p.brand,
		p.short_description, p.description, p.is_available, p.image_urls, p.created_at, p.updated_at`

const variantColumns = `id, product_id, position, sku, attributes, actual_price, price,
		discount_percent, final_price, stock_quantity, is_active, image_urls, created_at, updated_at`

const insertProductSQL = `
		INSERT INTO products (id, vendor_id, name, slug, category, subcategories, brand,
			short_description, description, is_available, image_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

const insertVariantSQL = `
		INSERT INTO product_variants (id, product_id, position, sku, attributes, actual_price, price,
			discount_percent, final_price, stock_quantity, is_active, image_urls, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// ProductRepository implements repository.ProductRepository using PostgreSQL.
type ProductRepository struct {
	db database.DBTX
}

// NewProductRepository creates a new PostgreSQL-backed product repository.
func NewProductRepository(db database.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

var _ repository.ProductRepository = (*ProductRepository)(nil)

// CreateWithVariants inserts the product and its variants atomically. Errors
// keep the underlying *pgconn.PgError in their chain.
func (r *ProductRepository) CreateWithVariants(ctx context.Context, p *domain.Product) (err error) {
	ctx, end := database.TraceQuery(ctx, "CreateProductWithVariants", insertProductSQL)
	defer func() { end(err) }()

	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertProductSQL,
			p.ID,
			p.VendorID,
			p.Name,
			p.Slug,
			p.Category,
			textArray(p.Subcategories),
			p.Brand,
			p.ShortDescription,
			p.Description,
			p.IsAvailable,
			textArray(p.ImageURLs),
			p.CreatedAt,
			p.UpdatedAt,
		); err != nil {
			return fmt.Errorf("insert product: %w", err)
		}

		for i := range p.Variants {
			v := &p.Variants[i]
			attrs, err := json.Marshal(attributesOrEmpty(v.Attributes))
			if err != nil {
				return fmt.Errorf("marshal attributes for %s: %w", v.SKU, err)
			}
			if _, err := tx.Exec(ctx, insertVariantSQL,
				v.ID,
				p.ID,
				v.Position,
				v.SKU,
				attrs,
				v.ActualPrice,
				v.Price,
				v.DiscountPercent,
				v.FinalPrice,
				v.StockQuantity,
				v.IsActive,
				textArray(v.ImageURLs),
				v.CreatedAt,
				v.UpdatedAt,
			); err != nil {
				return fmt.Errorf("insert variant %s: %w", v.SKU, err)
			}
		}
		return nil
	})
}

// ExistsBySlug reports whether a product already uses slug.
func (r *ProductRepository) ExistsBySlug(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM products WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product slug: %w", err)
	}
	return exists, nil
}

// GetByID retrieves a product with its vendor projection and variants.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*domain.ProductDetail, error) {
	query := `
		SELECT ` + productColumns + `, v.id, v.name
		FROM products p
		LEFT JOIN vendors v ON v.id = p.vendor_id
		WHERE p.id = $1`

	return r.getDetail(ctx, "GetProductByID", query, id)
}

// GetBySlug retrieves a product by its slug.
func (r *ProductRepository) GetBySlug(ctx context.Context, slug string) (*domain.ProductDetail, error) {
	query := `
		SELECT ` + productColumns + `, v.id, v.name
		FROM products p
		LEFT JOIN vendors v ON v.id = p.vendor_id
		WHERE p.slug = $1`

	return r.getDetail(ctx, "GetProductBySlug", query, slug)
}

func (r *ProductRepository) getDetail(ctx context.Context, op, query string, arg string) (_ *domain.ProductDetail, err error) {
	ctx, end := database.TraceQuery(ctx, op, query)
	defer func() { end(err) }()

	var (
		d          domain.ProductDetail
		vendorID   *string
		vendorName *string
	)
	dest := append(productDest(&d.Product), &vendorID, &vendorName)
	if err := r.db.QueryRow(ctx, query, arg).Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", arg)
		}
		return nil, fmt.Errorf("scan product: %w", err)
	}

	if vendorID != nil {
		d.Vendor = &domain.VendorRef{ID: *vendorID}
		if vendorName != nil {
			d.Vendor.Name = *vendorName
		}
	}

	variants, err := r.variantsFor(ctx, []string{d.ID})
	if err != nil {
		return nil, err
	}
	d.Variants = variantsOrEmpty(variants[d.ID])

	return &d, nil
}

// List returns products matching the filter, newest first, with the total
// count of matching rows.
func (r *ProductRepository) List(ctx context.Context, filter repository.ProductFilter) (_ []domain.Product, _ int, err error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.VendorID != nil {
		conditions = append(conditions, fmt.Sprintf("p.vendor_id = $%d", argIndex))
		args = append(args, *filter.VendorID)
		argIndex++
	}

	if filter.Category != nil {
		conditions = append(conditions, fmt.Sprintf("p.category = $%d", argIndex))
		args = append(args, *filter.Category)
		argIndex++
	}

	if filter.Subcategory != nil {
		conditions = append(conditions, fmt.Sprintf("$%d = ANY(p.subcategories)", argIndex))
		args = append(args, *filter.Subcategory)
		argIndex++
	}

	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE $%d OR p.brand ILIKE $%d OR p.description ILIKE $%d)", argIndex, argIndex, argIndex))
		args = append(args, "%"+*filter.Search+"%")
		argIndex++
	}

	if filter.IsAvailable != nil {
		conditions = append(conditions, fmt.Sprintf("p.is_available = $%d", argIndex))
		args = append(args, *filter.IsAvailable)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM products p
		%s
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT $%d OFFSET $%d`,
		productColumns, whereClause, argIndex, argIndex+1,
	)

	page := pagination.Params{Page: filter.Page, PerPage: filter.PerPage}.Normalize()
	args = append(args, page.PerPage, page.Offset())

	ctx, end := database.TraceQuery(ctx, "ListProducts", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var (
		products   []domain.Product
		totalCount int
	)

	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(append(productDest(&p), &totalCount)...); err != nil {
			return nil, 0, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate product rows: %w", err)
	}
	rows.Close()

	if len(products) == 0 {
		if page.Offset() == 0 {
			return []domain.Product{}, 0, nil
		}
		// Past the last page the window count has no row to ride on.
		filterArgs := args[:len(args)-2]
		if err := r.db.QueryRow(ctx, `SELECT count(*) FROM products p `+whereClause, filterArgs...).Scan(&totalCount); err != nil {
			return nil, 0, fmt.Errorf("count products: %w", err)
		}
		return []domain.Product{}, totalCount, nil
	}

	ids := make([]string, len(products))
	for i := range products {
		ids[i] = products[i].ID
	}
	variants, err := r.variantsFor(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range products {
		products[i].Variants = variantsOrEmpty(variants[products[i].ID])
	}

	return products, totalCount, nil
}

// Update modifies the mutable columns of an existing product.
func (r *ProductRepository) Update(ctx context.Context, p *domain.Product) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE products
		SET name = $1, slug = $2, category = $3, subcategories = $4, brand = $5,
		    short_description = $6, description = $7, is_available = $8, updated_at = $9
		WHERE id = $10`

	ct, err := r.db.Exec(ctx, query,
		p.Name,
		p.Slug,
		p.Category,
		textArray(p.Subcategories),
		p.Brand,
		p.ShortDescription,
		p.Description,
		p.IsAvailable,
		p.UpdatedAt,
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("product", p.ID)
	}

	return nil
}

// UpdateVariantStock sets the stock quantity of the variant identified by sku.
func (r *ProductRepository) UpdateVariantStock(ctx context.Context, productID, sku string, quantity int) error {
	query := `
		UPDATE product_variants
		SET stock_quantity = $1, updated_at = NOW()
		WHERE product_id = $2 AND sku = $3`

	ct, err := r.db.Exec(ctx, query, quantity, productID, sku)
	if err != nil {
		return fmt.Errorf("update variant stock: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("variant", sku)
	}

	return nil
}

// variantsFor loads the variants of the given products grouped by product id,
// each group in position order.
func (r *ProductRepository) variantsFor(ctx context.Context, productIDs []string) (map[string][]domain.Variant, error) {
	query := `
		SELECT ` + variantColumns + `
		FROM product_variants
		WHERE product_id = ANY($1)
		ORDER BY product_id, position`

	rows, err := r.db.Query(ctx, query, productIDs)
	if err != nil {
		return nil, fmt.Errorf("list variants: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Variant, len(productIDs))
	for rows.Next() {
		var (
			v         domain.Variant
			attrsJSON []byte
		)
		if err := rows.Scan(
			&v.ID,
			&v.ProductID,
			&v.Position,
			&v.SKU,
			&attrsJSON,
			&v.ActualPrice,
			&v.Price,
			&v.DiscountPercent,
			&v.FinalPrice,
			&v.StockQuantity,
			&v.IsActive,
			&v.ImageURLs,
			&v.CreatedAt,
			&v.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan variant row: %w", err)
		}

		v.Attributes = map[string]any{}
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &v.Attributes); err != nil {
				return nil, fmt.Errorf("unmarshal attributes for %s: %w", v.SKU, err)
			}
		}
		v.ImageURLs = textArray(v.ImageURLs)

		out[v.ProductID] = append(out[v.ProductID], v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate variant rows: %w", err)
	}

	return out, nil
}

// productDest returns scan destinations matching productColumns.
func productDest(p *domain.Product) []any {
	return []any{
		&p.ID,
		&p.VendorID,
		&p.Name,
		&p.Slug,
		&p.Category,
		&p.Subcategories,
		&p.Brand,
		&p.ShortDescription,
		&p.Description,
		&p.IsAvailable,
		&p.ImageURLs,
		&p.CreatedAt,
		&p.UpdatedAt,
	}
}

func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func attributesOrEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func variantsOrEmpty(v []domain.Variant) []domain.Variant {
	if v == nil {
		return []domain.Variant{}
	}
	return v
}
