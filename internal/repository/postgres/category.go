package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const categoryColumns = `id, name, slug, description, image_url, meta_title, meta_description,
		meta_keywords, display_order, is_active, is_deleted, deleted_at, created_at, updated_at`

const insertCategorySQL = `
		INSERT INTO categories (id, name, slug, description, image_url, meta_title, meta_description,
			meta_keywords, display_order, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// CategoryRepository implements repository.CategoryRepository using PostgreSQL.
type CategoryRepository struct {
	db database.DBTX
}

// NewCategoryRepository creates a new PostgreSQL-backed category repository.
func NewCategoryRepository(db database.DBTX) *CategoryRepository {
	return &CategoryRepository{db: db}
}

var _ repository.CategoryRepository = (*CategoryRepository)(nil)

// Create inserts a new category.
func (r *CategoryRepository) Create(ctx context.Context, c *domain.Category) error {
	_, err := r.db.Exec(ctx, insertCategorySQL, categoryArgs(c)...)
	if err != nil {
		if dup := categoryConflict(err, c); dup != nil {
			return dup
		}
		return fmt.Errorf("insert category: %w", err)
	}
	return nil
}

// GetByID retrieves a non-deleted category by its ID.
func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*domain.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1 AND is_deleted = FALSE`

	c, err := scanCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// Resolve finds a non-deleted category whose id, slug or name matches ref.
// Name comparison ignores case; categories_name_key is on lower(name), so at
// most one row matches by name.
func (r *CategoryRepository) Resolve(ctx context.Context, ref string) (*domain.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_deleted = FALSE AND (id::text = $1 OR slug = $1 OR lower(name) = lower($1))
		ORDER BY (id::text = $1) DESC, (slug = $1) DESC, (name = $1) DESC
		LIMIT 1`

	c, err := scanCategory(r.db.QueryRow(ctx, query, ref))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("category", ref)
		}
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	return c, nil
}

// List returns every non-deleted category ordered for display.
func (r *CategoryRepository) List(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE is_deleted = FALSE
		ORDER BY display_order ASC, name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category row: %w", err)
		}
		categories = append(categories, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category rows: %w", err)
	}
	return categories, nil
}

// Update modifies an existing, non-deleted category.
func (r *CategoryRepository) Update(ctx context.Context, c *domain.Category) error {
	c.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE categories
		SET name = $1, slug = $2, description = $3, image_url = $4, meta_title = $5,
		    meta_description = $6, meta_keywords = $7, display_order = $8, is_active = $9, updated_at = $10
		WHERE id = $11 AND is_deleted = FALSE`

	ct, err := r.db.Exec(ctx, query,
		c.Name,
		c.Slug,
		c.Description,
		c.ImageURL,
		c.MetaTitle,
		c.MetaDescription,
		textArray(c.MetaKeywords),
		c.DisplayOrder,
		c.IsActive,
		c.UpdatedAt,
		c.ID,
	)
	if err != nil {
		if dup := categoryConflict(err, c); dup != nil {
			return dup
		}
		return fmt.Errorf("update category: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("category", c.ID)
	}
	return nil
}

// SoftDelete marks the category and its subcategories deleted.
func (r *CategoryRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	return database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		ct, err := tx.Exec(ctx, `
			UPDATE categories SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE id = $1 AND is_deleted = FALSE`, id, at)
		if err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return apperrors.NotFound("category", id)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE subcategories SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
			WHERE category_id = $1 AND is_deleted = FALSE`, id, at); err != nil {
			return fmt.Errorf("delete subcategories of %s: %w", id, err)
		}
		return nil
	})
}

// ImportMany inserts categories in one transaction. Rows that collide with an
// existing name or slug are skipped.
func (r *CategoryRepository) ImportMany(ctx context.Context, categories []domain.Category) (int, error) {
	inserted := 0
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for i := range categories {
			ct, err := tx.Exec(ctx, insertCategorySQL+` ON CONFLICT DO NOTHING`, categoryArgs(&categories[i])...)
			if err != nil {
				return fmt.Errorf("import category %q: %w", categories[i].Name, err)
			}
			inserted += int(ct.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

func categoryArgs(c *domain.Category) []any {
	return []any{
		c.ID,
		c.Name,
		c.Slug,
		c.Description,
		c.ImageURL,
		c.MetaTitle,
		c.MetaDescription,
		textArray(c.MetaKeywords),
		c.DisplayOrder,
		c.IsActive,
		c.CreatedAt,
		c.UpdatedAt,
	}
}

func categoryConflict(err error, c *domain.Category) error {
	constraint, ok := database.UniqueViolation(err)
	if !ok {
		return nil
	}
	if constraint == "categories_slug_key" {
		return apperrors.AlreadyExists("category", "slug", c.Slug)
	}
	return apperrors.AlreadyExists("category", "name", c.Name)
}

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var c domain.Category
	if err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.ImageURL,
		&c.MetaTitle,
		&c.MetaDescription,
		&c.MetaKeywords,
		&c.DisplayOrder,
		&c.IsActive,
		&c.IsDeleted,
		&c.DeletedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	c.MetaKeywords = textArray(c.MetaKeywords)
	return &c, nil
}
