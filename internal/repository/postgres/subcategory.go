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

const subCategoryColumns = `s.id, s.category_id, s.name, s.slug, s.description, s.image_url,
		s.is_deleted, s.deleted_at, s.created_at, s.updated_at`

const insertSubCategorySQL = `
		INSERT INTO subcategories (id, category_id, name, slug, description, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

// SubCategoryRepository implements repository.SubCategoryRepository using PostgreSQL.
type SubCategoryRepository struct {
	db database.DBTX
}

// NewSubCategoryRepository creates a new PostgreSQL-backed subcategory repository.
func NewSubCategoryRepository(db database.DBTX) *SubCategoryRepository {
	return &SubCategoryRepository{db: db}
}

var _ repository.SubCategoryRepository = (*SubCategoryRepository)(nil)

// Create inserts a new subcategory.
func (r *SubCategoryRepository) Create(ctx context.Context, s *domain.SubCategory) error {
	if _, err := r.db.Exec(ctx, insertSubCategorySQL, subCategoryArgs(s)...); err != nil {
		return classifySubCategoryError(err, s, "insert subcategory")
	}
	return nil
}

// GetByID retrieves a non-deleted subcategory with its parent projection.
func (r *SubCategoryRepository) GetByID(ctx context.Context, id string) (*domain.SubCategory, error) {
	query := `
		SELECT ` + subCategoryColumns + `, c.id, c.name, c.slug
		FROM subcategories s
		JOIN categories c ON c.id = s.category_id
		WHERE s.id = $1 AND s.is_deleted = FALSE`

	s, err := scanSubCategory(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("subcategory", id)
		}
		return nil, fmt.Errorf("get subcategory: %w", err)
	}
	return s, nil
}

// List returns non-deleted subcategories sorted by name, each with its parent.
func (r *SubCategoryRepository) List(ctx context.Context) ([]domain.SubCategory, error) {
	query := `
		SELECT ` + subCategoryColumns + `, c.id, c.name, c.slug
		FROM subcategories s
		JOIN categories c ON c.id = s.category_id
		WHERE s.is_deleted = FALSE
		ORDER BY s.name ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()

	subs := []domain.SubCategory{}
	for rows.Next() {
		s, err := scanSubCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subcategory row: %w", err)
		}
		subs = append(subs, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subcategory rows: %w", err)
	}
	return subs, nil
}

// Update modifies an existing, non-deleted subcategory.
func (r *SubCategoryRepository) Update(ctx context.Context, s *domain.SubCategory) error {
	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE subcategories
		SET category_id = $1, name = $2, slug = $3, description = $4, image_url = $5, updated_at = $6
		WHERE id = $7 AND is_deleted = FALSE`

	ct, err := r.db.Exec(ctx, query,
		s.CategoryID,
		s.Name,
		s.Slug,
		s.Description,
		s.ImageURL,
		s.UpdatedAt,
		s.ID,
	)
	if err != nil {
		return classifySubCategoryError(err, s, "update subcategory")
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("subcategory", s.ID)
	}
	return nil
}

// SoftDelete marks one subcategory deleted.
func (r *SubCategoryRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	ct, err := r.db.Exec(ctx, `
		UPDATE subcategories SET is_deleted = TRUE, deleted_at = $2, updated_at = $2
		WHERE id = $1 AND is_deleted = FALSE`, id, at)
	if err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("subcategory", id)
	}
	return nil
}

// ImportMany inserts subcategories in one transaction, skipping slug
// collisions.
func (r *SubCategoryRepository) ImportMany(ctx context.Context, subs []domain.SubCategory) (int, error) {
	inserted := 0
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		for i := range subs {
			ct, err := tx.Exec(ctx, insertSubCategorySQL+` ON CONFLICT DO NOTHING`, subCategoryArgs(&subs[i])...)
			if err != nil {
				return fmt.Errorf("import subcategory %q: %w", subs[i].Name, err)
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

func subCategoryArgs(s *domain.SubCategory) []any {
	return []any{s.ID, s.CategoryID, s.Name, s.Slug, s.Description, s.ImageURL, s.CreatedAt, s.UpdatedAt}
}

func classifySubCategoryError(err error, s *domain.SubCategory, op string) error {
	if _, ok := database.UniqueViolation(err); ok {
		return apperrors.AlreadyExists("subcategory", "slug", s.Slug)
	}
	if database.IsForeignKeyViolation(err) {
		return apperrors.Validation(map[string]string{"category_id": "does not reference an existing category"})
	}
	return fmt.Errorf("%s: %w", op, err)
}

func scanSubCategory(row pgx.Row) (*domain.SubCategory, error) {
	var (
		s   domain.SubCategory
		ref domain.CategoryRef
	)
	if err := row.Scan(
		&s.ID,
		&s.CategoryID,
		&s.Name,
		&s.Slug,
		&s.Description,
		&s.ImageURL,
		&s.IsDeleted,
		&s.DeletedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
		&ref.ID,
		&ref.Name,
		&ref.Slug,
	); err != nil {
		return nil, err
	}
	s.Category = &ref
	return &s, nil
}
