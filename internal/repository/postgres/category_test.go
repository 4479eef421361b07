package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var categoryCols = []string{
	"id", "name", "slug", "description", "image_url", "meta_title", "meta_description",
	"meta_keywords", "display_order", "is_active", "is_deleted", "deleted_at", "created_at", "updated_at",
}

func sampleCategory() domain.Category {
	return domain.Category{
		ID:              "cat-1",
		Name:            "Apparel",
		Slug:            "apparel",
		Description:     "Clothes",
		MetaTitle:       "Apparel",
		MetaDescription: "Shop apparel",
		MetaKeywords:    []string{"shirts", "pants"},
		DisplayOrder:    1,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func categoryRow(c domain.Category) []any {
	return []any{
		c.ID, c.Name, c.Slug, c.Description, c.ImageURL, c.MetaTitle, c.MetaDescription,
		c.MetaKeywords, c.DisplayOrder, c.IsActive, c.IsDeleted, c.DeletedAt, c.CreatedAt, c.UpdatedAt,
	}
}

func TestCategoryRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectExec("INSERT INTO categories").
		WithArgs(c.ID, c.Name, c.Slug, c.Description, c.ImageURL, c.MetaTitle, c.MetaDescription,
			c.MetaKeywords, c.DisplayOrder, c.IsActive, c.CreatedAt, c.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &c))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Create_Duplicate(t *testing.T) {
	tests := []struct {
		constraint string
		field      string
	}{
		{"categories_name_key", "name"},
		{"categories_slug_key", "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			mock := newMock(t)
			repo := NewCategoryRepository(mock)
			c := sampleCategory()

			mock.ExpectExec("INSERT INTO categories").
				WithArgs(anyArgs(12)...).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tt.constraint})

			err := repo.Create(context.Background(), &c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrAlreadyExists))

			var appErr *apperrors.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Contains(t, appErr.Fields, tt.field)
		})
	}
}

func TestCategoryRepository_GetByID(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectQuery("SELECT .+ FROM categories WHERE id = .+ AND is_deleted = FALSE").
		WithArgs("cat-1").
		WillReturnRows(pgxmock.NewRows(categoryCols).AddRow(categoryRow(c)...))

	got, err := repo.GetByID(context.Background(), "cat-1")
	require.NoError(t, err)
	assert.Equal(t, c, *got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Resolve(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectQuery("SELECT .+ FROM categories WHERE is_deleted = FALSE AND \\(id::text = \\$1 OR slug = \\$1 OR lower\\(name\\) = lower\\(\\$1\\)\\) ORDER BY \\(id::text = \\$1\\) DESC, \\(slug = \\$1\\) DESC, \\(name = \\$1\\) DESC").
		WithArgs("apparel").
		WillReturnRows(pgxmock.NewRows(categoryCols).AddRow(categoryRow(c)...))

	got, err := repo.Resolve(context.Background(), "apparel")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", got.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_Resolve_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM categories").
		WithArgs("Gadgets").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Resolve(context.Background(), "Gadgets")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestCategoryRepository_List(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()
	c2 := sampleCategory()
	c2.ID, c2.Name, c2.Slug, c2.DisplayOrder = "cat-2", "Books", "books", 2

	mock.ExpectQuery("SELECT .+ FROM categories WHERE is_deleted = FALSE ORDER BY display_order").
		WillReturnRows(pgxmock.NewRows(categoryCols).
			AddRow(categoryRow(c)...).
			AddRow(categoryRow(c2)...))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "books", got[1].Slug)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_List_Empty(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM categories").
		WillReturnRows(pgxmock.NewRows(categoryCols))

	got, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestCategoryRepository_Update_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	c := sampleCategory()

	mock.ExpectExec("UPDATE categories").
		WithArgs(c.Name, c.Slug, c.Description, c.ImageURL, c.MetaTitle, c.MetaDescription,
			c.MetaKeywords, c.DisplayOrder, c.IsActive, pgxmock.AnyArg(), c.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := repo.Update(context.Background(), &c)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_SoftDelete_Cascades(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE categories SET is_deleted = TRUE").
		WithArgs("cat-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE subcategories SET is_deleted = TRUE, .+ WHERE category_id").
		WithArgs("cat-1", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	mock.ExpectCommit()

	require.NoError(t, repo.SoftDelete(context.Background(), "cat-1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_SoftDelete_NotFoundRollsBack(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	at := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE categories SET is_deleted = TRUE").
		WithArgs("cat-x", at).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	err := repo.SoftDelete(context.Background(), "cat-x", at)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository_ImportMany_SkipsExisting(t *testing.T) {
	mock := newMock(t)
	repo := NewCategoryRepository(mock)
	a := sampleCategory()
	b := sampleCategory()
	b.ID, b.Name, b.Slug = "cat-2", "Books", "books"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO categories .+ ON CONFLICT DO NOTHING").
		WithArgs(a.ID, a.Name, a.Slug, a.Description, a.ImageURL, a.MetaTitle, a.MetaDescription,
			a.MetaKeywords, a.DisplayOrder, a.IsActive, a.CreatedAt, a.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec("INSERT INTO categories .+ ON CONFLICT DO NOTHING").
		WithArgs(b.ID, b.Name, b.Slug, b.Description, b.ImageURL, b.MetaTitle, b.MetaDescription,
			b.MetaKeywords, b.DisplayOrder, b.IsActive, b.CreatedAt, b.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	inserted, err := repo.ImportMany(context.Background(), []domain.Category{a, b})
	require.NoError(t, err)
	assert.Equal(t, 1, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
