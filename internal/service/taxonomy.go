package service

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/slug"
)

// TaxonomyService manages categories and subcategories.
type TaxonomyService struct {
	categories    repository.CategoryRepository
	subcategories repository.SubCategoryRepository
	logger        *slog.Logger
}

// NewTaxonomyService creates a new taxonomy service.
func NewTaxonomyService(
	categories repository.CategoryRepository,
	subcategories repository.SubCategoryRepository,
	logger *slog.Logger,
) *TaxonomyService {
	return &TaxonomyService{
		categories:    categories,
		subcategories: subcategories,
		logger:        logger,
	}
}

// CreateCategoryInput holds the parameters for creating a category.
type CreateCategoryInput struct {
	Name            string   `json:"name" validate:"required,notblank,max=255"`
	Description     string   `json:"description" validate:"max=5000"`
	ImageURL        string   `json:"image_url" validate:"omitempty,url"`
	MetaTitle       string   `json:"meta_title" validate:"max=255"`
	MetaDescription string   `json:"meta_description" validate:"max=1000"`
	MetaKeywords    []string `json:"meta_keywords"`
	DisplayOrder    int      `json:"display_order" validate:"gte=0"`
	IsActive        *bool    `json:"is_active"`
}

// UpdateCategoryInput holds the parameters for a partial category update.
type UpdateCategoryInput struct {
	Name            *string  `json:"name" validate:"omitempty,notblank,max=255"`
	Description     *string  `json:"description" validate:"omitempty,max=5000"`
	ImageURL        *string  `json:"image_url" validate:"omitempty,url"`
	MetaTitle       *string  `json:"meta_title" validate:"omitempty,max=255"`
	MetaDescription *string  `json:"meta_description" validate:"omitempty,max=1000"`
	MetaKeywords    []string `json:"meta_keywords"`
	DisplayOrder    *int     `json:"display_order" validate:"omitempty,gte=0"`
	IsActive        *bool    `json:"is_active"`
}

// CreateSubCategoryInput holds the parameters for creating a subcategory.
// CategoryName may also be the parent's id or slug.
type CreateSubCategoryInput struct {
	Name         string `json:"name" validate:"required,notblank,max=255"`
	Description  string `json:"description" validate:"max=5000"`
	ImageURL     string `json:"image_url" validate:"omitempty,url"`
	CategoryName string `json:"category_name" validate:"required,notblank"`
}

// UpdateSubCategoryInput holds the parameters for a partial subcategory update.
type UpdateSubCategoryInput struct {
	Name         *string `json:"name" validate:"omitempty,notblank,max=255"`
	Description  *string `json:"description" validate:"omitempty,max=5000"`
	ImageURL     *string `json:"image_url" validate:"omitempty,url"`
	CategoryName *string `json:"category_name" validate:"omitempty,notblank"`
}

// --- Categories ---

// CreateCategory creates a category whose slug is derived from its name.
func (s *TaxonomyService) CreateCategory(ctx context.Context, input CreateCategoryInput) (*domain.Category, error) {
	name := strings.TrimSpace(input.Name)
	categorySlug, err := slugFor(name)
	if err != nil {
		return nil, err
	}

	isActive := true
	if input.IsActive != nil {
		isActive = *input.IsActive
	}

	now := time.Now().UTC()
	category := &domain.Category{
		ID:              uuid.New().String(),
		Name:            name,
		Slug:            categorySlug,
		Description:     input.Description,
		ImageURL:        input.ImageURL,
		MetaTitle:       input.MetaTitle,
		MetaDescription: input.MetaDescription,
		MetaKeywords:    cleanList(input.MetaKeywords),
		DisplayOrder:    input.DisplayOrder,
		IsActive:        isActive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.categories.Create(ctx, category); err != nil {
		return nil, fmt.Errorf("create category: %w", err)
	}

	s.logger.InfoContext(ctx, "category created",
		slog.String("category_id", category.ID),
		slog.String("slug", category.Slug),
	)
	return category, nil
}

// ListCategories returns every non-deleted category in display order.
func (s *TaxonomyService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []domain.Category{}
	}
	return categories, nil
}

// GetCategory retrieves a non-deleted category.
func (s *TaxonomyService) GetCategory(ctx context.Context, id string) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	return category, nil
}

// UpdateCategory applies a partial update. The slug follows the name.
func (s *TaxonomyService) UpdateCategory(ctx context.Context, id string, input UpdateCategoryInput) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		categorySlug, err := slugFor(name)
		if err != nil {
			return nil, err
		}
		category.Name = name
		category.Slug = categorySlug
	}
	if input.Description != nil {
		category.Description = *input.Description
	}
	if input.ImageURL != nil {
		category.ImageURL = *input.ImageURL
	}
	if input.MetaTitle != nil {
		category.MetaTitle = *input.MetaTitle
	}
	if input.MetaDescription != nil {
		category.MetaDescription = *input.MetaDescription
	}
	if input.MetaKeywords != nil {
		category.MetaKeywords = cleanList(input.MetaKeywords)
	}
	if input.DisplayOrder != nil {
		category.DisplayOrder = *input.DisplayOrder
	}
	if input.IsActive != nil {
		category.IsActive = *input.IsActive
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, fmt.Errorf("update category: %w", err)
	}

	s.logger.InfoContext(ctx, "category updated", slog.String("category_id", category.ID))
	return category, nil
}

// DeleteCategory soft-deletes a category together with its subcategories.
func (s *TaxonomyService) DeleteCategory(ctx context.Context, id string) error {
	if err := s.categories.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	s.logger.InfoContext(ctx, "category deleted", slog.String("category_id", id))
	return nil
}

// --- Subcategories ---

// CreateSubCategory creates a subcategory under a non-deleted parent.
func (s *TaxonomyService) CreateSubCategory(ctx context.Context, input CreateSubCategoryInput) (*domain.SubCategory, error) {
	name := strings.TrimSpace(input.Name)
	subSlug, err := slugFor(name)
	if err != nil {
		return nil, err
	}

	parent, err := s.parentCategory(ctx, input.CategoryName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	sub := &domain.SubCategory{
		ID:          uuid.New().String(),
		CategoryID:  parent.ID,
		Name:        name,
		Slug:        subSlug,
		Description: input.Description,
		ImageURL:    input.ImageURL,
		Category:    &domain.CategoryRef{ID: parent.ID, Name: parent.Name, Slug: parent.Slug},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.subcategories.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("create subcategory: %w", err)
	}

	s.logger.InfoContext(ctx, "subcategory created",
		slog.String("subcategory_id", sub.ID),
		slog.String("category_id", parent.ID),
	)
	return sub, nil
}

// ListSubCategories returns every non-deleted subcategory with its parent.
func (s *TaxonomyService) ListSubCategories(ctx context.Context) ([]domain.SubCategory, error) {
	subs, err := s.subcategories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	if subs == nil {
		subs = []domain.SubCategory{}
	}
	return subs, nil
}

// UpdateSubCategory applies a partial update. Moving to another parent
// requires that parent to exist.
func (s *TaxonomyService) UpdateSubCategory(ctx context.Context, id string, input UpdateSubCategoryInput) (*domain.SubCategory, error) {
	sub, err := s.subcategories.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get subcategory: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		subSlug, err := slugFor(name)
		if err != nil {
			return nil, err
		}
		sub.Name = name
		sub.Slug = subSlug
	}
	if input.Description != nil {
		sub.Description = *input.Description
	}
	if input.ImageURL != nil {
		sub.ImageURL = *input.ImageURL
	}
	if input.CategoryName != nil {
		parent, err := s.parentCategory(ctx, *input.CategoryName)
		if err != nil {
			return nil, err
		}
		sub.CategoryID = parent.ID
		sub.Category = &domain.CategoryRef{ID: parent.ID, Name: parent.Name, Slug: parent.Slug}
	}

	if err := s.subcategories.Update(ctx, sub); err != nil {
		return nil, fmt.Errorf("update subcategory: %w", err)
	}
	return sub, nil
}

// DeleteSubCategory soft-deletes a subcategory.
func (s *TaxonomyService) DeleteSubCategory(ctx context.Context, id string) error {
	if err := s.subcategories.SoftDelete(ctx, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("delete subcategory: %w", err)
	}
	s.logger.InfoContext(ctx, "subcategory deleted", slog.String("subcategory_id", id))
	return nil
}

func (s *TaxonomyService) parentCategory(ctx context.Context, ref string) (*domain.Category, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperrors.MissingField("category_name")
	}
	parent, err := s.categories.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.Validation(map[string]string{"category_name": "does not reference an existing category"})
		}
		return nil, fmt.Errorf("resolve category: %w", err)
	}
	return parent, nil
}

func slugFor(name string) (string, error) {
	if name == "" {
		return "", apperrors.MissingField("name")
	}
	s := slug.Generate(name)
	if s == "" {
		return "", apperrors.Validation(map[string]string{"name": "must contain at least one letter or digit"})
	}
	return s, nil
}

// --- CSV import ---

var (
	categoryColumns    = []string{"name", "description", "meta_title", "meta_description", "meta_keywords"}
	subCategoryColumns = []string{"name", "description", "category_name"}
)

// ImportCategoriesCSV bulk-creates categories from a CSV file with a header
// row. Rows without a name, rows repeating an earlier name, and rows whose
// name or slug already exists are skipped.
func (s *TaxonomyService) ImportCategoriesCSV(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	records, err := readCSV(r, categoryColumns)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	seen := make(map[string]struct{}, len(records))
	categories := make([]domain.Category, 0, len(records))
	for _, rec := range records {
		name := rec["name"]
		categorySlug := slug.Generate(name)
		if categorySlug == "" {
			continue
		}
		if _, dup := seen[categorySlug]; dup {
			continue
		}
		seen[categorySlug] = struct{}{}

		categories = append(categories, domain.Category{
			ID:              uuid.New().String(),
			Name:            name,
			Slug:            categorySlug,
			Description:     rec["description"],
			MetaTitle:       rec["meta_title"],
			MetaDescription: rec["meta_description"],
			MetaKeywords:    cleanList(strings.Split(rec["meta_keywords"], ",")),
			IsActive:        true,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}

	inserted := 0
	if len(categories) > 0 {
		if inserted, err = s.categories.ImportMany(ctx, categories); err != nil {
			return nil, fmt.Errorf("import categories: %w", err)
		}
	}

	result := &domain.ImportResult{Total: len(records), Inserted: inserted, Skipped: len(records) - inserted}
	s.logger.InfoContext(ctx, "categories imported",
		slog.Int("total", result.Total),
		slog.Int("inserted", result.Inserted),
	)
	return result, nil
}

// ImportSubCategoriesCSV bulk-creates subcategories. Each row names its
// parent in category_name; rows whose parent does not exist are skipped.
func (s *TaxonomyService) ImportSubCategoriesCSV(ctx context.Context, r io.Reader) (*domain.ImportResult, error) {
	records, err := readCSV(r, subCategoryColumns)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	parents := make(map[string]*domain.Category)
	seen := make(map[string]struct{}, len(records))
	subs := make([]domain.SubCategory, 0, len(records))
	for _, rec := range records {
		name := rec["name"]
		subSlug := slug.Generate(name)
		if subSlug == "" {
			continue
		}
		if _, dup := seen[subSlug]; dup {
			continue
		}

		parentRef := strings.ToLower(rec["category_name"])
		if parentRef == "" {
			continue
		}
		parent, cached := parents[parentRef]
		if !cached {
			parent, err = s.categories.Resolve(ctx, rec["category_name"])
			if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
				return nil, fmt.Errorf("resolve category %q: %w", rec["category_name"], err)
			}
			parents[parentRef] = parent
		}
		if parent == nil {
			continue
		}
		seen[subSlug] = struct{}{}

		subs = append(subs, domain.SubCategory{
			ID:          uuid.New().String(),
			CategoryID:  parent.ID,
			Name:        name,
			Slug:        subSlug,
			Description: rec["description"],
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	inserted := 0
	if len(subs) > 0 {
		if inserted, err = s.subcategories.ImportMany(ctx, subs); err != nil {
			return nil, fmt.Errorf("import subcategories: %w", err)
		}
	}

	result := &domain.ImportResult{Total: len(records), Inserted: inserted, Skipped: len(records) - inserted}
	s.logger.InfoContext(ctx, "subcategories imported",
		slog.Int("total", result.Total),
		slog.Int("inserted", result.Inserted),
	)
	return result, nil
}

// readCSV parses a CSV document whose first row is a header. Columns are
// matched by name, case-insensitively and in any order; name is required and
// the other known columns are optional. Values are trimmed.
func readCSV(r io.Reader, columns []string) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.InvalidInput("csv file is empty")
		}
		return nil, apperrors.Malformed("csv", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[h] = i
	}
	if _, ok := index["name"]; !ok {
		return nil, apperrors.Validation(map[string]string{"csv": "header must contain a name column"})
	}

	var records []map[string]string
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apperrors.Malformed("csv", err)
		}

		rec := make(map[string]string, len(columns))
		for _, col := range columns {
			if i, ok := index[col]; ok && i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
