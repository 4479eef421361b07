package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
)

// csvField is the multipart field carrying an import file.
const csvField = "csv"

// TaxonomyService is the category behaviour the taxonomy endpoints need.
type TaxonomyService interface {
	CreateCategory(ctx context.Context, input service.CreateCategoryInput) (*domain.Category, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	UpdateCategory(ctx context.Context, id string, input service.UpdateCategoryInput) (*domain.Category, error)
	DeleteCategory(ctx context.Context, id string) error
	ImportCategoriesCSV(ctx context.Context, r io.Reader) (*domain.ImportResult, error)

	CreateSubCategory(ctx context.Context, input service.CreateSubCategoryInput) (*domain.SubCategory, error)
	ListSubCategories(ctx context.Context) ([]domain.SubCategory, error)
	UpdateSubCategory(ctx context.Context, id string, input service.UpdateSubCategoryInput) (*domain.SubCategory, error)
	DeleteSubCategory(ctx context.Context, id string) error
	ImportSubCategoriesCSV(ctx context.Context, r io.Reader) (*domain.ImportResult, error)
}

// TaxonomyHandler handles HTTP requests for categories and subcategories.
type TaxonomyHandler struct {
	service        TaxonomyService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewTaxonomyHandler creates a new taxonomy HTTP handler.
func NewTaxonomyHandler(svc TaxonomyService, maxUploadBytes int64, logger *slog.Logger) *TaxonomyHandler {
	return &TaxonomyHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ListCategories handles GET /api/v1/categories
func (h *TaxonomyHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: categories})
}

// CreateCategory handles POST /api/v1/admin/categories
func (h *TaxonomyHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CreateCategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.service.CreateCategory(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: category})
}

// UpdateCategory handles PUT /api/v1/admin/categories/{id}
func (h *TaxonomyHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req service.UpdateCategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}

	category, err := h.service.UpdateCategory(r.Context(), id.String(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: category})
}

// DeleteCategory handles DELETE /api/v1/admin/categories/{id}
func (h *TaxonomyHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteCategory(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportCategories handles POST /api/v1/admin/categories/import
func (h *TaxonomyHandler) ImportCategories(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, h.service.ImportCategoriesCSV)
}

// ListSubCategories handles GET /api/v1/subcategories
func (h *TaxonomyHandler) ListSubCategories(w http.ResponseWriter, r *http.Request) {
	subs, err := h.service.ListSubCategories(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: subs})
}

// CreateSubCategory handles POST /api/v1/admin/subcategories
func (h *TaxonomyHandler) CreateSubCategory(w http.ResponseWriter, r *http.Request) {
	var req service.CreateSubCategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.CreateSubCategory(r.Context(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: sub})
}

// UpdateSubCategory handles PUT /api/v1/admin/subcategories/{id}
func (h *TaxonomyHandler) UpdateSubCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req service.UpdateSubCategoryInput
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.service.UpdateSubCategory(r.Context(), id.String(), req)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: sub})
}

// DeleteSubCategory handles DELETE /api/v1/admin/subcategories/{id}
func (h *TaxonomyHandler) DeleteSubCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.service.DeleteSubCategory(r.Context(), id.String()); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportSubCategories handles POST /api/v1/admin/subcategories/import
func (h *TaxonomyHandler) ImportSubCategories(w http.ResponseWriter, r *http.Request) {
	h.importCSV(w, r, h.service.ImportSubCategoriesCSV)
}

func (h *TaxonomyHandler) importCSV(w http.ResponseWriter, r *http.Request, run func(context.Context, io.Reader) (*domain.ImportResult, error)) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	file, _, err := r.FormFile(csvField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			httputil.WriteError(w, r, apperrors.MissingField(csvField), h.logger)
			return
		}
		httputil.WriteError(w, r, apperrors.InvalidInput("invalid multipart form: "+err.Error()), h.logger)
		return
	}
	defer func() { _ = file.Close() }()

	result, err := run(r.Context(), file)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: result})
}
