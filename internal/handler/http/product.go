package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/internal/service"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httputil"
	"github.com/utafrali/marketplace/pkg/middleware"
	"github.com/utafrali/marketplace/pkg/pagination"
	"github.com/utafrali/marketplace/pkg/validator"
)

// maxJSONBody limits JSON request bodies.
const maxJSONBody = 1 << 20

var slugParam = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ProductService is the catalog behaviour the product endpoints need.
type ProductService interface {
	CreateProductWithVariants(ctx context.Context, vendorID string, input service.CreateProductInput) (*domain.Product, error)
	ListProducts(ctx context.Context, filter repository.ProductFilter) ([]domain.Product, int, error)
	ListVendorProducts(ctx context.Context, vendorID string, page pagination.Params) ([]domain.Product, int, error)
	GetProductByID(ctx context.Context, id string) (*domain.ProductDetail, error)
	GetProductBySlug(ctx context.Context, slug string) (*domain.ProductDetail, error)
	UpdateProduct(ctx context.Context, vendorID, productID string, input service.UpdateProductInput) (*domain.Product, error)
	UpdateVariantStock(ctx context.Context, vendorID, productID, sku string, quantity int) (*domain.Product, error)
}

// ProductHandler handles HTTP requests for product endpoints.
type ProductHandler struct {
	service        ProductService
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewProductHandler creates a new product HTTP handler.
func NewProductHandler(svc ProductService, maxUploadBytes int64, logger *slog.Logger) *ProductHandler {
	return &ProductHandler{
		service:        svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// --- Request DTOs ---

// CreateProductRequest is the JSON request body for creating a product.
// Variants and subcategories may be sent as JSON values or as JSON-encoded
// strings. VariantImages is keyed by the variant's index.
type CreateProductRequest struct {
	Name             string              `json:"name"`
	Category         string              `json:"category"`
	Subcategories    json.RawMessage     `json:"subcategories"`
	Brand            string              `json:"brand"`
	ShortDescription string              `json:"shortDescription"`
	Description      string              `json:"description"`
	IsAvailable      *bool               `json:"isAvailable"`
	Variants         json.RawMessage     `json:"variants"`
	Images           []string            `json:"images"`
	VariantImages    map[string][]string `json:"variantImages"`
}

// UpdateProductRequest is the JSON request body for updating a product.
type UpdateProductRequest struct {
	Name             *string         `json:"name" validate:"omitempty,max=500"`
	Category         *string         `json:"category" validate:"omitempty,notblank"`
	Subcategories    json.RawMessage `json:"subcategories"`
	Brand            *string         `json:"brand" validate:"omitempty,max=255"`
	ShortDescription *string         `json:"shortDescription" validate:"omitempty,max=1000"`
	Description      *string         `json:"description"`
	IsAvailable      *bool           `json:"isAvailable"`
}

// UpdateStockRequest is the JSON request body for setting variant stock.
type UpdateStockRequest struct {
	StockQuantity *int `json:"stockQuantity" validate:"required,gte=0,lte=2147483647"`
}

// --- Handlers ---

// ListProducts handles GET /api/v1/products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_PARAMETER", err.Error())
		return
	}

	filter := repository.ProductFilter{Page: page.Page, PerPage: page.PerPage}
	q := r.URL.Query()
	if v := q.Get("vendor_id"); v != "" {
		if _, ok := httputil.ParseUUID(w, v); !ok {
			return
		}
		filter.VendorID = &v
	}
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		filter.Category = &v
	}
	if v := strings.TrimSpace(q.Get("subcategory")); v != "" {
		filter.Subcategory = &v
	}
	if v := strings.TrimSpace(q.Get("search")); v != "" {
		filter.Search = &v
	}
	if v := q.Get("is_available"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteBadRequest(w, "INVALID_PARAMETER", "is_available must be true or false")
			return
		}
		filter.IsAvailable = &available
	}

	products, total, err := h.service.ListProducts(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// GetProduct handles GET /api/v1/products/{idOrSlug}
// A UUID is looked up by id, a slug by slug; anything else is rejected.
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	idOrSlug := chi.URLParam(r, "idOrSlug")

	var (
		detail *domain.ProductDetail
		err    error
	)

	switch {
	case isUUID(idOrSlug):
		detail, err = h.service.GetProductByID(r.Context(), idOrSlug)
	case slugParam.MatchString(idOrSlug):
		detail, err = h.service.GetProductBySlug(r.Context(), idOrSlug)
	default:
		httputil.WriteBadRequest(w, "INVALID_PARAMETER", "invalid product id or slug: "+idOrSlug)
		return
	}

	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: detail})
}

// ListVendorProducts handles GET /api/v1/vendor/products
func (h *ProductHandler) ListVendorProducts(w http.ResponseWriter, r *http.Request) {
	page, err := pagination.FromRequest(r)
	if err != nil {
		httputil.WriteBadRequest(w, "INVALID_PARAMETER", err.Error())
		return
	}

	products, total, err := h.service.ListVendorProducts(r.Context(), middleware.UserIDFromContext(r.Context()), page)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.NewPaginatedResponse(products, total, page.Page, page.PerPage))
}

// CreateProduct handles POST /api/v1/vendor/products
// The body is either JSON or multipart/form-data carrying the same fields
// as form values.
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var (
		input service.CreateProductInput
		err   error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		input, err = h.createInputFromForm(w, r)
	} else {
		input, err = createInputFromJSON(w, r)
	}
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	product, err := h.service.CreateProductWithVariants(r.Context(), middleware.UserIDFromContext(r.Context()), input)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{Data: product})
}

func createInputFromJSON(w http.ResponseWriter, r *http.Request) (service.CreateProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)

	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return service.CreateProductInput{}, bodyError("invalid request body: ", err)
	}

	variantImages, err := parseVariantImageKeys(req.VariantImages)
	if err != nil {
		return service.CreateProductInput{}, err
	}

	return service.CreateProductInput{
		Name:             req.Name,
		Category:         req.Category,
		Subcategories:    req.Subcategories,
		Brand:            req.Brand,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		IsAvailable:      req.IsAvailable,
		Variants:         req.Variants,
		DefaultImages:    req.Images,
		VariantImages:    variantImages,
	}, nil
}

// createInputFromForm reads a multipart form. Variant media are sent as
// repeated variantImages[<index>] fields and product media as repeated
// images fields.
func (h *ProductHandler) createInputFromForm(w http.ResponseWriter, r *http.Request) (service.CreateProductInput, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		return service.CreateProductInput{}, bodyError("invalid multipart form: ", err)
	}

	form := r.MultipartForm.Value
	get := func(key string) string {
		if v := form[key]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	input := service.CreateProductInput{
		Name:             get("name"),
		Category:         get("category"),
		Brand:            get("brand"),
		ShortDescription: get("shortDescription"),
		Description:      get("description"),
		DefaultImages:    form["images"],
	}

	if v := get("variants"); v != "" {
		encoded, _ := json.Marshal(v)
		input.Variants = encoded
	}
	if v := get("subcategories"); v != "" {
		encoded, _ := json.Marshal(v)
		input.Subcategories = encoded
	}
	if v := get("isAvailable"); v != "" {
		available, err := strconv.ParseBool(v)
		if err != nil {
			return service.CreateProductInput{}, apperrors.Validation(map[string]string{"isAvailable": "must be true or false"})
		}
		input.IsAvailable = &available
	}

	keyed := make(map[string][]string)
	for key, values := range form {
		if idx, ok := strings.CutPrefix(key, "variantImages["); ok && strings.HasSuffix(idx, "]") {
			keyed[strings.TrimSuffix(idx, "]")] = values
		}
	}
	variantImages, err := parseVariantImageKeys(keyed)
	if err != nil {
		return service.CreateProductInput{}, err
	}
	input.VariantImages = variantImages

	return input, nil
}

func parseVariantImageKeys(in map[string][]string) (map[int][]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[int][]string, len(in))
	for key, urls := range in {
		idx, err := strconv.Atoi(key)
		if err != nil || idx < 0 {
			return nil, apperrors.Validation(map[string]string{"variantImages": "keys must be variant indexes"})
		}
		out[idx] = urls
	}
	return out, nil
}

// UpdateProduct handles PUT /api/v1/vendor/products/{id}
func (h *ProductHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateProductRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.service.UpdateProduct(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), service.UpdateProductInput{
		Name:             req.Name,
		Category:         req.Category,
		Subcategories:    req.Subcategories,
		Brand:            req.Brand,
		ShortDescription: req.ShortDescription,
		Description:      req.Description,
		IsAvailable:      req.IsAvailable,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// UpdateVariantStock handles PUT /api/v1/vendor/products/{id}/variants/{sku}/stock
func (h *ProductHandler) UpdateVariantStock(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParseUUID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var req UpdateStockRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	product, err := h.service.UpdateVariantStock(r.Context(), middleware.UserIDFromContext(r.Context()), id.String(), chi.URLParam(r, "sku"), *req.StockQuantity)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: product})
}

// decodeJSON decodes and validates a JSON body into dst, answering 400 and
// returning false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := validator.DecodeAndValidate(r, dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httputil.WriteError(w, r, apperrors.PayloadTooLarge(maxErr.Limit), nil)
			return false
		}
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// bodyError maps a failed body read to 413 when the size limit was hit and
// to 400 otherwise.
func bodyError(prefix string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return apperrors.PayloadTooLarge(maxErr.Limit)
	}
	return apperrors.InvalidInput(prefix + err.Error())
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
