package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/pkg/health"
	"github.com/utafrali/marketplace/pkg/middleware"
)

// publicCacheAge is how long public catalog reads may be cached.
const publicCacheAge = 30 * time.Second

// RouterConfig carries the HTTP settings the router needs.
type RouterConfig struct {
	ServiceName       string
	Environment       string
	CORSOrigins       []string
	PprofAllowedCIDRs []string
	MaxUploadBytes    int64

	// AuthRateLimit is the per-IP request rate on /auth; 0 disables it.
	AuthRateLimit  float64
	AuthBurst      int
	TrustedProxies []string
}

// Services groups the application services exposed over HTTP.
type Services struct {
	Products ProductService
	Taxonomy TaxonomyService
	Auth     AuthService
}

// NewRouter creates a chi router with all catalog routes registered.
func NewRouter(
	services Services,
	validateToken middleware.TokenValidator,
	healthHandler *health.Handler,
	cfg RouterConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	cors := middleware.DefaultCORSConfig()
	cors.AllowedOrigins = cfg.CORSOrigins
	cors.Environment = cfg.Environment

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cors))

	// Health, metrics and debug endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	productHandler := NewProductHandler(services.Products, cfg.MaxUploadBytes, logger)
	taxonomyHandler := NewTaxonomyHandler(services.Taxonomy, cfg.MaxUploadBytes, logger)
	authHandler := NewAuthHandler(services.Auth, logger)

	authenticated := func(role domain.PrincipalKind) func(chi.Router) {
		return func(r chi.Router) {
			r.Use(middleware.Auth(validateToken))
			r.Use(middleware.RequireRole(string(role)))
			r.Use(middleware.RequestLogger(logger))
		}
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			if cfg.AuthRateLimit > 0 {
				r.Use(middleware.RateLimit(cfg.AuthRateLimit, cfg.AuthBurst, cfg.TrustedProxies, logger))
			}
			r.Post("/login", authHandler.Login)
			r.Post("/otp/request", authHandler.RequestOTP)
			r.Post("/otp/verify", authHandler.VerifyOTP)
		})

		// Public catalog
		r.Group(func(r chi.Router) {
			r.Use(middleware.CacheControl(publicCacheAge))

			r.Get("/products", productHandler.ListProducts)
			r.Get("/products/{idOrSlug}", productHandler.GetProduct)
			r.Get("/categories", taxonomyHandler.ListCategories)
			r.Get("/subcategories", taxonomyHandler.ListSubCategories)
		})

		// Vendor catalog management
		r.Route("/vendor/products", func(r chi.Router) {
			authenticated(domain.PrincipalVendor)(r)

			r.Get("/", productHandler.ListVendorProducts)
			r.Post("/", productHandler.CreateProduct)
			r.Put("/{id}", productHandler.UpdateProduct)
			r.Put("/{id}/variants/{sku}/stock", productHandler.UpdateVariantStock)
		})

		// Admin taxonomy management
		r.Route("/admin", func(r chi.Router) {
			authenticated(domain.PrincipalAdmin)(r)

			r.Route("/categories", func(r chi.Router) {
				r.Post("/", taxonomyHandler.CreateCategory)
				r.Post("/import", taxonomyHandler.ImportCategories)
				r.Put("/{id}", taxonomyHandler.UpdateCategory)
				r.Delete("/{id}", taxonomyHandler.DeleteCategory)
			})

			r.Route("/subcategories", func(r chi.Router) {
				r.Post("/", taxonomyHandler.CreateSubCategory)
				r.Post("/import", taxonomyHandler.ImportSubCategories)
				r.Put("/{id}", taxonomyHandler.UpdateSubCategory)
				r.Delete("/{id}", taxonomyHandler.DeleteSubCategory)
			})
		})
	})

	return r
}
