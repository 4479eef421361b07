package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/utafrali/marketplace/internal/domain"
	pkgkafka "github.com/utafrali/marketplace/pkg/kafka"
	"github.com/utafrali/marketplace/pkg/logger"
)

// Kafka topics for catalog events.
var (
	TopicProductCreated = pkgkafka.Topic("catalog", "product.created")
	TopicProductUpdated = pkgkafka.Topic("catalog", "product.updated")
)

// Event types carried in the envelope.
const (
	TypeProductCreated = "catalog.product.created"
	TypeProductUpdated = "catalog.product.updated"
)

// AggregateTypeProduct is the aggregate type of every catalog event.
const AggregateTypeProduct = "product"

// SourceCatalogService identifies events published by this service.
const SourceCatalogService = "catalog-service"

// VariantData is the per-variant part of a product event.
type VariantData struct {
	SKU             string  `json:"sku"`
	Price           float64 `json:"price"`
	DiscountPercent float64 `json:"discount_percent"`
	FinalPrice      float64 `json:"final_price"`
	StockQuantity   int     `json:"stock_quantity"`
	IsActive        bool    `json:"is_active"`
}

// ProductData is the payload for product.created and product.updated.
type ProductData struct {
	ID            string        `json:"id"`
	VendorID      string        `json:"vendor_id"`
	Name          string        `json:"name"`
	Slug          string        `json:"slug"`
	Category      string        `json:"category"`
	Subcategories []string      `json:"subcategories"`
	Brand         string        `json:"brand,omitempty"`
	IsAvailable   bool          `json:"is_available"`
	Variants      []VariantData `json:"variants"`
}

// Publisher is the part of pkgkafka.Producer the catalog needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes catalog domain events to Kafka.
type Producer struct {
	kafka  Publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the catalog service.
func NewProducer(kafka Publisher, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishProductCreated publishes a product.created event.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductCreated, TypeProductCreated, product)
}

// PublishProductUpdated publishes a product.updated event.
func (p *Producer) PublishProductUpdated(ctx context.Context, product *domain.Product) error {
	return p.publish(ctx, TopicProductUpdated, TypeProductUpdated, product)
}

func (p *Producer) publish(ctx context.Context, topic, eventType string, product *domain.Product) error {
	evt, err := pkgkafka.NewEvent(eventType, product.ID, AggregateTypeProduct, SourceCatalogService, productData(product))
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}
	evt.WithMetadata("vendor_id", product.VendorID)

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published product event",
		slog.String("event_type", eventType),
		slog.String("product_id", product.ID),
	)

	return nil
}

func productData(product *domain.Product) ProductData {
	variants := make([]VariantData, 0, len(product.Variants))
	for _, v := range product.Variants {
		variants = append(variants, VariantData{
			SKU:             v.SKU,
			Price:           v.Price,
			DiscountPercent: v.DiscountPercent,
			FinalPrice:      v.FinalPrice,
			StockQuantity:   v.StockQuantity,
			IsActive:        v.IsActive,
		})
	}
	subcategories := product.Subcategories
	if subcategories == nil {
		subcategories = []string{}
	}
	return ProductData{
		ID:            product.ID,
		VendorID:      product.VendorID,
		Name:          product.Name,
		Slug:          product.Slug,
		Category:      product.Category,
		Subcategories: subcategories,
		Brand:         product.Brand,
		IsAvailable:   product.IsAvailable,
		Variants:      variants,
	}
}
