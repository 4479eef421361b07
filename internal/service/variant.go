package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// Bounds of the product_variants columns: prices are NUMERIC(12,2) and stock
// is a 4-byte integer.
var maxAmount = decimal.New(1, 10)

const maxStock = math.MaxInt32

// RawVariant is a variant as submitted by a vendor. Numbers may arrive as
// JSON numbers or numeric strings, since multipart forms carry the variant
// list as an encoded string.
type RawVariant struct {
	SKU           *string        `json:"sku"`
	Attributes    map[string]any `json:"attributes"`
	ActualPrice   *json.Number   `json:"actualPrice"`
	Price         *json.Number   `json:"price"`
	StockQuantity *json.Number   `json:"stockQuantity"`
	IsActive      *bool          `json:"isActive"`
}

// NormalizeVariant turns the variant at index into its canonical form.
// Omitted fields take their defaults: no attributes, zero stock, active,
// and a list price equal to the selling price. media is copied so later
// changes to the caller's slice do not leak into the variant.
func NormalizeVariant(index int, raw RawVariant, media []string) (domain.Variant, error) {
	field := func(name string) string { return fmt.Sprintf("variants[%d].%s", index, name) }

	if raw.SKU == nil || strings.TrimSpace(*raw.SKU) == "" {
		return domain.Variant{}, apperrors.MissingField(field("sku"))
	}
	if raw.Price == nil || raw.Price.String() == "" {
		return domain.Variant{}, apperrors.MissingField(field("price"))
	}

	price, err := parseAmount(field("price"), *raw.Price)
	if err != nil {
		return domain.Variant{}, err
	}

	actual := price
	if raw.ActualPrice != nil && raw.ActualPrice.String() != "" {
		if actual, err = parseAmount(field("actualPrice"), *raw.ActualPrice); err != nil {
			return domain.Variant{}, err
		}
	}

	stock := 0
	if raw.StockQuantity != nil && raw.StockQuantity.String() != "" {
		n, err := raw.StockQuantity.Int64()
		if err != nil {
			return domain.Variant{}, apperrors.Validation(map[string]string{field("stockQuantity"): "must be an integer"})
		}
		if n < 0 {
			return domain.Variant{}, apperrors.Validation(map[string]string{field("stockQuantity"): "must be greater than or equal to 0"})
		}
		if n > maxStock {
			return domain.Variant{}, apperrors.Validation(map[string]string{field("stockQuantity"): fmt.Sprintf("must be at most %d", maxStock)})
		}
		stock = int(n)
	}

	pricing, err := domain.ComputePricing(actual, price)
	if err != nil {
		return domain.Variant{}, err
	}

	attributes := raw.Attributes
	if attributes == nil {
		attributes = map[string]any{}
	}

	images := make([]string, len(media))
	copy(images, media)

	now := time.Now().UTC()
	return domain.Variant{
		ID:              uuid.New().String(),
		Position:        index,
		SKU:             strings.TrimSpace(*raw.SKU),
		Attributes:      attributes,
		ActualPrice:     actual,
		Price:           price,
		DiscountPercent: pricing.DiscountPercent,
		FinalPrice:      pricing.FinalPrice,
		StockQuantity:   stock,
		IsActive:        raw.IsActive == nil || *raw.IsActive,
		ImageURLs:       images,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// parseAmount reads a money value that must round-trip through the store
// unchanged: at most two decimal places and below 10^10. Sign is left to
// ComputePricing.
func parseAmount(name string, n json.Number) (float64, error) {
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return 0, apperrors.Validation(map[string]string{name: "must be a number"})
	}
	if !d.Equal(d.Round(2)) {
		return 0, apperrors.Validation(map[string]string{name: "must have at most 2 decimal places"})
	}
	if d.GreaterThanOrEqual(maxAmount) {
		return 0, apperrors.Validation(map[string]string{name: "must be less than " + maxAmount.String()})
	}
	return d.InexactFloat64(), nil
}

// DecodeVariants accepts either a JSON array of variants or a JSON string
// holding such an array.
func DecodeVariants(raw json.RawMessage) ([]RawVariant, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	if raw[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, apperrors.Malformed("variants", err)
		}
		raw = bytes.TrimSpace([]byte(encoded))
		if len(raw) == 0 {
			return nil, nil
		}
	}

	if raw[0] != '[' {
		return nil, apperrors.Malformed("variants", fmt.Errorf("expected a list"))
	}

	var variants []RawVariant
	if err := json.Unmarshal(raw, &variants); err != nil {
		return nil, apperrors.Malformed("variants", err)
	}
	return variants, nil
}

// ParseSubcategories canonicalizes a subcategory reference into an ordered
// list of trimmed, non-empty names. It accepts a JSON list, a JSON string
// holding a list or a single name, or a comma-separated string.
func ParseSubcategories(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []string{}, nil
	}

	switch raw[0] {
	case '[':
		var list []string
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, apperrors.Malformed("subcategories", err)
		}
		return cleanList(list), nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, apperrors.Malformed("subcategories", err)
		}
		return parseSubcategoryString(s), nil
	default:
		return nil, apperrors.Malformed("subcategories", fmt.Errorf("expected a list or a string"))
	}
}

func parseSubcategoryString(s string) []string {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, `"`) {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			switch v := decoded.(type) {
			case []any:
				list := make([]string, 0, len(v))
				for _, item := range v {
					list = append(list, fmt.Sprint(item))
				}
				return cleanList(list)
			case string:
				return cleanList([]string{v})
			}
		}
	}
	return cleanList(strings.Split(s, ","))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
