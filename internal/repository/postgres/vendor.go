package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

const vendorColumns = `id, name, business_type, email, phone, password_hash,
		is_email_verified, is_verified, is_active, created_at, updated_at`

// VendorRepository implements repository.VendorRepository using PostgreSQL.
type VendorRepository struct {
	db database.DBTX
}

// NewVendorRepository creates a new PostgreSQL-backed vendor repository.
func NewVendorRepository(db database.DBTX) *VendorRepository {
	return &VendorRepository{db: db}
}

var _ repository.VendorRepository = (*VendorRepository)(nil)

// Create inserts a new vendor account.
func (r *VendorRepository) Create(ctx context.Context, v *domain.Vendor) error {
	query := `
		INSERT INTO vendors (id, name, business_type, email, phone, password_hash,
			is_email_verified, is_verified, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.db.Exec(ctx, query,
		v.ID,
		v.Name,
		v.BusinessType,
		v.Email,
		v.Phone,
		v.Hash,
		v.IsEmailVerified,
		v.Verified,
		v.IsActive,
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		if constraint, ok := database.UniqueViolation(err); ok {
			if constraint == "vendors_email_key" && v.Email != nil {
				return apperrors.AlreadyExists("vendor", "email", *v.Email)
			}
			return apperrors.AlreadyExists("vendor", "phone", v.Phone)
		}
		return fmt.Errorf("insert vendor: %w", err)
	}
	return nil
}

// GetByID retrieves a vendor by its ID.
func (r *VendorRepository) GetByID(ctx context.Context, id string) (*domain.Vendor, error) {
	return r.getOne(ctx, "id", id)
}

// GetByEmail retrieves a vendor by email address.
func (r *VendorRepository) GetByEmail(ctx context.Context, email string) (*domain.Vendor, error) {
	return r.getOne(ctx, "email", email)
}

// GetByPhone retrieves a vendor by phone number.
func (r *VendorRepository) GetByPhone(ctx context.Context, phone string) (*domain.Vendor, error) {
	return r.getOne(ctx, "phone", phone)
}

// MarkVerified flags the vendor as verified.
func (r *VendorRepository) MarkVerified(ctx context.Context, id string) error {
	ct, err := r.db.Exec(ctx, `UPDATE vendors SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("verify vendor: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("vendor", id)
	}
	return nil
}

// getOne looks a vendor up by one of its unique columns. column is never
// caller supplied.
func (r *VendorRepository) getOne(ctx context.Context, column, value string) (*domain.Vendor, error) {
	query := fmt.Sprintf(`SELECT %s FROM vendors WHERE %s = $1`, vendorColumns, column)

	var v domain.Vendor
	err := r.db.QueryRow(ctx, query, value).Scan(
		&v.ID,
		&v.Name,
		&v.BusinessType,
		&v.Email,
		&v.Phone,
		&v.Hash,
		&v.IsEmailVerified,
		&v.Verified,
		&v.IsActive,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("vendor", value)
		}
		return nil, fmt.Errorf("get vendor by %s: %w", column, err)
	}
	return &v, nil
}
