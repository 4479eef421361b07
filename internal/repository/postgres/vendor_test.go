package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/marketplace/internal/domain"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

var vendorCols = []string{
	"id", "name", "business_type", "email", "phone", "password_hash",
	"is_email_verified", "is_verified", "is_active", "created_at", "updated_at",
}

func sampleVendor() domain.Vendor {
	return domain.Vendor{
		ID:        "vendor-1",
		Name:      "Acme Traders",
		Email:     strPtr("shop@acme.test"),
		Phone:     "+905551112233",
		Hash:      "$2a$10$hash",
		Verified:  true,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func vendorRow(v domain.Vendor) []any {
	return []any{
		v.ID, v.Name, v.BusinessType, v.Email, v.Phone, v.Hash,
		v.IsEmailVerified, v.Verified, v.IsActive, v.CreatedAt, v.UpdatedAt,
	}
}

func TestVendorRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewVendorRepository(mock)
	v := sampleVendor()

	mock.ExpectExec("INSERT INTO vendors").
		WithArgs(vendorRow(v)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), &v))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVendorRepository_Create_DuplicatePhone(t *testing.T) {
	mock := newMock(t)
	repo := NewVendorRepository(mock)
	v := sampleVendor()

	mock.ExpectExec("INSERT INTO vendors").
		WithArgs(anyArgs(11)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "vendors_phone_key"})

	err := repo.Create(context.Background(), &v)
	var appErr *apperrors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Contains(t, appErr.Fields, "phone")
}

func TestVendorRepository_Lookups(t *testing.T) {
	v := sampleVendor()
	tests := []struct {
		name   string
		column string
		arg    string
		call   func(*VendorRepository) (*domain.Vendor, error)
	}{
		{"by id", "id", v.ID, func(r *VendorRepository) (*domain.Vendor, error) {
			return r.GetByID(context.Background(), v.ID)
		}},
		{"by email", "email", *v.Email, func(r *VendorRepository) (*domain.Vendor, error) {
			return r.GetByEmail(context.Background(), *v.Email)
		}},
		{"by phone", "phone", v.Phone, func(r *VendorRepository) (*domain.Vendor, error) {
			return r.GetByPhone(context.Background(), v.Phone)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock(t)
			repo := NewVendorRepository(mock)

			mock.ExpectQuery("SELECT .+ FROM vendors WHERE " + tt.column + " = \\$1").
				WithArgs(tt.arg).
				WillReturnRows(pgxmock.NewRows(vendorCols).AddRow(vendorRow(v)...))

			got, err := tt.call(repo)
			require.NoError(t, err)
			assert.Equal(t, v, *got)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestVendorRepository_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewVendorRepository(mock)

	mock.ExpectQuery("SELECT .+ FROM vendors").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "ghost")
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestVendorRepository_MarkVerified(t *testing.T) {
	mock := newMock(t)
	repo := NewVendorRepository(mock)

	mock.ExpectExec("UPDATE vendors SET is_verified = TRUE").
		WithArgs("vendor-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.MarkVerified(context.Background(), "vendor-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
