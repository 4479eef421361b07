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

// AdminRepository implements repository.AdminRepository using PostgreSQL.
type AdminRepository struct {
	db database.DBTX
}

// NewAdminRepository creates a new PostgreSQL-backed admin repository.
func NewAdminRepository(db database.DBTX) *AdminRepository {
	return &AdminRepository{db: db}
}

var _ repository.AdminRepository = (*AdminRepository)(nil)

// GetByEmail retrieves an admin by email address.
func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*domain.Admin, error) {
	query := `
		SELECT id, name, email, password_hash, is_verified, created_at, updated_at
		FROM admins
		WHERE email = $1`

	var a domain.Admin
	err := r.db.QueryRow(ctx, query, email).Scan(
		&a.ID,
		&a.Name,
		&a.Email,
		&a.Hash,
		&a.Verified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("admin", email)
		}
		return nil, fmt.Errorf("get admin by email: %w", err)
	}
	return &a, nil
}
