package database

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	return NewMockPool(t)
}

func TestWithTx_Commits(t *testing.T) {
	mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO products").WithArgs("p-1").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO products (id) VALUES ($1)", "p-1")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	mock := newMock(t)
	skuErr := &pgconn.PgError{Code: "23505", ConstraintName: "product_variants_sku_key"}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO product_variants").WithArgs("RS-M").WillReturnError(skuErr)
	mock.ExpectRollback()

	err := WithTx(context.Background(), mock, func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "INSERT INTO product_variants (sku) VALUES ($1)", "RS-M")
		return err
	})

	require.Error(t, err)
	constraint, ok := UniqueViolation(err)
	assert.True(t, ok, "error from fn is returned unwrapped")
	assert.Equal(t, "product_variants_sku_key", constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_BeginFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))

	called := false
	err := WithTx(context.Background(), mock, func(pgx.Tx) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin transaction")
	assert.False(t, called)
}

func TestWithTx_CommitFails(t *testing.T) {
	mock := newMock(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("serialization failure"))

	err := WithTx(context.Background(), mock, func(pgx.Tx) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "commit transaction")
}

func TestUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505", ConstraintName: "products_slug_key"})
	constraint, ok := UniqueViolation(wrapped)
	assert.True(t, ok)
	assert.Equal(t, "products_slug_key", constraint)

	_, ok = UniqueViolation(&pgconn.PgError{Code: "23503"})
	assert.False(t, ok)

	_, ok = UniqueViolation(errors.New("duplicate key value violates unique constraint"))
	assert.False(t, ok, "only structured errors are classified")
}

func TestIsForeignKeyViolation(t *testing.T) {
	assert.True(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyViolation(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsForeignKeyViolation(nil))
}

func TestConflictValue(t *testing.T) {
	err := fmt.Errorf("insert variant: %w", &pgconn.PgError{
		Code:   "23505",
		Detail: "Key (sku)=(RS-1) already exists.",
	})
	assert.Equal(t, "RS-1", ConflictValue(err))
	assert.Equal(t, "a(b)", ConflictValue(&pgconn.PgError{Detail: "Key (slug)=(a(b)) already exists."}))
	assert.Empty(t, ConflictValue(&pgconn.PgError{Detail: "something else"}))
	assert.Empty(t, ConflictValue(errors.New("plain")))
}
