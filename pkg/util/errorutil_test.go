package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewForbidden("nope")
	mapped := ToDomainError(original)

	require.NotNil(t, mapped)
	assert.Equal(t, "FORBIDDEN", mapped.Code)
	assert.Equal(t, http.StatusForbidden, mapped.HTTPStatus)
}

func TestToDomainErrorWrappedPassthrough(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", NewConflict("duplicate", nil))
	mapped := ToDomainError(wrapped)

	assert.Equal(t, "CONFLICT", mapped.Code)
	assert.Equal(t, http.StatusConflict, mapped.HTTPStatus)
}

func TestToDomainErrorNoRows(t *testing.T) {
	mapped := ToDomainError(pgx.ErrNoRows)

	assert.Equal(t, "NOT_FOUND", mapped.Code)
	assert.Equal(t, http.StatusNotFound, mapped.HTTPStatus)
}

func TestToDomainErrorUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"}
	mapped := ToDomainError(fmt.Errorf("insert user: %w", pgErr))

	assert.Equal(t, "CONFLICT", mapped.Code)
	assert.Equal(t, http.StatusConflict, mapped.HTTPStatus)
	assert.Equal(t, "users_email_key", mapped.Details["constraint"])
}

func TestToDomainErrorConstraintViolations(t *testing.T) {
	for _, code := range []string{"23503", "23514"} {
		mapped := ToDomainError(&pgconn.PgError{Code: code})
		assert.Equal(t, "VALIDATION_FAILED", mapped.Code)
		assert.Equal(t, http.StatusBadRequest, mapped.HTTPStatus)
	}
}

func TestToDomainErrorUnknownBecomesInternal(t *testing.T) {
	mapped := ToDomainError(errors.New("boom"))

	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
	// internal detail must not leak into the client message
	assert.Equal(t, "internal server error", mapped.Message)
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
}

func TestDomainErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewInternalError(cause)

	assert.True(t, errors.Is(err, cause))
}
