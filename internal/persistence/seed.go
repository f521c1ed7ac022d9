package persistence

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
)

// EnsureAdminUser creates the bootstrap admin account if ADMIN_EMAIL and
// ADMIN_PASSWORD are configured and no account with that email exists yet.
func EnsureAdminUser(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, logger *zap.Logger) error {
	if pool == nil || cfg.Admin.Email == "" || cfg.Admin.Password == "" {
		return nil
	}

	email := strings.ToLower(cfg.Admin.Email)

	var existing string
	err := pool.QueryRow(ctx, `SELECT id FROM users WHERE email=$1`, email).Scan(&existing)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	hash, err := auth.HashPassword(cfg.Admin.Password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	id := uuid.NewString()
	_, err = pool.Exec(ctx, `
        INSERT INTO users (id, email, password_hash, full_name, role, status)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		id, email, hash, cfg.Admin.FullName, domain.RoleAdmin, domain.UserStatusActive,
	)
	if err != nil {
		return err
	}

	logger.Info("seeded admin user", zap.String("email", email))
	return nil
}
