package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/user-service/internal/domain"
)

// UserFilter narrows List results.
type UserFilter struct {
	Search  *string
	Role    *domain.UserRole
	Status  *domain.UserStatus
	SortBy  string
	SortDir string
	Limit   int
	Offset  int
}

// UserStats aggregates account counts for the admin dashboard.
type UserStats struct {
	Total          int64 `json:"total"`
	Active         int64 `json:"active"`
	Inactive       int64 `json:"inactive"`
	Admins         int64 `json:"admins"`
	Users          int64 `json:"users"`
	RecentSignups  int64 `json:"recent_signups"`
	RecentLogins   int64 `json:"recent_logins"`
	WindowDaysBack int   `json:"window_days_back"`
}

// UserRepository defines persistence access for user accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetStatus(ctx context.Context, id string, status domain.UserStatus) error
	RecordLogin(ctx context.Context, id string, at time.Time) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter UserFilter) ([]domain.User, int, error)
	Stats(ctx context.Context) (*UserStats, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, full_name, role, status, last_login, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (id, email, password_hash, full_name, role, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.FullName,
		user.Role,
		user.Status,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const query = `
        UPDATE users SET email=$1, full_name=$2, role=$3, status=$4, updated_at=NOW()
        WHERE id=$5
        RETURNING updated_at`

	if err := r.pool.QueryRow(ctx, query,
		user.Email,
		user.FullName,
		user.Role,
		user.Status,
		user.ID,
	).Scan(&user.UpdatedAt); err != nil {
		return err
	}
	return nil
}

func (r *userRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, passwordHash, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) SetStatus(ctx context.Context, id string, status domain.UserStatus) error {
	const query = `UPDATE users SET status=$1, updated_at=NOW() WHERE id=$2`

	cmd, err := r.pool.Exec(ctx, query, status, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) RecordLogin(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET last_login=$1 WHERE id=$2`

	_, err := r.pool.Exec(ctx, query, at, id)
	return err
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email=$1`
	return r.fetchSingle(ctx, query, strings.ToLower(email))
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.FullName,
		&user.Role,
		&user.Status,
		&user.LastLogin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]domain.User, int, error) {
	query, args := buildUserListQuery(filter)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	users := make([]domain.User, 0, filter.Limit)
	total := 0
	for rows.Next() {
		var user domain.User
		if err := rows.Scan(
			&user.ID,
			&user.Email,
			&user.PasswordHash,
			&user.FullName,
			&user.Role,
			&user.Status,
			&user.LastLogin,
			&user.CreatedAt,
			&user.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	// COUNT(*) OVER() yields no row when the offset is past the last match,
	// so an out-of-range page falls back to a plain count.
	if len(users) == 0 {
		countQuery, countArgs := buildUserCountQuery(filter)
		if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, 0, err
		}
	}
	return users, total, nil
}

// sortColumns is the allow-list for ORDER BY; anything else falls back to
// created_at so client input never reaches the SQL text.
var sortColumns = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"email":      "email",
	"full_name":  "full_name",
	"last_login": "last_login",
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ClampLimit normalizes a requested page size: non-positive values get the
// default, oversize values are capped.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

// ClampOffset normalizes a requested offset.
func ClampOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}

// buildUserWhere assembles the filter clauses with positional args only.
func buildUserWhere(filter UserFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.Search != nil && strings.TrimSpace(*filter.Search) != "" {
		args = append(args, "%"+strings.TrimSpace(*filter.Search)+"%")
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(full_name ILIKE %s OR email ILIKE %s)", placeholder, placeholder))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		clauses = append(clauses, fmt.Sprintf("status=$%d", len(args)))
	}

	return strings.Join(clauses, " AND "), args
}

// buildUserListQuery assembles the filtered, paginated SELECT.
func buildUserListQuery(filter UserFilter) (string, []any) {
	where, args := buildUserWhere(filter)

	sortBy, ok := sortColumns[filter.SortBy]
	if !ok {
		sortBy = "created_at"
	}
	sortDir := "DESC"
	if strings.EqualFold(filter.SortDir, "asc") {
		sortDir = "ASC"
	}

	args = append(args, ClampLimit(filter.Limit))
	limitPos := len(args)
	args = append(args, ClampOffset(filter.Offset))
	offsetPos := len(args)

	query := fmt.Sprintf(`SELECT %s, COUNT(*) OVER() AS total FROM users WHERE %s ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`,
		userColumns, where, sortBy, sortDir, limitPos, offsetPos)

	return query, args
}

// buildUserCountQuery counts rows matching the same filter clauses.
func buildUserCountQuery(filter UserFilter) (string, []any) {
	where, args := buildUserWhere(filter)
	return "SELECT COUNT(*) FROM users WHERE " + where, args
}

func (r *userRepository) Stats(ctx context.Context) (*UserStats, error) {
	const windowDays = 30
	const query = `
        SELECT COUNT(*),
               COUNT(*) FILTER (WHERE status='active'),
               COUNT(*) FILTER (WHERE status='inactive'),
               COUNT(*) FILTER (WHERE role='admin'),
               COUNT(*) FILTER (WHERE role='user'),
               COUNT(*) FILTER (WHERE created_at >= NOW() - make_interval(days => $1)),
               COUNT(*) FILTER (WHERE last_login >= NOW() - make_interval(days => $1))
        FROM users`

	stats := &UserStats{WindowDaysBack: windowDays}
	if err := r.pool.QueryRow(ctx, query, windowDays).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Inactive,
		&stats.Admins,
		&stats.Users,
		&stats.RecentSignups,
		&stats.RecentLogins,
	); err != nil {
		return nil, err
	}
	return stats, nil
}
