package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/user-service/internal/auth"
	"github.com/spec-kit/user-service/internal/config"
	"github.com/spec-kit/user-service/internal/domain"
	"github.com/spec-kit/user-service/internal/events"
	"github.com/spec-kit/user-service/internal/repository"
)

// fakeUserRepo is an in-memory repository.UserRepository.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
	err   error
}

func newFakeUserRepo(seed ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range seed {
		clone := *u
		repo.users[u.ID] = &clone
	}
	return repo
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	clone := *user
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) Update(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[user.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	user.UpdatedAt = time.Now()
	clone := *user
	clone.PasswordHash = stored.PasswordHash
	f.users[user.ID] = &clone
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, id, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.PasswordHash = passwordHash
	return nil
}

func (f *fakeUserRepo) SetStatus(_ context.Context, id string, status domain.UserStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.Status = status
	return nil
}

func (f *fakeUserRepo) RecordLogin(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	stored.LastLogin = &at
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.users {
		if stored.Email == strings.ToLower(email) {
			clone := *stored
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (f *fakeUserRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserRepo) List(_ context.Context, filter repository.UserFilter) ([]domain.User, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.User, 0, len(f.users))
	for _, stored := range f.users {
		out = append(out, *stored)
	}
	return out, len(out), nil
}

func (f *fakeUserRepo) Stats(_ context.Context) (*repository.UserStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := &repository.UserStats{WindowDaysBack: 30}
	for _, u := range f.users {
		stats.Total++
		if u.Status == domain.UserStatusActive {
			stats.Active++
		} else {
			stats.Inactive++
		}
		if u.Role == domain.RoleAdmin {
			stats.Admins++
		} else {
			stats.Users++
		}
	}
	return stats, nil
}

// fakeResetRepo is an in-memory repository.PasswordResetRepository.
type fakeResetRepo struct {
	mu     sync.Mutex
	tokens map[string]*repository.PasswordResetToken
	nextID int
}

func newFakeResetRepo() *fakeResetRepo {
	return &fakeResetRepo{tokens: make(map[string]*repository.PasswordResetToken)}
}

func (f *fakeResetRepo) Create(_ context.Context, token *repository.PasswordResetToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	token.ID = time.Now().Format("20060102150405") + "-" + string(rune('a'+f.nextID))
	token.CreatedAt = time.Now()
	clone := *token
	f.tokens[token.Token] = &clone
	return nil
}

func (f *fakeResetRepo) GetByToken(_ context.Context, tokenStr string) (*repository.PasswordResetToken, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.tokens[tokenStr]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	clone := *stored
	return &clone, nil
}

func (f *fakeResetRepo) MarkUsed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, stored := range f.tokens {
		if stored.ID == id {
			stored.UsedAt = &now
		}
	}
	return nil
}

// fakeRevoker is an in-memory auth.TokenRevoker.
type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]time.Time)}
}

func (f *fakeRevoker) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[jti] = expiresAt
	return nil
}

func (f *fakeRevoker) IsRevoked(_ context.Context, jti string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.revoked[jti]
	return ok
}

func (f *fakeRevoker) revokedUntil(jti string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	until, ok := f.revoked[jti]
	return until, ok
}

// recordingDispatcher captures published events for assertions.
type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (d *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) published() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event{}, d.events...)
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret:               "test-secret",
			AccessTokenTTLMinutes:   60,
			PasswordResetTTLMinutes: 30,
			BcryptCost:              bcrypt.MinCost,
		},
	}
}

func mustHash(password string) string {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}

func activeUser(id, email string, role domain.UserRole) *domain.User {
	return &domain.User{
		ID:           id,
		Email:        email,
		PasswordHash: mustHash("correct-password"),
		FullName:     "Test User",
		Role:         role,
		Status:       domain.UserStatusActive,
	}
}

var _ auth.TokenRevoker = (*fakeRevoker)(nil)
