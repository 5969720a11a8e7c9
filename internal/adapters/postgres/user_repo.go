package postgres

import (
	"context"

	"github.com/samirrijal/taxiportal/internal/core/domain"
)

// UserRepo implements ports.UserRepository with pgx.
type UserRepo struct {
	db *DB
}

// NewUserRepo creates a new UserRepo.
func NewUserRepo(db *DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, email, name, phone, password_hash, two_factor_enabled, two_factor_email, created_at`

func (r *UserRepo) get(ctx context.Context, where string, arg any) (*domain.User, error) {
	var u domain.User
	err := r.db.Pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg).Scan(
		&u.ID, &u.Email, &u.Name, &u.Phone, &u.PasswordHash,
		&u.TwoFactorEnabled, &u.TwoFactorEmail, &u.CreatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

// GetByID returns a user by UUID.
func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.get(ctx, "id = $1", id)
}

// GetByEmail returns a user by lower-cased email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.get(ctx, "lower(email) = $1", email)
}

// UpdateProfile sets name and phone.
func (r *UserRepo) UpdateProfile(ctx context.Context, id, name, phone string) error {
	return r.exec(ctx, `UPDATE users SET name = $2, phone = $3 WHERE id = $1`, id, name, phone)
}

// UpdatePassword replaces the bcrypt hash.
func (r *UserRepo) UpdatePassword(ctx context.Context, id string, hash []byte) error {
	return r.exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, id, hash)
}

// SetTwoFactor toggles two-factor authentication and its delivery address.
func (r *UserRepo) SetTwoFactor(ctx context.Context, id string, enabled bool, email string) error {
	return r.exec(ctx, `UPDATE users SET two_factor_enabled = $2, two_factor_email = $3 WHERE id = $1`, id, enabled, email)
}

func (r *UserRepo) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Pool.Exec(ctx, sql, args...)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
