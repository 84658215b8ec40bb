package database

import (
	"context"
	"fmt"
	"time"

	"github.com/adminboard/backend-api/internal/models"
	"github.com/google/uuid"
)

const userColumns = `id, username, email, password_hash, provider, provider_id, role,
	first_name, last_name, photo_url, phone_number, created_at, updated_at`

// UserRepository persists users. It enforces nothing beyond what the schema
// enforces; uniqueness failures surface as ErrDuplicate.
type UserRepository struct {
	db DBPool
}

func NewUserRepository(db DBPool) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row Row) (*models.User, error) {
	var u models.User
	var provider, role string
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &provider, &u.ProviderID, &role,
		&u.FirstName, &u.LastName, &u.PhotoURL, &u.PhoneNumber, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}
	u.Provider = models.Provider(provider)
	u.Role = models.Role(role)
	return &u, nil
}

// Create inserts u, assigning ID and timestamps when unset.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	now := time.Now().UTC().Truncate(time.Microsecond)
	u.CreatedAt, u.UpdatedAt = now, now

	_, err := r.db.Exec(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Provider), u.ProviderID, string(u.Role),
		u.FirstName, u.LastName, u.PhotoURL, u.PhoneNumber, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", translateError(err))
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, args ...any) (*models.User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, args...))
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `id = $1`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `email = $1`, email)
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.getOne(ctx, `username = $1`, username)
}

// GetByProvider looks a user up by external identity.
func (r *UserRepository) GetByProvider(ctx context.Context, provider models.Provider, providerID string) (*models.User, error) {
	return r.getOne(ctx, `provider = $1 AND provider_id = $2`, string(provider), providerID)
}

// ExistsByUsernameOrEmail reports whether either value is already taken.
func (r *UserRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE username = $1 OR email = $2`, username, email).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check user existence: %w", err)
	}
	return count > 0, nil
}

// Update writes the mutable profile fields of u.
func (r *UserRepository) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)

	res, err := r.db.Exec(ctx, `UPDATE users SET
		username = $1, email = $2, role = $3, first_name = $4, last_name = $5,
		photo_url = $6, phone_number = $7, updated_at = $8
		WHERE id = $9`,
		u.Username, u.Email, string(u.Role), u.FirstName, u.LastName,
		u.PhotoURL, u.PhoneNumber, u.UpdatedAt, u.ID,
	)
	if err != nil {
		return fmt.Errorf("update user: %w", translateError(err))
	}
	return requireAffected(res)
}

func requireAffected(res Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
