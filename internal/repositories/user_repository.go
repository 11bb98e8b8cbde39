package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chatroom-service/internal/models"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrDuplicateUsername = errors.New("username already taken")
)

// UserRepository is the account store: stable {id, username, picture} triples
// keyed by immutable username.
type UserRepository interface {
	FindOrCreateUser(ctx context.Context, username, picData, picType string) (models.User, error)
	GetUser(ctx context.Context, userID int) (models.User, error)
}

// UserRepo is a sqlx-backed repository.
type UserRepo struct {
	db *sqlx.DB
}

// NewUserRepo constructs UserRepo.
func NewUserRepo(db *sqlx.DB) *UserRepo {
	return &UserRepo{db: db}
}

const userColumns = `id, username, profile_pic_data, profile_pic_type, created_at`

// FindOrCreateUser returns the existing user for the username, or creates one
// with the given profile picture. An existing username is not an error; the
// stored profile wins and the uploaded picture is ignored.
func (r *UserRepo) FindOrCreateUser(ctx context.Context, username, picData, picType string) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.User{}, err
	}

	err = r.db.QueryRowxContext(ctx,
		`INSERT INTO users (username, profile_pic_data, profile_pic_type) VALUES ($1, $2, $3) RETURNING `+userColumns,
		username, picData, picType).
		StructScan(&user)
	if err == nil {
		return user, nil
	}

	// Lost an insert race: someone else created the username between the
	// select and the insert. Fall back to the winner's row.
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		if selErr := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE username=$1`, username); selErr == nil {
			return user, nil
		}
		return models.User{}, ErrDuplicateUsername
	}
	return models.User{}, err
}

// GetUser retrieves a user by id.
func (r *UserRepo) GetUser(ctx context.Context, userID int) (models.User, error) {
	var user models.User
	err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id=$1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, ErrUserNotFound
	}
	return user, err
}
