package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/models"
)

type UserRepo struct {
	DB DBTX
}

const createUser = `-- name: CreateUser
INSERT INTO users (id, employee_number, name, picture, role, password_hash)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id, created_at, employee_number, name, picture, role, password_hash, password_changed_at
`

func (r *UserRepo) CreateUser(ctx context.Context, user models.CreateUser) (models.User, error) {
	role := user.Role
	if role == "" {
		role = models.RoleUser
	}

	rows, _ := r.DB.Query(ctx, createUser, uuid.New(), user.EmployeeNumber, user.Name, user.Picture, role, user.HashedPassword)
	created, err := pgx.CollectOneRow(rows, rowToUser)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return created, apperrors.ErrUserAlreadyExists
		}

		return created, fmt.Errorf("db error: %w", err)
	}

	return created, nil
}

const getUserByID = `-- name: GetUserByID
SELECT id, created_at, employee_number, name, picture, role, password_hash, password_changed_at
FROM users
WHERE id = $1
`

func (r *UserRepo) GetUserByID(ctx context.Context, id uuid.UUID) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByID, id)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const getUserByEmployeeNumber = `-- name: GetUserByEmployeeNumber
SELECT id, created_at, employee_number, name, picture, role, password_hash, password_changed_at
FROM users
WHERE employee_number = $1
`

func (r *UserRepo) GetUserByEmployeeNumber(ctx context.Context, employeeNumber int64) (models.User, error) {
	rows, _ := r.DB.Query(ctx, getUserByEmployeeNumber, employeeNumber)
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

const updatePassword = `-- name: UpdatePassword
UPDATE users
SET password_hash = $2, password_changed_at = $3
WHERE id = $1
RETURNING id, created_at, employee_number, name, picture, role, password_hash, password_changed_at
`

// UpdatePassword replaces the hash and stamps password_changed_at.
// The stamp comes from the app clock, not now(): now() is pinned to the
// transaction start and would predate tokens issued inside the same tx.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uuid.UUID, hashedPassword string) (models.User, error) {
	rows, _ := r.DB.Query(ctx, updatePassword, id, hashedPassword, time.Now())
	user, err := pgx.CollectOneRow(rows, rowToUser)

	switch {
	case err == nil:
		return user, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user, apperrors.ErrUserNotFound
	default:
		return user, fmt.Errorf("db error: %w", err)
	}
}

func rowToUser(row pgx.CollectableRow) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.CreatedAt, &u.EmployeeNumber, &u.Name, &u.Picture, &u.Role, &u.HashedPassword, &u.PasswordChangedAt)
	return u, err
}
