package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/models"
)

// User repository interface
type UserRepo interface {
	// Create user
	// If user with the employee number exists already has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, user models.CreateUser) (models.User, error)

	// Get user by its id or employee number
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmployeeNumber(ctx context.Context, employeeNumber int64) (models.User, error)

	// Replace the password hash and bump password_changed_at
	// Access tokens issued before the bump become stale
	UpdatePassword(ctx context.Context, userID uuid.UUID, hashedPassword string) (models.User, error)
}

// Refresh token store interface
// Keyed per (user, device): exactly one live refresh token per pair
type RefreshTokenStore interface {
	// Save token under (user, device) with the given TTL
	// Overwrites the previous value, which invalidates it
	Save(ctx context.Context, userID uuid.UUID, device string, token string, ttl time.Duration) error

	// Get the live token for (user, device)
	// If nothing stored (or expired) must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, userID uuid.UUID, device string) (string, error)

	// Delete the entry for (user, device)
	// Deleting an absent entry is not an error
	Delete(ctx context.Context, userID uuid.UUID, device string) error
}
