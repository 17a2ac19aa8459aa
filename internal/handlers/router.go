package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/handlers/middleware"
	"github.com/pmikheev/staffauth/internal/logger"
	"github.com/pmikheev/staffauth/internal/models"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	authService authService,
	logger logger.Logger,
	recorder middleware.ErrorRecorder,
) http.Handler {
	authMiddleware := middleware.Auth(authService)
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(h)
	}

	authmux := http.NewServeMux()

	authmux.Handle("POST /user", handleLogin(authService, logger))
	authmux.Handle("POST /user/renew-token", handleRenewToken(authService, logger))
	authmux.Handle("POST /user/logout", withAuth(handleLogout(authService, logger)))

	authmux.Handle("GET /user/me", withAuth(handleUserMe()))
	authmux.Handle("POST /user/password", withAuth(handleChangePassword(authService, logger)))

	authmux.Handle("GET /user/{id}",
		chain(handleUserByID(authService, logger), withAuth, middleware.RequireSelf("id")))
	authmux.Handle("POST /user/{id}/reset-password",
		chain(handleResetPassword(authService, logger), withAuth, middleware.RequireAdmin()))
	authmux.Handle("POST /user/{id}/logout",
		chain(handleForceLogout(authService, logger), withAuth, middleware.RequireModerator()))

	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", authmux))

	handler := chain(root,
		middleware.Logger(logger),
		middleware.ErrorLog(recorder),
	)

	return handler
}

type authService interface {
	// Login user with employee number and password.
	// Has to return apperrors.ErrAuthentication on any credential failure
	Login(ctx context.Context, employeeNumber int64, password string, device string) (models.User, models.TokenPair, error)

	// Rotate the session bound to the presented refresh token.
	// Has to return apperrors.ErrRenewalDenied if the token is not the
	// currently stored one for its session
	Renew(ctx context.Context, presented string) (models.User, models.TokenPair, error)

	// Drop the session for the user and device
	Logout(ctx context.Context, userID uuid.UUID, device string) error

	// Change own password after verifying the current one.
	// Has to return apperrors.ErrAuthentication if current doesn't match
	ChangePassword(ctx context.Context, userID uuid.UUID, current string, newPassword string, device string) error

	// Set a new password without checking the old one. Caller gates access
	ResetPassword(ctx context.Context, userID uuid.UUID, newPassword string) (models.User, error)

	// Get user profile by id.
	// Has to return apperrors.ErrUserNotFound if no such user exists
	GetUser(ctx context.Context, userID uuid.UUID) (models.User, error)

	// Get request and return user if it authenticated or error
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)

	// Set auth tokens (access header, refresh cookie) to response
	SetTokenPairToResponse(w http.ResponseWriter, pair models.TokenPair)

	// Get refresh token from request cookie
	ReadRefreshToken(r *http.Request) (string, error)

	// Read the device name out of a refresh token without verifying it
	DeviceFromRefresh(refresh string) (string, error)

	// Expire the refresh cookie on the client
	ClearRefreshCookie(w http.ResponseWriter)
}
