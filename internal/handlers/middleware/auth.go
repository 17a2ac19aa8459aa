package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/handlers/render"
	"github.com/pmikheev/staffauth/internal/handlers/userctx"
	"github.com/pmikheev/staffauth/internal/models"
)

type authService interface {
	// Authenticate request by its access token
	// Has to return apperrors.ErrTokenMissing, ErrTokenExpired or ErrTokenInvalid
	GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error)

	// Expire the refresh cookie on the client
	ClearRefreshCookie(w http.ResponseWriter)
}

// Auth gates a handler behind a valid access token and puts the
// authenticated user into the request context.
//
// Failure modes differ on purpose: an expired token answers with
// tokenExpired=true so the client attempts a renewal, an invalid token
// clears the refresh cookie and forces a full re-login. Anything outside
// the documented sentinels is an internal failure and must not touch the
// client's session.
func Auth(as authService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.GetUserFromRequest(r.Context(), r)

			switch {
			case err == nil:
				ctx := userctx.New(r.Context(), user)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, apperrors.ErrTokenMissing):
				render.Fail(w, http.StatusForbidden, render.CodeTokenMissing, "Access token required")
			case errors.Is(err, apperrors.ErrTokenExpired):
				render.FailResponse(w, http.StatusUnauthorized, render.Response{
					Error:        &render.ErrorInfo{Code: render.CodeTokenExpired, Message: "Access token expired"},
					TokenExpired: true,
				})
			case errors.Is(err, apperrors.ErrTokenInvalid):
				as.ClearRefreshCookie(w)
				render.Fail(w, http.StatusUnauthorized, render.CodeTokenInvalid, "Access token invalid")
			default:
				render.Fail(w, http.StatusInternalServerError, render.CodeInternalError, "Internal server error")
			}
		})
	}
}

// RequireRole lets through only users with one of the given roles
// Must be mounted inside Auth so the user is already in the context
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.Fail(w, http.StatusUnauthorized, render.CodeRoleRequired, "Not authenticated")
				return
			}

			if !slices.Contains(roles, user.Role) {
				render.Fail(w, http.StatusUnauthorized, render.CodeRoleRequired, roleMessage(roles))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates a handler behind the admin role
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin)
}

// RequireModerator gates a handler behind the moderator role
// Admins pass too: moderator is a subset of admin powers
func RequireModerator() func(http.Handler) http.Handler {
	return RequireRole(models.RoleAdmin, models.RoleModerator)
}

// RequireSelf lets a user access only their own resource, identified by the
// path value under param. Admins may access anyone's.
func RequireSelf(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := userctx.FromContext(r.Context())
			if !ok {
				render.Fail(w, http.StatusUnauthorized, render.CodeRoleRequired, "Not authenticated")
				return
			}

			targetID, err := uuid.Parse(r.PathValue(param))
			if err != nil {
				render.Fail(w, http.StatusBadRequest, render.CodeValidationFailed, "Invalid user id")
				return
			}

			if user.ID != targetID && user.Role != models.RoleAdmin {
				render.Fail(w, http.StatusUnauthorized, render.CodeRoleRequired, "You can only access your own record")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func roleMessage(roles []string) string {
	if len(roles) == 1 {
		return roles[0] + " role required"
	}
	return "one of roles required: " + strings.Join(roles, ", ")
}
