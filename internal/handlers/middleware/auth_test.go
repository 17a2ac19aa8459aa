package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pmikheev/staffauth/internal/apperrors"
	"github.com/pmikheev/staffauth/internal/handlers/userctx"
	"github.com/pmikheev/staffauth/internal/models"
)

// Allow to use a function as auth service
type authFunc func(ctx context.Context, r *http.Request) (models.User, error)

func (f authFunc) GetUserFromRequest(ctx context.Context, r *http.Request) (models.User, error) {
	return f(ctx, r)
}

func (f authFunc) ClearRefreshCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: "refreshToken", Value: "", MaxAge: -1})
}

// Handler that writes the authenticated user's name to response
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	// Must always be true cause middleware has to set user or write error
	user, ok := userctx.FromContext(r.Context())
	if !ok {
		http.Error(w, "no user in context", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(user.Name))
})

func TestAuthMiddleware(t *testing.T) {
	t.Parallel()

	serve := func(t *testing.T, as authFunc, h http.Handler) *http.Response {
		t.Helper()

		srv := httptest.NewServer(Auth(as)(h))
		t.Cleanup(srv.Close)

		resp, err := http.Get(srv.URL + "/test")
		require.NoError(t, err, "should make request to test server")
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("auth ok", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return models.User{Name: "test-user"}, nil
		})

		resp := serve(t, as, echoUser)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, "test-user", string(body), "should return user name in response")
	})

	t.Run("missing token answers forbidden", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return models.User{}, apperrors.ErrTokenMissing
		})

		resp := serve(t, as, echoUser)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		require.JSONEq(t, `
			{
				"success": false,
				"error": {"code": "token_missing", "message": "Access token required"}
			}`, string(body))
	})

	t.Run("expired token distinguishable from invalid", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return models.User{}, fmt.Errorf("wrapped: %w", apperrors.ErrTokenExpired)
		})

		resp := serve(t, as, echoUser)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.JSONEq(t, `
			{
				"success": false,
				"error": {"code": "token_expired", "message": "Access token expired"},
				"tokenExpired": true
			}`, string(body))
		require.Empty(t, resp.Cookies(), "expired token should not clear the refresh cookie, client may renew")
	})

	t.Run("invalid token clears refresh cookie", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return models.User{}, apperrors.ErrTokenInvalid
		})

		resp := serve(t, as, echoUser)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		require.Contains(t, string(body), "token_invalid")

		require.Len(t, resp.Cookies(), 1, "refresh cookie should be cleared")
		require.Equal(t, "refreshToken", resp.Cookies()[0].Name)
		require.Empty(t, resp.Cookies()[0].Value)
	})

	t.Run("storage failure keeps the session", func(t *testing.T) {
		as := authFunc(func(ctx context.Context, r *http.Request) (models.User, error) {
			return models.User{}, fmt.Errorf("error while loading credential. Err: %w", context.DeadlineExceeded)
		})

		resp := serve(t, as, echoUser)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)

		require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		require.JSONEq(t, `
			{
				"success": false,
				"error": {"code": "internal_error", "message": "Internal server error"}
			}`, string(body))
		require.Empty(t, resp.Cookies(), "a backend failure must not clear the client's refresh cookie")
	})
}

func TestRoleMiddleware(t *testing.T) {
	t.Parallel()

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	do := func(t *testing.T, user models.User, mw func(http.Handler) http.Handler, path string, pattern string) *http.Response {
		t.Helper()

		mux := http.NewServeMux()
		mux.Handle(pattern, mw(okHandler))

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mux.ServeHTTP(w, r.WithContext(userctx.New(r.Context(), user)))
		}))
		t.Cleanup(srv.Close)

		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	t.Run("admin gate", func(t *testing.T) {
		tests := []struct {
			role     string
			expected int
		}{
			{models.RoleAdmin, http.StatusOK},
			{models.RoleModerator, http.StatusUnauthorized},
			{models.RoleUser, http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.role, func(t *testing.T) {
				resp := do(t, models.User{Role: tt.role}, RequireAdmin(), "/test", "/test")
				require.Equal(t, tt.expected, resp.StatusCode)
			})
		}
	})

	t.Run("moderator gate lets admin through", func(t *testing.T) {
		tests := []struct {
			role     string
			expected int
		}{
			{models.RoleAdmin, http.StatusOK},
			{models.RoleModerator, http.StatusOK},
			{models.RoleUser, http.StatusUnauthorized},
		}

		for _, tt := range tests {
			t.Run(tt.role, func(t *testing.T) {
				resp := do(t, models.User{Role: tt.role}, RequireModerator(), "/test", "/test")
				require.Equal(t, tt.expected, resp.StatusCode)
			})
		}
	})

	t.Run("self gate", func(t *testing.T) {
		self := uuid.New()
		other := uuid.New()

		tests := []struct {
			name     string
			user     models.User
			target   uuid.UUID
			expected int
		}{
			{"own record", models.User{ID: self, Role: models.RoleUser}, self, http.StatusOK},
			{"someone else's record", models.User{ID: self, Role: models.RoleUser}, other, http.StatusUnauthorized},
			{"admin can access anyone", models.User{ID: self, Role: models.RoleAdmin}, other, http.StatusOK},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				resp := do(t, tt.user, RequireSelf("id"), "/users/"+tt.target.String(), "/users/{id}")
				require.Equal(t, tt.expected, resp.StatusCode)
			})
		}
	})

	t.Run("self gate rejects malformed id", func(t *testing.T) {
		resp := do(t, models.User{ID: uuid.New(), Role: models.RoleAdmin}, RequireSelf("id"), "/users/not-a-uuid", "/users/{id}")
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
