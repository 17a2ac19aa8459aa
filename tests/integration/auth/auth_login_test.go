package auth

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmikheev/staffauth/internal/models"
	"github.com/pmikheev/staffauth/internal/service/auth"
	"github.com/pmikheev/staffauth/internal/testutil"
	"github.com/pmikheev/staffauth/tests/integration"
)

const (
	LoginURL = "/auth/user"
)

func createUser(t *testing.T, s *auth.AuthService, number int64, role string) models.User {
	t.Helper()
	user, err := s.CreateUser(t.Context(), models.CreateUser{
		EmployeeNumber: number,
		Name:           "Ivan Petrov",
		Picture:        "ivan.png",
		Role:           role,
	}, "secret123")
	require.NoError(t, err, "user should be created without errors")
	return user
}

func Test_AuthLogin(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("login ok", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			user := createUser(t, s.AuthService, 1001, models.RoleUser)

			data := `{"employeeNumber": "1001", "password": "secret123"}`
			resp, err := http.Post(srvURL+LoginURL, "application/json", strings.NewReader(data))
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(body))
			require.JSONEq(t, `
				{
					"success": true,
					"content": {
						"id": "`+user.ID.String()+`",
						"name": "Ivan Petrov",
						"picture": "ivan.png",
						"employeeNumber": "1001",
						"role": "user"
					}
				}`, string(body))

			require.NotEmpty(t, resp.Header.Get("token"), "access token header should be set")

			require.Equal(t, 1, len(resp.Cookies()))
			cookie := resp.Cookies()[0]
			require.Equal(t, "refreshToken", cookie.Name)
			require.True(t, cookie.HttpOnly, "refresh cookie should be HttpOnly")
			require.Equal(t, "/", cookie.Path, "refresh cookie should be available on / path")
			require.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "refresh cookie should be SameSite Strict")
			require.InDelta(t, (30 * 24 * time.Hour).Seconds(), cookie.MaxAge, 1, "max age should be refresh TTL with 1 second delta")
			require.NotEmpty(t, cookie.Value, "refresh cookie should not be empty")
		})
	})

	t.Run("login failed", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			createUser(t, s.AuthService, 1001, models.RoleUser)

			tests := []struct {
				name string
				data string
			}{
				{name: "wrong password", data: `{"employeeNumber": "1001", "password": "WrongPassword"}`},
				{name: "unknown employee", data: `{"employeeNumber": "9999", "password": "secret123"}`},
			}

			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					resp, err := http.Post(srvURL+LoginURL, "application/json", strings.NewReader(tt.data))
					require.NoError(t, err)
					body, err := io.ReadAll(resp.Body)
					require.NoError(t, err)
					defer resp.Body.Close() // nolint:errcheck

					require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", string(body))
					require.JSONEq(t, `
						{
							"success": false,
							"error": {
								"code": "authentication_failed",
								"message": "Wrong employee number or password"
							}
						}`, string(body))

					assert.Equal(t, 0, len(resp.Cookies()), "no cookies should be set on login error")
					assert.Empty(t, resp.Header.Get("token"), "access token header should not be set")
				})
			}
		})
	})
}
