package auth

import (
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmikheev/staffauth/internal/models"
	"github.com/pmikheev/staffauth/internal/testutil"
	"github.com/pmikheev/staffauth/tests/integration"
)

const (
	RenewURL  = "/auth/user/renew-token"
	LogoutURL = "/auth/user/logout"
)

func Test_AuthRenew(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	t.Run("renew token ok", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			user := createUser(t, s.AuthService, 1001, models.RoleUser)
			_, pair, err := s.AuthService.Login(t.Context(), user.EmployeeNumber, "secret123", "web")
			require.NoError(t, err)

			// Create request and set auth cookies. Save them to verify they are rolled later
			req, err := http.NewRequest(http.MethodPost, srvURL+RenewURL, nil)
			require.NoError(t, err)
			s.AuthService.SetTokenPairToRequest(req, pair)
			firstRefreshCookie := req.Cookies()[0]
			assert.NotEmpty(t, firstRefreshCookie.Value, "refresh cookie should not be empty")

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			defer resp.Body.Close() // nolint:errcheck

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", string(body))
			require.JSONEq(t, `{"success": true}`, string(body))

			require.Equal(t, 1, len(resp.Cookies()))
			secondRefreshCookie := resp.Cookies()[0]
			require.NotEmpty(t, secondRefreshCookie.Value, "refresh cookie should not be empty")
			require.NotEqual(t, firstRefreshCookie.Value, secondRefreshCookie.Value, "refresh token should be changed after renew")
			require.NotEmpty(t, resp.Header.Get("token"), "access token should be set after renew")
		})
	})

	t.Run("renew twice fail", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			user := createUser(t, s.AuthService, 1001, models.RoleUser)
			_, pair, err := s.AuthService.Login(t.Context(), user.EmployeeNumber, "secret123", "web")
			require.NoError(t, err)

			createRequest := func(pair models.TokenPair) *http.Request {
				req, err := http.NewRequest(http.MethodPost, srvURL+RenewURL, nil)
				require.NoError(t, err)
				s.AuthService.SetTokenPairToRequest(req, pair)
				return req
			}

			resp1, err := http.DefaultClient.Do(createRequest(pair))
			require.NoError(t, err, "renew request should always complete")
			body1, err := io.ReadAll(resp1.Body)
			require.NoError(t, err)
			defer resp1.Body.Close() // nolint:errcheck

			require.Equalf(t, http.StatusOK, resp1.StatusCode, "not expected code. Body: %s", string(body1))

			// The pair was rotated: presenting the old refresh token again
			// must be denied and tell the client to drop its session
			resp2, err := http.DefaultClient.Do(createRequest(pair))
			require.NoError(t, err, "renew request should always complete")
			body2, err := io.ReadAll(resp2.Body)
			require.NoError(t, err)
			defer resp2.Body.Close() // nolint:errcheck

			require.Equalf(t, http.StatusBadRequest, resp2.StatusCode, "not expected code. Body: %s", string(body2))
			require.JSONEq(t, `
				{
					"success": false,
					"error": {
						"code": "renewal_denied",
						"message": "Renewal denied"
					},
					"removeUser": true
				}`, string(body2))

			// Even the rotated token is dead now: the mismatch purged the session
			require.Equal(t, 1, len(resp2.Cookies()))
			assert.Negative(t, resp2.Cookies()[0].MaxAge, "refresh cookie should be expired on denial")
		})
	})

	t.Run("logout then renew fail", func(t *testing.T) {
		integration.RunTx(pg.Pool, t, func(srvURL string, s integration.Services) {
			user := createUser(t, s.AuthService, 1001, models.RoleUser)
			_, pair, err := s.AuthService.Login(t.Context(), user.EmployeeNumber, "secret123", "web")
			require.NoError(t, err)

			logoutReq, err := http.NewRequest(http.MethodPost, srvURL+LogoutURL, nil)
			require.NoError(t, err)
			s.AuthService.SetTokenPairToRequest(logoutReq, pair)

			logoutResp, err := http.DefaultClient.Do(logoutReq)
			require.NoError(t, err)
			_ = logoutResp.Body.Close()
			require.Equal(t, http.StatusOK, logoutResp.StatusCode)

			renewReq, err := http.NewRequest(http.MethodPost, srvURL+RenewURL, nil)
			require.NoError(t, err)
			s.AuthService.SetTokenPairToRequest(renewReq, pair)

			renewResp, err := http.DefaultClient.Do(renewReq)
			require.NoError(t, err)
			body, err := io.ReadAll(renewResp.Body)
			require.NoError(t, err)
			defer renewResp.Body.Close() // nolint:errcheck

			require.Equalf(t, http.StatusBadRequest, renewResp.StatusCode, "not expected code. Body: %s", string(body))
			assert.Contains(t, string(body), "renewal_denied")
		})
	})
}
