package integration

import (
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stretchr/testify/require"

	"github.com/pmikheev/staffauth/internal/handlers"
	"github.com/pmikheev/staffauth/internal/logger"
	"github.com/pmikheev/staffauth/internal/repository/postgres"
	"github.com/pmikheev/staffauth/internal/repository/redisstore"
	"github.com/pmikheev/staffauth/internal/service/auth"
	"github.com/pmikheev/staffauth/internal/service/auth/tokenmanager"
	"github.com/pmikheev/staffauth/internal/testutil"
)

type Services struct {
	AuthService *auth.AuthService
}

type noopRecorder struct{}

func (noopRecorder) Record(status int, code string, message string, path string) {}

// RunTx starts the full router backed by a db transaction and a fresh
// in-memory redis, so every test case sees a clean state.
// The transaction is rolled back when the inner function returns
func RunTx(dbpool *pgxpool.Pool, t *testing.T, fn func(srvURL string, s Services)) {
	testutil.WithTx(dbpool, t, func(tx pgx.Tx) {
		rdb, _ := testutil.StartMiniredis(t)

		userRepo := &postgres.UserRepo{DB: tx}
		refreshStore := redisstore.New(rdb)

		tokenManager, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, refreshStore)
		require.NoError(t, err, "token manager should be created without errors")

		as, err := auth.NewService(auth.Config{}, tokenManager, userRepo, refreshStore)
		require.NoError(t, err, "auth service should be created without errors")

		router := handlers.NewRouter(as, logger.NewNoOp(), noopRecorder{})

		srv := httptest.NewServer(router)
		defer srv.Close()

		fn(srv.URL, Services{AuthService: as})
	})
}
