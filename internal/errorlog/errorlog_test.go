package errorlog

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pmikheev/staffauth/internal/logger"
	"github.com/pmikheev/staffauth/internal/testutil"
)

func Test_Recorder(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	countEntries := func(t *testing.T, tx pgx.Tx) int {
		t.Helper()
		var count int
		err := tx.QueryRow(t.Context(), "SELECT count(*) FROM error_log").Scan(&count)
		require.NoError(t, err)
		return count
	}

	t.Run("records entries and drains on stop", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			rec := NewRecorder(tx, logger.NewNoOp(), 10)

			ctx, cancel := context.WithCancel(t.Context())
			done := make(chan struct{})
			go func() {
				defer close(done)
				rec.Run(ctx)
			}()

			rec.Record(http.StatusUnauthorized, "authentication_failed", "Wrong employee number or password", "/auth/user")
			rec.Record(http.StatusBadRequest, "renewal_denied", "Renewal denied", "/auth/user/renew-token")

			cancel()
			select {
			case <-done:
			case <-time.After(5 * time.Second):
				t.Fatal("recorder did not stop")
			}

			assert.Equal(t, 2, countEntries(t, tx))
		})
	})

	t.Run("persists entry fields", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			rec := NewRecorder(tx, logger.NewNoOp(), 10)

			ctx, cancel := context.WithCancel(t.Context())
			done := make(chan struct{})
			go func() {
				defer close(done)
				rec.Run(ctx)
			}()

			rec.Record(http.StatusForbidden, "role_required", "Admin role required", "/auth/user/abc/reset-password")
			cancel()
			<-done

			var status int
			var code, message, path string
			err := tx.QueryRow(t.Context(),
				"SELECT status, code, message, path FROM error_log").
				Scan(&status, &code, &message, &path)

			require.NoError(t, err)
			assert.Equal(t, http.StatusForbidden, status)
			assert.Equal(t, "role_required", code)
			assert.Equal(t, "Admin role required", message)
			assert.Equal(t, "/auth/user/abc/reset-password", path)
		})
	})

	t.Run("drops when queue is full", func(t *testing.T) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			// No consumer started: the queue fills and extras are dropped
			rec := NewRecorder(tx, logger.NewNoOp(), 2)

			for range 5 {
				rec.Record(http.StatusInternalServerError, "internal_error", "boom", "/auth/user")
			}

			assert.Len(t, rec.queue, 2)
		})
	})
}
