package admin

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/germesbot/germes/internal/database"
	"github.com/germesbot/germes/internal/repository"
	"github.com/germesbot/germes/internal/service"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	userRepo := repository.NewUserRepository(db)
	allowRepo := repository.NewAllowListRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	users := service.NewUserService(userRepo)
	access := service.NewAccessService(777, allowRepo, userRepo)
	credits := service.NewCreditService(log, creditRepo, 2.00, 10.00)

	return NewServer(":0", "admin", "secret", log, db, users, access, credits)
}

func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth {
		req.SetBasicAuth("admin", "secret")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthIsUnauthenticated(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestProtectedRoutesRequireBasicAuth(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodGet, "/", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, s, http.MethodPost, "/allow", `{"user_id":5}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAllowDisableFlow(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/allow", `{"user_id":5}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	var allowResp struct {
		UserID int64 `json:"user_id"`
		Added  bool  `json:"added"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allowResp))
	assert.True(t, allowResp.Added)

	rec = do(t, s, http.MethodPost, "/allow", `{"user_id":5}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &allowResp))
	assert.False(t, allowResp.Added, "repeat allow is a no-op")

	rec = do(t, s, http.MethodGet, "/", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview struct {
		Allowed []struct {
			UserID int64 `json:"user_id"`
		} `json:"allowed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	require.Len(t, overview.Allowed, 1)
	assert.Equal(t, int64(5), overview.Allowed[0].UserID)

	rec = do(t, s, http.MethodPost, "/disable", `{"user_id":5}`, true)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSetAndResetBalance(t *testing.T) {
	s := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/set_balance", `{"user_id":9,"balance":6.5}`, true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var overview struct {
		Balances []struct {
			UserID  int64   `json:"user_id"`
			Balance float64 `json:"balance"`
		} `json:"balances"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	require.Len(t, overview.Balances, 1)
	assert.InDelta(t, 6.5, overview.Balances[0].Balance, 1e-9)

	rec = do(t, s, http.MethodPost, "/reset_balance/9", "", true)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/", "", true)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &overview))
	require.Len(t, overview.Balances, 1)
	assert.InDelta(t, 0.0, overview.Balances[0].Balance, 1e-9)
}

func TestBadRequests(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{"allow invalid json", http.MethodPost, "/allow", "{"},
		{"allow missing user", http.MethodPost, "/allow", `{}`},
		{"disable missing user", http.MethodPost, "/disable", `{}`},
		{"set_balance negative", http.MethodPost, "/set_balance", `{"user_id":1,"balance":-1}`},
		{"reset non-numeric id", http.MethodPost, "/reset_balance/abc", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, s, tt.method, tt.path, tt.body, true)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}
