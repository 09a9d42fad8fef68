package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/germesbot/germes/internal/database"
	"github.com/germesbot/germes/internal/repository"
)

const superUserID int64 = 777

type testEnv struct {
	users   *UserService
	access  *AccessService
	credits *CreditService
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	db, err := database.Connect("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(context.Background(), db))

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	userRepo := repository.NewUserRepository(db)
	allowRepo := repository.NewAllowListRepository(db)
	creditRepo := repository.NewCreditRepository(db)

	return testEnv{
		users:   NewUserService(userRepo),
		access:  NewAccessService(superUserID, allowRepo, userRepo),
		credits: NewCreditService(log, creditRepo, 2.00, 10.00),
	}
}
