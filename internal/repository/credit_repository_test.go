package repository

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreditRepositoryEnsureRow(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()

	credit, err := repo.Find(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, credit)

	require.NoError(t, repo.EnsureRow(ctx, 42))
	require.NoError(t, repo.EnsureRow(ctx, 42))

	credit, err = repo.Find(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, credit)
	assert.Equal(t, 0.0, credit.Balance)
	assert.Equal(t, 0, credit.ImagesGenerated)
}

func TestCreditRepositoryChargeUpToCap(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.EnsureRow(ctx, 1))

	for i := 1; i <= 5; i++ {
		charged, err := repo.Charge(ctx, 1, 2.00, 10.00)
		require.NoError(t, err)
		require.True(t, charged, "charge %d should succeed", i)

		credit, err := repo.Find(ctx, 1)
		require.NoError(t, err)
		assert.InDelta(t, float64(i)*2.00, credit.Balance, 1e-9)
		assert.Equal(t, i, credit.ImagesGenerated)
	}

	charged, err := repo.Charge(ctx, 1, 2.00, 10.00)
	require.NoError(t, err)
	assert.False(t, charged)

	credit, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 10.00, credit.Balance, 1e-9)
	assert.Equal(t, 5, credit.ImagesGenerated)
}

func TestCreditRepositoryChargeNearCapLeavesStateUntouched(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.SetBalance(ctx, 1, 9.00))

	charged, err := repo.Charge(ctx, 1, 2.00, 10.00)
	require.NoError(t, err)
	assert.False(t, charged)

	credit, err := repo.Find(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 9.00, credit.Balance, 1e-9)
	assert.Equal(t, 0, credit.ImagesGenerated)
}

func TestCreditRepositoryConcurrentCharges(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.EnsureRow(ctx, 7))

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			charged, err := repo.Charge(ctx, 7, 2.00, 10.00)
			assert.NoError(t, err)
			results <- charged
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for charged := range results {
		if charged {
			succeeded++
		}
	}
	assert.Equal(t, 5, succeeded)

	credit, err := repo.Find(ctx, 7)
	require.NoError(t, err)
	assert.InDelta(t, 10.00, credit.Balance, 1e-9)
	assert.Equal(t, 5, credit.ImagesGenerated)
}

func TestCreditRepositoryRefund(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()
	require.NoError(t, repo.EnsureRow(ctx, 3))

	charged, err := repo.Charge(ctx, 3, 2.00, 10.00)
	require.NoError(t, err)
	require.True(t, charged)

	refunded, err := repo.Refund(ctx, 3, 2.00)
	require.NoError(t, err)
	assert.True(t, refunded)

	credit, err := repo.Find(ctx, 3)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, credit.Balance, 1e-9)
	assert.Equal(t, 0, credit.ImagesGenerated)

	// Nothing left to refund, e.g. after an administrative reset.
	refunded, err = repo.Refund(ctx, 3, 2.00)
	require.NoError(t, err)
	assert.False(t, refunded)
}

func TestCreditRepositorySetBalanceBypassesCap(t *testing.T) {
	repo := NewCreditRepository(openTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.SetBalance(ctx, 9, 25.00))

	credit, err := repo.Find(ctx, 9)
	require.NoError(t, err)
	assert.InDelta(t, 25.00, credit.Balance, 1e-9)

	charged, err := repo.Charge(ctx, 9, 2.00, 10.00)
	require.NoError(t, err)
	assert.False(t, charged)

	require.NoError(t, repo.SetBalance(ctx, 9, 0))
	charged, err = repo.Charge(ctx, 9, 2.00, 10.00)
	require.NoError(t, err)
	assert.True(t, charged)
}
