package repository

import (
	"context"
	"testing"

	apperrors "github.com/idater/idater-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryConsumeStopsAtCap(t *testing.T) {
	database := newTestDB(t)
	repo := NewQuotaRepository(database)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.TryConsume(ctx, nil, 1, "2025-06-01", 5))
	}

	err := repo.TryConsume(ctx, nil, 1, "2025-06-01", 5)
	var domain *apperrors.Error
	require.ErrorAs(t, err, &domain)
	assert.Equal(t, "quota_exceeded", domain.Code)

	count, err := repo.Count(ctx, 1, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestTryConsumePartitionsByPeriod(t *testing.T) {
	database := newTestDB(t)
	repo := NewQuotaRepository(database)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.TryConsume(ctx, nil, 1, "2025-06-01", 5))
	}

	// a fresh period starts from zero
	require.NoError(t, repo.TryConsume(ctx, nil, 1, "2025-06-02", 5))

	count, err := repo.Count(ctx, 1, "2025-06-02")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestTryConsumePartitionsByUser(t *testing.T) {
	database := newTestDB(t)
	repo := NewQuotaRepository(database)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.TryConsume(ctx, nil, 1, "2025-06-01", 5))
	}
	require.NoError(t, repo.TryConsume(ctx, nil, 2, "2025-06-01", 5))
}

func TestCountMissingRowIsZero(t *testing.T) {
	database := newTestDB(t)
	repo := NewQuotaRepository(database)

	count, err := repo.Count(context.Background(), 9, "2025-06-01")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
