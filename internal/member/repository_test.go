package member

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paramean/targeting/internal/shared/database/dbtest"
	"github.com/paramean/targeting/internal/shared/errors"
)

func TestRepositoryIntegration(t *testing.T) {
	pool := dbtest.Start(t, 15432)
	repo := NewRepository(pool)
	ctx := context.Background()

	th, err := repo.Settings(ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds, th)

	a, _, err := repo.Add(ctx, NewMember{"A", "F1", 700})
	require.NoError(t, err)
	_, _, err = repo.Add(ctx, NewMember{"B", "F1", 400})
	require.NoError(t, err)
	_, res, err := repo.Add(ctx, NewMember{"C", "F2", 300})
	require.NoError(t, err)
	assert.Equal(t, RecalcResult{Members: 3, Anchors: 1, Eligible: 2}, res)

	members, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, members, 3)
	assert.Equal(t, [4]int{1, 1, 1, 1}, flags(members[0]))
	assert.Equal(t, [4]int{0, 0, 1, 1}, flags(members[1]))
	assert.Equal(t, [4]int{0, 0, 0, 0}, flags(members[2]))

	t.Run("duplicate rejected without insert", func(t *testing.T) {
		_, _, err := repo.Add(ctx, NewMember{"A", "F1", 700})
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrConflict))

		members, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, members, 3)
	})

	t.Run("settings change recalculates", func(t *testing.T) {
		res, err := repo.UpdateSettings(ctx, Thresholds{Lower: 250, Upper: 350})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Anchors)

		members, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Equal(t, [4]int{0, 0, 0, 0}, flags(members[0]))
		assert.Equal(t, [4]int{1, 1, 1, 1}, flags(members[2]))
	})

	t.Run("delete recalculates", func(t *testing.T) {
		_, err := repo.UpdateSettings(ctx, DefaultThresholds)
		require.NoError(t, err)

		deleted, res, err := repo.Delete(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, deleted)
		assert.Equal(t, 0, res.Eligible)

		deleted, _, err = repo.Delete(ctx, a.ID)
		require.NoError(t, err)
		assert.False(t, deleted)
	})

	t.Run("missing settings makes recalculation a no-op", func(t *testing.T) {
		_, err := pool.Exec(ctx, `DELETE FROM settings`)
		require.NoError(t, err)

		res, err := repo.Recalculate(ctx)
		require.NoError(t, err)
		assert.True(t, res.Skipped)

		_, err = repo.Settings(ctx)
		assert.True(t, errors.Is(err, errors.ErrNotFound))
	})
}
