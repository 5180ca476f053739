package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/backend/memory"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap/zaptest"
)

func TestCleanupService_RunOnce(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	now := time.Now()

	require.NoError(t, mem.CreateReset(ctx, &model.PasswordReset{UserID: 1, TokenHash: "old", ExpiresAt: now.Add(-time.Minute)}))
	require.NoError(t, mem.CreateReset(ctx, &model.PasswordReset{UserID: 1, TokenHash: "fresh", ExpiresAt: now.Add(time.Hour)}))

	longAgo := now.Add(-service.RecommendationRetention - time.Hour)
	recent := now.Add(-time.Hour)
	stale := &model.Recommendation{FromUserID: 1, ToUserID: 2, MovieID: "1", Status: model.RecLiked, RespondedAt: &longAgo}
	fresh := &model.Recommendation{FromUserID: 1, ToUserID: 2, MovieID: "2", Status: model.RecLiked, RespondedAt: &recent}
	pending := &model.Recommendation{FromUserID: 1, ToUserID: 2, MovieID: "3", Status: model.RecPending}
	for _, r := range []*model.Recommendation{stale, fresh, pending} {
		require.NoError(t, mem.CreateRecommendation(ctx, r))
	}

	service.NewCleanupService(mem.Stores(), zaptest.NewLogger(t)).RunOnce(ctx)

	r, err := mem.FindReset(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, r)
	r, err = mem.FindReset(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, r)

	got, err := mem.GetRecommendation(ctx, stale.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
	for _, id := range []int{fresh.ID, pending.ID} {
		got, err := mem.GetRecommendation(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, got)
	}
}
