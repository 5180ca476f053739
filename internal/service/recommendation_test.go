package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/backend/memory"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap/zaptest"
)

type recFixture struct {
	mem        *memory.Backend
	friends    *service.FriendService
	recs       *service.RecommendationService
	alice, bob int
	carol      int
}

func newRecFixture(t *testing.T) *recFixture {
	t.Helper()
	ctx := context.Background()
	mem := memory.New()
	logger := zaptest.NewLogger(t)
	friends := service.NewFriendService(mem.Stores(), logger)
	ids := seedUsers(t, mem, "alice", "bob", "carol")

	_, err := friends.SendRequest(ctx, ids[0], ids[1])
	require.NoError(t, err)
	require.NoError(t, friends.Accept(ctx, ids[1], ids[0]))

	return &recFixture{
		mem:     mem,
		friends: friends,
		recs:    service.NewRecommendationService(mem.Stores(), friends, logger),
		alice:   ids[0],
		bob:     ids[1],
		carol:   ids[2],
	}
}

func TestRecommendation_SendOnlyToFriends(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t)

	rec, err := f.recs.Send(ctx, f.alice, f.bob, inception, " 必看 ")
	require.NoError(t, err)
	assert.Equal(t, model.RecPending, rec.Status)
	assert.Equal(t, "必看", rec.Message)
	assert.Equal(t, "Inception", rec.MovieTitle)

	_, err = f.recs.Send(ctx, f.alice, f.carol, inception, "")
	assert.ErrorIs(t, err, service.ErrNotFriends)

	_, err = f.recs.Send(ctx, f.alice, f.bob, inception, strings.Repeat("a", service.MaxMessageLength+1))
	assert.ErrorIs(t, err, service.ErrMessageTooLong)

	received, err := f.recs.Received(ctx, f.bob, "")
	require.NoError(t, err)
	require.Len(t, received, 1)
	sent, err := f.recs.Sent(ctx, f.alice)
	require.NoError(t, err)
	require.Len(t, sent, 1)

	none, err := f.recs.Received(ctx, f.alice, "")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRecommendation_RespondAddedToList(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t)
	rec, err := f.recs.Send(ctx, f.alice, f.bob, inception, "")
	require.NoError(t, err)

	_, err = f.recs.Respond(ctx, f.alice, rec.ID, model.RecLiked, "")
	assert.ErrorIs(t, err, service.ErrForbidden)
	_, err = f.recs.Respond(ctx, f.bob, rec.ID, model.RecPending, "")
	assert.ErrorIs(t, err, service.ErrInvalidStatus)

	updated, err := f.recs.Respond(ctx, f.bob, rec.ID, model.RecAddedToList, "谢谢")
	require.NoError(t, err)
	assert.Equal(t, model.RecAddedToList, updated.Status)
	assert.Equal(t, "谢谢", updated.Response)
	require.NotNil(t, updated.RespondedAt)

	entry, err := f.mem.GetEntry(ctx, f.bob, inception.ID, model.ListWatchlist)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, "Inception", entry.Title)

	pending, err := f.recs.Received(ctx, f.bob, model.RecPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = f.recs.Received(ctx, f.bob, model.RecommendationStatus("bogus"))
	assert.ErrorIs(t, err, service.ErrInvalidStatus)
}

func TestRecommendation_MarkReadAndDelete(t *testing.T) {
	ctx := context.Background()
	f := newRecFixture(t)
	rec, err := f.recs.Send(ctx, f.alice, f.bob, inception, "")
	require.NoError(t, err)

	assert.ErrorIs(t, f.recs.MarkRead(ctx, f.alice, rec.ID), service.ErrForbidden)
	require.NoError(t, f.recs.MarkRead(ctx, f.bob, rec.ID))
	read, err := f.recs.Received(ctx, f.bob, model.RecRead)
	require.NoError(t, err)
	require.Len(t, read, 1)

	_, err = f.recs.Respond(ctx, f.bob, rec.ID, model.RecWatched, "")
	require.NoError(t, err)
	require.NoError(t, f.recs.MarkRead(ctx, f.bob, rec.ID))
	got, err := f.mem.GetRecommendation(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecWatched, got.Status, "已回应的推荐不会被标记为已读")

	assert.ErrorIs(t, f.recs.Delete(ctx, f.bob, rec.ID), service.ErrForbidden)
	require.NoError(t, f.recs.Delete(ctx, f.alice, rec.ID))
	assert.ErrorIs(t, f.recs.Delete(ctx, f.alice, rec.ID), service.ErrRecommendationNotFound)
}
