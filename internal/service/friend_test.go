package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/backend/memory"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap/zaptest"
)

// seedUsers 为每个昵称创建公开资料，返回按顺序分配的 ID
func seedUsers(t *testing.T, mem *memory.Backend, names ...string) []int {
	t.Helper()
	ctx := context.Background()
	ids := make([]int, 0, len(names))
	for _, name := range names {
		u := &model.User{Email: name + "@example.com", DisplayName: name}
		require.NoError(t, mem.CreateUser(ctx, u))
		require.NoError(t, mem.CreateProfile(ctx, model.NewProfile(u, time.Now())))
		ids = append(ids, u.ID)
	}
	return ids
}

func newFriendService(t *testing.T) (*service.FriendService, *memory.Backend) {
	t.Helper()
	mem := memory.New()
	return service.NewFriendService(mem.Stores(), zaptest.NewLogger(t)), mem
}

func TestFriendService_RequestAccept(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "alice", "bob")
	alice, bob := ids[0], ids[1]

	accepted, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, accepted)

	_, err = svc.SendRequest(ctx, alice, bob)
	assert.ErrorIs(t, err, service.ErrRequestExists)

	overview, err := svc.Overview(ctx, bob)
	require.NoError(t, err)
	require.Len(t, overview.Incoming, 1)
	assert.Equal(t, alice, overview.Incoming[0].UserID)
	assert.Empty(t, overview.Friends)

	require.NoError(t, svc.Accept(ctx, bob, alice))

	ok, err := svc.AreFriends(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.AreFriends(ctx, bob, alice)
	require.NoError(t, err)
	assert.True(t, ok)

	overview, err = svc.Overview(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, overview.Friends, 1)
	assert.Empty(t, overview.Outgoing)
	assert.Empty(t, overview.Incoming)

	_, err = svc.SendRequest(ctx, alice, bob)
	assert.ErrorIs(t, err, service.ErrAlreadyFriends)
}

func TestFriendService_MutualRequestAutoAccepts(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "alice", "bob")

	_, err := svc.SendRequest(ctx, ids[0], ids[1])
	require.NoError(t, err)
	accepted, err := svc.SendRequest(ctx, ids[1], ids[0])
	require.NoError(t, err)
	assert.True(t, accepted)

	g, err := mem.GetGraph(ctx, ids[0])
	require.NoError(t, err)
	assert.True(t, model.ContainsID(g.Friends, ids[1]))
	assert.Empty(t, g.Outgoing)
	assert.Empty(t, g.Incoming)
}

func TestFriendService_DeclineRevokeRemove(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "alice", "bob", "carol")
	alice, bob, carol := ids[0], ids[1], ids[2]

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, svc.Decline(ctx, bob, alice))
	assert.ErrorIs(t, svc.Accept(ctx, bob, alice), service.ErrNoRequest)

	_, err = svc.SendRequest(ctx, alice, carol)
	require.NoError(t, err)
	require.NoError(t, svc.Revoke(ctx, alice, carol))
	overview, err := svc.Overview(ctx, carol)
	require.NoError(t, err)
	assert.Empty(t, overview.Incoming)

	assert.ErrorIs(t, svc.Remove(ctx, alice, bob), service.ErrNotFriends)
	_, err = svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)
	require.NoError(t, svc.Accept(ctx, bob, alice))
	require.NoError(t, svc.Remove(ctx, bob, alice))
	ok, err := svc.AreFriends(ctx, alice, bob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFriendService_ConcurrentChangesKeepEveryUpdate(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	names := []string{"bob", "alice"}
	for i := 0; i < 20; i++ {
		names = append(names, fmt.Sprintf("fan%d", i))
	}
	ids := seedUsers(t, mem, names...)
	bob, alice, fans := ids[0], ids[1], ids[2:]

	_, err := svc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, len(fans)+1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		errs <- svc.Accept(ctx, bob, alice)
	}()
	for _, fan := range fans {
		wg.Add(1)
		go func(fan int) {
			defer wg.Done()
			_, err := svc.SendRequest(ctx, fan, bob)
			errs <- err
		}(fan)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	g, err := mem.GetGraph(ctx, bob)
	require.NoError(t, err)
	assert.True(t, model.ContainsID(g.Friends, alice))
	assert.Len(t, g.Incoming, len(fans))
	for _, fan := range fans {
		assert.True(t, model.ContainsID(g.Incoming, fan))
	}
}

func TestFriendService_BackendErrorOnUpdate(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "alice", "bob")

	mem.Fail = errors.New("permission denied")
	_, err := svc.SendRequest(ctx, ids[0], ids[1])
	require.Error(t, err)
	assert.Equal(t, "permission denied", err.Error())
}

func TestFriendService_Errors(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "alice")

	_, err := svc.SendRequest(ctx, ids[0], ids[0])
	assert.ErrorIs(t, err, service.ErrSelfFriend)
	_, err = svc.SendRequest(ctx, ids[0], 999)
	assert.ErrorIs(t, err, service.ErrUserNotFound)

	mem.Fail = errors.New("permission denied")
	_, err = svc.Overview(ctx, ids[0])
	require.Error(t, err)
	assert.Equal(t, "permission denied", err.Error())
}

func TestFriendService_Search(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFriendService(t)
	ids := seedUsers(t, mem, "anna", "annabel", "bob")
	require.NoError(t, mem.UpdateProfile(ctx, ids[1], map[string]interface{}{"is_public": false}))

	found, err := svc.Search(ctx, ids[0], "ANN", 10)
	require.NoError(t, err)
	assert.Empty(t, found, "自己和非公开用户都不应出现")

	found, err = svc.Search(ctx, ids[2], "ann", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, ids[0], found[0].UserID)

	found, err = svc.Search(ctx, ids[0], "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, found)
}
