package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/backend/memory"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

func newAuthContext(t *testing.T, mem *memory.Backend) (*service.AuthContext, *backend.PasswordAuth) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	provider := backend.NewPasswordAuth(mem, mem, logger)
	provider.Cost = bcrypt.MinCost
	ac := service.NewAuthContext(provider, mem.Stores(), logger)
	ac.Start(context.Background())
	t.Cleanup(ac.Stop)
	return ac, provider
}

func TestAuthContext_StateMachine(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	logger := zaptest.NewLogger(t)
	provider := backend.NewPasswordAuth(mem, mem, logger)
	provider.Cost = bcrypt.MinCost
	ac := service.NewAuthContext(provider, mem.Stores(), logger)

	assert.Equal(t, service.StateUninitialized, ac.State())
	ac.Start(ctx)
	defer ac.Stop()
	assert.Equal(t, service.StateUnauthenticated, ac.State())
	assert.Nil(t, ac.User())

	u, err := ac.Register(ctx, "Neo@Matrix.io", "redpill", "Neo")
	require.NoError(t, err)
	assert.Equal(t, service.StateAuthenticated, ac.State())
	assert.Equal(t, "Neo", ac.User().DisplayName)
	assert.Equal(t, "neo@matrix.io", u.Email)

	require.NoError(t, ac.Logout(ctx))
	assert.Equal(t, service.StateUnauthenticated, ac.State())

	_, err = ac.Login(ctx, "neo@matrix.io", "redpill")
	require.NoError(t, err)
	assert.Equal(t, service.StateAuthenticated, ac.State())
	assert.False(t, ac.Loading())
}

func TestAuthContext_ProvisionsProfileAndGraph(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ac, _ := newAuthContext(t, mem)

	u, err := ac.Register(ctx, "trinity@matrix.io", "whiterabbit", "Trinity")
	require.NoError(t, err)

	p, err := mem.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Trinity", p.DisplayName)
	assert.True(t, p.IsPublic)

	g, err := mem.GetGraph(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.Empty(t, g.Friends)

	firstSeen := p.LastSeen
	require.NoError(t, ac.Logout(ctx))
	_, err = ac.Login(ctx, "trinity@matrix.io", "whiterabbit")
	require.NoError(t, err)
	p, err = mem.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, p.LastSeen.Before(firstSeen))
}

func TestAuthContext_LoginFailureReturnsError(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ac, _ := newAuthContext(t, mem)
	mem.Fail = errors.New("network request failed")

	u, err := ac.Login(ctx, "nobody@example.com", "secret1")
	require.Error(t, err)
	assert.Nil(t, u)
	assert.Equal(t, "network request failed", err.Error())
	assert.Equal(t, service.StateUnauthenticated, ac.State())
}

func TestAuthContext_RequiresUser(t *testing.T) {
	ctx := context.Background()
	ac, _ := newAuthContext(t, memory.New())

	_, err := ac.UpdateDisplayName(ctx, "x")
	assert.ErrorIs(t, err, backend.ErrNotAuthenticated)
	assert.ErrorIs(t, ac.UpdateBio(ctx, "x"), backend.ErrNotAuthenticated)
	assert.ErrorIs(t, ac.DeleteAccount(ctx), backend.ErrNotAuthenticated)
	_, err = ac.UploadProfilePhoto(ctx, strings.NewReader("img"), ".png")
	assert.ErrorIs(t, err, backend.ErrNotAuthenticated)
}

func TestAuthContext_ProfilePhoto(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ac, _ := newAuthContext(t, mem)
	_, err := ac.Register(ctx, "morpheus@matrix.io", "bluepill", "")
	require.NoError(t, err)

	u, err := ac.UploadProfilePhoto(ctx, strings.NewReader("first"), ".PNG")
	require.NoError(t, err)
	first := u.PhotoURL
	assert.True(t, strings.HasPrefix(first, "mem://avatars/"))
	assert.True(t, strings.HasSuffix(first, ".png"))
	data, ok := mem.File(first)
	require.True(t, ok)
	assert.Equal(t, "first", string(data))

	u, err = ac.UploadProfilePhoto(ctx, strings.NewReader("second"), ".jpg")
	require.NoError(t, err)
	_, ok = mem.File(first)
	assert.False(t, ok, "旧头像应被删除")

	p, err := mem.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u.PhotoURL, p.PhotoURL)

	u, err = ac.RemoveProfilePhoto(ctx)
	require.NoError(t, err)
	assert.Empty(t, u.PhotoURL)
	assert.Empty(t, ac.User().PhotoURL)
}

func TestAuthContext_Bio(t *testing.T) {
	ctx := context.Background()
	ac, _ := newAuthContext(t, memory.New())
	_, err := ac.Register(ctx, "oracle@matrix.io", "cookies", "Oracle")
	require.NoError(t, err)

	require.NoError(t, ac.UpdateBio(ctx, "  I bake.  "))
	bio, err := ac.GetBio(ctx)
	require.NoError(t, err)
	assert.Equal(t, "I bake.", bio)

	assert.ErrorIs(t, ac.UpdateBio(ctx, strings.Repeat("字", service.MaxBioLength+1)), service.ErrBioTooLong)
	require.NoError(t, ac.UpdateBio(ctx, strings.Repeat("字", service.MaxBioLength)))
}

func TestAuthContext_UpdateEmailAndPassword(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ac, _ := newAuthContext(t, mem)
	_, err := ac.Register(ctx, "smith@matrix.io", "agent01", "Smith")
	require.NoError(t, err)
	_, err = ac.Register(ctx, "jones@matrix.io", "agent02", "Jones")
	require.NoError(t, err)

	_, err = ac.UpdateEmail(ctx, "smith@matrix.io")
	assert.ErrorIs(t, err, backend.ErrEmailTaken)

	u, err := ac.UpdateEmail(ctx, "agent.jones@matrix.io")
	require.NoError(t, err)
	assert.Equal(t, "agent.jones@matrix.io", u.Email)

	require.NoError(t, ac.UpdatePassword(ctx, "agent03"))
	require.NoError(t, ac.Logout(ctx))
	_, err = ac.Login(ctx, "agent.jones@matrix.io", "agent02")
	assert.ErrorIs(t, err, backend.ErrInvalidCredentials)
	_, err = ac.Login(ctx, "agent.jones@matrix.io", "agent03")
	assert.NoError(t, err)
}

func TestAuthContext_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ac, _ := newAuthContext(t, mem)
	u, err := ac.Register(ctx, "cypher@matrix.io", "steak01", "Cypher")
	require.NoError(t, err)
	u, err = ac.UploadProfilePhoto(ctx, strings.NewReader("img"), ".jpg")
	require.NoError(t, err)

	lists := service.NewMovieLists(ac, mem, zaptest.NewLogger(t))
	_, err = lists.AddToList(ctx, inception, model.ListWatched, 5, "")
	require.NoError(t, err)

	require.NoError(t, ac.DeleteAccount(ctx))
	assert.Equal(t, service.StateUnauthenticated, ac.State())

	_, ok := mem.File(u.PhotoURL)
	assert.False(t, ok)
	p, err := mem.GetProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, p)
	entries, err := mem.ListEntries(ctx, u.ID, model.ListWatched)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
