package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/config"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"go.uber.org/zap/zaptest"
)

func newTMDBServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/movie/27205":
			w.Write([]byte(`{"id":27205,"title":"盗梦空间","poster_path":"/p.jpg","release_date":"2010-07-15"}`))
		case "/search/movie":
			assert.Equal(t, "inception", r.URL.Query().Get("query"))
			assert.Equal(t, "2010", r.URL.Query().Get("primary_release_year"))
			w.Write([]byte(`{"results":[{"id":27205,"title":"盗梦空间"},{"id":64956,"title":"Inception: The Cobol Job"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTMDBService_ResolveCaches(t *testing.T) {
	var hits int32
	srv := newTMDBServer(t, &hits)
	svc := service.NewTMDBService(&config.Config{TMDBAPIKey: "test-key", TMDBBaseURL: srv.URL + "/"}, zaptest.NewLogger(t))

	ctx := context.Background()
	m, err := svc.Resolve(ctx, "27205")
	require.NoError(t, err)
	assert.Equal(t, "盗梦空间", m.Title)
	assert.Equal(t, "27205", m.ID)

	_, err = svc.Resolve(ctx, "27205")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	_, err = svc.Resolve(ctx, "1")
	assert.Error(t, err)
}

func TestTMDBService_Search(t *testing.T) {
	var hits int32
	srv := newTMDBServer(t, &hits)
	svc := service.NewTMDBService(&config.Config{TMDBAPIKey: "test-key", TMDBBaseURL: srv.URL}, zaptest.NewLogger(t))

	ctx := context.Background()
	movies, err := svc.Search(ctx, "inception", "2010", 0)
	require.NoError(t, err)
	require.Len(t, movies, 2)
	assert.Equal(t, "64956", movies[1].ID)

	// 搜索结果已进入缓存
	_, err = svc.Resolve(ctx, "64956")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestTMDBService_Disabled(t *testing.T) {
	svc := service.NewTMDBService(&config.Config{}, zaptest.NewLogger(t))
	ctx := context.Background()

	m, err := svc.Resolve(ctx, "27205")
	require.NoError(t, err)
	assert.Equal(t, &model.Movie{ID: "27205"}, m)

	movies, err := svc.Search(ctx, "inception", "", 1)
	require.NoError(t, err)
	assert.Empty(t, movies)

	kept := svc.Complete(ctx, model.Movie{ID: "1", Title: "Given"})
	assert.Equal(t, "Given", kept.Title)
}
