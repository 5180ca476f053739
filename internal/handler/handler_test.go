package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/cinecircle/internal/backend/memory"
	"github.com/user/cinecircle/internal/config"
	"github.com/user/cinecircle/internal/handler"
	"github.com/user/cinecircle/internal/router"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

type apiResponse struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Success bool            `json:"success"`
	Error   string          `json:"error"`
}

type testServer struct {
	t      *testing.T
	engine *gin.Engine
	h      *handler.Handler
	mem    *memory.Backend
	tokens []string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(t)
	mem := memory.New()
	cfg := &config.Config{
		AppSecret:   "test-secret",
		JWTExpiry:   time.Hour,
		SiteUrl:     "http://localhost:5005",
		CORSOrigins: []string{"http://localhost:5005"},
		ResetTTL:    time.Hour,
	}
	h := handler.NewHandler(mem.Stores(), cfg, logger)
	h.PasswordCost = bcrypt.MinCost
	s := &testServer{t: t, h: h, mem: mem, engine: router.NewEngine(h, logger)}
	h.ResetDelivery = func(ctx context.Context, email, token string) error {
		s.tokens = append(s.tokens, token)
		return nil
	}
	return s
}

// do 发送请求并解析统一响应，out 非 nil 时解析 data
func (s *testServer) do(method, path, token string, body interface{}, out interface{}) (int, apiResponse) {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var resp apiResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	if out != nil && resp.Success {
		require.NoError(s.t, json.Unmarshal(resp.Data, out))
	}
	return w.Code, resp
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID          int    `json:"id"`
		Email       string `json:"email"`
		DisplayName string `json:"display_name"`
	} `json:"user"`
}

func (s *testServer) register(email, name string) session {
	s.t.Helper()
	var out session
	code, resp := s.do(http.MethodPost, "/api/auth/register", "", gin.H{
		"email": email, "password": "secret1", "display_name": name,
	}, &out)
	require.Equal(s.t, http.StatusOK, code, resp.Error)
	require.NotEmpty(s.t, out.Token)
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestAuth_RegisterLoginMe(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("Neo@Matrix.io", "Neo")
	assert.Equal(t, "neo@matrix.io", reg.User.Email)
	assert.Equal(t, "Neo", reg.User.DisplayName)

	code, resp := s.do(http.MethodPost, "/api/auth/register", "", gin.H{"email": "neo@matrix.io", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)

	code, resp = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "neo@matrix.io", "password": "wrong!!"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)

	var login session
	code, _ = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "neo@matrix.io", "password": "secret1"}, &login)
	require.Equal(t, http.StatusOK, code)

	var me struct {
		User struct {
			DisplayName string `json:"display_name"`
		} `json:"user"`
		Bio string `json:"bio"`
	}
	code, _ = s.do(http.MethodGet, "/api/account/me", login.Token, nil, &me)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Neo", me.User.DisplayName)

	code, _ = s.do(http.MethodGet, "/api/account/me", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAuth_LoginBackendDown(t *testing.T) {
	s := newTestServer(t)
	s.mem.Fail = errors.New("network request failed")

	code, resp := s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "a@b.c", "password": "secret1"}, nil)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "network request failed", resp.Error)
}

func TestAuth_Logout(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("morpheus@matrix.io", "Morpheus")

	logout := func(token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		return w
	}

	w := logout(reg.Token)
	require.Equal(t, http.StatusOK, w.Code)
	var cleared bool
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "token" && ck.Value == "" && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "token cookie should be cleared")

	// 账号删除后旧 Token 登出仍然成功
	code, _ := s.do(http.MethodDelete, "/api/account", reg.Token, nil, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, http.StatusOK, logout(reg.Token).Code)
}

func TestAuth_PasswordReset(t *testing.T) {
	s := newTestServer(t)
	s.register("trinity@matrix.io", "Trinity")

	code, _ := s.do(http.MethodPost, "/api/auth/reset", "", gin.H{"email": "nobody@matrix.io"}, nil)
	assert.Equal(t, http.StatusOK, code)
	assert.Empty(t, s.tokens)

	code, _ = s.do(http.MethodPost, "/api/auth/reset", "", gin.H{"email": "trinity@matrix.io"}, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, s.tokens, 1)

	code, _ = s.do(http.MethodPost, "/api/auth/reset/confirm", "", gin.H{"token": s.tokens[0], "password": "newsecret"}, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = s.do(http.MethodPost, "/api/auth/reset/confirm", "", gin.H{"token": s.tokens[0], "password": "again1"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = s.do(http.MethodPost, "/api/auth/login", "", gin.H{"email": "trinity@matrix.io", "password": "newsecret"}, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAccount_BioAndDelete(t *testing.T) {
	s := newTestServer(t)
	reg := s.register("oracle@matrix.io", "Oracle")

	code, _ := s.do(http.MethodPut, "/api/account/bio", reg.Token, gin.H{"bio": "cookies"}, nil)
	require.Equal(t, http.StatusOK, code)
	var bio struct {
		Bio string `json:"bio"`
	}
	code, _ = s.do(http.MethodGet, "/api/account/bio", reg.Token, nil, &bio)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "cookies", bio.Bio)

	code, _ = s.do(http.MethodDelete, "/api/account", reg.Token, nil, nil)
	require.Equal(t, http.StatusOK, code)

	// 账号已删除，旧 Token 不能再恢复会话
	code, _ = s.do(http.MethodGet, "/api/account/me", reg.Token, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
