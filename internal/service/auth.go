package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
)

// AuthState 会话状态
type AuthState int

const (
	StateUninitialized AuthState = iota
	StateInitializing
	StateAuthenticated
	StateUnauthenticated
)

func (s AuthState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	}
	return fmt.Sprintf("AuthState(%d)", int(s))
}

// MaxBioLength 个人简介长度上限
const MaxBioLength = 300

// ErrBioTooLong 个人简介超长
var ErrBioTooLong = fmt.Errorf("个人简介不能超过 %d 个字符", MaxBioLength)

// AuthContext 会话生命周期与资料维护。
// 状态由 AuthProvider 的会话变化通知驱动；每次进入已登录状态都会
// 创建或刷新公开资料（LastSeen）并确保好友关系文档存在。
type AuthContext struct {
	provider backend.AuthProvider
	profiles backend.ProfileStore
	friends  backend.FriendStore
	files    backend.FileStore
	log      *zap.Logger
	now      func() time.Time

	mu          sync.RWMutex
	state       AuthState
	user        *model.User
	ctx         context.Context
	unsubscribe func()

	loading atomic.Int32
}

// NewAuthContext 创建会话上下文
func NewAuthContext(provider backend.AuthProvider, stores backend.Stores, logger *zap.Logger) *AuthContext {
	return &AuthContext{
		provider: provider,
		profiles: stores.Profiles,
		friends:  stores.Friends,
		files:    stores.Files,
		log:      logger.Named("authctx"),
		now:      time.Now,
		state:    StateUninitialized,
	}
}

// Start 订阅会话变化。ctx 用于通知触发的资料维护
func (a *AuthContext) Start(ctx context.Context) {
	a.mu.Lock()
	if a.state != StateUninitialized {
		a.mu.Unlock()
		return
	}
	a.state = StateInitializing
	a.ctx = ctx
	a.mu.Unlock()

	unsubscribe := a.provider.OnSessionChange(a.handleSessionChange)

	a.mu.Lock()
	a.unsubscribe = unsubscribe
	a.mu.Unlock()
}

// Stop 取消订阅
func (a *AuthContext) Stop() {
	a.mu.Lock()
	unsubscribe := a.unsubscribe
	a.unsubscribe = nil
	a.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

func (a *AuthContext) handleSessionChange(u *model.User) {
	a.mu.Lock()
	a.user = u
	if u != nil {
		a.state = StateAuthenticated
	} else {
		a.state = StateUnauthenticated
	}
	ctx := a.ctx
	a.mu.Unlock()

	if u == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	// 失败只记录，不影响登录
	if err := a.ensureProfile(ctx, u); err != nil {
		a.log.Warn("维护用户资料失败", zap.Int("user_id", u.ID), zap.Error(err))
	}
	if err := a.ensureFriendGraph(ctx, u.ID); err != nil {
		a.log.Warn("初始化好友关系失败", zap.Int("user_id", u.ID), zap.Error(err))
	}
}

// ensureProfile 不存在则创建，存在则刷新 LastSeen。先查后写不是原子的，
// 多端同时登录最多多写一次
func (a *AuthContext) ensureProfile(ctx context.Context, u *model.User) error {
	p, err := a.profiles.GetProfile(ctx, u.ID)
	if err != nil {
		return err
	}
	if p == nil {
		return a.profiles.CreateProfile(ctx, model.NewProfile(u, a.now()))
	}
	return a.profiles.UpdateProfile(ctx, u.ID, map[string]interface{}{"last_seen": a.now()})
}

func (a *AuthContext) ensureFriendGraph(ctx context.Context, userID int) error {
	g, err := a.friends.GetGraph(ctx, userID)
	if err != nil {
		return err
	}
	if g != nil {
		return nil
	}
	return a.friends.CreateGraph(ctx, model.NewFriendGraph(userID))
}

// State 当前状态
func (a *AuthContext) State() AuthState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

// User 当前用户，未登录为 nil
func (a *AuthContext) User() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

// CurrentUser 实现 SessionHandle
func (a *AuthContext) CurrentUser() *model.User {
	return a.User()
}

// Loading 是否有操作在进行
func (a *AuthContext) Loading() bool {
	return a.loading.Load() > 0
}

func (a *AuthContext) begin() func() {
	a.loading.Add(1)
	return func() { a.loading.Add(-1) }
}

func (a *AuthContext) setUser(u *model.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

func (a *AuthContext) requireUser() (*model.User, error) {
	u := a.User()
	if u == nil {
		return nil, backend.ErrNotAuthenticated
	}
	return u, nil
}

// Login 登录
func (a *AuthContext) Login(ctx context.Context, email, password string) (*model.User, error) {
	defer a.begin()()
	u, err := a.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Register 注册，并把昵称写入账号和公开资料
func (a *AuthContext) Register(ctx context.Context, email, password, displayName string) (*model.User, error) {
	defer a.begin()()
	u, err := a.provider.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}

	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return u, nil
	}
	u, err = a.provider.UpdateUser(ctx, model.UserChanges{DisplayName: &displayName})
	if err != nil {
		return nil, err
	}
	a.setUser(u)
	if err := a.updateProfile(ctx, u.ID, map[string]interface{}{"display_name": u.DisplayName}); err != nil {
		return nil, err
	}
	return u, nil
}

// Logout 登出
func (a *AuthContext) Logout(ctx context.Context) error {
	defer a.begin()()
	return a.provider.SignOut(ctx)
}

// ResetPassword 发送重置密码令牌
func (a *AuthContext) ResetPassword(ctx context.Context, email string) error {
	defer a.begin()()
	return a.provider.SendPasswordReset(ctx, email)
}

// ConfirmPasswordReset 用令牌设置新密码
func (a *AuthContext) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	defer a.begin()()
	return a.provider.ConfirmPasswordReset(ctx, token, newPassword)
}

// DeleteAccount 删除账号及其数据
func (a *AuthContext) DeleteAccount(ctx context.Context) error {
	defer a.begin()()
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	if u.PhotoURL != "" {
		if err := a.files.Delete(ctx, u.PhotoURL); err != nil {
			a.log.Warn("删除头像失败", zap.Int("user_id", u.ID), zap.Error(err))
		}
	}
	return a.provider.DeleteUser(ctx)
}

// UpdateDisplayName 修改昵称
func (a *AuthContext) UpdateDisplayName(ctx context.Context, name string) (*model.User, error) {
	defer a.begin()()
	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	u, err := a.provider.UpdateUser(ctx, model.UserChanges{DisplayName: &name})
	if err != nil {
		return nil, err
	}
	a.setUser(u)
	return u, a.updateProfile(ctx, u.ID, map[string]interface{}{"display_name": u.DisplayName})
}

// UploadProfilePhoto 上传头像，ext 形如 ".jpg"
func (a *AuthContext) UploadProfilePhoto(ctx context.Context, r io.Reader, ext string) (*model.User, error) {
	defer a.begin()()
	current, err := a.requireUser()
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("avatars/%d/%s%s", current.ID, uuid.NewString(), strings.ToLower(ext))
	url, err := a.files.Upload(ctx, key, r)
	if err != nil {
		return nil, backend.Wrap("uploadProfilePhoto", err)
	}

	u, err := a.provider.UpdateUser(ctx, model.UserChanges{PhotoURL: &url})
	if err != nil {
		return nil, err
	}
	a.setUser(u)

	if current.PhotoURL != "" {
		if err := a.files.Delete(ctx, current.PhotoURL); err != nil {
			a.log.Warn("删除旧头像失败", zap.String("url", current.PhotoURL), zap.Error(err))
		}
	}
	return u, a.updateProfile(ctx, u.ID, map[string]interface{}{"photo_url": url})
}

// RemoveProfilePhoto 删除头像
func (a *AuthContext) RemoveProfilePhoto(ctx context.Context) (*model.User, error) {
	defer a.begin()()
	current, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	if current.PhotoURL != "" {
		if err := a.files.Delete(ctx, current.PhotoURL); err != nil {
			return nil, backend.Wrap("removeProfilePhoto", err)
		}
	}

	empty := ""
	u, err := a.provider.UpdateUser(ctx, model.UserChanges{PhotoURL: &empty})
	if err != nil {
		return nil, err
	}
	a.setUser(u)
	return u, a.updateProfile(ctx, u.ID, map[string]interface{}{"photo_url": ""})
}

// UpdateEmail 修改邮箱
func (a *AuthContext) UpdateEmail(ctx context.Context, email string) (*model.User, error) {
	defer a.begin()()
	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	u, err := a.provider.UpdateUser(ctx, model.UserChanges{Email: &email})
	if err != nil {
		return nil, err
	}
	a.setUser(u)
	return u, a.updateProfile(ctx, u.ID, map[string]interface{}{"email": u.Email})
}

// UpdatePassword 修改密码
func (a *AuthContext) UpdatePassword(ctx context.Context, password string) error {
	defer a.begin()()
	if _, err := a.requireUser(); err != nil {
		return err
	}
	_, err := a.provider.UpdateUser(ctx, model.UserChanges{Password: &password})
	return err
}

// UpdateBio 修改个人简介（只存在公开资料里）
func (a *AuthContext) UpdateBio(ctx context.Context, bio string) error {
	defer a.begin()()
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	bio = strings.TrimSpace(bio)
	if len([]rune(bio)) > MaxBioLength {
		return ErrBioTooLong
	}
	return a.updateProfile(ctx, u.ID, map[string]interface{}{"bio": bio})
}

// SetVisibility 设置主页是否公开。非公开时主页、用户搜索和影评列表都不展示
func (a *AuthContext) SetVisibility(ctx context.Context, public bool) error {
	defer a.begin()()
	u, err := a.requireUser()
	if err != nil {
		return err
	}
	return a.updateProfile(ctx, u.ID, map[string]interface{}{"is_public": public})
}

// GetBio 读取个人简介
func (a *AuthContext) GetBio(ctx context.Context) (string, error) {
	defer a.begin()()
	u, err := a.requireUser()
	if err != nil {
		return "", err
	}
	p, err := a.profiles.GetProfile(ctx, u.ID)
	if err != nil {
		return "", backend.Wrap("getBio", err)
	}
	if p == nil {
		return "", nil
	}
	return p.Bio, nil
}

// RefreshUser 重新读取账号
func (a *AuthContext) RefreshUser(ctx context.Context) (*model.User, error) {
	defer a.begin()()
	if _, err := a.requireUser(); err != nil {
		return nil, err
	}
	u, err := a.provider.Reload(ctx)
	if err != nil {
		return nil, err
	}
	a.setUser(u)
	return u, nil
}

func (a *AuthContext) updateProfile(ctx context.Context, userID int, fields map[string]interface{}) error {
	if err := a.profiles.UpdateProfile(ctx, userID, fields); err != nil {
		return backend.Wrap("updateProfile", err)
	}
	return nil
}
