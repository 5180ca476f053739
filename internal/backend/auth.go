package backend

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ResetDelivery 投递密码重置令牌（邮件等），由调用方提供
type ResetDelivery func(ctx context.Context, email, token string) error

// PasswordAuth 基于邮箱密码的 AuthProvider。
// 每个客户端会话一个实例，持有当前用户并推送会话变化。
type PasswordAuth struct {
	users  UserStore
	resets ResetStore
	log    *zap.Logger

	// Cost bcrypt 强度
	Cost     int
	ResetTTL time.Duration
	Deliver  ResetDelivery
	Now      func() time.Time

	mu        sync.RWMutex
	current   *model.User
	listeners map[int]func(*model.User)
	nextID    int
}

// NewPasswordAuth 创建认证实例
func NewPasswordAuth(users UserStore, resets ResetStore, logger *zap.Logger) *PasswordAuth {
	a := &PasswordAuth{
		users:     users,
		resets:    resets,
		log:       logger.Named("auth"),
		Cost:      bcrypt.DefaultCost,
		ResetTTL:  time.Hour,
		Now:       time.Now,
		listeners: make(map[int]func(*model.User)),
	}
	a.Deliver = func(ctx context.Context, email, token string) error {
		a.log.Warn("未配置密码重置投递，令牌已丢弃", zap.String("email", email))
		return nil
	}
	return a
}

// Restore 用已验证的用户 ID 恢复会话（如来自 JWT）
func (a *PasswordAuth) Restore(ctx context.Context, userID int) error {
	u, err := a.users.FindUserByID(ctx, userID)
	if err != nil {
		return Wrap("restore", err)
	}
	if u == nil {
		return ErrNotAuthenticated
	}
	a.setCurrent(u)
	return nil
}

// CurrentUser 返回当前用户副本，未登录返回 nil
func (a *PasswordAuth) CurrentUser() *model.User {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.current == nil {
		return nil
	}
	u := *a.current
	return &u
}

// OnSessionChange 订阅会话变化
func (a *PasswordAuth) OnSessionChange(fn func(*model.User)) func() {
	a.mu.Lock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = fn
	a.mu.Unlock()

	fn(a.CurrentUser())

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

// setCurrent 切换当前用户并通知订阅者（回调在锁外执行）
func (a *PasswordAuth) setCurrent(u *model.User) {
	a.mu.Lock()
	a.current = u
	fns := make([]func(*model.User), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	snapshot := a.CurrentUser()
	for _, fn := range fns {
		fn(snapshot)
	}
}

// SignIn 登录
func (a *PasswordAuth) SignIn(ctx context.Context, email, password string) (*model.User, error) {
	u, err := a.users.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, Wrap("signIn", err)
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}

	a.setCurrent(u)
	return a.CurrentUser(), nil
}

// SignUp 注册并登录
func (a *PasswordAuth) SignUp(ctx context.Context, email, password string) (*model.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if len(password) < 6 {
		return nil, ErrWeakPassword
	}

	existing, err := a.users.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, Wrap("signUp", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.Cost)
	if err != nil {
		return nil, Wrap("signUp", err)
	}

	now := a.Now()
	u := &model.User{
		Email: email,
		// 默认截取邮箱 @ 符号前的内容作为昵称
		DisplayName:  strings.SplitN(email, "@", 2)[0],
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.users.CreateUser(ctx, u); err != nil {
		return nil, Wrap("signUp", err)
	}

	a.setCurrent(u)
	return a.CurrentUser(), nil
}

// SignOut 登出
func (a *PasswordAuth) SignOut(ctx context.Context) error {
	a.setCurrent(nil)
	return nil
}

// SendPasswordReset 生成重置令牌并投递。邮箱不存在时静默成功
func (a *PasswordAuth) SendPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	u, err := a.users.FindUserByEmail(ctx, email)
	if err != nil {
		return Wrap("sendPasswordReset", err)
	}
	if u == nil {
		a.log.Info("重置密码的邮箱不存在", zap.String("email", email))
		return nil
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return Wrap("sendPasswordReset", err)
	}
	token := hex.EncodeToString(buf)

	now := a.Now()
	reset := &model.PasswordReset{
		UserID:    u.ID,
		TokenHash: hashToken(token),
		ExpiresAt: now.Add(a.ResetTTL),
		CreatedAt: now,
	}
	if err := a.resets.CreateReset(ctx, reset); err != nil {
		return Wrap("sendPasswordReset", err)
	}
	return Wrap("sendPasswordReset", a.Deliver(ctx, u.Email, token))
}

// ConfirmPasswordReset 使用令牌设置新密码
func (a *PasswordAuth) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < 6 {
		return ErrWeakPassword
	}
	reset, err := a.resets.FindReset(ctx, hashToken(token))
	if err != nil {
		return Wrap("confirmPasswordReset", err)
	}
	if reset == nil || a.Now().After(reset.ExpiresAt) {
		return ErrInvalidResetToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), a.Cost)
	if err != nil {
		return Wrap("confirmPasswordReset", err)
	}
	if err := a.users.UpdateUser(ctx, reset.UserID, map[string]interface{}{
		"password_hash": string(hash),
		"updated_at":    a.Now(),
	}); err != nil {
		return Wrap("confirmPasswordReset", err)
	}
	return Wrap("confirmPasswordReset", a.resets.DeleteResets(ctx, reset.UserID))
}

// DeleteUser 删除当前账号并登出
func (a *PasswordAuth) DeleteUser(ctx context.Context) error {
	u := a.CurrentUser()
	if u == nil {
		return ErrNotAuthenticated
	}
	if err := a.users.DeleteUser(ctx, u.ID); err != nil {
		return Wrap("deleteUser", err)
	}
	a.setCurrent(nil)
	return nil
}

// UpdateUser 修改当前账号
func (a *PasswordAuth) UpdateUser(ctx context.Context, changes model.UserChanges) (*model.User, error) {
	u := a.CurrentUser()
	if u == nil {
		return nil, ErrNotAuthenticated
	}

	fields := map[string]interface{}{}
	if changes.DisplayName != nil {
		fields["display_name"] = strings.TrimSpace(*changes.DisplayName)
	}
	if changes.PhotoURL != nil {
		fields["photo_url"] = *changes.PhotoURL
	}
	if changes.Email != nil {
		email := normalizeEmail(*changes.Email)
		if !strings.Contains(email, "@") {
			return nil, ErrInvalidEmail
		}
		existing, err := a.users.FindUserByEmail(ctx, email)
		if err != nil {
			return nil, Wrap("updateUser", err)
		}
		if existing != nil && existing.ID != u.ID {
			return nil, ErrEmailTaken
		}
		fields["email"] = email
	}
	if changes.Password != nil {
		if len(*changes.Password) < 6 {
			return nil, ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*changes.Password), a.Cost)
		if err != nil {
			return nil, Wrap("updateUser", err)
		}
		fields["password_hash"] = string(hash)
	}
	if len(fields) == 0 {
		return u, nil
	}
	fields["updated_at"] = a.Now()

	if err := a.users.UpdateUser(ctx, u.ID, fields); err != nil {
		return nil, Wrap("updateUser", err)
	}
	return a.Reload(ctx)
}

// Reload 重新读取当前账号，不触发会话通知
func (a *PasswordAuth) Reload(ctx context.Context) (*model.User, error) {
	u := a.CurrentUser()
	if u == nil {
		return nil, ErrNotAuthenticated
	}
	fresh, err := a.users.FindUserByID(ctx, u.ID)
	if err != nil {
		return nil, Wrap("reload", err)
	}
	if fresh == nil {
		return nil, ErrNotAuthenticated
	}

	a.mu.Lock()
	a.current = fresh
	a.mu.Unlock()
	return a.CurrentUser(), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
