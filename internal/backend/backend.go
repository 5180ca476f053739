// Package backend 定义核心逻辑依赖的后端能力（账号、文档存储、文件存储）。
// 核心只依赖这里的接口，PostgreSQL 实现在 repository 包，内存实现在 backend/memory。
package backend

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/user/cinecircle/internal/model"
)

// 通用错误
var (
	ErrNotAuthenticated   = errors.New("未登录")
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailTaken         = errors.New("该邮箱已被注册")
	ErrInvalidResetToken  = errors.New("重置链接无效或已过期")
	ErrWeakPassword       = errors.New("密码至少需要 6 个字符")
	ErrInvalidEmail       = errors.New("邮箱格式不正确")
)

// BackendError 后端返回的错误，消息原样透传
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return e.Err.Error()
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Wrap 包装后端错误；nil 和已知的哨兵错误原样返回
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) || errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return &BackendError{Op: op, Err: err}
}

// AuthProvider 账号与会话能力
type AuthProvider interface {
	CurrentUser() *model.User
	// OnSessionChange 订阅会话变化，订阅时立即以当前用户回调一次
	OnSessionChange(fn func(*model.User)) (unsubscribe func())
	SignIn(ctx context.Context, email, password string) (*model.User, error)
	SignUp(ctx context.Context, email, password string) (*model.User, error)
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	DeleteUser(ctx context.Context) error
	UpdateUser(ctx context.Context, changes model.UserChanges) (*model.User, error)
	Reload(ctx context.Context) (*model.User, error)
}

// UserStore 账号存储。查不到时返回 (nil, nil)
type UserStore interface {
	CreateUser(ctx context.Context, u *model.User) error
	FindUserByEmail(ctx context.Context, email string) (*model.User, error)
	FindUserByID(ctx context.Context, id int) (*model.User, error)
	UpdateUser(ctx context.Context, id int, fields map[string]interface{}) error
	// DeleteUser 删除账号及其名下的全部数据
	DeleteUser(ctx context.Context, id int) error
}

// ResetStore 密码重置令牌存储
type ResetStore interface {
	CreateReset(ctx context.Context, r *model.PasswordReset) error
	FindReset(ctx context.Context, tokenHash string) (*model.PasswordReset, error)
	DeleteResets(ctx context.Context, userID int) error
	DeleteExpiredResets(ctx context.Context, before time.Time) (int64, error)
}

// ProfileStore 公开资料存储
type ProfileStore interface {
	GetProfile(ctx context.Context, userID int) (*model.UserProfile, error)
	CreateProfile(ctx context.Context, p *model.UserProfile) error
	UpdateProfile(ctx context.Context, userID int, fields map[string]interface{}) error
	ListProfiles(ctx context.Context, userIDs []int64) ([]*model.UserProfile, error)
	SearchProfiles(ctx context.Context, keyword string, limit int) ([]*model.UserProfile, error)
}

// MovieListStore 片单存储
type MovieListStore interface {
	// ListEntries 按更新时间倒序返回
	ListEntries(ctx context.Context, userID int, listType model.ListType) ([]*model.MovieListEntry, error)
	UpsertEntry(ctx context.Context, e *model.MovieListEntry) error
	RemoveEntry(ctx context.Context, userID int, movieID string, listType model.ListType) error
	GetEntry(ctx context.Context, userID int, movieID string, listType model.ListType) (*model.MovieListEntry, error)
	ComputeStats(ctx context.Context, userID int) (*model.UserStats, error)
	ListReviewsByMovie(ctx context.Context, movieID string, limit int) ([]*model.MovieListEntry, error)
}

// FriendStore 好友关系存储
type FriendStore interface {
	GetGraph(ctx context.Context, userID int) (*model.FriendGraph, error)
	CreateGraph(ctx context.Context, g *model.FriendGraph) error
	// UpdateGraphs 锁住双方的文档后调用 fn 修改，fn 返回 nil 时一起写回。
	// 文档不存在时传入空文档；fn 返回错误则不写入并原样返回该错误
	UpdateGraphs(ctx context.Context, userID, friendID int, fn func(user, friend *model.FriendGraph) error) error
}

// RecommendationStore 推荐存储
type RecommendationStore interface {
	CreateRecommendation(ctx context.Context, r *model.Recommendation) error
	GetRecommendation(ctx context.Context, id int) (*model.Recommendation, error)
	// ListReceived status 为空时不过滤
	ListReceived(ctx context.Context, userID int, status model.RecommendationStatus) ([]*model.Recommendation, error)
	ListSent(ctx context.Context, userID int) ([]*model.Recommendation, error)
	UpdateRecommendation(ctx context.Context, id int, fields map[string]interface{}) error
	DeleteRecommendation(ctx context.Context, id int) error
	DeleteRespondedBefore(ctx context.Context, before time.Time) (int64, error)
}

// FileStore 文件存储，返回可公开访问的 URL
type FileStore interface {
	Upload(ctx context.Context, key string, r io.Reader) (string, error)
	// Delete 按 Upload 返回的 URL 删除
	Delete(ctx context.Context, url string) error
}

// Stores 后端能力集合，由应用入口组装后注入
type Stores struct {
	Users           UserStore
	Resets          ResetStore
	Profiles        ProfileStore
	Lists           MovieListStore
	Friends         FriendStore
	Recommendations RecommendationStore
	Files           FileStore
}
