package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/config"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"github.com/user/cinecircle/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Handler HTTP 处理器
type Handler struct {
	Stores          backend.Stores
	Config          *config.Config
	Friends         *service.FriendService
	Recommendations *service.RecommendationService
	Metadata        *service.TMDBService
	Cache           *utils.ResponseCache

	// PasswordCost bcrypt 强度，测试里调低
	PasswordCost int
	// ResetDelivery 投递重置令牌，默认只写日志
	ResetDelivery backend.ResetDelivery

	log *zap.Logger
}

// NewHandler 创建处理器
func NewHandler(stores backend.Stores, cfg *config.Config, logger *zap.Logger) *Handler {
	if err := registerValidators(); err != nil {
		logger.Panic("注册校验规则失败", zap.Error(err))
	}

	friends := service.NewFriendService(stores, logger)
	h := &Handler{
		Stores:          stores,
		Config:          cfg,
		Friends:         friends,
		Recommendations: service.NewRecommendationService(stores, friends, logger),
		Metadata:        service.NewTMDBService(cfg, logger),
		Cache:           utils.NewResponseCache(time.Minute, 10*time.Minute),
		PasswordCost:    bcrypt.DefaultCost,
		log:             logger.Named("handler"),
	}
	h.ResetDelivery = func(ctx context.Context, email, token string) error {
		// TODO: 接入邮件服务后改为发送邮件
		h.log.Info("密码重置链接",
			zap.String("email", email),
			zap.String("link", fmt.Sprintf("%s/reset-password?token=%s", cfg.SiteUrl, token)))
		return nil
	}
	return h
}

// ValidationError 请求参数不合法
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// registerValidators 注册自定义校验规则（gin 的默认引擎是 validator/v10）
func registerValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("不支持的校验引擎 %T", binding.Validator.Engine())
	}
	return v.RegisterValidation("listtype", func(fl validator.FieldLevel) bool {
		_, err := model.ParseListType(fl.Field().String())
		return err == nil
	})
}

// bindError 把绑定/校验失败转成 ValidationError
func bindError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return invalid("", "无效的请求数据")
	}
	fe := verrs[0]
	field := toSnake(fe.Field())
	switch fe.Tag() {
	case "required":
		return invalid(field, field+" 不能为空")
	case "listtype":
		return invalid(field, fmt.Sprintf("未知的片单类型: %q", fe.Value()))
	case "min", "max":
		return invalid(field, fmt.Sprintf("%s 超出范围（%s=%s）", field, fe.Tag(), fe.Param()))
	case "email":
		return invalid(field, backend.ErrInvalidEmail.Error())
	}
	return invalid(field, field+" 格式不正确")
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// fail 把错误映射成统一响应
func (h *Handler) fail(c *gin.Context, err error) {
	var (
		verr *ValidationError
		berr *backend.BackendError
	)
	switch {
	case errors.As(err, &verr):
		utils.BadRequest(c, verr.Message)
	case errors.Is(err, backend.ErrNotAuthenticated),
		errors.Is(err, backend.ErrInvalidCredentials):
		utils.Unauthorized(c, err.Error())
	case errors.Is(err, service.ErrForbidden):
		utils.Forbidden(c, err.Error())
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrRecommendationNotFound),
		errors.Is(err, service.ErrNoRequest):
		utils.NotFound(c, err.Error())
	case errors.Is(err, backend.ErrEmailTaken),
		errors.Is(err, backend.ErrInvalidEmail),
		errors.Is(err, backend.ErrWeakPassword),
		errors.Is(err, backend.ErrInvalidResetToken),
		errors.Is(err, service.ErrBioTooLong),
		errors.Is(err, service.ErrSelfFriend),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrRequestExists),
		errors.Is(err, service.ErrNotFriends),
		errors.Is(err, service.ErrInvalidStatus),
		errors.Is(err, service.ErrMessageTooLong):
		utils.BadRequest(c, err.Error())
	case errors.As(err, &berr):
		h.log.Error("后端调用失败", zap.String("op", berr.Op), zap.Error(err))
		utils.InternalServerError(c, err.Error())
	default:
		h.log.Error("未处理的错误", zap.String("path", c.Request.URL.Path), zap.Error(err))
		utils.InternalServerError(c, err.Error())
	}
}

// newProvider 每个请求一个认证实例
func (h *Handler) newProvider() *backend.PasswordAuth {
	provider := backend.NewPasswordAuth(h.Stores.Users, h.Stores.Resets, h.log)
	provider.Cost = h.PasswordCost
	if h.Config.ResetTTL > 0 {
		provider.ResetTTL = h.Config.ResetTTL
	}
	provider.Deliver = h.ResetDelivery
	return provider
}

// authContext 为当前请求建立会话上下文，已登录时先恢复会话。调用方负责 Stop
func (h *Handler) authContext(c *gin.Context) (*service.AuthContext, error) {
	ctx := c.Request.Context()
	provider := h.newProvider()
	if userID := middleware.GetUserID(c); userID != 0 {
		if err := provider.Restore(ctx, userID); err != nil {
			return nil, err
		}
	}
	ac := service.NewAuthContext(provider, h.Stores, h.log)
	ac.Start(ctx)
	return ac, nil
}

// movieLists 当前请求用户的片单状态
func (h *Handler) movieLists(c *gin.Context) *service.MovieLists {
	var user *model.User
	if userID := middleware.GetUserID(c); userID != 0 {
		user = &model.User{ID: userID, Email: c.GetString("email")}
	}
	return service.NewMovieLists(service.StaticSession{User: user}, h.Stores.Lists, h.log)
}
