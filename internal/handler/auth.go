package handler

import (
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/service"
	"github.com/user/cinecircle/internal/utils"
	"go.uber.org/zap"
)

type credentialsRequest struct {
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	DisplayName string `json:"display_name" binding:"max=50"`
}

// Register 注册并直接登录
func (h *Handler) Register(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	ac, err := h.authContext(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer ac.Stop()

	user, err := ac.Register(c.Request.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.startSession(c, user)
}

// Login 登录
func (h *Handler) Login(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}

	ac, err := h.authContext(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer ac.Stop()

	user, err := ac.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.startSession(c, user)
}

// startSession 签发 JWT，写入 Cookie 和 Session
func (h *Handler) startSession(c *gin.Context, user *model.User) {
	token, err := middleware.GenerateToken(user.ID, user.Email, h.Config.AppSecret, h.Config.JWTExpiry)
	if err != nil {
		utils.InternalServerError(c, "登录失败，请重试")
		return
	}
	middleware.SetTokenCookie(c, token, h.Config.JWTExpiry)

	session := sessions.Default(c)
	session.Set("userinfo", model.SessionUser{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	})
	if err := session.Save(); err != nil {
		h.log.Warn("保存 Session 失败", zap.Error(err))
	}

	utils.Success(c, gin.H{
		"user":  user,
		"token": token,
	})
}

// Logout 登出
func (h *Handler) Logout(c *gin.Context) {
	// 账号已不存在时也要清掉 Cookie
	if ac, err := h.authContext(c); err == nil {
		if err := ac.Logout(c.Request.Context()); err != nil {
			h.log.Warn("登出失败", zap.Error(err))
		}
		ac.Stop()
	}
	middleware.ClearTokenCookie(c)
	session := sessions.Default(c)
	session.Clear()
	session.Save()
	utils.SuccessWithMessage(c, "已退出登录", nil)
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestPasswordReset 发送重置链接。邮箱不存在时同样返回成功
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		if err := ac.ResetPassword(c.Request.Context(), req.Email); err != nil {
			h.fail(c, err)
			return
		}
		utils.SuccessWithMessage(c, "如果该邮箱已注册，重置链接已发送", nil)
	})
}

type confirmResetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ConfirmPasswordReset 用令牌设置新密码
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req confirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		if err := ac.ConfirmPasswordReset(c.Request.Context(), req.Token, req.Password); err != nil {
			h.fail(c, err)
			return
		}
		utils.SuccessWithMessage(c, "密码已重置，请重新登录", nil)
	})
}
