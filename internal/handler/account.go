package handler

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/service"
	"github.com/user/cinecircle/internal/utils"
)

// 头像上传限制
const maxPhotoSize = 5 << 20

var photoExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".gif": true}

// withAccount 建立会话上下文后执行 fn
func (h *Handler) withAccount(c *gin.Context, fn func(ac *service.AuthContext)) {
	ac, err := h.authContext(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	defer ac.Stop()
	fn(ac)
}

// Me 当前用户
func (h *Handler) Me(c *gin.Context) {
	h.withAccount(c, func(ac *service.AuthContext) {
		user, err := ac.RefreshUser(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		bio, err := ac.GetBio(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		utils.Success(c, gin.H{"user": user, "bio": bio})
	})
}

type displayNameRequest struct {
	DisplayName string `json:"display_name" binding:"required,max=50"`
}

// UpdateDisplayName 修改昵称
func (h *Handler) UpdateDisplayName(c *gin.Context) {
	var req displayNameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		user, err := ac.UpdateDisplayName(c.Request.Context(), req.DisplayName)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.Cache.Delete(profileCacheKey(user.ID))
		utils.Success(c, user)
	})
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// UpdateEmail 修改邮箱，并重新签发 Token
func (h *Handler) UpdateEmail(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		user, err := ac.UpdateEmail(c.Request.Context(), req.Email)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.startSession(c, user)
	})
}

type passwordRequest struct {
	Password string `json:"password" binding:"required"`
}

// UpdatePassword 修改密码
func (h *Handler) UpdatePassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		if err := ac.UpdatePassword(c.Request.Context(), req.Password); err != nil {
			h.fail(c, err)
			return
		}
		utils.SuccessWithMessage(c, "密码已更新", nil)
	})
}

// GetBio 读取个人简介
func (h *Handler) GetBio(c *gin.Context) {
	h.withAccount(c, func(ac *service.AuthContext) {
		bio, err := ac.GetBio(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		utils.Success(c, gin.H{"bio": bio})
	})
}

type bioRequest struct {
	Bio string `json:"bio"`
}

// UpdateBio 修改个人简介
func (h *Handler) UpdateBio(c *gin.Context) {
	var req bioRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		if err := ac.UpdateBio(c.Request.Context(), req.Bio); err != nil {
			h.fail(c, err)
			return
		}
		h.Cache.Delete(profileCacheKey(middleware.GetUserID(c)))
		utils.Success(c, gin.H{"bio": strings.TrimSpace(req.Bio)})
	})
}

type visibilityRequest struct {
	IsPublic *bool `json:"is_public" binding:"required"`
}

// UpdateVisibility 设置主页是否公开
func (h *Handler) UpdateVisibility(c *gin.Context) {
	var req visibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	h.withAccount(c, func(ac *service.AuthContext) {
		if err := ac.SetVisibility(c.Request.Context(), *req.IsPublic); err != nil {
			h.fail(c, err)
			return
		}
		// 影评缓存按电影存放，无法只删这个用户的
		h.Cache.Flush()
		utils.Success(c, gin.H{"is_public": *req.IsPublic})
	})
}

// UploadPhoto 上传头像（multipart 字段 photo）
func (h *Handler) UploadPhoto(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPhotoSize+1<<20)
	file, err := c.FormFile("photo")
	if err != nil {
		h.fail(c, invalid("photo", "请选择要上传的图片"))
		return
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if !photoExts[ext] {
		h.fail(c, invalid("photo", "仅支持 jpg、png、webp、gif 格式"))
		return
	}
	if file.Size > maxPhotoSize {
		h.fail(c, invalid("photo", "图片不能超过 5MB"))
		return
	}

	src, err := file.Open()
	if err != nil {
		utils.InternalServerError(c, "读取上传文件失败")
		return
	}
	defer src.Close()

	h.withAccount(c, func(ac *service.AuthContext) {
		user, err := ac.UploadProfilePhoto(c.Request.Context(), src, ext)
		if err != nil {
			h.fail(c, err)
			return
		}
		h.Cache.Delete(profileCacheKey(user.ID))
		utils.Success(c, user)
	})
}

// RemovePhoto 删除头像
func (h *Handler) RemovePhoto(c *gin.Context) {
	h.withAccount(c, func(ac *service.AuthContext) {
		user, err := ac.RemoveProfilePhoto(c.Request.Context())
		if err != nil {
			h.fail(c, err)
			return
		}
		h.Cache.Delete(profileCacheKey(user.ID))
		utils.Success(c, user)
	})
}

// DeleteAccount 注销账号
func (h *Handler) DeleteAccount(c *gin.Context) {
	h.withAccount(c, func(ac *service.AuthContext) {
		userID := middleware.GetUserID(c)
		if err := ac.DeleteAccount(c.Request.Context()); err != nil {
			h.fail(c, err)
			return
		}
		h.Cache.Delete(profileCacheKey(userID))
		middleware.ClearTokenCookie(c)
		session := sessions.Default(c)
		session.Clear()
		session.Save()
		utils.SuccessWithMessage(c, "账号已删除", nil)
	})
}
