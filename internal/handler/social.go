package handler

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/utils"
)

// paramID 解析路径中的数字 ID
func paramID(c *gin.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, invalid(name, "无效的 ID")
	}
	return id, nil
}

// ==================== 好友 ====================

// FriendsOverview 好友和请求列表
func (h *Handler) FriendsOverview(c *gin.Context) {
	overview, err := h.Friends.Overview(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, overview)
}

// SearchUsers 搜索可添加的用户
func (h *Handler) SearchUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 50 {
		limit = 20
	}
	users, err := h.Friends.Search(c.Request.Context(), middleware.GetUserID(c), c.Query("q"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	for _, u := range users {
		u.Email = ""
	}
	utils.Success(c, users)
}

type friendRequest struct {
	UserID int `json:"user_id" binding:"required,min=1"`
}

// SendFriendRequest 发送好友请求
func (h *Handler) SendFriendRequest(c *gin.Context) {
	var req friendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	accepted, err := h.Friends.SendRequest(c.Request.Context(), middleware.GetUserID(c), req.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	message := "好友请求已发送"
	if accepted {
		message = "对方也向你发送了请求，已成为好友"
	}
	utils.SuccessWithMessage(c, message, gin.H{"accepted": accepted})
}

// friendAction 对 :id 用户执行好友操作
func (h *Handler) friendAction(c *gin.Context, action func(ctx context.Context, userID, friendID int) error, message string) {
	friendID, err := paramID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := action(c.Request.Context(), middleware.GetUserID(c), friendID); err != nil {
		h.fail(c, err)
		return
	}
	utils.SuccessWithMessage(c, message, nil)
}

// AcceptFriendRequest 接受请求
func (h *Handler) AcceptFriendRequest(c *gin.Context) {
	h.friendAction(c, h.Friends.Accept, "已添加好友")
}

// DeclineFriendRequest 拒绝请求
func (h *Handler) DeclineFriendRequest(c *gin.Context) {
	h.friendAction(c, h.Friends.Decline, "已拒绝")
}

// RevokeFriendRequest 撤回请求
func (h *Handler) RevokeFriendRequest(c *gin.Context) {
	h.friendAction(c, h.Friends.Revoke, "已撤回")
}

// RemoveFriend 删除好友
func (h *Handler) RemoveFriend(c *gin.Context) {
	h.friendAction(c, h.Friends.Remove, "已删除好友")
}

// ==================== 推荐 ====================

type recommendRequest struct {
	ToUserID   int    `json:"to_user_id" binding:"required,min=1"`
	MovieID    string `json:"movie_id" binding:"required"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path"`
	Message    string `json:"message"`
}

// Recommend 向好友推荐电影
func (h *Handler) Recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	ctx := c.Request.Context()
	movie := h.Metadata.Complete(ctx, model.Movie{ID: req.MovieID, Title: req.Title, PosterPath: req.PosterPath})
	rec, err := h.Recommendations.Send(ctx, middleware.GetUserID(c), req.ToUserID, movie, req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, rec)
}

// ReceivedRecommendations 收到的推荐，可按 status 过滤
func (h *Handler) ReceivedRecommendations(c *gin.Context) {
	status := model.RecommendationStatus(c.Query("status"))
	recs, err := h.Recommendations.Received(c.Request.Context(), middleware.GetUserID(c), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, recs)
}

// SentRecommendations 发出的推荐
func (h *Handler) SentRecommendations(c *gin.Context) {
	recs, err := h.Recommendations.Sent(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, recs)
}

type respondRequest struct {
	Status   model.RecommendationStatus `json:"status" binding:"required"`
	Response string                     `json:"response" binding:"max=500"`
}

// RespondRecommendation 回应推荐
func (h *Handler) RespondRecommendation(c *gin.Context) {
	recID, err := paramID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	var req respondRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	rec, err := h.Recommendations.Respond(c.Request.Context(), middleware.GetUserID(c), recID, req.Status, req.Response)
	if err != nil {
		h.fail(c, err)
		return
	}
	if rec.Status == model.RecAddedToList {
		h.invalidateMovie(c, rec.MovieID)
	}
	utils.Success(c, rec)
}

// MarkRecommendationRead 标记已读
func (h *Handler) MarkRecommendationRead(c *gin.Context) {
	recID, err := paramID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Recommendations.MarkRead(c.Request.Context(), middleware.GetUserID(c), recID); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, nil)
}

// DeleteRecommendation 删除自己发出的推荐
func (h *Handler) DeleteRecommendation(c *gin.Context) {
	recID, err := paramID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.Recommendations.Delete(c.Request.Context(), middleware.GetUserID(c), recID); err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, nil)
}
