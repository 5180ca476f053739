package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/utils"
)

func profileCacheKey(userID int) string {
	return fmt.Sprintf("profile:%d", userID)
}

func reviewsCacheKey(movieID string) string {
	return "reviews:" + movieID
}

// publicProfile 主页数据
type publicProfile struct {
	Profile *model.UserProfile `json:"profile"`
	Stats   *model.UserStats   `json:"stats"`
}

// review 影评（只带作者的公开信息）
type review struct {
	UserID      int    `json:"user_id"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
	Rating      int    `json:"rating"`
	Review      string `json:"review"`
	UpdatedAt   string `json:"updated_at"`
}

// PublicProfile 用户主页。非公开资料只有本人可见
func (h *Handler) PublicProfile(c *gin.Context) {
	userID, err := paramID(c, "id")
	if err != nil {
		h.fail(c, err)
		return
	}
	self := middleware.GetUserID(c) == userID

	if !self {
		if cached, ok := h.Cache.Get(profileCacheKey(userID)); ok {
			utils.Success(c, cached)
			return
		}
	}

	ctx := c.Request.Context()
	profile, err := h.Stores.Profiles.GetProfile(ctx, userID)
	if err != nil {
		h.fail(c, backend.Wrap("getProfile", err))
		return
	}
	if profile == nil || (!profile.IsPublic && !self) {
		utils.NotFound(c, "用户不存在")
		return
	}
	stats, err := h.Stores.Lists.ComputeStats(ctx, userID)
	if err != nil {
		h.fail(c, backend.Wrap("computeStats", err))
		return
	}

	if !self {
		profile.Email = ""
	}
	data := &publicProfile{Profile: profile, Stats: stats}
	if !self {
		h.Cache.Set(profileCacheKey(userID), data)
	}
	utils.Success(c, data)
}

// MovieReviews 某部电影的短评
func (h *Handler) MovieReviews(c *gin.Context) {
	movieID := c.Param("id")
	if cached, ok := h.Cache.Get(reviewsCacheKey(movieID)); ok {
		utils.Success(c, cached)
		return
	}

	entries, err := h.Stores.Lists.ListReviewsByMovie(c.Request.Context(), movieID, 50)
	if err != nil {
		h.fail(c, backend.Wrap("listReviews", err))
		return
	}
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, int64(e.UserID))
	}
	profiles, err := h.Stores.Profiles.ListProfiles(c.Request.Context(), ids)
	if err != nil {
		h.fail(c, backend.Wrap("listProfiles", err))
		return
	}
	public := make(map[int]bool, len(profiles))
	for _, p := range profiles {
		public[p.UserID] = p.IsPublic
	}

	reviews := make([]review, 0, len(entries))
	for _, e := range entries {
		if !public[e.UserID] {
			continue
		}
		r := review{
			UserID:    e.UserID,
			Rating:    e.Rating,
			Review:    e.Review,
			UpdatedAt: e.UpdatedAt.Format("2006-01-02"),
		}
		if e.User != nil {
			r.DisplayName = e.User.DisplayName
			r.PhotoURL = e.User.PhotoURL
		}
		reviews = append(reviews, r)
	}
	h.Cache.Set(reviewsCacheKey(movieID), reviews)
	utils.Success(c, reviews)
}

// SearchMovies 按标题搜索电影
func (h *Handler) SearchMovies(c *gin.Context) {
	query, year := utils.CleanSearchQuery(c.Query("q"))
	if query == "" {
		h.fail(c, invalid("q", "搜索关键词不能为空"))
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	movies, err := h.Metadata.Search(c.Request.Context(), query, year, page)
	if err != nil {
		utils.Error(c, 502, "电影信息服务暂不可用")
		return
	}
	utils.Success(c, movies)
}

// MovieDetail 电影基本信息
func (h *Handler) MovieDetail(c *gin.Context) {
	movie, err := h.Metadata.Resolve(c.Request.Context(), c.Param("id"))
	if err != nil {
		utils.Error(c, 502, "电影信息服务暂不可用")
		return
	}
	utils.Success(c, movie)
}
