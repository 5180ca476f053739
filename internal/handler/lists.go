package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/user/cinecircle/internal/collection"
	"github.com/user/cinecircle/internal/middleware"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/utils"
)

type listURI struct {
	Type    string `uri:"type" binding:"required,listtype"`
	MovieID string `uri:"movieId"`
}

type addToListRequest struct {
	MovieID     string `json:"movie_id" binding:"required"`
	Title       string `json:"title"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
	Rating      int    `json:"rating" binding:"omitempty,min=1,max=5"`
	Review      string `json:"review" binding:"max=500"`
}

func bindListURI(c *gin.Context) (model.ListType, string, error) {
	var uri listURI
	if err := c.ShouldBindUri(&uri); err != nil {
		return "", "", bindError(err)
	}
	return model.ListType(uri.Type), uri.MovieID, nil
}

// GetList 读取片单
func (h *Handler) GetList(c *gin.Context) {
	listType, _, err := bindListURI(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	entries, err := h.movieLists(c).LoadList(c.Request.Context(), listType)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, entries)
}

// AddToList 加入片单（已存在则更新评分和短评）
func (h *Handler) AddToList(c *gin.Context) {
	listType, _, err := bindListURI(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	var req addToListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, bindError(err))
		return
	}
	if listType == model.ListWatched && req.Review != "" && req.Rating == 0 {
		h.fail(c, invalid("rating", "写短评前请先打分"))
		return
	}
	// 只有看过的电影可以打分和写短评
	if listType != model.ListWatched {
		req.Rating, req.Review = 0, ""
	}

	ctx := c.Request.Context()
	movie := h.Metadata.Complete(ctx, model.Movie{
		ID:          req.MovieID,
		Title:       req.Title,
		PosterPath:  req.PosterPath,
		ReleaseDate: req.ReleaseDate,
	})

	lists := h.movieLists(c)
	entry, err := lists.AddToList(ctx, movie, listType, req.Rating, req.Review)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateMovie(c, movie.ID)

	utils.Success(c, gin.H{
		"entry":       entry,
		"stats":       lists.Stats(),
		"stats_stale": lists.StatsStale(),
	})
}

// IsInList 电影是否在片单中
func (h *Handler) IsInList(c *gin.Context) {
	listType, movieID, err := bindListURI(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	res, err := h.movieLists(c).IsInList(c.Request.Context(), movieID, listType)
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, res)
}

// RemoveFromList 移出片单
func (h *Handler) RemoveFromList(c *gin.Context) {
	listType, movieID, err := bindListURI(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	lists := h.movieLists(c)
	if err := lists.RemoveFromList(c.Request.Context(), movieID, listType); err != nil {
		h.fail(c, err)
		return
	}
	h.invalidateMovie(c, movieID)

	utils.Success(c, gin.H{
		"stats":       lists.Stats(),
		"stats_stale": lists.StatsStale(),
	})
}

// Stats 片单统计
func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.movieLists(c).LoadStats(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	utils.Success(c, stats)
}

// Collection 合并片单与收到的推荐，按 filter 筛选
func (h *Handler) Collection(c *gin.Context) {
	ctx := c.Request.Context()
	filterName := c.DefaultQuery("filter", collection.FilterAll)

	lists := h.movieLists(c)
	if err := lists.LoadAll(ctx); err != nil {
		h.fail(c, err)
		return
	}
	received, err := h.Recommendations.Received(ctx, middleware.GetUserID(c), "")
	if err != nil {
		h.fail(c, err)
		return
	}
	recs := make([]*model.Recommendation, 0, len(received))
	for _, r := range received {
		if r.Status != model.RecNotInterested {
			recs = append(recs, r)
		}
	}

	items := lists.Collection(recs)
	filtered, err := collection.Apply(items, filterName)
	if err != nil {
		h.fail(c, invalid("filter", err.Error()))
		return
	}
	if filtered == nil {
		filtered = []collection.Item{}
	}
	utils.Success(c, gin.H{
		"filter": filterName,
		"items":  filtered,
		"counts": collection.Counts(items),
	})
}

// invalidateMovie 片单变化后清除该电影的影评缓存和自己的主页缓存
func (h *Handler) invalidateMovie(c *gin.Context, movieID string) {
	h.Cache.Delete(reviewsCacheKey(movieID))
	h.Cache.Delete(profileCacheKey(middleware.GetUserID(c)))
}
