package service

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/user/cinecircle/internal/config"
	"github.com/user/cinecircle/internal/model"
	"github.com/user/cinecircle/internal/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// TMDBService 电影元数据（TMDB）。未配置令牌时只返回带 ID 的电影
type TMDBService struct {
	client  *utils.HTTPClient
	baseURL string
	enabled bool
	cache   *utils.TTLCache[*model.Movie]
	group   singleflight.Group
	log     *zap.Logger
}

// NewTMDBService 创建元数据服务
func NewTMDBService(cfg *config.Config, logger *zap.Logger) *TMDBService {
	headers := map[string]string{}
	if cfg.TMDBAPIKey != "" {
		headers["Authorization"] = "Bearer " + cfg.TMDBAPIKey
	}
	return &TMDBService{
		client:  utils.NewHTTPClient(10*time.Second, headers),
		baseURL: strings.TrimRight(cfg.TMDBBaseURL, "/"),
		enabled: cfg.TMDBAPIKey != "",
		cache:   utils.NewTTLCache[*model.Movie](1000, 24*time.Hour),
		log:     logger.Named("tmdb"),
	}
}

type tmdbMovie struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	PosterPath  string `json:"poster_path"`
	ReleaseDate string `json:"release_date"`
	Overview    string `json:"overview"`
}

func (m tmdbMovie) toModel() *model.Movie {
	return &model.Movie{
		ID:          strconv.Itoa(m.ID),
		Title:       m.Title,
		PosterPath:  m.PosterPath,
		ReleaseDate: m.ReleaseDate,
		Overview:    m.Overview,
	}
}

// Resolve 按 TMDB ID 获取电影信息，同一 ID 的并发请求只发一次
func (s *TMDBService) Resolve(ctx context.Context, movieID string) (*model.Movie, error) {
	if !s.enabled {
		return &model.Movie{ID: movieID}, nil
	}
	if m, ok := s.cache.Get(movieID); ok {
		return m, nil
	}

	val, err, _ := s.group.Do(movieID, func() (interface{}, error) {
		var raw tmdbMovie
		u := fmt.Sprintf("%s/movie/%s?language=zh-CN", s.baseURL, url.PathEscape(movieID))
		if err := s.client.GetJSON(ctx, u, &raw); err != nil {
			return nil, err
		}
		m := raw.toModel()
		s.cache.Set(movieID, m)
		return m, nil
	})
	if err != nil {
		s.log.Warn("获取电影信息失败", zap.String("movie", movieID), zap.Error(err))
		return nil, err
	}
	return val.(*model.Movie), nil
}

// Complete 补全只带 ID 的电影，失败时原样返回
func (s *TMDBService) Complete(ctx context.Context, movie model.Movie) model.Movie {
	if movie.Title != "" || movie.ID == "" {
		return movie
	}
	resolved, err := s.Resolve(ctx, movie.ID)
	if err != nil || resolved == nil {
		return movie
	}
	return *resolved
}

// Search 按标题搜索电影，year 非空时按上映年份过滤
func (s *TMDBService) Search(ctx context.Context, query, year string, page int) ([]*model.Movie, error) {
	if !s.enabled {
		return []*model.Movie{}, nil
	}
	if page < 1 {
		page = 1
	}

	var raw struct {
		Results []tmdbMovie `json:"results"`
	}
	params := url.Values{}
	params.Set("language", "zh-CN")
	params.Set("page", strconv.Itoa(page))
	params.Set("query", query)
	if year != "" {
		params.Set("primary_release_year", year)
	}
	u := s.baseURL + "/search/movie?" + params.Encode()
	if err := s.client.GetJSON(ctx, u, &raw); err != nil {
		s.log.Warn("搜索电影失败", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	movies := make([]*model.Movie, 0, len(raw.Results))
	for _, r := range raw.Results {
		m := r.toModel()
		s.cache.Set(m.ID, m)
		movies = append(movies, m)
	}
	return movies, nil
}
