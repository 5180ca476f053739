package model

import (
	"fmt"
	"time"
)

// ListType 片单类型
type ListType string

const (
	ListWatched   ListType = "watched"
	ListFavorites ListType = "favorites"
	ListWatchlist ListType = "watchlist"
)

// ListTypes 全部片单类型，顺序固定
var ListTypes = []ListType{ListWatched, ListFavorites, ListWatchlist}

// ParseListType 解析片单类型
func ParseListType(s string) (ListType, error) {
	switch ListType(s) {
	case ListWatched, ListFavorites, ListWatchlist:
		return ListType(s), nil
	}
	return "", fmt.Errorf("未知的片单类型: %q", s)
}

// Movie 电影元数据（来自 TMDB）
type Movie struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PosterPath  string `json:"poster_path,omitempty"`
	ReleaseDate string `json:"release_date,omitempty"`
	Overview    string `json:"overview,omitempty"`
}

// MovieListEntry 片单条目，三种片单共用一张表，用 ListType 区分
type MovieListEntry struct {
	ID          int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID      int       `json:"user_id" db:"user_id" gorm:"uniqueIndex:idx_user_movie_list"`
	MovieID     string    `json:"movie_id" db:"movie_id" gorm:"uniqueIndex:idx_user_movie_list;index"`
	ListType    ListType  `json:"list_type" db:"list_type" gorm:"uniqueIndex:idx_user_movie_list;type:varchar(16)"`
	Title       string    `json:"title" db:"title"`
	PosterPath  string    `json:"poster_path" db:"poster_path"`
	ReleaseDate string    `json:"release_date" db:"release_date"`
	Rating      int       `json:"rating" db:"rating"`
	Review      string    `json:"review" db:"review" gorm:"type:varchar(500)"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	User        *User     `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// TableName 表名
func (MovieListEntry) TableName() string {
	return "user_movies"
}

// Movie 还原条目里的电影信息
func (e *MovieListEntry) Movie() Movie {
	return Movie{
		ID:          e.MovieID,
		Title:       e.Title,
		PosterPath:  e.PosterPath,
		ReleaseDate: e.ReleaseDate,
	}
}

// UserStats 片单统计
type UserStats struct {
	Watched       int     `json:"watched"`
	Favorites     int     `json:"favorites"`
	Watchlist     int     `json:"watchlist"`
	TotalReviews  int     `json:"total_reviews"`
	AverageRating float64 `json:"average_rating"`
	// Total 三个片单的去重电影数
	Total int `json:"total"`
}

// ComputeStats 由片单条目全集推导统计
func ComputeStats(entries []*MovieListEntry) *UserStats {
	stats := &UserStats{}
	movies := make(map[string]struct{}, len(entries))
	ratingSum, rated := 0, 0

	for _, e := range entries {
		movies[e.MovieID] = struct{}{}
		switch e.ListType {
		case ListWatched:
			stats.Watched++
			if e.Review != "" {
				stats.TotalReviews++
			}
			if e.Rating > 0 {
				ratingSum += e.Rating
				rated++
			}
		case ListFavorites:
			stats.Favorites++
		case ListWatchlist:
			stats.Watchlist++
		}
	}

	stats.Total = len(movies)
	if rated > 0 {
		stats.AverageRating = float64(ratingSum) / float64(rated)
	}
	return stats
}
