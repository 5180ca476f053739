// Package collection 是片单页面的派生视图：按状态、收藏标记筛选内存中的电影集合。
// 所有函数都是纯函数，不修改入参，保持原有顺序，不分页。
package collection

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/user/cinecircle/internal/model"
)

// Status 条目状态标签
type Status string

const (
	StatusNone           Status = ""
	StatusWatched        Status = "watched"
	StatusWatchlist      Status = "watchlist"
	StatusRecommendation Status = "recommendation"
)

// 筛选器名称
const (
	FilterAll            = "all"
	FilterWatched        = "watched"
	FilterWatchlist      = "watchlist"
	FilterRecommendation = "recommendation"
	FilterFavorites      = "favorites"
)

// Filters 页面上的筛选器，顺序即展示顺序
var Filters = []string{FilterAll, FilterWatched, FilterWatchlist, FilterRecommendation, FilterFavorites}

// Flag 收藏标记。历史数据里既有布尔值也有字符串，解码时统一成 bool
type Flag bool

// UnmarshalJSON 接受 true/false、"true"/"false" 和 null
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = false
			return nil
		}
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("无效的收藏标记: %q", s)
		}
		*f = Flag(b)
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("无效的收藏标记: %s", data)
	}
	*f = Flag(b)
	return nil
}

// Item 集合中的一部电影
type Item struct {
	MovieID    string `json:"movie_id"`
	Title      string `json:"title"`
	PosterPath string `json:"poster_path,omitempty"`
	Status     Status `json:"status"`
	IsFavorite Flag   `json:"is_favorite"`
	Rating     int    `json:"rating,omitempty"`
}

// ByStatus 按状态精确匹配
func ByStatus(items []Item, status Status) []Item {
	return filter(items, func(it Item) bool { return it.Status == status })
}

// Favorites 收藏的电影
func Favorites(items []Item) []Item {
	return filter(items, func(it Item) bool { return bool(it.IsFavorite) })
}

// All 有状态或被收藏的电影；既无状态又未收藏的条目即便存在也不展示
func All(items []Item) []Item {
	return filter(items, func(it Item) bool { return it.Status != StatusNone || bool(it.IsFavorite) })
}

// Apply 按筛选器名称筛选
func Apply(items []Item, name string) ([]Item, error) {
	switch name {
	case FilterAll, "":
		return All(items), nil
	case FilterWatched:
		return ByStatus(items, StatusWatched), nil
	case FilterWatchlist:
		return ByStatus(items, StatusWatchlist), nil
	case FilterRecommendation:
		return ByStatus(items, StatusRecommendation), nil
	case FilterFavorites:
		return Favorites(items), nil
	}
	return nil, fmt.Errorf("未知的筛选器: %q", name)
}

// Counts 每个筛选器的条目数，用于筛选标签上的角标
func Counts(items []Item) map[string]int {
	counts := make(map[string]int, len(Filters))
	for _, name := range Filters {
		matched, _ := Apply(items, name)
		counts[name] = len(matched)
	}
	return counts
}

// Build 把三个片单和收到的推荐合并成集合，每部电影一条。
// 状态优先级：已看 > 想看 > 推荐；收藏只影响 IsFavorite。
func Build(lists map[model.ListType][]*model.MovieListEntry, recs []*model.Recommendation) []Item {
	var items []Item
	index := map[string]int{}

	get := func(movieID, title, poster string) *Item {
		if i, ok := index[movieID]; ok {
			return &items[i]
		}
		items = append(items, Item{MovieID: movieID, Title: title, PosterPath: poster})
		index[movieID] = len(items) - 1
		return &items[len(items)-1]
	}

	for _, e := range lists[model.ListWatched] {
		it := get(e.MovieID, e.Title, e.PosterPath)
		it.Status = StatusWatched
		it.Rating = e.Rating
	}
	for _, e := range lists[model.ListWatchlist] {
		it := get(e.MovieID, e.Title, e.PosterPath)
		if it.Status == StatusNone {
			it.Status = StatusWatchlist
		}
	}
	for _, e := range lists[model.ListFavorites] {
		get(e.MovieID, e.Title, e.PosterPath).IsFavorite = true
	}
	for _, r := range recs {
		it := get(r.MovieID, r.MovieTitle, r.PosterPath)
		if it.Status == StatusNone {
			it.Status = StatusRecommendation
		}
	}
	return items
}

func filter(items []Item, keep func(Item) bool) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
