package service

import (
	"context"
	"strings"
	"sync"

	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/collection"
	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
)

// SessionHandle 提供当前登录用户
type SessionHandle interface {
	CurrentUser() *model.User
}

// StaticSession 固定用户的会话（如已通过 JWT 验证的请求）
type StaticSession struct {
	User *model.User
}

// CurrentUser 实现 SessionHandle
func (s StaticSession) CurrentUser() *model.User {
	return s.User
}

// InListResult IsInList 的结果
type InListResult struct {
	Exists bool         `json:"exists"`
	Data   *EntryDetail `json:"data,omitempty"`
}

// EntryDetail 条目里保存的评分和短评
type EntryDetail struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// MovieLists 当前用户三个片单和统计的内存状态。每个会话一个实例。
//
// 变更成功后从存储重新拉取对应片单，再重算统计；
// 统计重算失败不回滚变更，StatsStale 会一直为 true 直到下一次 LoadStats 成功。
type MovieLists struct {
	session SessionHandle
	store   backend.MovieListStore
	log     *zap.Logger

	mu         sync.RWMutex
	lists      map[model.ListType][]*model.MovieListEntry
	stats      *model.UserStats
	statsStale bool
}

// NewMovieLists 创建片单状态
func NewMovieLists(session SessionHandle, store backend.MovieListStore, logger *zap.Logger) *MovieLists {
	return &MovieLists{
		session: session,
		store:   store,
		log:     logger.Named("movielist"),
		lists:   make(map[model.ListType][]*model.MovieListEntry, len(model.ListTypes)),
		stats:   &model.UserStats{},
	}
}

func (m *MovieLists) userID() (int, error) {
	u := m.session.CurrentUser()
	if u == nil {
		return 0, backend.ErrNotAuthenticated
	}
	return u.ID, nil
}

// LoadList 拉取片单并整体替换内存中的对应片单
func (m *MovieLists) LoadList(ctx context.Context, listType model.ListType) ([]*model.MovieListEntry, error) {
	userID, err := m.userID()
	if err != nil {
		return nil, err
	}
	if _, err := model.ParseListType(string(listType)); err != nil {
		return nil, err
	}

	entries, err := m.store.ListEntries(ctx, userID, listType)
	if err != nil {
		m.log.Warn("加载片单失败", zap.String("list", string(listType)), zap.Error(err))
		return nil, backend.Wrap("loadList", err)
	}
	if entries == nil {
		entries = []*model.MovieListEntry{}
	}

	m.mu.Lock()
	m.lists[listType] = entries
	m.mu.Unlock()

	return m.List(listType), nil
}

// LoadAll 依次加载三个片单
func (m *MovieLists) LoadAll(ctx context.Context) error {
	for _, lt := range model.ListTypes {
		if _, err := m.LoadList(ctx, lt); err != nil {
			return err
		}
	}
	return nil
}

// LoadStats 从存储重算统计并替换
func (m *MovieLists) LoadStats(ctx context.Context) (*model.UserStats, error) {
	userID, err := m.userID()
	if err != nil {
		return nil, err
	}

	stats, err := m.store.ComputeStats(ctx, userID)
	if err != nil {
		m.mu.Lock()
		m.statsStale = true
		m.mu.Unlock()
		m.log.Warn("重算统计失败", zap.Error(err))
		return nil, backend.Wrap("loadStats", err)
	}

	m.mu.Lock()
	m.stats = stats
	m.statsStale = false
	m.mu.Unlock()

	return m.Stats(), nil
}

// AddToList 加入片单。评分范围不在这里校验
func (m *MovieLists) AddToList(ctx context.Context, movie model.Movie, listType model.ListType, rating int, review string) (*model.MovieListEntry, error) {
	userID, err := m.userID()
	if err != nil {
		return nil, err
	}
	if _, err := model.ParseListType(string(listType)); err != nil {
		return nil, err
	}
	if listType != model.ListWatched {
		rating, review = 0, ""
	}

	entry := &model.MovieListEntry{
		UserID:      userID,
		MovieID:     movie.ID,
		ListType:    listType,
		Title:       movie.Title,
		PosterPath:  movie.PosterPath,
		ReleaseDate: movie.ReleaseDate,
		Rating:      rating,
		Review:      strings.TrimSpace(review),
	}
	if err := m.store.UpsertEntry(ctx, entry); err != nil {
		m.log.Warn("加入片单失败",
			zap.String("movie", movie.ID),
			zap.String("list", string(listType)),
			zap.Error(err))
		return nil, backend.Wrap("addToList", err)
	}

	m.afterMutation(ctx, listType)
	return entry, nil
}

// RemoveFromList 移出片单
func (m *MovieLists) RemoveFromList(ctx context.Context, movieID string, listType model.ListType) error {
	userID, err := m.userID()
	if err != nil {
		return err
	}
	if _, err := model.ParseListType(string(listType)); err != nil {
		return err
	}

	if err := m.store.RemoveEntry(ctx, userID, movieID, listType); err != nil {
		m.log.Warn("移出片单失败",
			zap.String("movie", movieID),
			zap.String("list", string(listType)),
			zap.Error(err))
		return backend.Wrap("removeFromList", err)
	}

	m.afterMutation(ctx, listType)

	// 重新拉取失败时内存里可能还留着旧条目，这里保证移除结果可见
	m.mu.Lock()
	m.lists[listType] = withoutMovie(m.lists[listType], movieID)
	m.mu.Unlock()
	return nil
}

// afterMutation 以存储为准重新拉取片单并重算统计，失败只记录
func (m *MovieLists) afterMutation(ctx context.Context, listType model.ListType) {
	if _, err := m.LoadList(ctx, listType); err != nil {
		m.log.Warn("变更后刷新片单失败", zap.String("list", string(listType)), zap.Error(err))
	}
	if _, err := m.LoadStats(ctx); err != nil {
		m.log.Warn("变更后统计可能已过期", zap.Error(err))
	}
}

// IsInList 查询电影是否在片单中，总是访问存储
func (m *MovieLists) IsInList(ctx context.Context, movieID string, listType model.ListType) (*InListResult, error) {
	userID, err := m.userID()
	if err != nil {
		return nil, err
	}
	if _, err := model.ParseListType(string(listType)); err != nil {
		return nil, err
	}

	entry, err := m.store.GetEntry(ctx, userID, movieID, listType)
	if err != nil {
		return nil, backend.Wrap("isInList", err)
	}
	if entry == nil {
		return &InListResult{Exists: false}, nil
	}
	return &InListResult{
		Exists: true,
		Data:   &EntryDetail{Rating: entry.Rating, Review: entry.Review},
	}, nil
}

// List 内存中片单的副本
func (m *MovieLists) List(listType model.ListType) []*model.MovieListEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.lists[listType]
	out := make([]*model.MovieListEntry, len(src))
	copy(out, src)
	return out
}

// Stats 当前统计的副本
func (m *MovieLists) Stats() *model.UserStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := *m.stats
	return &s
}

// StatsStale 最近一次统计重算是否失败
func (m *MovieLists) StatsStale() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.statsStale
}

// Collection 把内存中的片单和推荐合并成筛选用的集合
func (m *MovieLists) Collection(recs []*model.Recommendation) []collection.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return collection.Build(m.lists, recs)
}

func withoutMovie(entries []*model.MovieListEntry, movieID string) []*model.MovieListEntry {
	out := make([]*model.MovieListEntry, 0, len(entries))
	for _, e := range entries {
		if e.MovieID != movieID {
			out = append(out, e)
		}
	}
	return out
}
