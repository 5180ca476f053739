// Package memory 提供后端存储的内存实现，用于测试和本地演示。
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/model"
)

// Backend 内存后端，实现 backend 包里的全部存储接口
type Backend struct {
	sync.RWMutex
	users    map[int]*model.User
	resets   map[string]*model.PasswordReset
	profiles map[int]*model.UserProfile
	entries  []*model.MovieListEntry
	graphs   map[int]*model.FriendGraph
	recs     map[int]*model.Recommendation
	files    map[string][]byte
	seq      int

	// Fail 非空时所有存储调用直接返回该错误
	Fail error
}

// New 创建内存后端
func New() *Backend {
	return &Backend{
		users:    map[int]*model.User{},
		resets:   map[string]*model.PasswordReset{},
		profiles: map[int]*model.UserProfile{},
		graphs:   map[int]*model.FriendGraph{},
		recs:     map[int]*model.Recommendation{},
		files:    map[string][]byte{},
	}
}

// Stores 以本后端组装 backend.Stores
func (b *Backend) Stores() backend.Stores {
	return backend.Stores{
		Users:           b,
		Resets:          b,
		Profiles:        b,
		Lists:           b,
		Friends:         b,
		Recommendations: b,
		Files:           b,
	}
}

func (b *Backend) nextID() int {
	b.seq++
	return b.seq
}

// ==================== 账号 ====================

func (b *Backend) CreateUser(ctx context.Context, u *model.User) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	for _, existing := range b.users {
		if existing.Email == u.Email {
			return fmt.Errorf("duplicate key value violates unique constraint \"users_email_key\"")
		}
	}
	u.ID = b.nextID()
	c := *u
	b.users[u.ID] = &c
	return nil
}

func (b *Backend) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	for _, u := range b.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (b *Backend) FindUserByID(ctx context.Context, id int) (*model.User, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	u, ok := b.users[id]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (b *Backend) UpdateUser(ctx context.Context, id int, fields map[string]interface{}) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	u, ok := b.users[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "display_name":
			u.DisplayName = v.(string)
		case "photo_url":
			u.PhotoURL = v.(string)
		case "email":
			u.Email = v.(string)
		case "password_hash":
			u.PasswordHash = v.(string)
		case "updated_at":
			u.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("unknown user column %q", k)
		}
	}
	return nil
}

func (b *Backend) DeleteUser(ctx context.Context, id int) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	delete(b.users, id)
	delete(b.profiles, id)
	delete(b.graphs, id)
	for k, r := range b.resets {
		if r.UserID == id {
			delete(b.resets, k)
		}
	}
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.UserID != id {
			kept = append(kept, e)
		}
	}
	b.entries = kept
	for k, r := range b.recs {
		if r.FromUserID == id || r.ToUserID == id {
			delete(b.recs, k)
		}
	}
	for _, g := range b.graphs {
		g.Friends = model.RemoveID(g.Friends, id)
		g.Incoming = model.RemoveID(g.Incoming, id)
		g.Outgoing = model.RemoveID(g.Outgoing, id)
	}
	return nil
}

// ==================== 重置令牌 ====================

func (b *Backend) CreateReset(ctx context.Context, r *model.PasswordReset) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	r.ID = b.nextID()
	c := *r
	b.resets[r.TokenHash] = &c
	return nil
}

func (b *Backend) FindReset(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	r, ok := b.resets[tokenHash]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (b *Backend) DeleteResets(ctx context.Context, userID int) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	for k, r := range b.resets {
		if r.UserID == userID {
			delete(b.resets, k)
		}
	}
	return nil
}

func (b *Backend) DeleteExpiredResets(ctx context.Context, before time.Time) (int64, error) {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return 0, b.Fail
	}
	var n int64
	for k, r := range b.resets {
		if r.ExpiresAt.Before(before) {
			delete(b.resets, k)
			n++
		}
	}
	return n, nil
}

// ==================== 公开资料 ====================

func (b *Backend) GetProfile(ctx context.Context, userID int) (*model.UserProfile, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	p, ok := b.profiles[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (b *Backend) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	c := *p
	b.profiles[p.UserID] = &c
	return nil
}

func (b *Backend) UpdateProfile(ctx context.Context, userID int, fields map[string]interface{}) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	p, ok := b.profiles[userID]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "display_name":
			p.DisplayName = v.(string)
		case "email":
			p.Email = v.(string)
		case "photo_url":
			p.PhotoURL = v.(string)
		case "bio":
			p.Bio = v.(string)
		case "is_public":
			p.IsPublic = v.(bool)
		case "last_seen":
			p.LastSeen = v.(time.Time)
		default:
			return fmt.Errorf("unknown profile column %q", k)
		}
	}
	return nil
}

func (b *Backend) ListProfiles(ctx context.Context, userIDs []int64) ([]*model.UserProfile, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	out := make([]*model.UserProfile, 0, len(userIDs))
	for _, id := range userIDs {
		if p, ok := b.profiles[int(id)]; ok {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

func (b *Backend) SearchProfiles(ctx context.Context, keyword string, limit int) ([]*model.UserProfile, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	keyword = strings.ToLower(keyword)
	var out []*model.UserProfile
	for _, p := range b.profiles {
		if !p.IsPublic {
			continue
		}
		if strings.Contains(strings.ToLower(p.DisplayName), keyword) || strings.Contains(strings.ToLower(p.Email), keyword) {
			c := *p
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== 片单 ====================

func (b *Backend) ListEntries(ctx context.Context, userID int, listType model.ListType) ([]*model.MovieListEntry, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	var out []*model.MovieListEntry
	for _, e := range b.entries {
		if e.UserID == userID && e.ListType == listType {
			c := *e
			out = append(out, &c)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (b *Backend) UpsertEntry(ctx context.Context, e *model.MovieListEntry) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	for _, existing := range b.entries {
		if existing.UserID == e.UserID && existing.MovieID == e.MovieID && existing.ListType == e.ListType {
			e.ID = existing.ID
			e.CreatedAt = existing.CreatedAt
			*existing = *e
			return nil
		}
	}
	e.ID = b.nextID()
	c := *e
	b.entries = append(b.entries, &c)
	return nil
}

func (b *Backend) RemoveEntry(ctx context.Context, userID int, movieID string, listType model.ListType) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	kept := b.entries[:0]
	for _, e := range b.entries {
		if e.UserID == userID && e.MovieID == movieID && e.ListType == listType {
			continue
		}
		kept = append(kept, e)
	}
	b.entries = kept
	return nil
}

func (b *Backend) GetEntry(ctx context.Context, userID int, movieID string, listType model.ListType) (*model.MovieListEntry, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	for _, e := range b.entries {
		if e.UserID == userID && e.MovieID == movieID && e.ListType == listType {
			c := *e
			return &c, nil
		}
	}
	return nil, nil
}

func (b *Backend) ComputeStats(ctx context.Context, userID int) (*model.UserStats, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	var mine []*model.MovieListEntry
	for _, e := range b.entries {
		if e.UserID == userID {
			mine = append(mine, e)
		}
	}
	return model.ComputeStats(mine), nil
}

func (b *Backend) ListReviewsByMovie(ctx context.Context, movieID string, limit int) ([]*model.MovieListEntry, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	var out []*model.MovieListEntry
	for _, e := range b.entries {
		if e.MovieID == movieID && e.ListType == model.ListWatched && e.Review != "" {
			c := *e
			if u, ok := b.users[e.UserID]; ok {
				uc := *u
				c.User = &uc
			}
			out = append(out, &c)
		}
	}
	sortNewestFirst(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== 好友 ====================

func (b *Backend) GetGraph(ctx context.Context, userID int) (*model.FriendGraph, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	g, ok := b.graphs[userID]
	if !ok {
		return nil, nil
	}
	return g.Clone(), nil
}

func (b *Backend) CreateGraph(ctx context.Context, g *model.FriendGraph) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	if _, ok := b.graphs[g.UserID]; ok {
		return nil
	}
	b.graphs[g.UserID] = g.Clone()
	return nil
}

func (b *Backend) UpdateGraphs(ctx context.Context, userID, friendID int, fn func(user, friend *model.FriendGraph) error) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	load := func(id int) *model.FriendGraph {
		if g, ok := b.graphs[id]; ok {
			return g.Clone()
		}
		return model.NewFriendGraph(id)
	}
	user, friend := load(userID), load(friendID)
	if err := fn(user, friend); err != nil {
		return err
	}
	now := time.Now()
	for _, g := range []*model.FriendGraph{user, friend} {
		g.UpdatedAt = now
		b.graphs[g.UserID] = g.Clone()
	}
	return nil
}

// ==================== 推荐 ====================

func (b *Backend) CreateRecommendation(ctx context.Context, r *model.Recommendation) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	r.ID = b.nextID()
	c := *r
	b.recs[r.ID] = &c
	return nil
}

func (b *Backend) GetRecommendation(ctx context.Context, id int) (*model.Recommendation, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	r, ok := b.recs[id]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (b *Backend) ListReceived(ctx context.Context, userID int, status model.RecommendationStatus) ([]*model.Recommendation, error) {
	return b.listRecs(func(r *model.Recommendation) bool {
		return r.ToUserID == userID && (status == "" || r.Status == status)
	})
}

func (b *Backend) ListSent(ctx context.Context, userID int) ([]*model.Recommendation, error) {
	return b.listRecs(func(r *model.Recommendation) bool {
		return r.FromUserID == userID
	})
}

func (b *Backend) listRecs(match func(*model.Recommendation) bool) ([]*model.Recommendation, error) {
	b.RLock()
	defer b.RUnlock()
	if b.Fail != nil {
		return nil, b.Fail
	}
	var out []*model.Recommendation
	for _, r := range b.recs {
		if match(r) {
			c := *r
			out = append(out, &c)
		}
	}
	// 新的在前，ID 递增可代替时间
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (b *Backend) UpdateRecommendation(ctx context.Context, id int, fields map[string]interface{}) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	r, ok := b.recs[id]
	if !ok {
		return nil
	}
	for k, v := range fields {
		switch k {
		case "status":
			r.Status = v.(model.RecommendationStatus)
		case "response":
			r.Response = v.(string)
		case "responded_at":
			t := v.(time.Time)
			r.RespondedAt = &t
		case "updated_at":
			r.UpdatedAt = v.(time.Time)
		default:
			return fmt.Errorf("unknown recommendation column %q", k)
		}
	}
	return nil
}

func (b *Backend) DeleteRecommendation(ctx context.Context, id int) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	delete(b.recs, id)
	return nil
}

func (b *Backend) DeleteRespondedBefore(ctx context.Context, before time.Time) (int64, error) {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return 0, b.Fail
	}
	var n int64
	for k, r := range b.recs {
		if r.RespondedAt != nil && r.RespondedAt.Before(before) {
			delete(b.recs, k)
			n++
		}
	}
	return n, nil
}

// ==================== 文件 ====================

// Upload 返回 mem:// 前缀的 URL
func (b *Backend) Upload(ctx context.Context, key string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return "", b.Fail
	}
	url := "mem://" + key
	b.files[url] = buf.Bytes()
	return url, nil
}

func (b *Backend) Delete(ctx context.Context, url string) error {
	b.Lock()
	defer b.Unlock()
	if b.Fail != nil {
		return b.Fail
	}
	delete(b.files, url)
	return nil
}

// File 读取已上传的文件（测试用）
func (b *Backend) File(url string) ([]byte, bool) {
	b.RLock()
	defer b.RUnlock()
	data, ok := b.files[url]
	return data, ok
}

func sortNewestFirst(entries []*model.MovieListEntry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
}
