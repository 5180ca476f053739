package model

import (
	"time"

	"github.com/lib/pq"
)

// RecommendationStatus 推荐状态
type RecommendationStatus string

const (
	RecPending       RecommendationStatus = "pending"
	RecLiked         RecommendationStatus = "liked"
	RecWatched       RecommendationStatus = "watched"
	RecAddedToList   RecommendationStatus = "added_to_list"
	RecNotInterested RecommendationStatus = "not_interested"
	RecRead          RecommendationStatus = "read"
)

// Valid 是否为已知状态
func (s RecommendationStatus) Valid() bool {
	switch s {
	case RecPending, RecLiked, RecWatched, RecAddedToList, RecNotInterested, RecRead:
		return true
	}
	return false
}

// Recommendation 好友之间的电影推荐（有向边）
type Recommendation struct {
	ID          int                  `json:"id" db:"id" gorm:"primaryKey"`
	FromUserID  int                  `json:"from_user_id" db:"from_user_id" gorm:"index"`
	ToUserID    int                  `json:"to_user_id" db:"to_user_id" gorm:"index"`
	MovieID     string               `json:"movie_id" db:"movie_id"`
	MovieTitle  string               `json:"movie_title" db:"movie_title"`
	PosterPath  string               `json:"poster_path" db:"poster_path"`
	Message     string               `json:"message" db:"message" gorm:"type:varchar(500)"`
	Status      RecommendationStatus `json:"status" db:"status" gorm:"type:varchar(32);index"`
	Response    string               `json:"response" db:"response"`
	CreatedAt   time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at" db:"updated_at"`
	RespondedAt *time.Time           `json:"responded_at" db:"responded_at"`
}

// FriendGraph 用户的好友关系文档
type FriendGraph struct {
	UserID    int           `json:"user_id" db:"user_id" gorm:"primaryKey;autoIncrement:false"`
	Friends   pq.Int64Array `json:"friends" db:"friends" gorm:"type:bigint[]"`
	Incoming  pq.Int64Array `json:"incoming" db:"incoming" gorm:"type:bigint[]"`
	Outgoing  pq.Int64Array `json:"outgoing" db:"outgoing" gorm:"type:bigint[]"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// NewFriendGraph 空关系文档
func NewFriendGraph(userID int) *FriendGraph {
	return &FriendGraph{
		UserID:   userID,
		Friends:  pq.Int64Array{},
		Incoming: pq.Int64Array{},
		Outgoing: pq.Int64Array{},
	}
}

// Clone 深拷贝
func (g *FriendGraph) Clone() *FriendGraph {
	c := *g
	c.Friends = append(pq.Int64Array{}, g.Friends...)
	c.Incoming = append(pq.Int64Array{}, g.Incoming...)
	c.Outgoing = append(pq.Int64Array{}, g.Outgoing...)
	return &c
}

// FriendsOverview 好友页数据
type FriendsOverview struct {
	Friends  []*UserProfile `json:"friends"`
	Incoming []*UserProfile `json:"incoming_requests"`
	Outgoing []*UserProfile `json:"outgoing_requests"`
}

// ContainsID 判断 id 是否在数组中
func ContainsID(ids pq.Int64Array, id int) bool {
	for _, v := range ids {
		if v == int64(id) {
			return true
		}
	}
	return false
}

// AddID 去重追加
func AddID(ids pq.Int64Array, id int) pq.Int64Array {
	if ContainsID(ids, id) {
		return ids
	}
	return append(ids, int64(id))
}

// RemoveID 删除所有等于 id 的元素
func RemoveID(ids pq.Int64Array, id int) pq.Int64Array {
	out := make(pq.Int64Array, 0, len(ids))
	for _, v := range ids {
		if v != int64(id) {
			out = append(out, v)
		}
	}
	return out
}
