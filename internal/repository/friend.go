package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FriendRepository 好友关系文档
type FriendRepository struct {
	db *gorm.DB
}

func NewFriendRepository(db *gorm.DB) *FriendRepository {
	return &FriendRepository{db: db}
}

func (r *FriendRepository) GetGraph(ctx context.Context, userID int) (*model.FriendGraph, error) {
	var g model.FriendGraph
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&g).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGraph 已存在时不做任何事
func (r *FriendRepository) CreateGraph(ctx context.Context, g *model.FriendGraph) error {
	g.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(g).Error
}

// UpdateGraphs 在事务里对双方文档加行锁（SELECT ... FOR UPDATE），修改后一起写回
func (r *FriendRepository) UpdateGraphs(ctx context.Context, userID, friendID int, fn func(user, friend *model.FriendGraph) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		ids := []int{userID, friendID}
		for _, id := range ids {
			g := model.NewFriendGraph(id)
			g.UpdatedAt = now
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(g).Error; err != nil {
				return err
			}
		}

		var rows []*model.FriendGraph
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id IN ?", ids).
			Order("user_id").
			Find(&rows).Error
		if err != nil {
			return err
		}
		byID := make(map[int]*model.FriendGraph, len(rows))
		for _, g := range rows {
			byID[g.UserID] = g
		}
		user, friend := byID[userID], byID[friendID]
		if user == nil || friend == nil {
			return gorm.ErrRecordNotFound
		}

		if err := fn(user, friend); err != nil {
			return err
		}
		for _, g := range []*model.FriendGraph{user, friend} {
			err := tx.Model(&model.FriendGraph{}).Where("user_id = ?", g.UserID).Updates(map[string]interface{}{
				"friends":    g.Friends,
				"incoming":   g.Incoming,
				"outgoing":   g.Outgoing,
				"updated_at": now,
			}).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
