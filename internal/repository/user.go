package repository

import (
	"context"
	"errors"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// CreateUser 创建用户
func (r *UserRepository) CreateUser(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

// FindUserByEmail 根据邮箱查找用户
func (r *UserRepository) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// FindUserByID 根据 ID 查找用户
func (r *UserRepository) FindUserByID(ctx context.Context, id int) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// UpdateUser 按列更新
func (r *UserRepository) UpdateUser(ctx context.Context, id int, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).Updates(fields).Error
}

// DeleteUser 在一个事务里删除用户和名下全部数据，并从其他人的好友关系中移除
func (r *UserRepository) DeleteUser(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&model.MovieListEntry{}).Error; err != nil {
			return err
		}
		if err := tx.Where("from_user_id = ? OR to_user_id = ?", id, id).Delete(&model.Recommendation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.PasswordReset{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.UserProfile{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&model.FriendGraph{}).Error; err != nil {
			return err
		}
		err := tx.Model(&model.FriendGraph{}).
			Where("? = ANY(friends) OR ? = ANY(incoming) OR ? = ANY(outgoing)", id, id, id).
			Updates(map[string]interface{}{
				"friends":  gorm.Expr("array_remove(friends, ?::bigint)", id),
				"incoming": gorm.Expr("array_remove(incoming, ?::bigint)", id),
				"outgoing": gorm.Expr("array_remove(outgoing, ?::bigint)", id),
			}).Error
		if err != nil {
			return err
		}
		return tx.Delete(&model.User{}, id).Error
	})
}
