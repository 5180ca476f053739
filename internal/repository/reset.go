package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
)

// ResetRepository 密码重置令牌
type ResetRepository struct {
	db *gorm.DB
}

func NewResetRepository(db *gorm.DB) *ResetRepository {
	return &ResetRepository{db: db}
}

func (r *ResetRepository) CreateReset(ctx context.Context, reset *model.PasswordReset) error {
	return r.db.WithContext(ctx).Create(reset).Error
}

func (r *ResetRepository) FindReset(ctx context.Context, tokenHash string) (*model.PasswordReset, error) {
	var reset model.PasswordReset
	err := r.db.WithContext(ctx).Where("token_hash = ?", tokenHash).First(&reset).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &reset, nil
}

func (r *ResetRepository) DeleteResets(ctx context.Context, userID int) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.PasswordReset{}).Error
}

// DeleteExpiredResets 清理过期令牌，返回删除条数
func (r *ResetRepository) DeleteExpiredResets(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at < ?", before).Delete(&model.PasswordReset{})
	return result.RowsAffected, result.Error
}
