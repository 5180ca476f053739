package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
)

// ProfileRepository 公开资料
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetProfile(ctx context.Context, userID int) (*model.UserProfile, error) {
	var p model.UserProfile
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, p *model.UserProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, userID int, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.UserProfile{}).Where("user_id = ?", userID).Updates(fields).Error
}

// ListProfiles 批量读取，不存在的 ID 直接忽略
func (r *ProfileRepository) ListProfiles(ctx context.Context, userIDs []int64) ([]*model.UserProfile, error) {
	if len(userIDs) == 0 {
		return []*model.UserProfile{}, nil
	}
	var profiles []*model.UserProfile
	err := r.db.WithContext(ctx).Where("user_id IN ?", userIDs).Order("display_name ASC").Find(&profiles).Error
	return profiles, err
}

// SearchProfiles 按昵称或邮箱模糊搜索公开资料
func (r *ProfileRepository) SearchProfiles(ctx context.Context, keyword string, limit int) ([]*model.UserProfile, error) {
	pattern := "%" + escapeLike(keyword) + "%"
	var profiles []*model.UserProfile
	err := r.db.WithContext(ctx).
		Where("is_public = ? AND (display_name ILIKE ? OR email ILIKE ?)", true, pattern, pattern).
		Order("user_id ASC").
		Limit(limit).
		Find(&profiles).Error
	return profiles, err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
