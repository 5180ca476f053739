package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
)

// RecommendationRepository 好友推荐
type RecommendationRepository struct {
	db *gorm.DB
}

func NewRecommendationRepository(db *gorm.DB) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

func (r *RecommendationRepository) CreateRecommendation(ctx context.Context, rec *model.Recommendation) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *RecommendationRepository) GetRecommendation(ctx context.Context, id int) (*model.Recommendation, error) {
	var rec model.Recommendation
	err := r.db.WithContext(ctx).First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *RecommendationRepository) ListReceived(ctx context.Context, userID int, status model.RecommendationStatus) ([]*model.Recommendation, error) {
	query := r.db.WithContext(ctx).Where("to_user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var recs []*model.Recommendation
	err := query.Order("created_at DESC, id DESC").Find(&recs).Error
	return recs, err
}

func (r *RecommendationRepository) ListSent(ctx context.Context, userID int) ([]*model.Recommendation, error) {
	var recs []*model.Recommendation
	err := r.db.WithContext(ctx).
		Where("from_user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&recs).Error
	return recs, err
}

func (r *RecommendationRepository) UpdateRecommendation(ctx context.Context, id int, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Recommendation{}).Where("id = ?", id).Updates(fields).Error
}

func (r *RecommendationRepository) DeleteRecommendation(ctx context.Context, id int) error {
	return r.db.WithContext(ctx).Delete(&model.Recommendation{}, id).Error
}

// DeleteRespondedBefore 清理早已回应的推荐
func (r *RecommendationRepository) DeleteRespondedBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("responded_at IS NOT NULL AND responded_at < ?", before).
		Delete(&model.Recommendation{})
	return result.RowsAffected, result.Error
}
