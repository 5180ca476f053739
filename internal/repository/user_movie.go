package repository

import (
	"context"
	"errors"
	"time"

	"github.com/user/cinecircle/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserMovieRepository struct {
	db *gorm.DB
}

func NewUserMovieRepository(db *gorm.DB) *UserMovieRepository {
	return &UserMovieRepository{db: db}
}

// UpsertEntry 同一用户同一片单里一部电影只有一条
func (r *UserMovieRepository) UpsertEntry(ctx context.Context, e *model.MovieListEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	e.UpdatedAt = time.Now()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "movie_id"}, {Name: "list_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "poster_path", "release_date", "rating", "review", "updated_at"}),
	}).Create(e).Error
}

func (r *UserMovieRepository) RemoveEntry(ctx context.Context, userID int, movieID string, listType model.ListType) error {
	return r.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ? AND list_type = ?", userID, movieID, listType).
		Delete(&model.MovieListEntry{}).Error
}

func (r *UserMovieRepository) ListEntries(ctx context.Context, userID int, listType model.ListType) ([]*model.MovieListEntry, error) {
	var records []*model.MovieListEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND list_type = ?", userID, listType).
		Order("updated_at DESC, id DESC").
		Find(&records).Error
	return records, err
}

func (r *UserMovieRepository) GetEntry(ctx context.Context, userID int, movieID string, listType model.ListType) (*model.MovieListEntry, error) {
	var rec model.MovieListEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND movie_id = ? AND list_type = ?", userID, movieID, listType).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ComputeStats 在数据库里一次性算出统计，Total 按电影去重
func (r *UserMovieRepository) ComputeStats(ctx context.Context, userID int) (*model.UserStats, error) {
	var stats model.UserStats
	err := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) FILTER (WHERE list_type = 'watched') AS watched,
			COUNT(*) FILTER (WHERE list_type = 'favorites') AS favorites,
			COUNT(*) FILTER (WHERE list_type = 'watchlist') AS watchlist,
			COUNT(*) FILTER (WHERE list_type = 'watched' AND review <> '') AS total_reviews,
			COALESCE(AVG(rating) FILTER (WHERE list_type = 'watched' AND rating > 0), 0) AS average_rating,
			COUNT(DISTINCT movie_id) AS total
		FROM user_movies
		WHERE user_id = ?`, userID).Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// ListReviewsByMovie 某部电影的公开短评
func (r *UserMovieRepository) ListReviewsByMovie(ctx context.Context, movieID string, limit int) ([]*model.MovieListEntry, error) {
	var records []*model.MovieListEntry
	err := r.db.WithContext(ctx).Preload("User").
		Where("movie_id = ? AND list_type = ? AND review IS NOT NULL AND review <> ''", movieID, model.ListWatched).
		Order("updated_at DESC").
		Limit(limit).
		Find(&records).Error

	return records, err
}
