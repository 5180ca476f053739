package service

import (
	"context"
	"time"

	"github.com/user/cinecircle/internal/backend"
	"go.uber.org/zap"
)

// RecommendationRetention 已回应推荐的保留时长
const RecommendationRetention = 90 * 24 * time.Hour

// CleanupService 清理服务
type CleanupService struct {
	resets backend.ResetStore
	recs   backend.RecommendationStore
	log    *zap.Logger
	now    func() time.Time
}

// NewCleanupService 创建清理服务
func NewCleanupService(stores backend.Stores, logger *zap.Logger) *CleanupService {
	return &CleanupService{
		resets: stores.Resets,
		recs:   stores.Recommendations,
		log:    logger.Named("cleanup"),
		now:    time.Now,
	}
}

// Start 启动定时清理任务，ctx 取消后退出
func (s *CleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(24 * time.Hour)

	go func() {
		defer ticker.Stop()
		// 启动时先运行一次
		s.RunOnce(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce 执行一轮清理
func (s *CleanupService) RunOnce(ctx context.Context) {
	s.log.Info("开始清理过期数据...")
	now := s.now()

	// 1. 过期的密码重置令牌
	affected, err := s.resets.DeleteExpiredResets(ctx, now)
	if err != nil {
		s.log.Warn("清理重置令牌失败", zap.Error(err))
	} else if affected > 0 {
		s.log.Info("已清理过期重置令牌", zap.Int64("count", affected))
	}

	// 2. 回应超过 90 天的推荐
	cleaned, err := s.recs.DeleteRespondedBefore(ctx, now.Add(-RecommendationRetention))
	if err != nil {
		s.log.Warn("清理旧推荐失败", zap.Error(err))
	} else if cleaned > 0 {
		s.log.Info("已清理旧推荐", zap.Int64("count", cleaned))
	}
}
