package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
)

// 推荐相关错误
var (
	ErrRecommendationNotFound = errors.New("推荐不存在")
	ErrForbidden              = errors.New("无权操作")
	ErrInvalidStatus          = errors.New("无效的推荐状态")
	ErrMessageTooLong         = errors.New("推荐语不能超过 500 个字符")
)

// MaxMessageLength 推荐语长度上限
const MaxMessageLength = 500

// RecommendationService 好友间的电影推荐
type RecommendationService struct {
	recs    backend.RecommendationStore
	lists   backend.MovieListStore
	friends *FriendService
	log     *zap.Logger
	now     func() time.Time
}

// NewRecommendationService 创建推荐服务
func NewRecommendationService(stores backend.Stores, friends *FriendService, logger *zap.Logger) *RecommendationService {
	return &RecommendationService{
		recs:    stores.Recommendations,
		lists:   stores.Lists,
		friends: friends,
		log:     logger.Named("recommendations"),
		now:     time.Now,
	}
}

// Send 向好友推荐电影
func (s *RecommendationService) Send(ctx context.Context, fromID, toID int, movie model.Movie, message string) (*model.Recommendation, error) {
	message = strings.TrimSpace(message)
	if len([]rune(message)) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	ok, err := s.friends.AreFriends(ctx, fromID, toID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	now := s.now()
	rec := &model.Recommendation{
		FromUserID: fromID,
		ToUserID:   toID,
		MovieID:    movie.ID,
		MovieTitle: movie.Title,
		PosterPath: movie.PosterPath,
		Message:    message,
		Status:     model.RecPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.recs.CreateRecommendation(ctx, rec); err != nil {
		return nil, backend.Wrap("sendRecommendation", err)
	}
	s.log.Info("发送推荐",
		zap.Int("from", fromID),
		zap.Int("to", toID),
		zap.String("movie", movie.ID))
	return rec, nil
}

// Received 收到的推荐，status 为空时返回全部
func (s *RecommendationService) Received(ctx context.Context, userID int, status model.RecommendationStatus) ([]*model.Recommendation, error) {
	if status != "" && !status.Valid() {
		return nil, ErrInvalidStatus
	}
	recs, err := s.recs.ListReceived(ctx, userID, status)
	if err != nil {
		return nil, backend.Wrap("listReceived", err)
	}
	return nonNil(recs), nil
}

// Sent 发出的推荐
func (s *RecommendationService) Sent(ctx context.Context, userID int) ([]*model.Recommendation, error) {
	recs, err := s.recs.ListSent(ctx, userID)
	if err != nil {
		return nil, backend.Wrap("listSent", err)
	}
	return nonNil(recs), nil
}

// Respond 接收方回应推荐。added_to_list 会把电影加入接收方的想看
func (s *RecommendationService) Respond(ctx context.Context, userID, recID int, status model.RecommendationStatus, response string) (*model.Recommendation, error) {
	if !status.Valid() || status == model.RecPending {
		return nil, ErrInvalidStatus
	}
	rec, err := s.get(ctx, recID)
	if err != nil {
		return nil, err
	}
	if rec.ToUserID != userID {
		return nil, ErrForbidden
	}

	if status == model.RecAddedToList {
		entry := &model.MovieListEntry{
			UserID:     userID,
			MovieID:    rec.MovieID,
			ListType:   model.ListWatchlist,
			Title:      rec.MovieTitle,
			PosterPath: rec.PosterPath,
		}
		if err := s.lists.UpsertEntry(ctx, entry); err != nil {
			return nil, backend.Wrap("respondRecommendation", err)
		}
	}

	now := s.now()
	fields := map[string]interface{}{
		"status":       status,
		"response":     strings.TrimSpace(response),
		"responded_at": now,
		"updated_at":   now,
	}
	if err := s.recs.UpdateRecommendation(ctx, recID, fields); err != nil {
		return nil, backend.Wrap("respondRecommendation", err)
	}
	return s.get(ctx, recID)
}

// MarkRead 标记为已读，只对未处理的推荐生效
func (s *RecommendationService) MarkRead(ctx context.Context, userID, recID int) error {
	rec, err := s.get(ctx, recID)
	if err != nil {
		return err
	}
	if rec.ToUserID != userID {
		return ErrForbidden
	}
	if rec.Status != model.RecPending {
		return nil
	}
	err = s.recs.UpdateRecommendation(ctx, recID, map[string]interface{}{
		"status":     model.RecRead,
		"updated_at": s.now(),
	})
	return backend.Wrap("markRead", err)
}

// Delete 删除推荐，只有发送方可以删除
func (s *RecommendationService) Delete(ctx context.Context, userID, recID int) error {
	rec, err := s.get(ctx, recID)
	if err != nil {
		return err
	}
	if rec.FromUserID != userID {
		return ErrForbidden
	}
	return backend.Wrap("deleteRecommendation", s.recs.DeleteRecommendation(ctx, recID))
}

func (s *RecommendationService) get(ctx context.Context, recID int) (*model.Recommendation, error) {
	rec, err := s.recs.GetRecommendation(ctx, recID)
	if err != nil {
		return nil, backend.Wrap("getRecommendation", err)
	}
	if rec == nil {
		return nil, ErrRecommendationNotFound
	}
	return rec, nil
}

func nonNil(recs []*model.Recommendation) []*model.Recommendation {
	if recs == nil {
		return []*model.Recommendation{}
	}
	return recs
}
