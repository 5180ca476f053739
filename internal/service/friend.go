package service

import (
	"context"
	"errors"
	"strings"

	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/model"
	"go.uber.org/zap"
)

// 好友相关错误
var (
	ErrUserNotFound   = errors.New("用户不存在")
	ErrSelfFriend     = errors.New("不能添加自己为好友")
	ErrAlreadyFriends = errors.New("已经是好友")
	ErrRequestExists  = errors.New("好友请求已发送")
	ErrNoRequest      = errors.New("没有对应的好友请求")
	ErrNotFriends     = errors.New("不是好友")
)

// FriendService 好友关系
type FriendService struct {
	friends  backend.FriendStore
	profiles backend.ProfileStore
	log      *zap.Logger
}

// NewFriendService 创建好友服务
func NewFriendService(stores backend.Stores, logger *zap.Logger) *FriendService {
	return &FriendService{
		friends:  stores.Friends,
		profiles: stores.Profiles,
		log:      logger.Named("friends"),
	}
}

// update 校验对方存在后，在存储的锁内修改双方关系文档。
// fn 返回的业务错误原样返回，存储错误包装为 BackendError
func (s *FriendService) update(ctx context.Context, op string, userID, friendID int, fn func(user, friend *model.FriendGraph) error) error {
	if userID == friendID {
		return ErrSelfFriend
	}
	profile, err := s.profiles.GetProfile(ctx, friendID)
	if err != nil {
		return backend.Wrap("getProfile", err)
	}
	if profile == nil {
		return ErrUserNotFound
	}

	var opErr error
	err = s.friends.UpdateGraphs(ctx, userID, friendID, func(user, friend *model.FriendGraph) error {
		opErr = fn(user, friend)
		return opErr
	})
	if opErr != nil {
		return opErr
	}
	if err != nil {
		s.log.Warn("保存好友关系失败", zap.String("op", op), zap.Error(err))
		return backend.Wrap(op, err)
	}
	return nil
}

// graph 读取关系文档，不存在时返回空文档
func (s *FriendService) graph(ctx context.Context, userID int) (*model.FriendGraph, error) {
	g, err := s.friends.GetGraph(ctx, userID)
	if err != nil {
		return nil, backend.Wrap("getGraph", err)
	}
	if g == nil {
		return model.NewFriendGraph(userID), nil
	}
	return g, nil
}

// SendRequest 发送好友请求。对方已向自己发过请求时直接成为好友，accepted 为 true
func (s *FriendService) SendRequest(ctx context.Context, userID, friendID int) (accepted bool, err error) {
	err = s.update(ctx, "sendFriendRequest", userID, friendID, func(user, friend *model.FriendGraph) error {
		switch {
		case model.ContainsID(user.Friends, friendID):
			return ErrAlreadyFriends
		case model.ContainsID(user.Outgoing, friendID):
			return ErrRequestExists
		case model.ContainsID(user.Incoming, friendID):
			accepted = true
			connect(user, friend)
			return nil
		}
		user.Outgoing = model.AddID(user.Outgoing, friendID)
		friend.Incoming = model.AddID(friend.Incoming, userID)
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// Accept 接受 friendID 发来的请求
func (s *FriendService) Accept(ctx context.Context, userID, friendID int) error {
	return s.update(ctx, "acceptFriendRequest", userID, friendID, func(user, friend *model.FriendGraph) error {
		if !model.ContainsID(user.Incoming, friendID) {
			return ErrNoRequest
		}
		connect(user, friend)
		return nil
	})
}

func connect(user, friend *model.FriendGraph) {
	user.Friends = model.AddID(user.Friends, friend.UserID)
	user.Incoming = model.RemoveID(user.Incoming, friend.UserID)
	user.Outgoing = model.RemoveID(user.Outgoing, friend.UserID)
	friend.Friends = model.AddID(friend.Friends, user.UserID)
	friend.Outgoing = model.RemoveID(friend.Outgoing, user.UserID)
	friend.Incoming = model.RemoveID(friend.Incoming, user.UserID)
}

// Decline 拒绝 friendID 发来的请求
func (s *FriendService) Decline(ctx context.Context, userID, friendID int) error {
	return s.update(ctx, "declineFriendRequest", userID, friendID, func(user, friend *model.FriendGraph) error {
		if !model.ContainsID(user.Incoming, friendID) {
			return ErrNoRequest
		}
		user.Incoming = model.RemoveID(user.Incoming, friendID)
		friend.Outgoing = model.RemoveID(friend.Outgoing, userID)
		return nil
	})
}

// Revoke 撤回自己发出的请求
func (s *FriendService) Revoke(ctx context.Context, userID, friendID int) error {
	return s.update(ctx, "revokeFriendRequest", userID, friendID, func(user, friend *model.FriendGraph) error {
		if !model.ContainsID(user.Outgoing, friendID) {
			return ErrNoRequest
		}
		user.Outgoing = model.RemoveID(user.Outgoing, friendID)
		friend.Incoming = model.RemoveID(friend.Incoming, userID)
		return nil
	})
}

// Remove 删除好友
func (s *FriendService) Remove(ctx context.Context, userID, friendID int) error {
	return s.update(ctx, "removeFriend", userID, friendID, func(user, friend *model.FriendGraph) error {
		if !model.ContainsID(user.Friends, friendID) {
			return ErrNotFriends
		}
		user.Friends = model.RemoveID(user.Friends, friendID)
		friend.Friends = model.RemoveID(friend.Friends, userID)
		return nil
	})
}

// AreFriends 双方是否为好友
func (s *FriendService) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	g, err := s.graph(ctx, userID)
	if err != nil {
		return false, err
	}
	return model.ContainsID(g.Friends, friendID), nil
}

// Overview 好友、收到和发出的请求
func (s *FriendService) Overview(ctx context.Context, userID int) (*model.FriendsOverview, error) {
	g, err := s.graph(ctx, userID)
	if err != nil {
		return nil, err
	}

	overview := &model.FriendsOverview{}
	for _, part := range []struct {
		ids []int64
		dst *[]*model.UserProfile
	}{
		{g.Friends, &overview.Friends},
		{g.Incoming, &overview.Incoming},
		{g.Outgoing, &overview.Outgoing},
	} {
		profiles, err := s.profiles.ListProfiles(ctx, part.ids)
		if err != nil {
			return nil, backend.Wrap("listProfiles", err)
		}
		if profiles == nil {
			profiles = []*model.UserProfile{}
		}
		*part.dst = profiles
	}
	return overview, nil
}

// Search 按昵称或邮箱搜索公开用户，排除自己
func (s *FriendService) Search(ctx context.Context, userID int, keyword string, limit int) ([]*model.UserProfile, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return []*model.UserProfile{}, nil
	}
	profiles, err := s.profiles.SearchProfiles(ctx, keyword, limit+1)
	if err != nil {
		return nil, backend.Wrap("searchProfiles", err)
	}
	out := make([]*model.UserProfile, 0, len(profiles))
	for _, p := range profiles {
		if p.UserID != userID && len(out) < limit {
			out = append(out, p)
		}
	}
	return out, nil
}
