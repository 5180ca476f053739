package model

import (
	"time"
)

// User 账号模型（由认证服务持有）
type User struct {
	ID           int       `json:"id" db:"id" gorm:"primaryKey"`
	Email        string    `json:"email" db:"email" gorm:"unique"`
	DisplayName  string    `json:"display_name" db:"display_name"`
	PasswordHash string    `json:"-" db:"password_hash"`
	PhotoURL     string    `json:"photo_url" db:"photo_url"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// SessionUser 专门用于 Session 存储的用户信息结构
type SessionUser struct {
	ID          int
	Email       string
	DisplayName string
}

// UserChanges 账号局部修改，nil 字段表示不修改
type UserChanges struct {
	DisplayName *string
	PhotoURL    *string
	Email       *string
	Password    *string
}

// UserProfile 公开资料文档，首次登录时惰性创建
type UserProfile struct {
	UserID      int       `json:"user_id" db:"user_id" gorm:"primaryKey;autoIncrement:false"`
	DisplayName string    `json:"display_name" db:"display_name"`
	Email       string    `json:"email" db:"email"`
	PhotoURL    string    `json:"photo_url" db:"photo_url"`
	Bio         string    `json:"bio" db:"bio"`
	IsPublic    bool      `json:"is_public" db:"is_public"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	LastSeen    time.Time `json:"last_seen" db:"last_seen" gorm:"index"`
}

// PasswordReset 密码重置令牌（只保存哈希）
type PasswordReset struct {
	ID        int       `json:"id" db:"id" gorm:"primaryKey"`
	UserID    int       `json:"user_id" db:"user_id" gorm:"index"`
	TokenHash string    `json:"-" db:"token_hash" gorm:"uniqueIndex"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at" gorm:"index"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewProfile 由账号信息派生公开资料
func NewProfile(u *User, now time.Time) *UserProfile {
	return &UserProfile{
		UserID:      u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhotoURL:    u.PhotoURL,
		IsPublic:    true,
		CreatedAt:   now,
		LastSeen:    now,
	}
}
