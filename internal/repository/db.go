package repository

import (
	"fmt"
	"time"

	"github.com/user/cinecircle/internal/backend"
	"github.com/user/cinecircle/internal/model"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB 初始化数据库连接并迁移表结构
func InitDB(databaseURL string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("无法连接数据库: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("获取连接池失败: %w", err)
	}

	// 测试连接
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("数据库 ping 失败: %w", err)
	}

	// 设置连接池
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate 自动迁移全部表
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&model.User{},
		&model.PasswordReset{},
		&model.UserProfile{},
		&model.MovieListEntry{},
		&model.FriendGraph{},
		&model.Recommendation{},
	)
	if err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}
	return nil
}

// Repositories 仓库集合
type Repositories struct {
	DB             *gorm.DB
	User           *UserRepository
	Reset          *ResetRepository
	Profile        *ProfileRepository
	UserMovie      *UserMovieRepository
	Friend         *FriendRepository
	Recommendation *RecommendationRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		DB:             db,
		User:           NewUserRepository(db),
		Reset:          NewResetRepository(db),
		Profile:        NewProfileRepository(db),
		UserMovie:      NewUserMovieRepository(db),
		Friend:         NewFriendRepository(db),
		Recommendation: NewRecommendationRepository(db),
	}
}

// Stores 以数据库仓库组装后端能力，文件存储由调用方提供
func (r *Repositories) Stores(files backend.FileStore) backend.Stores {
	return backend.Stores{
		Users:           r.User,
		Resets:          r.Reset,
		Profiles:        r.Profile,
		Lists:           r.UserMovie,
		Friends:         r.Friend,
		Recommendations: r.Recommendation,
		Files:           files,
	}
}
