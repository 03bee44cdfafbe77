package user

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"payment-core/internal/model"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
)

// Service 用户注册与余额查询
// bot 在 /start 时调用 Upsert 登记用户和邀请关系
type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Upsert 幂等注册
// 邀请关系只在首次注册时写入，之后不可改 (防止事后换邀请人刷返佣)
func (s *Service) Upsert(ctx context.Context, id int64, referrerID *int64) (*model.User, error) {
	// 自己邀请自己不算
	if referrerID != nil && *referrerID == id {
		referrerID = nil
	}

	var u model.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&u, "id = ?", id).Error
		if err == nil {
			return nil // 已存在，referrer 不更新
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		// 邀请人必须已注册，否则丢弃邀请关系
		if referrerID != nil {
			var ref model.User
			if rerr := tx.First(&ref, "id = ?", *referrerID).Error; rerr != nil {
				referrerID = nil
			}
		}

		u = model.User{ID: id, ReferrerID: referrerID}
		return tx.Create(&u).Error
	})
	if err != nil {
		logger.Error("user upsert failed", zap.Int64("user_id", id), zap.Error(err))
		return nil, errno.ErrDatabase
	}

	return &u, nil
}

// Get 查询用户 (余额以最小单位返回)
func (s *Service) Get(ctx context.Context, id int64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, errno.ErrDatabase
	}
	return &u, nil
}
