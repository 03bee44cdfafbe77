package request

// CreateDepositRequest 创建充值单请求参数
type CreateDepositRequest struct {
	UserID int64 `json:"user_id" binding:"required"`     // bot 侧用户标识
	Amount int64 `json:"amount" binding:"required,gt=0"` // 最小单位
}

// CancelDepositRequest 取消充值单请求参数
type CancelDepositRequest struct {
	DepositID uint64 `json:"deposit_id" binding:"required"`
}

// UpsertUserRequest 用户注册请求参数
// referrer_id 只在首次注册时生效
type UpsertUserRequest struct {
	UserID     int64  `json:"user_id" binding:"required"`
	ReferrerID *int64 `json:"referrer_id"`
}
