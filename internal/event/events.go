package event

// TopicDepositConfirmed 充值确认事件 Topic
const TopicDepositConfirmed = "payment_events_deposit_confirmed"

// DepositConfirmedEvent 充值确认事件
// 由结算事务写入 Outbox，relay 投递，sweeper 消费后发起归集
type DepositConfirmedEvent struct {
	DepositID     uint64 `json:"deposit_id"`
	UserID        int64  `json:"user_id"`
	WalletAddress string `json:"wallet_address"`
	HDPathIndex   int    `json:"hd_path_index"`
	Amount        int64  `json:"amount"` // 最小单位
}
