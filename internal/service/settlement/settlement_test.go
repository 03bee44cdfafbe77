package settlement

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-core/internal/event"
	"payment-core/internal/model"
	"payment-core/pkg/errno"
)

func TestReferralBonuses(t *testing.T) {
	tests := []struct {
		name   string
		amount int64
		wantL1 int64
		wantL2 int64
	}{
		{"10000 → 1000/300", 10000, 1000, 300},
		{"整数截断", 999, 99, 29},
		{"小额", 10, 1, 0},
		{"1 不足以产生返佣", 1, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l1, l2 := ReferralBonuses(tt.amount)
			assert.Equal(t, tt.wantL1, l1)
			assert.Equal(t, tt.wantL2, l2)
		})
	}
}

// memLedger 内存账本，按 ledger 接口模拟结算事务里的写操作
type memLedger struct {
	deposits map[uint64]*model.Deposit
	users    map[int64]*model.User
	wallets  map[string]*model.Wallet
	events   []interface{}
}

func (m *memLedger) DepositForUpdate(id uint64) (*model.Deposit, error) {
	d, ok := m.deposits[id]
	if !ok {
		return nil, errno.ErrDepositNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memLedger) ConfirmDeposit(id uint64, at time.Time) error {
	d := m.deposits[id]
	d.Status = model.DepositStatusConfirmed
	d.ConfirmedAt = &at
	return nil
}

func (m *memLedger) UserForUpdate(id int64) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, errno.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memLedger) CreditBalance(userID int64, amount int64) error {
	m.users[userID].Balance += amount
	return nil
}

func (m *memLedger) CreditBonus(userID int64, amount int64) error {
	m.users[userID].BonusBalance += amount
	return nil
}

func (m *memLedger) ReleaseWallet(address string) error {
	m.wallets[address].InUse = false
	return nil
}

func (m *memLedger) WalletIndex(address string) (int, error) {
	return m.wallets[address].HDPathIndex, nil
}

func (m *memLedger) AppendEvent(_ string, payload interface{}) error {
	m.events = append(m.events, payload)
	return nil
}

func ref(id int64) *int64 { return &id }

// 邀请链: 7 ← 8 ← 9，充值人 7
func newReferralLedger() *memLedger {
	return &memLedger{
		deposits: map[uint64]*model.Deposit{
			187310: {
				ID:            187310,
				UserID:        7,
				WalletAddress: "0xabc",
				Amount:        10000,
				Status:        model.DepositStatusPending,
				CreatedAt:     time.Now(),
				ExpiresAt:     time.Now().Add(20 * time.Minute),
			},
		},
		users: map[int64]*model.User{
			7: {ID: 7, ReferrerID: ref(8)},
			8: {ID: 8, ReferrerID: ref(9)},
			9: {ID: 9},
		},
		wallets: map[string]*model.Wallet{
			"0xabc": {Address: "0xabc", HDPathIndex: 42, InUse: true},
		},
	}
}

func TestSettleCreditsBalanceAndBonuses(t *testing.T) {
	l := newReferralLedger()

	out, err := settle(l, 187310)
	require.NoError(t, err)

	// 10000 入账，两级返佣 1000/300
	assert.Equal(t, int64(10000), l.users[7].Balance)
	assert.Equal(t, int64(1000), l.users[8].BonusBalance)
	assert.Equal(t, int64(300), l.users[9].BonusBalance)
	assert.Equal(t, int64(1000), out.bonus1)
	assert.Equal(t, int64(300), out.bonus2)

	d := l.deposits[187310]
	assert.Equal(t, model.DepositStatusConfirmed, d.Status)
	require.NotNil(t, d.ConfirmedAt)

	assert.False(t, l.wallets["0xabc"].InUse)

	require.Len(t, l.events, 1)
	evt, ok := l.events[0].(event.DepositConfirmedEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(187310), evt.DepositID)
	assert.Equal(t, int64(7), evt.UserID)
	assert.Equal(t, 42, evt.HDPathIndex)
	assert.Equal(t, int64(10000), evt.Amount)
}

func TestSettleTwiceIsNoOp(t *testing.T) {
	l := newReferralLedger()

	_, err := settle(l, 187310)
	require.NoError(t, err)

	// 重复结算: 冲突错误，余额、返佣和事件都不再变化
	_, err = settle(l, 187310)
	assert.Equal(t, errno.ErrSettlementConflict, err)

	assert.Equal(t, int64(10000), l.users[7].Balance)
	assert.Equal(t, int64(1000), l.users[8].BonusBalance)
	assert.Equal(t, int64(300), l.users[9].BonusBalance)
	assert.Len(t, l.events, 1)
}

func TestSettleWithoutReferrer(t *testing.T) {
	l := newReferralLedger()
	l.deposits[187310].UserID = 9 // 9 没有邀请人

	out, err := settle(l, 187310)
	require.NoError(t, err)

	assert.Equal(t, int64(10000), l.users[9].Balance)
	assert.Zero(t, out.bonus1)
	assert.Zero(t, out.bonus2)
	assert.Zero(t, l.users[8].BonusBalance)
}
