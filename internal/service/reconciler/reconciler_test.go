package reconciler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-core/internal/model"
	"payment-core/internal/service/oracle"
	"payment-core/pkg/errno"
	"payment-core/pkg/monitor"
)

func TestMain(m *testing.M) {
	monitor.InitBusinessMetrics()
	os.Exit(m.Run())
}

// fakeStore 内存账本，只实现对账循环用到的操作
type fakeStore struct {
	mu       sync.Mutex
	deposits map[uint64]*model.Deposit
}

func newFakeStore(deposits ...*model.Deposit) *fakeStore {
	s := &fakeStore{deposits: make(map[uint64]*model.Deposit)}
	for _, d := range deposits {
		s.deposits[d.ID] = d
	}
	return s
}

func (s *fakeStore) Get(_ context.Context, id uint64) (*model.Deposit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return nil, errno.ErrDepositNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *fakeStore) MarkExpired(_ context.Context, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.deposits[id]
	if !ok {
		return errno.ErrDepositNotFound
	}
	if d.Status != model.DepositStatusPending {
		return errno.ErrSettlementConflict
	}
	d.Status = model.DepositStatusExpired
	return nil
}

func (s *fakeStore) ListPendingIDs(_ context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uint64
	for id, d := range s.deposits {
		if d.Status == model.DepositStatusPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (s *fakeStore) status(id uint64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deposits[id].Status
}

// fakeSettler 记录结算调用，模拟一次性终态迁移
type fakeSettler struct {
	mu    sync.Mutex
	store *fakeStore
	calls int
}

func (f *fakeSettler) Settle(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	d, ok := f.store.deposits[id]
	if !ok {
		return errors.New("deposit not found")
	}
	if d.Status != model.DepositStatusPending {
		return errno.ErrSettlementConflict
	}
	d.Status = model.DepositStatusConfirmed
	f.calls++
	return nil
}

func (f *fakeSettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func pendingDeposit(id uint64, wallet string, amount, initial int64, expiresIn time.Duration) *model.Deposit {
	return &model.Deposit{
		ID:             id,
		UserID:         1,
		WalletAddress:  wallet,
		Amount:         amount,
		InitialBalance: initial,
		Status:         model.DepositStatusPending,
		CreatedAt:      time.Now(),
		ExpiresAt:      time.Now().Add(expiresIn),
	}
}

func newTestSupervisor(store *fakeStore, orc *oracle.Mock) (*Supervisor, *fakeSettler) {
	settler := &fakeSettler{store: store}
	return NewSupervisor(orc, settler, store, nil, 5*time.Millisecond), settler
}

func TestWatchSettlesOnExactMatch(t *testing.T) {
	store := newFakeStore(pendingDeposit(187310, "0xabc", 10000, 500, time.Minute))
	orc := oracle.NewMock()
	orc.SetBalance("0xabc", 500+10000)

	sup, settler := newTestSupervisor(store, orc)
	sup.Watch(187310)

	require.Eventually(t, func() bool {
		return store.status(187310) == model.DepositStatusConfirmed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, settler.callCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestWatchMismatchStaysPending(t *testing.T) {
	store := newFakeStore(pendingDeposit(1, "0xabc", 10000, 500, time.Minute))
	orc := oracle.NewMock()
	orc.SetBalance("0xabc", 500+9999) // 少付

	sup, settler := newTestSupervisor(store, orc)
	sup.Watch(1)

	// 多轮轮询后仍然 pending，未触发结算
	require.Eventually(t, func() bool { return orc.Calls() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.DepositStatusPending, store.status(1))
	assert.Equal(t, 0, settler.callCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestExpiryWinsOverMatchingBalance(t *testing.T) {
	// 已过期，且余额恰好匹配: 过期判断在前，必须 expired 而不是 confirmed
	store := newFakeStore(pendingDeposit(2, "0xabc", 10000, 0, -time.Second))
	orc := oracle.NewMock()
	orc.SetBalance("0xabc", 10000)

	sup, settler := newTestSupervisor(store, orc)
	sup.Watch(2)

	require.Eventually(t, func() bool {
		return store.status(2) == model.DepositStatusExpired
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 0, settler.callCount())
	assert.Equal(t, 0, orc.Calls(), "expired deposit should not hit the oracle")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestOracleFailureSkipsIteration(t *testing.T) {
	store := newFakeStore(pendingDeposit(3, "0xdef", 5000, 0, time.Minute))
	orc := oracle.NewMock()
	orc.SetError("0xdef", errors.New("rpc timeout"))

	sup, settler := newTestSupervisor(store, orc)
	sup.Watch(3)

	require.Eventually(t, func() bool { return orc.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, model.DepositStatusPending, store.status(3))

	// oracle 恢复后照常结算
	orc.SetError("0xdef", nil)
	orc.SetBalance("0xdef", 5000)

	require.Eventually(t, func() bool {
		return store.status(3) == model.DepositStatusConfirmed
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, settler.callCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestWatchIsIdempotent(t *testing.T) {
	store := newFakeStore(pendingDeposit(4, "0xabc", 100, 0, time.Minute))
	orc := oracle.NewMock()
	orc.SetBalance("0xabc", 100)

	sup, settler := newTestSupervisor(store, orc)
	sup.Watch(4)
	sup.Watch(4)
	sup.Watch(4)

	require.Eventually(t, func() bool {
		return store.status(4) == model.DepositStatusConfirmed
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, settler.callCount())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestResumeReattachesPendingWatchers(t *testing.T) {
	// d5 未过期、余额已到 → 结算; d6 单据过期时间在过去 → 直接过期 (不重置过期时间)
	d5 := pendingDeposit(5, "0xaaa", 1000, 0, time.Minute)
	d6 := pendingDeposit(6, "0xbbb", 2000, 0, -time.Minute)
	done := pendingDeposit(7, "0xccc", 3000, 0, time.Minute)
	done.Status = model.DepositStatusConfirmed

	store := newFakeStore(d5, d6, done)
	orc := oracle.NewMock()
	orc.SetBalance("0xaaa", 1000)

	sup, settler := newTestSupervisor(store, orc)
	require.NoError(t, sup.Resume(context.Background()))

	require.Eventually(t, func() bool {
		return store.status(5) == model.DepositStatusConfirmed &&
			store.status(6) == model.DepositStatusExpired
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, settler.callCount())
	assert.Equal(t, model.DepositStatusConfirmed, store.status(7))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
}

func TestShutdownCancelsWatchers(t *testing.T) {
	// 永远不到账的单据，watcher 只能靠 Shutdown 退出
	store := newFakeStore(pendingDeposit(8, "0xabc", 100, 0, time.Hour))
	orc := oracle.NewMock()

	sup, _ := newTestSupervisor(store, orc)
	sup.Watch(8)

	require.Eventually(t, func() bool { return orc.Calls() >= 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, sup.Shutdown(ctx))
	assert.Equal(t, model.DepositStatusPending, store.status(8))
}
