package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"payment-core/internal/model"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
)

// fakeDepositService 可编程的账本桩
type fakeDepositService struct {
	createDeposit *model.Deposit
	createErr     error
	cancelDeposit *model.Deposit
	cancelErr     error
}

func (f *fakeDepositService) Create(context.Context, int64, int64) (*model.Deposit, error) {
	return f.createDeposit, f.createErr
}

func (f *fakeDepositService) Get(context.Context, uint64) (*model.Deposit, error) {
	return nil, errno.ErrDepositNotFound
}

func (f *fakeDepositService) Cancel(context.Context, uint64) (*model.Deposit, error) {
	return f.cancelDeposit, f.cancelErr
}

// failingNotifier 通知入队固定失败
type failingNotifier struct {
	err   error
	calls int
}

func (n *failingNotifier) NotifyDepositResolved(context.Context, *model.Deposit) error {
	n.calls++
	return n.err
}

func newDepositRouter(h *DepositHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/deposit", h.Create)
	r.POST("/deposit/cancel", h.Cancel)
	return r
}

func postJSON(r *gin.Engine, path string, payload gin.H) *httptest.ResponseRecorder {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// 已有 pending 单时 (含并发建单) 必须 409 并带回已存在的单据
func TestCreateConflictReturnsExistingDeposit(t *testing.T) {
	existing := &model.Deposit{
		ID:            187310,
		Reference:     "ref-existing",
		UserID:        7,
		WalletAddress: "0xabc",
		Amount:        10000,
		Status:        model.DepositStatusPending,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(20 * time.Minute),
	}
	svc := &fakeDepositService{createDeposit: existing, createErr: errno.ErrDepositPendingExists}
	r := newDepositRouter(NewDepositHandler(svc, nil, nil, 6))

	w := postJSON(r, "/deposit", gin.H{"user_id": 7, "amount": 10000})
	assert.Equal(t, http.StatusConflict, w.Code)

	var resp struct {
		Code int         `json:"code"`
		Data DepositView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, errno.ErrDepositPendingExists.Code, resp.Code)
	assert.Equal(t, uint64(187310), resp.Data.ID)
	assert.Equal(t, "0xabc", resp.Data.WalletAddress)
	assert.Equal(t, "0.01", resp.Data.AmountDisplay)
}

// 冲突但没拿到已存在的单据 (并发窗口内对方刚好终态) 也还是 409
func TestCreateConflictWithoutBody(t *testing.T) {
	svc := &fakeDepositService{createErr: errno.ErrDepositPendingExists}
	r := newDepositRouter(NewDepositHandler(svc, nil, nil, 6))

	w := postJSON(r, "/deposit", gin.H{"user_id": 7, "amount": 10000})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelLogsNotifyFailure(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	prev := logger.Log
	logger.Log = zap.New(core)
	defer func() { logger.Log = prev }()

	now := time.Now()
	canceled := &model.Deposit{
		ID:            5,
		UserID:        7,
		WalletAddress: "0xabc",
		Amount:        100,
		Status:        model.DepositStatusCanceled,
		CreatedAt:     now,
		ExpiresAt:     now.Add(20 * time.Minute),
	}
	notifier := &failingNotifier{err: errors.New("redis down")}
	r := newDepositRouter(NewDepositHandler(&fakeDepositService{cancelDeposit: canceled}, nil, notifier, 6))

	w := postJSON(r, "/deposit/cancel", gin.H{"deposit_id": 5})

	// 通知失败不影响取消结果，但必须留下日志
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, notifier.calls)
	require.Equal(t, 1, logs.Len())
	assert.Contains(t, logs.All()[0].Message, "notify")
}
