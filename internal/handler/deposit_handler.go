package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"payment-core/internal/handler/request"
	"payment-core/internal/handler/response"
	"payment-core/internal/model"
	"payment-core/internal/service"
	"payment-core/internal/service/reconciler"
	"payment-core/pkg/errno"
	"payment-core/pkg/logger"
	"payment-core/pkg/validator"
)

// DepositService 充值接口依赖的账本操作，实现见 deposit 包
type DepositService interface {
	Create(ctx context.Context, userID int64, amount int64) (*model.Deposit, error)
	Get(ctx context.Context, id uint64) (*model.Deposit, error)
	Cancel(ctx context.Context, id uint64) (*model.Deposit, error)
}

// DepositView API 返回的充值单视图
// amount_display 为人类可读的代币数量 (按合约精度换算)
type DepositView struct {
	ID            uint64     `json:"id"`
	Reference     string     `json:"reference"`
	UserID        int64      `json:"user_id"`
	WalletAddress string     `json:"wallet_address"`
	Amount        int64      `json:"amount"`
	AmountDisplay string     `json:"amount_display"`
	Status        string     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	ExpiresAt     time.Time  `json:"expires_at"`
	ConfirmedAt   *time.Time `json:"confirmed_at,omitempty"`
}

type DepositHandler struct {
	deposits   DepositService
	supervisor *reconciler.Supervisor
	notifier   service.Notifier // 可为 nil
	decimals   int32
}

func NewDepositHandler(deposits DepositService, supervisor *reconciler.Supervisor, notifier service.Notifier, decimals int32) *DepositHandler {
	return &DepositHandler{
		deposits:   deposits,
		supervisor: supervisor,
		notifier:   notifier,
		decimals:   decimals,
	}
}

func (h *DepositHandler) view(d *model.Deposit) DepositView {
	return DepositView{
		ID:            d.ID,
		Reference:     d.Reference,
		UserID:        d.UserID,
		WalletAddress: d.WalletAddress,
		Amount:        d.Amount,
		AmountDisplay: decimal.New(d.Amount, -h.decimals).String(),
		Status:        d.Status,
		CreatedAt:     d.CreatedAt,
		ExpiresAt:     d.ExpiresAt,
		ConfirmedAt:   d.ConfirmedAt,
	}
}

// Create 创建充值单
// @Summary 创建充值单
// @Description 分配收款钱包并开始对账；已有 pending 单时返回 409 和已存在的单据
// @Tags Deposit
// @Accept json
// @Produce json
// @Param request body request.CreateDepositRequest true "Deposit Request"
// @Success 201 {object} response.Response
// @Router /api/v1/deposit [post]
func (h *DepositHandler) Create(c *gin.Context) {
	var req request.CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	d, err := h.deposits.Create(c.Request.Context(), req.UserID, req.Amount)
	if err != nil {
		// 409 带回已存在的 pending 单，bot 直接复用
		if err == errno.ErrDepositPendingExists && d != nil {
			response.ErrorWithData(c, err, h.view(d))
			return
		}
		response.Error(c, err)
		return
	}

	h.supervisor.Watch(d.ID)

	response.Created(c, h.view(d))
}

// Status 查询充值单状态
// @Summary 查询充值单状态
// @Tags Deposit
// @Produce json
// @Param deposit_id query int true "Deposit ID"
// @Success 200 {object} response.Response
// @Router /api/v1/deposit/status [get]
func (h *DepositHandler) Status(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("deposit_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	d, derr := h.deposits.Get(c.Request.Context(), id)
	if derr != nil {
		response.Error(c, derr)
		return
	}

	response.Success(c, gin.H{"status": d.Status})
}

// Detail 查询充值单详情
// @Summary 查询充值单详情
// @Tags Deposit
// @Produce json
// @Param deposit_id query int true "Deposit ID"
// @Success 200 {object} response.Response
// @Router /api/v1/deposit/detail [get]
func (h *DepositHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseUint(c.Query("deposit_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	d, derr := h.deposits.Get(c.Request.Context(), id)
	if derr != nil {
		response.Error(c, derr)
		return
	}

	response.Success(c, h.view(d))
}

// Cancel 取消充值单
// @Summary 取消充值单
// @Description 只有 pending 状态可取消
// @Tags Deposit
// @Accept json
// @Produce json
// @Param request body request.CancelDepositRequest true "Cancel Request"
// @Success 200 {object} response.Response
// @Router /api/v1/deposit/cancel [post]
func (h *DepositHandler) Cancel(c *gin.Context) {
	var req request.CancelDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	d, err := h.deposits.Cancel(c.Request.Context(), req.DepositID)
	if err != nil {
		response.Error(c, err)
		return
	}

	if h.notifier != nil {
		// 通知失败不影响取消结果，留日志排查
		if nerr := h.notifier.NotifyDepositResolved(c.Request.Context(), d); nerr != nil {
			logger.Error("enqueue cancel notify failed", zap.Uint64("deposit_id", d.ID), zap.Error(nerr))
		}
	}

	response.Success(c, h.view(d))
}
