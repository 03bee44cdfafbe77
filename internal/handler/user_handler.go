package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"payment-core/internal/handler/request"
	"payment-core/internal/handler/response"
	"payment-core/internal/service/user"
	"payment-core/pkg/errno"
	"payment-core/pkg/validator"
)

type UserHandler struct {
	users    *user.Service
	decimals int32
}

func NewUserHandler(users *user.Service, decimals int32) *UserHandler {
	return &UserHandler{users: users, decimals: decimals}
}

// Upsert 注册用户
// @Summary 注册用户
// @Description bot 在 /start 时调用；幂等，邀请关系只在首次注册时写入
// @Tags User
// @Accept json
// @Produce json
// @Param request body request.UpsertUserRequest true "User Request"
// @Success 200 {object} response.Response
// @Router /api/v1/user [post]
func (h *UserHandler) Upsert(c *gin.Context) {
	var req request.UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errno.ErrBind.WithMessage(validator.GetErrorMsg(err)))
		return
	}

	u, err := h.users.Upsert(c.Request.Context(), req.UserID, req.ReferrerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, u)
}

// Balance 查询用户余额
// @Summary 查询用户余额
// @Tags User
// @Produce json
// @Param user_id query int true "User ID"
// @Success 200 {object} response.Response
// @Router /api/v1/user/balance [get]
func (h *UserHandler) Balance(c *gin.Context) {
	id, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		response.Error(c, errno.ErrBind)
		return
	}

	u, uerr := h.users.Get(c.Request.Context(), id)
	if uerr != nil {
		response.Error(c, uerr)
		return
	}

	response.Success(c, gin.H{
		"balance":               u.Balance,
		"bonus_balance":         u.BonusBalance,
		"balance_display":       decimal.New(u.Balance, -h.decimals).String(),
		"bonus_balance_display": decimal.New(u.BonusBalance, -h.decimals).String(),
	})
}
