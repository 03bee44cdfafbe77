package errno

import "net/http"

// Errno defines the error code logic
type Errno struct {
	Code    int
	HTTP    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage returns a copy of the Errno carrying a more specific message
func (e Errno) WithMessage(msg string) Errno {
	e.Message = msg
	return e
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, int, string) {
	if err == nil {
		return OK.Code, OK.HTTP, OK.Message
	}

	switch typed := err.(type) {
	case *Errno:
		return typed.Code, typed.HTTP, typed.Message
	case Errno:
		return typed.Code, typed.HTTP, typed.Message
	default:
		return InternalServerError.Code, InternalServerError.HTTP, err.Error()
	}
}

// Common Errors
var (
	OK                  = Errno{Code: 0, HTTP: http.StatusOK, Message: "Success"}
	InternalServerError = Errno{Code: 10001, HTTP: http.StatusInternalServerError, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, HTTP: http.StatusBadRequest, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, HTTP: http.StatusUnauthorized, Message: "Invalid API key"}
	ErrDatabase         = Errno{Code: 10004, HTTP: http.StatusInternalServerError, Message: "Database error"}
)

// Business Errors (20000+)
var (
	ErrUserNotFound         = Errno{Code: 20101, HTTP: http.StatusNotFound, Message: "User not found"}
	ErrDepositNotFound      = Errno{Code: 20201, HTTP: http.StatusNotFound, Message: "Deposit not found"}
	ErrDepositNotPending    = Errno{Code: 20202, HTTP: http.StatusBadRequest, Message: "Deposit cannot be canceled because it is not pending"}
	ErrDepositInvalidAmount = Errno{Code: 20203, HTTP: http.StatusBadRequest, Message: "Invalid deposit amount"}
	// ErrDepositPendingExists: 同一用户同一时刻只允许一笔 pending 充值
	ErrDepositPendingExists = Errno{Code: 20204, HTTP: http.StatusConflict, Message: "A pending deposit already exists for this user"}
	ErrWalletProvisioning   = Errno{Code: 20301, HTTP: http.StatusInternalServerError, Message: "Wallet provisioning failed"}
	ErrOracleUnavailable    = Errno{Code: 20302, HTTP: http.StatusServiceUnavailable, Message: "Balance oracle unavailable"}
	// ErrSettlementConflict: 结算时发现充值已不在 pending 态 (已被其他路径处理)
	ErrSettlementConflict = Errno{Code: 20303, HTTP: http.StatusConflict, Message: "Deposit already settled or terminated"}
)
