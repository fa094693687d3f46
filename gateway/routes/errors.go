package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"lendvault/native/bank"
	"lendvault/native/common"
	"lendvault/native/lending"
)

// statusFor translates engine errors into HTTP statuses. Business-rule
// rejections are 409s so clients can distinguish "you can't do that right
// now" from malformed input.
func statusFor(err error) int {
	switch {
	case errors.Is(err, lending.ErrPoolNotFound):
		return http.StatusNotFound
	case errors.Is(err, lending.ErrAmountNotPositive),
		errors.Is(err, lending.ErrDepositTooSmall):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrFlowPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, lending.ErrInvalidCaller):
		return http.StatusForbidden
	case errors.Is(err, lending.ErrPriceFeedMissing),
		errors.Is(err, lending.ErrInvalidOraclePrice),
		errors.Is(err, lending.ErrNoFreshQuote):
		return http.StatusBadGateway
	case errors.Is(err, lending.ErrNoOutstandingBorrow),
		errors.Is(err, lending.ErrBorrowerHealthy),
		errors.Is(err, lending.ErrBorrowRateExceedsMax):
		return http.StatusConflict
	}

	var insufficientShares *lending.InsufficientBalanceError
	var borrowExceeds *lending.BorrowExceedsAvailableError
	var shortfall *lending.CollateralShortfallError
	var closeFactor *lending.RepayExceedsCloseFactorError
	var insufficientFunds *bank.InsufficientFundsError
	if errors.As(err, &insufficientShares) ||
		errors.As(err, &borrowExceeds) ||
		errors.As(err, &shortfall) ||
		errors.As(err, &closeFactor) ||
		errors.As(err, &insufficientFunds) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	message := strings.TrimSpace(err.Error())
	if message == "" {
		message = http.StatusText(status)
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err)
}

func writeBadRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
