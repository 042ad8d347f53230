package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rovshanmuradov/token-swap/internal/ledger"
	"github.com/rovshanmuradov/token-swap/internal/program/types"
)

// kindStatus maps program error kinds onto HTTP statuses.
var kindStatus = map[string]int{
	"AlreadyInitialized":   http.StatusConflict,
	"PoolNotInitialized":   http.StatusNotFound,
	"AuthorityMismatch":    http.StatusUnprocessableEntity,
	"AccountMismatch":      http.StatusUnprocessableEntity,
	"InsufficientReserves": http.StatusConflict,
	"SlippageExceeded":     http.StatusConflict,
	"ArithmeticOverflow":   http.StatusUnprocessableEntity,
	"InvalidAmount":        http.StatusBadRequest,
	"FeeTooHigh":           http.StatusBadRequest,
	"InvalidInstruction":   http.StatusBadRequest,
	"MissingSignature":     http.StatusUnauthorized,
	"IdenticalAssets":      http.StatusBadRequest,
}

// statusOf classifies err; the second result is the program error kind.
func statusOf(err error) (int, string) {
	if kind := types.Kind(err); kind != "" {
		if status, ok := kindStatus[kind]; ok {
			return status, kind
		}
		return http.StatusBadRequest, kind
	}
	switch {
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, ""
	case errors.Is(err, ledger.ErrAccountExists):
		return http.StatusConflict, ""
	case errors.Is(err, ledger.ErrOwnerMismatch):
		return http.StatusForbidden, ""
	case errors.Is(err, ledger.ErrMintMismatch), errors.Is(err, ledger.ErrOverflow):
		return http.StatusUnprocessableEntity, ""
	case errors.Is(err, ledger.ErrConflict):
		return http.StatusServiceUnavailable, ""
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ""
	default:
		return http.StatusInternalServerError, ""
	}
}

// JSONErrorHandler returns a custom HTTP error handler that returns JSON responses
// This ensures all errors (including 404s) have consistent JSON format
func JSONErrorHandler() echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		// Don't send response if already committed
		if c.Response().Committed {
			return
		}

		var he *echo.HTTPError
		if errors.As(err, &he) {
			_ = c.JSON(he.Code, ErrorResponse{
				Error: http.StatusText(he.Code),
				Code:  he.Code,
			})
			return
		}

		_ = c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  http.StatusInternalServerError,
		})
	}
}
