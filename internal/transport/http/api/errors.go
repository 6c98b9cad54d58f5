package apihttp

import (
	"context"
	"errors"
	"net/http"

	"cryptomind/internal/trader"

	"github.com/gin-gonic/gin"
)

// statusFor 把交易错误类别映射为 HTTP 状态码。
func statusFor(err error) int {
	switch {
	case errors.Is(err, trader.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, trader.ErrQuoteUnavailable):
		return http.StatusNotFound
	case errors.Is(err, trader.ErrInsufficientFunds), errors.Is(err, trader.ErrInsufficientHoldings):
		return http.StatusConflict
	case errors.Is(err, trader.ErrOracleFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	body := gin.H{"error": err.Error()}
	if kind := trader.KindOf(err); kind != "" {
		body["kind"] = kind
	}
	c.JSON(status, body)
}
