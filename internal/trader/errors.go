package trader

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind 区分交易失败原因。
type ErrorKind string

const (
	KindQuoteUnavailable     ErrorKind = "QUOTE_UNAVAILABLE"
	KindInsufficientFunds    ErrorKind = "INSUFFICIENT_FUNDS"
	KindInsufficientHoldings ErrorKind = "INSUFFICIENT_HOLDINGS"
	KindOracleFailure        ErrorKind = "ORACLE_FAILURE"
	KindInvalidAmount        ErrorKind = "INVALID_AMOUNT"
)

// TradeError 是带类别的交易错误。与同类别的哨兵值满足 errors.Is。
type TradeError struct {
	Kind    ErrorKind
	AssetID string
	Msg     string
}

func (e *TradeError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.AssetID != "" {
		return fmt.Sprintf("%s: %s", strings.ToLower(string(e.Kind)), e.AssetID)
	}
	return strings.ToLower(string(e.Kind))
}

func (e *TradeError) Is(target error) bool {
	var t *TradeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrQuoteUnavailable     = &TradeError{Kind: KindQuoteUnavailable}
	ErrInsufficientFunds    = &TradeError{Kind: KindInsufficientFunds}
	ErrInsufficientHoldings = &TradeError{Kind: KindInsufficientHoldings}
	ErrOracleFailure        = &TradeError{Kind: KindOracleFailure}
	ErrInvalidAmount        = &TradeError{Kind: KindInvalidAmount}
)

// KindOf returns the kind of err, or "" when err is not a TradeError.
func KindOf(err error) ErrorKind {
	var te *TradeError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

func quoteUnavailable(assetID string) error {
	return &TradeError{Kind: KindQuoteUnavailable, AssetID: assetID, Msg: fmt.Sprintf("quote unavailable for %s", assetID)}
}

func insufficientFunds(assetID string) error {
	return &TradeError{Kind: KindInsufficientFunds, AssetID: assetID, Msg: "Insufficient USD Balance"}
}

func insufficientHoldings(assetID, symbol string) error {
	return &TradeError{Kind: KindInsufficientHoldings, AssetID: assetID, Msg: fmt.Sprintf("Insufficient %s Balance", strings.ToUpper(symbol))}
}

func invalidAmount(assetID, reason string) error {
	return &TradeError{Kind: KindInvalidAmount, AssetID: assetID, Msg: reason}
}
