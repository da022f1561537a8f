package usecase

import (
	"context"
	"errors"
	"fmt"

	repo "github.com/exclusiveng/server/internal/repository"
)

var (
	// カートが無い・空
	ErrEmptyCart = errors.New("cart is empty")
	// 決済確定・照会で注文が見つからない
	ErrOrderNotFound = errors.New("order not found")
	// ゲートウェイが成功以外を返した
	ErrPaymentNotSuccessful = errors.New("payment verification failed")
	// 支払額と注文合計が一致しない
	ErrAmountMismatch = errors.New("paid amount does not match order total")
	// PENDING以外（CANCELLEDなど）は決済確定できない
	ErrOrderNotSettleable = errors.New("order cannot be settled in its current status")

	//401
	ErrUnauthorized = errors.New("unauthorized")
)

type InsufficientStockError struct {
	ProductID    string
	ProductTitle string
	Requested    int64
	Available    int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("Product %s is out of stock (Requested: %d, Available: %d)", e.ProductTitle, e.Requested, e.Available)
}

// 削除済み・非公開・存在しない商品
type ProductUnavailableError struct {
	ProductID    string
	ProductTitle string
}

func (e *ProductUnavailableError) Error() string {
	if e.ProductTitle != "" {
		return fmt.Sprintf("Product %s is no longer available", e.ProductTitle)
	}
	return fmt.Sprintf("Product %s is no longer available", e.ProductID)
}

type SettlementErrorKind string

const (
	// 在庫不足・金額不一致など。再試行しても結果は同じ。
	SettlementBusiness SettlementErrorKind = "business"
	// DB・ネットワークなど。Retryableなら再試行で成功しうる。
	SettlementInfrastructure SettlementErrorKind = "infrastructure"
)

type SettlementError struct {
	Kind      SettlementErrorKind
	Retryable bool
	Err       error
}

func (e *SettlementError) Error() string {
	return fmt.Sprintf("settlement %s failure: %v", e.Kind, e.Err)
}

func (e *SettlementError) Unwrap() error { return e.Err }

func isBusinessFailure(err error) bool {
	var stockErr *InsufficientStockError
	var unavailable *ProductUnavailableError
	return errors.Is(err, ErrAmountMismatch) ||
		errors.Is(err, ErrOrderNotSettleable) ||
		errors.As(err, &stockErr) ||
		errors.As(err, &unavailable)
}

// classifySettlementError は決済確定の失敗を分類する。ErrOrderNotFoundはそのまま返す。
func classifySettlementError(err error) error {
	if err == nil || errors.Is(err, ErrOrderNotFound) {
		return err
	}
	var se *SettlementError
	if errors.As(err, &se) {
		return err
	}
	if isBusinessFailure(err) {
		return &SettlementError{Kind: SettlementBusiness, Err: err}
	}
	retryable := errors.Is(err, repo.ErrTransient) || errors.Is(err, context.DeadlineExceeded)
	return &SettlementError{Kind: SettlementInfrastructure, Retryable: retryable, Err: err}
}
