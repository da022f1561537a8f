// Package payment は外部決済ゲートウェイの抽象。
package payment

import (
	"context"
	"fmt"
	"time"
)

type InitializeRequest struct {
	Email       string
	AmountMinor int64 // 最小通貨単位（kobo）
	Reference   string
	CallbackURL string
	Metadata    map[string]string
}

type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type VerifyResult struct {
	Success     bool
	Status      string // ゲートウェイ側の取引ステータス
	Reference   string
	OrderID     string // metadata.order_id、無ければreference
	AmountMinor int64
	Currency    string
	PaidAt      time.Time
}

type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (InitializeResult, error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// GatewayError はゲートウェイ呼び出しの失敗（通信・非2xx・status:false）
type GatewayError struct {
	Op         string // initialize / verify
	StatusCode int    // 通信失敗は0
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("payment gateway %s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("payment gateway %s: %s", e.Op, e.Message)
}

func (e *GatewayError) Unwrap() error { return e.Err }
