// Package paystack はPaystack APIのクライアント。
package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/exclusiveng/server/internal/payment"

	"github.com/go-resty/resty/v2"
)

type Client struct {
	http      *resty.Client
	secretKey string
}

var _ payment.Gateway = (*Client)(nil)

func NewClient(baseURL string, secretKey string, timeout time.Duration) *Client {
	h := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetAuthToken(secretKey).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: h, secretKey: secretKey}
}

// Paystackの共通レスポンス
type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeBody struct {
	Email       string            `json:"email"`
	Amount      int64             `json:"amount"`
	Reference   string            `json:"reference,omitempty"`
	CallbackURL string            `json:"callback_url,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Amount    int64           `json:"amount"`
	Currency  string          `json:"currency"`
	PaidAt    *time.Time      `json:"paid_at"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (c *Client) Initialize(ctx context.Context, req payment.InitializeRequest) (payment.InitializeResult, error) {
	var out envelope[initializeData]
	var errOut envelope[json.RawMessage]

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(initializeBody{
			Email:       req.Email,
			Amount:      req.AmountMinor,
			Reference:   req.Reference,
			CallbackURL: req.CallbackURL,
			Metadata:    req.Metadata,
		}).
		SetResult(&out).
		SetError(&errOut).
		Post("/transaction/initialize")
	if err != nil {
		return payment.InitializeResult{}, &payment.GatewayError{Op: "initialize", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return payment.InitializeResult{}, &payment.GatewayError{Op: "initialize", StatusCode: resp.StatusCode(), Message: upstreamMessage(errOut.Message, resp)}
	}
	if !out.Status {
		return payment.InitializeResult{}, &payment.GatewayError{Op: "initialize", StatusCode: resp.StatusCode(), Message: upstreamMessage(out.Message, resp)}
	}

	return payment.InitializeResult{
		AuthorizationURL: out.Data.AuthorizationURL,
		AccessCode:       out.Data.AccessCode,
		Reference:        out.Data.Reference,
	}, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (payment.VerifyResult, error) {
	var out envelope[verifyData]
	var errOut envelope[json.RawMessage]

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("reference", reference).
		SetResult(&out).
		SetError(&errOut).
		Get("/transaction/verify/{reference}")
	if err != nil {
		return payment.VerifyResult{}, &payment.GatewayError{Op: "verify", Message: err.Error(), Err: err}
	}
	if resp.IsError() {
		return payment.VerifyResult{}, &payment.GatewayError{Op: "verify", StatusCode: resp.StatusCode(), Message: upstreamMessage(errOut.Message, resp)}
	}
	if !out.Status {
		return payment.VerifyResult{}, &payment.GatewayError{Op: "verify", StatusCode: resp.StatusCode(), Message: upstreamMessage(out.Message, resp)}
	}

	d := out.Data
	res := payment.VerifyResult{
		Success:     d.Status == "success",
		Status:      d.Status,
		Reference:   d.Reference,
		OrderID:     metadataOrderID(d.Metadata),
		AmountMinor: d.Amount,
		Currency:    d.Currency,
	}
	// metadata.order_id が無ければ reference を注文IDとみなす
	if res.OrderID == "" {
		res.OrderID = d.Reference
	}
	if d.PaidAt != nil {
		res.PaidAt = *d.PaidAt
	}
	return res, nil
}

// metadataは空文字やnullのこともある
func metadataOrderID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	switch v := m["order_id"].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return ""
}

func upstreamMessage(msg string, resp *resty.Response) string {
	if msg != "" {
		return msg
	}
	if s := strings.TrimSpace(resp.Status()); s != "" {
		return s
	}
	return "unexpected response"
}

// VerifyWebhookSignature は X-Paystack-Signature（生ボディのHMAC-SHA512）を検証する
func (c *Client) VerifyWebhookSignature(body []byte, signature string) bool {
	return VerifySignature(c.secretKey, body, signature)
}

func VerifySignature(secretKey string, body []byte, signature string) bool {
	if secretKey == "" || signature == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), got)
}

// Sign はテストやローカル検証用に署名を作る
func Sign(secretKey string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
