package paystack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/exclusiveng/server/internal/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test_secret", 2*time.Second)
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func TestInitialize_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "a@example.com", body["email"])
		assert.Equal(t, float64(3650), body["amount"])
		assert.Equal(t, "order-1", body["reference"])
		assert.Equal(t, map[string]any{"order_id": "order-1"}, body["metadata"])

		writeJSON(w, http.StatusOK, `{"status":true,"message":"Authorization URL created","data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"order-1"}}`)
	})

	res, err := c.Initialize(context.Background(), payment.InitializeRequest{
		Email:       "a@example.com",
		AmountMinor: 3650,
		Reference:   "order-1",
		CallbackURL: "http://localhost:5173/payment/callback",
		Metadata:    map[string]string{"order_id": "order-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
	assert.Equal(t, "abc", res.AccessCode)
	assert.Equal(t, "order-1", res.Reference)
}

func TestInitialize_UpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"status":false,"message":"Invalid key"}`)
	})

	_, err := c.Initialize(context.Background(), payment.InitializeRequest{Email: "a@example.com", AmountMinor: 100})
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, "initialize", gwErr.Op)
	assert.Equal(t, http.StatusUnauthorized, gwErr.StatusCode)
	assert.Equal(t, "Invalid key", gwErr.Message)
}

func TestVerify_UsesMetadataOrderID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/ps_ref_1", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"status":true,"message":"Verification successful","data":{"status":"success","reference":"ps_ref_1","amount":3650,"currency":"NGN","paid_at":"2026-03-01T10:00:00.000Z","metadata":{"order_id":"order-9"}}}`)
	})

	res, err := c.Verify(context.Background(), "ps_ref_1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "order-9", res.OrderID)
	assert.Equal(t, int64(3650), res.AmountMinor)
	assert.Equal(t, "NGN", res.Currency)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC), res.PaidAt.UTC())
}

func TestVerify_FallsBackToReference(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// metadataが空文字のケース
		writeJSON(w, http.StatusOK, `{"status":true,"message":"ok","data":{"status":"abandoned","reference":"order-2","amount":100,"currency":"NGN","paid_at":null,"metadata":""}}`)
	})

	res, err := c.Verify(context.Background(), "order-2")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "abandoned", res.Status)
	assert.Equal(t, "order-2", res.OrderID)
	assert.True(t, res.PaidAt.IsZero())
}

func TestVerify_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, `{"status":false,"message":"Transaction reference not found"}`)
	})

	_, err := c.Verify(context.Background(), "missing")
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusBadRequest, gwErr.StatusCode)
	assert.Equal(t, "Transaction reference not found", gwErr.Message)
}

func TestVerify_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, "sk", 50*time.Millisecond)

	_, err := c.Verify(context.Background(), "slow")
	var gwErr *payment.GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Zero(t, gwErr.StatusCode)
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"order-1"}}`)
	sig := Sign("sk_test_secret", body)

	c := NewClient("http://unused", "sk_test_secret", time.Second)
	assert.True(t, c.VerifyWebhookSignature(body, sig))
	assert.False(t, c.VerifyWebhookSignature(body, Sign("other", body)))
	assert.False(t, c.VerifyWebhookSignature([]byte(`{}`), sig))
	assert.False(t, c.VerifyWebhookSignature(body, "not-hex"))
	assert.False(t, c.VerifyWebhookSignature(body, ""))
}
