package gateway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateOrderSendsMinorUnitsWithBasicAuth(t *testing.T) {
	var got OrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_id", user)
		assert.Equal(t, "key_secret", pass)

		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"order_1","amount":50000,"currency":"INR","receipt":"appointment_1","status":"created"}`))
	}))
	defer srv.Close()

	client := NewRazorpayClient("key_id", "key_secret", srv.URL+"/", time.Second)
	order, err := client.CreateOrder(context.Background(), OrderRequest{
		Amount:   50000,
		Currency: "INR",
		Receipt:  "appointment_1",
		Notes:    map[string]string{"doctorId": "d1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "order_1", order.ID)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, "d1", got.Notes["doctorId"])
}

func TestCreateOrderSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too low"}}`))
	}))
	defer srv.Close()

	client := NewRazorpayClient("k", "s", srv.URL, time.Second)
	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too low")
}

func TestCreateOrderTimesOut(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewRazorpayClient("k", "s", srv.URL, 20*time.Millisecond)
	_, err := client.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	assert.Error(t, err)
}

func TestSignatureRoundTrip(t *testing.T) {
	sig := Sign("secret", "order_1", "pay_1")

	assert.Len(t, sig, 64)
	assert.True(t, VerifySignature("secret", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_2", sig))
	assert.False(t, VerifySignature("other", "order_1", "pay_1", sig))
	assert.False(t, VerifySignature("secret", "order_1", "pay_1", ""))
}
