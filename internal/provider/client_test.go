package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClient_TransferToMainAccount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/accounts/acc-1/transfers", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "main-acc", body["destination"])
		assert.Equal(t, float64(1350), body["amount"])

		_, _ = w.Write([]byte(`{"success":true,"transactionId":"tx-fee"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "key", "main-acc", time.Second)
	res, err := c.TransferToMainAccount(context.Background(), "acc-1", 1350)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "tx-fee", res.TransactionID)
}

func TestHTTPClient_Cashout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acc-1/cashouts", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+254700000000", body["phoneNumber"])
		assert.Equal(t, "mpesa", body["provider"])
		_, _ = w.Write([]byte(`{"success":false,"transactionId":"","message":"insufficient funds"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "main", time.Second)
	res, err := c.Cashout(context.Background(), 43650, "acc-1", "+254700000000", "mpesa")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "insufficient funds", res.Message)
}

func TestHTTPClient_SettledAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/accounts/acc-1/transactions/ref-1":
			_, _ = w.Write([]byte(`{"reference":"ref-1","status":"settled","settledAmount":50000}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "main", time.Second)
	amount, err := c.SettledAmount(context.Background(), "acc-1", "ref-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), amount)

	_, err = c.SettledAmount(context.Background(), "acc-1", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPClient_CreatePaymentIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/accounts/acc-1/payment-intents", r.URL.Path)
		_, _ = w.Write([]byte(`{"reference":"ref-9","checkoutUrl":"https://pay.example/ref-9"}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "main", time.Second)
	intent, err := c.CreatePaymentIntent(context.Background(), "acc-1", 2500, "donor@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ref-9", intent.Reference)
	assert.Equal(t, "https://pay.example/ref-9", intent.CheckoutURL)
}

func TestHTTPClient_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, "", "main", 20*time.Millisecond)
	_, err := c.TransferToMainAccount(context.Background(), "acc-1", 100)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	assert.True(t, IsRetryable(err))
}

func TestHTTPClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    string
		retryable bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, header: "3", retryable: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.header != "" {
					w.Header().Set("Retry-After", tt.header)
				}
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewHTTPClient(srv.URL, "", "main", time.Second)
			_, err := c.Cashout(context.Background(), 100, "acc", "+1", "p")
			require.Error(t, err)
			assert.Equal(t, tt.retryable, IsRetryable(err))

			var rl RateLimitError
			if errors.As(err, &rl) {
				assert.Equal(t, 3*time.Second, rl.RetryAfter)
			}
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 5*time.Second, parseRetryAfter(""))
	assert.Equal(t, 10*time.Second, parseRetryAfter("10"))
	assert.Equal(t, 5*time.Second, parseRetryAfter("garbage"))
}
