package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *SnapClient {
	return NewSnapClient("server-key", srv.URL, srv.URL, 2*time.Second)
}

func TestSnapClient_CreateTransaction(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/snap/v1/transactions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "server-key", user)
		assert.Empty(t, pass)

		var body snapTransactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "BK1-ABC", body.TransactionDetails.OrderID)
		assert.Equal(t, int64(2_000_000), body.TransactionDetails.GrossAmount)
		require.NotNil(t, body.Expiry)
		assert.Equal(t, int64(1440), body.Expiry.Duration)

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok-1","redirect_url":"https://pay.example/tok-1"}`))
	}))
	defer srv.Close()

	intent, err := newTestClient(srv).CreateTransaction(context.Background(), IntentRequest{
		OrderID: "BK1-ABC",
		Amount:  decimal.NewFromInt(2_000_000),
		Expiry:  24 * time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", intent.Token)
	assert.Equal(t, "https://pay.example/tok-1", intent.RedirectURL)
}

func TestSnapClient_CreateTransaction_GatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.order_id has already been taken"]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).CreateTransaction(context.Background(), IntentRequest{
		OrderID: "BK1-ABC",
		Amount:  decimal.NewFromInt(10),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already been taken")
}

func TestSnapClient_CreateTransaction_RejectsZeroAmount(t *testing.T) {
	c := NewSnapClient("k", "http://127.0.0.1:0", "http://127.0.0.1:0", time.Second)
	_, err := c.CreateTransaction(context.Background(), IntentRequest{OrderID: "x", Amount: decimal.Zero})
	assert.Error(t, err)
}

func TestSnapClient_GetStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/BK1-ABC/status":
			_, _ = w.Write([]byte(`{"order_id":"BK1-ABC","status_code":"200","transaction_status":"settlement",
				"transaction_id":"tx-9","gross_amount":"2000000.00","payment_type":"bank_transfer",
				"transaction_time":"2024-08-01 10:00:00"}`))
		default:
			_, _ = w.Write([]byte(`{"status_code":"404","status_message":"Transaction doesn't exist."}`))
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	n, err := c.GetStatus(context.Background(), "BK1-ABC")
	require.NoError(t, err)
	assert.Equal(t, "settlement", n.TransactionStatus)
	assert.Equal(t, "tx-9", n.TransactionID)

	_, err = c.GetStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrTransactionNotFound)
}

func TestSnapClient_Expire_NotFoundIsOK(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, http.MethodPost, r.Method)
		if r.URL.Path == "/v2/gone/expire" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"status_code":"407","transaction_status":"expire"}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	assert.NoError(t, c.Expire(context.Background(), "gone"))
	assert.NoError(t, c.Expire(context.Background(), "BK1-ABC"))
	assert.Equal(t, 2, calls)
}

func TestSnapClient_Expire_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	assert.Error(t, newTestClient(srv).Expire(context.Background(), "BK1-ABC"))
}
