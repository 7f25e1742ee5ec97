package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlejandroAndrade98/embipos/internal/domain"
	apperrors "github.com/AlejandroAndrade98/embipos/pkg/errors"
	"github.com/AlejandroAndrade98/embipos/pkg/httpclient"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastHTTPConfig() httpclient.Config {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 2 * time.Second
	cfg.RetryWaitMin = time.Millisecond
	cfg.RetryWaitMax = 5 * time.Millisecond
	return cfg
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cb := httpclient.NewCircuitBreakerClient(
		httpclient.New(fastHTTPConfig()),
		httpclient.DefaultCircuitBreakerConfig(t.Name()),
		discardLogger(),
	)
	return New(cb, srv.URL, discardLogger())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func saleRequest() domain.SaleRequest {
	c := domain.NewCart()
	c.AddItem(domain.ProductRef{SKU: "TORT-CHOC", Name: "Torta", Price: 85000})
	c.AddItem(domain.ProductRef{SKU: "TORT-CHOC", Name: "Torta", Price: 85000})
	return domain.NewSaleRequest(c, 7, nil, "cash")
}

func TestCreateSale_SendsSingleRequest(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sales", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"userId":7,"cashSessionId":null,"paymentMethod":"cash","items":[{"sku":"TORT-CHOC","qty":2}]}`, string(body))

		writeJSON(w, http.StatusCreated, map[string]any{"saleId": 501})
	})

	id, err := c.CreateSale(context.Background(), "tok", "key-1", saleRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(501), id)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCreateSale_RequiresIdempotencyKey(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})

	_, err := c.CreateSale(context.Background(), "tok", "", saleRequest())
	assert.ErrorIs(t, err, ErrMissingIdempotencyKey)
}

func TestCreateSale_BackendMessagePassedThrough(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "Stock insuficiente para TORT-CHOC"})
	})

	_, err := c.CreateSale(context.Background(), "tok", "key-1", saleRequest())
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusBadRequest, remote.StatusCode)
	assert.Equal(t, "Stock insuficiente para TORT-CHOC", remote.Message)
	assert.Equal(t, http.StatusBadRequest, apperrors.HTTPStatus(err))
}

func TestCreateSale_RetriesWithSameKey(t *testing.T) {
	var calls int32
	keys := make(chan string, 4)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		keys <- r.Header.Get("Idempotency-Key")
		if atomic.AddInt32(&calls, 1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"message": "busy"})
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"saleId": 9})
	})

	id, err := c.CreateSale(context.Background(), "tok", "key-9", saleRequest())
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "key-9", <-keys)
	assert.Equal(t, "key-9", <-keys)
}

func TestCreateSale_ServerErrorIsBadGateway(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": map[string]string{"code": "DB", "message": "database down"}})
	})

	_, err := c.CreateSale(context.Background(), "tok", "key-1", saleRequest())
	require.Error(t, err)

	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, "database down", remote.Message)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
}

func TestCreateSale_UndecodableResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("<html>"))
	})

	_, err := c.CreateSale(context.Background(), "tok", "key-1", saleRequest())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadGateway, apperrors.HTTPStatus(err))
}

func TestLogin_NotRetried(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		writeJSON(w, http.StatusBadGateway, map[string]any{"message": "upstream"})
	})

	_, err := c.Login(context.Background(), "ana@embi.co", "secret")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@embi.co", body["email"])
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "jwt",
			"user":  map[string]any{"id": 4, "email": "ana@embi.co", "name": "Ana", "role": "cashier"},
		})
	})

	res, err := c.Login(context.Background(), "ana@embi.co", "secret")
	require.NoError(t, err)
	assert.Equal(t, "jwt", res.Token)
	assert.Empty(t, res.RefreshToken)
	assert.Equal(t, domain.User{ID: 4, Email: "ana@embi.co", Name: "Ana", Role: "cashier"}, res.User)
}

func TestLogin_WrongPasswordIsUnauthorized(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Credenciales inválidas"})
	})

	_, err := c.Login(context.Background(), "ana@embi.co", "bad")
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, apperrors.HTTPStatus(err))
}

func TestLogoutAndMe(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/logout":
			w.WriteHeader(http.StatusNoContent)
		case "/auth/me":
			writeJSON(w, http.StatusOK, map[string]any{"id": 4, "email": "ana@embi.co", "name": "Ana", "role": "leader"})
		}
	})

	require.NoError(t, c.Logout(context.Background(), "jwt"))

	me, err := c.Me(context.Background(), "jwt")
	require.NoError(t, err)
	assert.Equal(t, "leader", me.Role)
}

func TestCircuitOpen_IsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	httpCfg := fastHTTPConfig()
	httpCfg.MaxRetries = 0
	cbCfg := httpclient.DefaultCircuitBreakerConfig(t.Name())
	cbCfg.MinRequests = 1
	cbCfg.Timeout = time.Minute

	c := New(httpclient.NewCircuitBreakerClient(httpclient.New(httpCfg), cbCfg, discardLogger()), srv.URL, discardLogger())

	_, err := c.GetGoals(context.Background(), "tok")
	require.Error(t, err)

	_, err = c.GetGoals(context.Background(), "tok")
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavail)
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}
