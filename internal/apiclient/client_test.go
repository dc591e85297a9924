package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/congo-pay/sendbtc/internal/payments"
)

func TestPrepareAndSubmit(t *testing.T) {
	submitted := make(chan http.Header, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/payments":
			var req payments.DraftRequest
			_ = json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"p1","state":"idle","destination":"` + req.Recipient + `"}`))
		case "/api/v1/payments/p1/submit":
			submitted <- r.Header.Clone()
			_, _ = w.Write([]byte(`{"id":"p1","state":"success"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", "tok", time.Second)
	q, err := c.Prepare(context.Background(), payments.DraftRequest{Type: "intraledger", Recipient: "alice", Amount: 10})
	require.NoError(t, err)
	require.Equal(t, "p1", q.ID)
	require.Contains(t, string(q.Raw), `"destination":"alice"`)

	q, err = c.Submit(context.Background(), q.ID, SubmitOptions{PIN: "1234"})
	require.NoError(t, err)
	require.Equal(t, "success", q.State)
	submitHeaders := <-submitted
	require.Equal(t, "1234", submitHeaders.Get("X-Spending-PIN"))
	require.NotEmpty(t, submitHeaders.Get("Idempotency-Key"))
}

func TestAPIErrorCarriesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"submission already consumed"}`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "", time.Second).Status(context.Background(), "p1")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
	require.Equal(t, "submission already consumed", apiErr.Message)
}
