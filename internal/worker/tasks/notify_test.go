package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDepositNotifyDelivers(t *testing.T) {
	var got DepositNotifyPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	task, err := NewDepositNotifyTask(187310, 42, "confirmed")
	require.NoError(t, err)

	handler := NewDepositNotifyHandler(srv.URL, srv.Client())
	require.NoError(t, handler(context.Background(), task))

	assert.Equal(t, uint64(187310), got.DepositID)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "confirmed", got.Status)
}

func TestDepositNotifyRetriesOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	task, err := NewDepositNotifyTask(1, 1, "expired")
	require.NoError(t, err)

	handler := NewDepositNotifyHandler(srv.URL, srv.Client())
	err = handler(context.Background(), task)
	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "5xx should be retried")
}

func TestDepositNotifySkipsMalformedPayload(t *testing.T) {
	handler := NewDepositNotifyHandler("http://127.0.0.1:0", nil)
	task := asynq.NewTask(TypeDepositNotify, []byte("{not json"))

	err := handler(context.Background(), task)
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}
