package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/httpclient"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNotifier(t *testing.T, url string) *GatewayNotifier {
	t.Helper()
	client := httpclient.New(httpclient.Config{Timeout: time.Second, MaxConnsPerHost: 2})
	cb := httpclient.NewCircuitBreakerClient(client, httpclient.DefaultCircuitBreakerConfig("notify-"+t.Name()), quietLogger())
	return NewGatewayNotifier(cb, url, quietLogger())
}

func TestGatewayNotifier_SendsMessage(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := newTestNotifier(t, srv.URL)
	require.NoError(t, n.SendVerificationCode(context.Background(), "+905551112233", "123456"))

	assert.Equal(t, "sms", got.Channel)
	assert.Equal(t, "+905551112233", got.To)
	assert.Equal(t, "verification_code", got.Template)
	assert.Equal(t, "123456", got.Params["code"])
}

func TestGatewayNotifier_ClientErrorIsMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_NUMBER","message":"invalid recipient"}}`))
	}))
	defer srv.Close()

	err := newTestNotifier(t, srv.URL).SendVerificationCode(context.Background(), "+1", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestGatewayNotifier_ServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	err := newTestNotifier(t, srv.URL).SendVerificationCode(context.Background(), "+905551112233", "123456")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, apperrors.HTTPStatus(err))
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, NewLogNotifier(quietLogger()).SendVerificationCode(context.Background(), "+905551112233", "1"))
}

func TestMask(t *testing.T) {
	assert.Equal(t, "*********2233", Mask("+905551112233"))
	assert.Equal(t, "****", Mask("123"))
}
