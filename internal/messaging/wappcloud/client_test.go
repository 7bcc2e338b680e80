package wappcloud_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barbersync/barbersync/internal/messaging"
	"github.com/barbersync/barbersync/internal/messaging/wappcloud"
)

func newTestClient(serverURL string) *wappcloud.Client {
	return wappcloud.NewClient(wappcloud.ClientConfig{
		BaseURL:         serverURL,
		APIKey:          "test-key",
		DefaultInstance: "barbersync-main",
		CountryCode:     "55",
		HTTPClient:      http.DefaultClient,
	})
}

func TestClient_Send(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/message/sendText/inst-a", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("apikey"))

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "5511912345678", payload["number"])
		assert.Equal(t, "see you at 10am", payload["text"])

		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Send(context.Background(), "inst-a", "(11) 91234-5678", "see you at 10am")
	require.NoError(t, err)
}

func TestClient_SendDefaultInstance(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	require.NoError(t, client.Send(context.Background(), "", "11912345678", "hi"))
	assert.Equal(t, "/message/sendText/barbersync-main", gotPath)
}

func TestClient_SendSessionInvalid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "INSTANCE_NOT_FOUND"})
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Send(context.Background(), "ghost", "11912345678", "hi")
	require.Error(t, err)
	assert.True(t, messaging.IsSessionInvalid(err))

	var sendErr *messaging.SendError
	require.ErrorAs(t, err, &sendErr)
	assert.Equal(t, http.StatusNotFound, sendErr.HTTPStatus)
	assert.Equal(t, "INSTANCE_NOT_FOUND", sendErr.GatewayCode)
}

func TestClient_SendUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Send(context.Background(), "inst-a", "11912345678", "hi")
	assert.True(t, messaging.IsSessionInvalid(err))
}

func TestClient_SendTransientFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Send(context.Background(), "inst-a", "11912345678", "hi")
	require.Error(t, err)
	assert.False(t, messaging.IsSessionInvalid(err))
	assert.False(t, messaging.IsTimeout(err))
}

func TestClient_SendTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := wappcloud.NewClient(wappcloud.ClientConfig{
		BaseURL:         server.URL,
		APIKey:          "test-key",
		DefaultInstance: "barbersync-main",
		CountryCode:     "55",
		HTTPClient:      &http.Client{Timeout: 20 * time.Millisecond},
	})

	err := client.Send(context.Background(), "inst-a", "11912345678", "hi")
	require.Error(t, err)
	assert.True(t, messaging.IsTimeout(err))
}

func TestClient_SendRejectsEmptyRecipient(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no gateway call expected for an unaddressable recipient")
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	err := client.Send(context.Background(), "inst-a", "---", "hi")
	require.Error(t, err)
}
