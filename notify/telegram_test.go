package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("tok123", "chat456")
	n.baseURL = srv.URL

	require.NoError(t, n.Send(context.Background(), "Traffic spike detected"))
	assert.Equal(t, "/bottok123/sendMessage", gotPath)
	assert.Equal(t, "chat456", gotBody.ChatID)
	assert.Equal(t, "Traffic spike detected", gotBody.Text)
	assert.Equal(t, "HTML", gotBody.ParseMode)
}

func TestTelegramSend_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	n := NewTelegramNotifier("bad", "chat")
	n.baseURL = srv.URL

	err := n.Send(context.Background(), "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestTelegramSend_Unconfigured(t *testing.T) {
	n := &TelegramNotifier{}
	assert.Error(t, n.Send(context.Background(), "msg"))
}

func TestNoop(t *testing.T) {
	assert.NoError(t, Noop{}.Send(context.Background(), "anything"))
}
