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

func TestResendMailerSend(t *testing.T) {
	var got resendPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer re_test_key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	m := NewResendMailer("re_test_key", "alerts@priceguard.app")
	m.url = srv.URL

	err := m.Send(context.Background(), "user@example.com", "Test Subject", "<p>hi</p>")
	require.NoError(t, err)
	assert.Equal(t, "alerts@priceguard.app", got.From)
	assert.Equal(t, []string{"user@example.com"}, got.To)
	assert.Equal(t, "Test Subject", got.Subject)
	assert.Equal(t, "<p>hi</p>", got.HTML)
}

func TestResendMailerProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	m := NewResendMailer("re_test_key", "alerts@priceguard.app")
	m.url = srv.URL

	assert.Error(t, m.Send(context.Background(), "user@example.com", "s", "b"))
}

func TestHTTPDirectoryEmailFor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/users/user-1", r.URL.Path)
		assert.Equal(t, "Bearer svc-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"email": "user@example.com"})
	}))
	defer srv.Close()

	d := NewHTTPDirectory(srv.URL, "svc-key")
	email, err := d.EmailFor(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", email)
}

func TestHTTPDirectoryMissingEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{})
	}))
	defer srv.Close()

	d := NewHTTPDirectory(srv.URL, "svc-key")
	_, err := d.EmailFor(context.Background(), "user-1")
	assert.Error(t, err)
}
