package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_GetJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"nope"}`))
			return
		}
		w.Write([]byte(`{"status":"success","lat":-27.5}`))
	}))
	defer server.Close()

	client := NewClient(time.Second)

	var out struct {
		Status string  `json:"status"`
		Lat    float64 `json:"lat"`
	}
	require.NoError(t, client.GetJSON(context.Background(), server.URL+"/ok", &out))
	assert.Equal(t, "success", out.Status)
	assert.Equal(t, -27.5, out.Lat)

	err := client.GetJSON(context.Background(), server.URL+"/missing", &out)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "nope")
}

func TestClient_PostForm(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "password", r.PostForm.Get("grant_type"))
		w.Write([]byte(`{"access_token":"abc"}`))
	}))
	defer server.Close()

	var out struct {
		AccessToken string `json:"access_token"`
	}
	err := NewClient(time.Second).PostForm(context.Background(), server.URL, url.Values{"grant_type": {"password"}}, &out)
	require.NoError(t, err)
	assert.Equal(t, "abc", out.AccessToken)
}

func TestClient_PostJSONReturnsHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin", r.Header.Get("Authorization"))
		w.Header().Set("Location", "/users/u-42")
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	headers, err := NewClient(time.Second).PostJSON(context.Background(), server.URL, "admin", map[string]string{"a": "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "/users/u-42", headers.Get("Location"))
}

func TestClient_ContextCancel(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := NewClient(5*time.Second).GetJSON(ctx, server.URL, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
