package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/storage"
)

func signedToken(t *testing.T, sub, email string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
	}).SignedString([]byte("test-signing-key"))
	require.NoError(t, err)
	return token
}

type fakeKeycloak struct {
	t            *testing.T
	server       *httptest.Server
	logouts      atomic.Int32
	createStatus int
	refreshOK    bool
}

func newFakeKeycloak(t *testing.T) *fakeKeycloak {
	f := &fakeKeycloak{t: t, createStatus: http.StatusCreated, refreshOK: true}
	mux := http.NewServeMux()
	mux.HandleFunc("/realms/hazards/protocol/openid-connect/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "hazard-cli", r.PostForm.Get("client_id"))
		switch r.PostForm.Get("grant_type") {
		case "password":
			if r.PostForm.Get("password") != "secret" {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken:  signedToken(t, "kc-user-1", r.PostForm.Get("username")),
				RefreshToken: "refresh-1",
				ExpiresIn:    300,
			})
		case "refresh_token":
			if !f.refreshOK {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			json.NewEncoder(w).Encode(TokenResponse{
				AccessToken:  signedToken(t, "kc-user-1", "ana@example.com"),
				RefreshToken: "refresh-2",
				ExpiresIn:    300,
			})
		case "client_credentials":
			json.NewEncoder(w).Encode(TokenResponse{AccessToken: "admin-token", ExpiresIn: 60})
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	})
	mux.HandleFunc("/admin/realms/hazards/users", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer admin-token", r.Header.Get("Authorization"))
		var body newUser
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.True(t, body.Enabled)
		require.Len(t, body.Credentials, 1)
		assert.False(t, body.Credentials[0].Temporary)
		w.WriteHeader(f.createStatus)
	})
	mux.HandleFunc("/realms/hazards/protocol/openid-connect/logout", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.NotEmpty(t, r.PostForm.Get("refresh_token"))
		f.logouts.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeKeycloak) provider(kv storage.KV) *KeycloakProvider {
	var cfg config.AuthConfig
	cfg.Keycloak.URL = f.server.URL + "/"
	cfg.Keycloak.Realm = "hazards"
	cfg.Keycloak.ClientID = "hazard-cli"
	cfg.Keycloak.Timeout = 2000
	return NewKeycloakProvider(cfg, kv, logger.NewTestLogger(f.t))
}

func TestKeycloak_SignInAndOut(t *testing.T) {
	ctx := context.Background()
	fake := newFakeKeycloak(t)
	kv := storage.NewMemoryKV()
	p := fake.provider(kv)

	changes, cancel := p.Subscribe()
	defer cancel()

	_, err := p.SignIn(ctx, "ana@example.com", "wrong")
	assert.True(t, errors.HasCode(err, errors.ErrCodeAuthFailed))

	id, err := p.SignIn(ctx, "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "kc-user-1", id.UserID)
	assert.Equal(t, "ana@example.com", id.Email)
	assert.Equal(t, "kc-user-1", (<-changes).Identity.UserID)

	stored, err := kv.Get(ctx, TokenStorageKey)
	require.NoError(t, err)
	assert.Contains(t, stored, "refresh-1")

	require.NoError(t, p.SignOut(ctx))
	assert.False(t, (<-changes).SignedIn())
	assert.Equal(t, int32(1), fake.logouts.Load())
	_, err = kv.Get(ctx, TokenStorageKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestKeycloak_SignUp(t *testing.T) {
	fake := newFakeKeycloak(t)
	p := fake.provider(storage.NewMemoryKV())

	id, err := p.SignUp(context.Background(), "ana@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "kc-user-1", id.UserID)

	fake.createStatus = http.StatusConflict
	_, err = p.SignUp(context.Background(), "ana@example.com", "secret")
	require.True(t, errors.HasCode(err, errors.ErrCodeSignUpFailed))
	se, _ := errors.AsStandardError(err)
	assert.Equal(t, "An account with this email already exists", se.Message)
}

func TestKeycloak_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("nothing stored", func(t *testing.T) {
		p := newFakeKeycloak(t).provider(storage.NewMemoryKV())
		p.Restore(ctx)
		state, known := p.Current()
		assert.True(t, known)
		assert.False(t, state.SignedIn())
	})

	t.Run("refresh accepted", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, TokenStorageKey, `{"refresh_token":"refresh-1"}`))
		p := newFakeKeycloak(t).provider(kv)

		p.Restore(ctx)
		state, _ := p.Current()
		require.True(t, state.SignedIn())
		assert.Equal(t, "kc-user-1", state.Identity.UserID)
		stored, _ := kv.Get(ctx, TokenStorageKey)
		assert.Contains(t, stored, "refresh-2")
	})

	t.Run("refresh rejected", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		require.NoError(t, kv.Set(ctx, TokenStorageKey, `{"refresh_token":"refresh-1"}`))
		fake := newFakeKeycloak(t)
		fake.refreshOK = false
		p := fake.provider(kv)

		p.Restore(ctx)
		state, _ := p.Current()
		assert.False(t, state.SignedIn())
		_, err := kv.Get(ctx, TokenStorageKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("server unreachable keeps cached identity", func(t *testing.T) {
		kv := storage.NewMemoryKV()
		cached, _ := json.Marshal(TokenResponse{
			AccessToken:  signedToken(t, "kc-user-9", "zoe@example.com"),
			RefreshToken: "refresh-9",
		})
		require.NoError(t, kv.Set(ctx, TokenStorageKey, string(cached)))
		fake := newFakeKeycloak(t)
		p := fake.provider(kv)
		fake.server.Close()

		p.Restore(ctx)
		state, _ := p.Current()
		require.True(t, state.SignedIn())
		assert.Equal(t, "kc-user-9", state.Identity.UserID)
	})
}

func TestIdentityFromToken(t *testing.T) {
	id, err := identityFromToken(signedToken(t, "abc", ""))
	require.NoError(t, err)
	assert.Equal(t, "abc", id.UserID)

	_, err = identityFromToken("not-a-jwt")
	assert.Error(t, err)

	_, err = identityFromToken(signedToken(t, "", "x@example.com"))
	assert.Error(t, err)
}
