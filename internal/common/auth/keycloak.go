package auth

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hazard-reporter/internal/common/config"
	"hazard-reporter/internal/common/errors"
	httpclient "hazard-reporter/internal/common/http"
	"hazard-reporter/internal/common/logger"
	"hazard-reporter/internal/storage"
)

// TokenStorageKey is where the signed-in user's tokens are kept between runs.
const TokenStorageKey = "authTokens"

// TokenResponse holds the response from Keycloak's token endpoint.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	RefreshExpiresIn int    `json:"refresh_expires_in"`
	TokenType        string `json:"token_type"`
	RefreshToken     string `json:"refresh_token"`
	Scope            string `json:"scope"`
}

type credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

type newUser struct {
	Username      string       `json:"username"`
	Email         string       `json:"email"`
	Enabled       bool         `json:"enabled"`
	EmailVerified bool         `json:"emailVerified"`
	Credentials   []credential `json:"credentials"`
}

// KeycloakProvider signs users in with the resource-owner password grant
// and creates accounts through the admin API using client credentials.
type KeycloakProvider struct {
	*Broadcaster

	baseURL      string
	realm        string
	clientID     string
	clientSecret string
	http         *httpclient.Client
	tokens       storage.KV
	logger       logger.Logger

	mu          sync.Mutex
	current     *TokenResponse
	adminToken  string
	adminExpiry time.Time
}

func NewKeycloakProvider(cfg config.AuthConfig, tokens storage.KV, log logger.Logger) *KeycloakProvider {
	log = log.WithFields(map[string]interface{}{"component": "auth", "provider": "keycloak"})
	return &KeycloakProvider{
		Broadcaster:  NewBroadcaster(log),
		baseURL:      strings.TrimSuffix(cfg.Keycloak.URL, "/"),
		realm:        cfg.Keycloak.Realm,
		clientID:     cfg.Keycloak.ClientID,
		clientSecret: cfg.Keycloak.ClientSecret,
		http:         httpclient.NewClient(config.GetDuration(cfg.Keycloak.Timeout)),
		tokens:       tokens,
		logger:       log,
	}
}

func (k *KeycloakProvider) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", k.baseURL, k.realm)
}

func (k *KeycloakProvider) clientForm(grant string) url.Values {
	data := url.Values{}
	data.Set("grant_type", grant)
	data.Set("client_id", k.clientID)
	if k.clientSecret != "" {
		data.Set("client_secret", k.clientSecret)
	}
	return data
}

// Restore brings back the user signed in during a previous run by
// refreshing the stored tokens, then publishes the resulting state. When
// the server cannot be reached the stored identity is trusted as is.
func (k *KeycloakProvider) Restore(ctx context.Context) {
	raw, err := k.tokens.Get(ctx, TokenStorageKey)
	if err != nil {
		if !stderrors.Is(err, storage.ErrNotFound) {
			k.logger.Warn("Failed to read stored tokens", map[string]interface{}{"error": err.Error()})
		}
		k.Publish(StateChange{})
		return
	}

	var stored TokenResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.RefreshToken == "" {
		k.logger.Warn("Discarding unreadable stored tokens", nil)
		k.forget(ctx)
		k.Publish(StateChange{})
		return
	}

	form := k.clientForm("refresh_token")
	form.Set("refresh_token", stored.RefreshToken)

	var refreshed TokenResponse
	err = k.http.PostForm(ctx, k.tokenURL(), form, &refreshed)
	switch {
	case err == nil:
		id, idErr := identityFromToken(refreshed.AccessToken)
		if idErr != nil {
			k.logger.Warn("Refreshed token carries no subject", map[string]interface{}{"error": idErr.Error()})
			k.forget(ctx)
			k.Publish(StateChange{})
			return
		}
		k.remember(ctx, &refreshed)
		k.Publish(StateChange{Identity: &id})
	case isRejection(err):
		k.logger.Info("Stored session was rejected by the identity server", nil)
		k.forget(ctx)
		k.Publish(StateChange{})
	default:
		id, idErr := identityFromToken(stored.AccessToken)
		if idErr != nil {
			k.Publish(StateChange{})
			return
		}
		k.logger.Warn("Identity server unreachable, restoring cached identity", map[string]interface{}{
			"error":  err.Error(),
			"userId": id.UserID,
		})
		k.mu.Lock()
		k.current = &stored
		k.mu.Unlock()
		k.Publish(StateChange{Identity: &id})
	}
}

func (k *KeycloakProvider) SignIn(ctx context.Context, email, password string) (Identity, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return Identity{}, err
	}

	form := k.clientForm("password")
	form.Set("username", strings.TrimSpace(email))
	form.Set("password", password)
	form.Set("scope", "openid")

	var tokens TokenResponse
	if err := k.http.PostForm(ctx, k.tokenURL(), form, &tokens); err != nil {
		if isRejection(err) {
			return Identity{}, errors.NewAuthFailedError("Invalid email or password", err)
		}
		return Identity{}, errors.NewAuthProviderUnavailableError(err)
	}

	id, err := identityFromToken(tokens.AccessToken)
	if err != nil {
		return Identity{}, errors.NewAuthFailedError("", err)
	}

	k.remember(ctx, &tokens)
	k.logger.Info("Signed in", map[string]interface{}{"userId": id.UserID})
	k.Publish(StateChange{Identity: &id})
	return id, nil
}

func (k *KeycloakProvider) SignUp(ctx context.Context, email, password string) (Identity, error) {
	if err := ValidateCredentials(email, password); err != nil {
		return Identity{}, err
	}

	admin, err := k.adminAccessToken(ctx)
	if err != nil {
		return Identity{}, errors.NewAuthProviderUnavailableError(err)
	}

	email = strings.TrimSpace(email)
	user := newUser{
		Username:    email,
		Email:       email,
		Enabled:     true,
		Credentials: []credential{{Type: "password", Value: password}},
	}
	usersURL := fmt.Sprintf("%s/admin/realms/%s/users", k.baseURL, k.realm)
	if _, err := k.http.PostJSON(ctx, usersURL, admin, user, nil); err != nil {
		var statusErr *httpclient.StatusError
		if stderrors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict {
			return Identity{}, errors.NewSignUpFailedError("An account with this email already exists", err)
		}
		return Identity{}, errors.NewSignUpFailedError("", err)
	}
	k.logger.Info("Account created", map[string]interface{}{"email": email})

	id, err := k.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, errors.NewSignUpFailedError("Account created but sign in failed", err)
	}
	return id, nil
}

// SignOut drops the local tokens and publishes the signed-out state, then
// revokes the refresh token on the server. A failed revocation is reported
// but does not keep the user signed in locally.
func (k *KeycloakProvider) SignOut(ctx context.Context) error {
	k.mu.Lock()
	current := k.current
	k.mu.Unlock()

	k.forget(ctx)
	k.Publish(StateChange{})

	if current == nil || current.RefreshToken == "" {
		return nil
	}

	form := k.clientForm("")
	form.Del("grant_type")
	form.Set("refresh_token", current.RefreshToken)
	logoutURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/logout", k.baseURL, k.realm)
	if err := k.http.PostForm(ctx, logoutURL, form, nil); err != nil {
		k.logger.Warn("Refresh token revocation failed", map[string]interface{}{"error": err.Error()})
		return errors.NewSignOutFailedError(err)
	}
	return nil
}

// adminAccessToken fetches a client-credentials token and caches it until
// shortly before expiry.
func (k *KeycloakProvider) adminAccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	if k.adminToken != "" && k.adminExpiry.After(time.Now()) {
		token := k.adminToken
		k.mu.Unlock()
		return token, nil
	}
	k.mu.Unlock()

	var tokens TokenResponse
	if err := k.http.PostForm(ctx, k.tokenURL(), k.clientForm("client_credentials"), &tokens); err != nil {
		return "", fmt.Errorf("admin token request: %w", err)
	}

	k.mu.Lock()
	k.adminToken = tokens.AccessToken
	k.adminExpiry = time.Now().Add(time.Duration(tokens.ExpiresIn)*time.Second - 10*time.Second)
	k.mu.Unlock()
	return tokens.AccessToken, nil
}

func (k *KeycloakProvider) remember(ctx context.Context, tokens *TokenResponse) {
	k.mu.Lock()
	k.current = tokens
	k.mu.Unlock()

	raw, err := json.Marshal(tokens)
	if err == nil {
		err = k.tokens.Set(ctx, TokenStorageKey, string(raw))
	}
	if err != nil {
		k.logger.Warn("Failed to store tokens", map[string]interface{}{"error": err.Error()})
	}
}

func (k *KeycloakProvider) forget(ctx context.Context) {
	k.mu.Lock()
	k.current = nil
	k.mu.Unlock()

	if err := k.tokens.Remove(ctx, TokenStorageKey); err != nil {
		k.logger.Warn("Failed to remove stored tokens", map[string]interface{}{"error": err.Error()})
	}
}

// isRejection reports whether the token endpoint refused the grant, as
// opposed to being unreachable.
func isRejection(err error) bool {
	var statusErr *httpclient.StatusError
	if !stderrors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnauthorized
}

// identityFromToken reads the subject out of an access token. The token
// came straight from the token endpoint over TLS, so its signature is not
// checked here.
func identityFromToken(accessToken string) (Identity, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return Identity{}, fmt.Errorf("parse access token: %w", err)
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Identity{}, stderrors.New("access token has no subject")
	}
	email, _ := claims["email"].(string)
	return Identity{UserID: sub, Email: email}, nil
}
