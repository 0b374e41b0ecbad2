// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"
	oauthgoogle "golang.org/x/oauth2/google"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/sec"
)

// OAuthCredentials carries one provider's client registration.
type OAuthCredentials struct {
	ClientID     string
	ClientSecret string
}

// OAuthManager drives the authorization-code flow for the social providers.
//
// # Scope
//
// The manager only proves "this browser controls that external account" and
// hands back the provider-scoped account id. Whether that identity maps to a
// portal user is the [Service]'s business; the manager never touches user
// storage.
type OAuthManager struct {
	states  StateRepository
	configs map[Provider]*oauth2.Config
}

// NewOAuthManager wires the provider configs from client credentials.
// redirectBase is the externally reachable URL prefix for the callbacks,
// e.g. "https://atrium.gg/api/v1/auth/oauth".
func NewOAuthManager(states StateRepository, redirectBase string, google, github OAuthCredentials) *OAuthManager {
	return &OAuthManager{
		states: states,
		configs: map[Provider]*oauth2.Config{
			ProviderGoogle: {
				ClientID:     google.ClientID,
				ClientSecret: google.ClientSecret,
				Endpoint:     oauthgoogle.Endpoint,
				RedirectURL:  redirectBase + "/google/callback",
				Scopes:       []string{"openid"},
			},
			ProviderGitHub: {
				ClientID:     github.ClientID,
				ClientSecret: github.ClientSecret,
				Endpoint:     oauthgithub.Endpoint,
				RedirectURL:  redirectBase + "/github/callback",
				Scopes:       []string{"read:user"},
			},
		},
	}
}

// Supports reports whether the provider has an OAuth flow.
func (manager *OAuthManager) Supports(provider Provider) bool {
	_, ok := manager.configs[provider]
	return ok
}

// AuthURL issues a fresh state token and builds the provider redirect URL.
func (manager *OAuthManager) AuthURL(ctx context.Context, provider Provider) (string, error) {
	config, ok := manager.configs[provider]
	if !ok {
		return "", apperr.ValidationError("Unsupported OAuth provider")
	}

	state, err := sec.GenerateSecureToken(OAuthStateLength)
	if err != nil {
		return "", fmt.Errorf("oauth_state_generation_failed: %w", err)
	}

	if err := manager.states.SetOAuthState(ctx, state, provider, OAuthStateTTL); err != nil {
		return "", err
	}

	return config.AuthCodeURL(state), nil
}

// Exchange validates the callback state, trades the code for a token, and
// fetches the provider-scoped account id.
//
// # Returns
//   - [apperr.Unauthorized] for unknown, expired, or cross-provider states.
//   - [apperr.Upstream] when the provider rejects the exchange or the
//     identity lookup fails.
func (manager *OAuthManager) Exchange(ctx context.Context, provider Provider, state, code string) (string, error) {
	config, ok := manager.configs[provider]
	if !ok {
		return "", apperr.ValidationError("Unsupported OAuth provider")
	}

	// ── 1. State Validation (single use) ──────────────────────────────────

	issuedFor, err := manager.states.ConsumeOAuthState(ctx, state)
	if err != nil || issuedFor != provider {
		return "", apperr.Unauthorized("Invalid or expired OAuth state")
	}

	// ── 2. Code Exchange ──────────────────────────────────────────────────

	token, err := config.Exchange(ctx, code)
	if err != nil {
		return "", apperr.Upstream(string(provider), err)
	}

	// ── 3. Subject Lookup ─────────────────────────────────────────────────

	accountID, err := manager.fetchAccountID(ctx, provider, config, token)
	if err != nil {
		return "", apperr.Upstream(string(provider), err)
	}

	return accountID, nil
}

// fetchAccountID resolves the provider's stable account identifier for the
// granted token. Google exposes the OIDC subject; GitHub the numeric user id.
func (manager *OAuthManager) fetchAccountID(ctx context.Context, provider Provider, config *oauth2.Config, token *oauth2.Token) (string, error) {
	client := config.Client(ctx, token)

	switch provider {
	case ProviderGoogle:
		payload := struct {
			Sub string `json:"sub"`
		}{}
		if err := fetchJSON(ctx, client, "https://www.googleapis.com/oauth2/v3/userinfo", &payload); err != nil {
			return "", err
		}
		if payload.Sub == "" {
			return "", fmt.Errorf("oauth_google_empty_subject")
		}
		return payload.Sub, nil

	case ProviderGitHub:
		payload := struct {
			ID int64 `json:"id"`
		}{}
		if err := fetchJSON(ctx, client, "https://api.github.com/user", &payload); err != nil {
			return "", err
		}
		if payload.ID == 0 {
			return "", fmt.Errorf("oauth_github_empty_subject")
		}
		return strconv.FormatInt(payload.ID, 10), nil

	default:
		return "", fmt.Errorf("oauth_unsupported_provider: %s", provider)
	}
}

func fetchJSON(ctx context.Context, client *http.Client, url string, target any) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	request.Header.Set("Accept", "application/json")

	response, err := client.Do(request)
	if err != nil {
		return fmt.Errorf("oauth_userinfo_request_failed: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("oauth_userinfo_status_%d", response.StatusCode)
	}

	return json.NewDecoder(response.Body).Decode(target)
}
