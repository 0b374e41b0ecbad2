// Copyright (c) 2026 Atrium. All rights reserved.

package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/constants"
	"github.com/atriumhq/atrium/internal/platform/middleware"
	requestutil "github.com/atriumhq/atrium/internal/platform/request"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/validate"
)

// CookiePolicy exposes the environment flags that shape cookie attributes.
type CookiePolicy interface {
	IsDevelopment() bool
}

// Handler implements the account and identity HTTP endpoints.
type Handler struct {
	service *Service
	oauth   *OAuthManager
	policy  CookiePolicy
}

// NewHandler constructs a new identity [Handler].
func NewHandler(service *Service, oauth *OAuthManager, policy CookiePolicy) *Handler {
	return &Handler{service: service, oauth: oauth, policy: policy}
}

// Routes returns a [chi.Router] with the public authentication endpoints.
//
// # Endpoints
//   - POST /register              : Creates an account for a proven identity.
//   - POST /login                 : Email credential login.
//   - POST /refresh               : Refresh token rotation.
//   - POST /logout                : Revokes the refresh session.
//   - POST /verify-email          : Consumes an email verification token.
//   - GET  /oauth/{provider}          : Starts an OAuth round-trip.
//   - GET  /oauth/{provider}/callback : Completes it and resolves the identity.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/register", handler.register)
	router.Post("/login", handler.login)
	router.Post("/refresh", handler.refresh)
	router.Post("/logout", handler.logout)
	router.Post("/verify-email", handler.verifyEmail)

	router.Get("/oauth/{provider}", handler.oauthStart)
	router.Get("/oauth/{provider}/callback", handler.oauthCallback)

	return router
}

// IdentityRoutes returns the authenticated identity-management endpoints,
// mounted under the current user's profile.
//
// # Endpoints
//   - GET    /           : Lists linked identities.
//   - POST   /           : Binds an additional identity.
//   - DELETE /{provider} : Unbinds one identity (never the last).
func (handler *Handler) IdentityRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.listIdentities)
	router.Post("/", handler.bindIdentity)
	router.Delete("/{provider}", handler.unbindIdentity)

	return router
}

// registerRequest is the JSON payload expected for account creation.
type registerRequest struct {
	Provider    string `json:"provider"`
	AccountID   string `json:"account_id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password,omitempty"`
}

// register handles POST /api/v1/auth/register requests.
//
// # Returns
//   - Writes HTTP 201 Created with the new User profile.
//   - Writes HTTP 400 Bad Request if validation rules fail.
//   - Writes HTTP 409 Conflict if the identity or username is taken.
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input registerRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	validator := &validate.Validator{}
	validator.Required("provider", input.Provider).
		Required("account_id", input.AccountID).
		Required("username", input.Username).
		MinLen("username", input.Username, 3).
		MaxLen("username", input.Username, 32)

	provider := Provider(input.Provider)
	switch provider {
	case ProviderWallet:
		validator.WalletAddress("account_id", input.AccountID)
	case ProviderEmail:
		validator.Email("account_id", input.AccountID)
		validator.MinLen("password", input.Password, 8)
	}

	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	user, err := handler.service.Register(request.Context(), RegisterInput{
		Provider:    provider,
		AccountID:   input.AccountID,
		Username:    input.Username,
		DisplayName: input.DisplayName,
		Password:    input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	// ── 4. Presentation Output ────────────────────────────────────────────

	respond.Created(writer, user)
}

// loginRequest is the JSON payload expected for email authentication.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// login handles POST /api/v1/auth/login requests.
//
// # Returns
//   - Writes HTTP 200 OK with AccessToken and User profile,
//     plus the httpOnly refresh token cookie.
//   - Writes HTTP 401 Unauthorized for bad credentials.
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	if input.Email == "" || input.Password == "" {
		respond.Error(writer, request, apperr.ValidationError("Email and password are required"))
		return
	}

	session, err := handler.service.LoginWithEmail(request.Context(), LoginInput{
		Email:     input.Email,
		Password:  input.Password,
		UserAgent: request.UserAgent(),
		IPAddress: middleware.RealIP(request),
	})
	if err != nil {
		// HTTP 401 without leaking which part of the credential was wrong.
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

// refresh handles POST /api/v1/auth/refresh requests.
// The refresh token travels in an httpOnly cookie, never in the body.
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	cookie, err := request.Cookie(constants.RefreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		respond.Error(writer, request, apperr.Unauthorized("Refresh token required"))
		return
	}

	session, err := handler.service.RefreshSession(request.Context(), cookie.Value,
		request.UserAgent(), middleware.RealIP(request))
	if err != nil {
		handler.clearRefreshCookie(writer)
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

// logout handles POST /api/v1/auth/logout requests. Idempotent.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	if cookie, err := request.Cookie(constants.RefreshTokenCookieName); err == nil && cookie.Value != "" {
		if err := handler.service.Logout(request.Context(), cookie.Value); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	handler.clearRefreshCookie(writer)
	respond.NoContent(writer)
}

// verifyEmailRequest is the JSON payload for email verification.
type verifyEmailRequest struct {
	Token string `json:"token"`
}

// verifyEmail handles POST /api/v1/auth/verify-email requests.
func (handler *Handler) verifyEmail(writer http.ResponseWriter, request *http.Request) {
	var input verifyEmailRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}
	if input.Token == "" {
		respond.Error(writer, request, apperr.ValidationError("Token is required"))
		return
	}

	if err := handler.service.VerifyEmail(request.Context(), input.Token); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// oauthStart handles GET /api/v1/auth/oauth/{provider} requests.
// Issues a state token and redirects the browser to the provider.
func (handler *Handler) oauthStart(writer http.ResponseWriter, request *http.Request) {
	provider := Provider(chi.URLParam(request, "provider"))

	authURL, err := handler.oauth.AuthURL(request.Context(), provider)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	http.Redirect(writer, request, authURL, http.StatusTemporaryRedirect)
}

// oauthCallback handles GET /api/v1/auth/oauth/{provider}/callback requests.
//
// # Flow
//  1. Validate the single-use state token and exchange the code.
//  2. Resolve the proven identity to a portal account. Resolution only:
//     an unknown identity is answered with 404 and the provider-scoped
//     account id so the client can drive an explicit registration.
//  3. Issue the standard token pair for resolved accounts.
func (handler *Handler) oauthCallback(writer http.ResponseWriter, request *http.Request) {
	provider := Provider(chi.URLParam(request, "provider"))
	query := request.URL.Query()

	accountID, err := handler.oauth.Exchange(request.Context(), provider,
		query.Get("state"), query.Get("code"))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	session, err := handler.service.LoginResolved(request.Context(), provider, accountID,
		request.UserAgent(), middleware.RealIP(request))
	if err != nil {
		if apperr.IsNotFound(err) {
			// Deliberately NOT an account-creation path.
			respond.JSON(writer, http.StatusNotFound, map[string]any{
				constants.FieldError: "not registered",
				"provider":           string(provider),
				"account_id":         accountID,
			})
			return
		}
		respond.Error(writer, request, err)
		return
	}

	handler.writeSession(writer, session)
}

// listIdentities handles GET /api/v1/users/me/identities requests.
func (handler *Handler) listIdentities(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	identities, err := handler.service.ListIdentities(request.Context(), userUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, identities)
}

// bindRequest is the JSON payload for linking an additional identity.
type bindRequest struct {
	Provider  string `json:"provider"`
	AccountID string `json:"account_id"`
}

// bindIdentity handles POST /api/v1/users/me/identities requests.
//
// # Returns
//   - Writes HTTP 201 Created with the new identity link.
//   - Writes HTTP 409 Conflict if the identity is bound elsewhere or the
//     user already holds this provider.
func (handler *Handler) bindIdentity(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input bindRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	validator.Required("provider", input.Provider).Required("account_id", input.AccountID)
	if Provider(input.Provider) == ProviderWallet {
		validator.WalletAddress("account_id", input.AccountID)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	identity, err := handler.service.Bind(request.Context(), userUID,
		Provider(input.Provider), input.AccountID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, identity)
}

// unbindIdentity handles DELETE /api/v1/users/me/identities/{provider}.
//
// # Returns
//   - Writes HTTP 204 No Content on success.
//   - Writes HTTP 409 Conflict when targeting the last linked identity.
func (handler *Handler) unbindIdentity(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	provider := Provider(chi.URLParam(request, "provider"))
	if err := handler.service.Unbind(request.Context(), userUID, provider); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// # Session Transport

// writeSession sets the refresh cookie and writes the access token payload.
func (handler *Handler) writeSession(writer http.ResponseWriter, session *LoginSession) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    session.RefreshToken,
		Path:     constants.RefreshTokenCookiePath,
		Expires:  session.RefreshTokenExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})

	respond.OK(writer, map[string]any{
		"access_token": session.AccessToken,
		"user":         session.User,
	})
}

func (handler *Handler) clearRefreshCookie(writer http.ResponseWriter) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.RefreshTokenCookieName,
		Value:    "",
		Path:     constants.RefreshTokenCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})
}
