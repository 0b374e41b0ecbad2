// Copyright (c) 2026 Atrium. All rights reserved.

package auth

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/constants"
	"github.com/atriumhq/atrium/internal/platform/ctxutil"
	"github.com/atriumhq/atrium/internal/platform/middleware"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/sec"
	"github.com/atriumhq/atrium/internal/platform/validate"
)

// CookiePolicy exposes the environment flags that shape cookie attributes.
type CookiePolicy interface {
	IsDevelopment() bool
}

// Handler implements the admin wallet login HTTP endpoints.
//
// # Envelope
//
// Unlike the rest of the API, these endpoints answer with the flat
// {success, wallet} / {success:false, error} shape the admin UI consumes.
type Handler struct {
	service *Service
	policy  CookiePolicy
}

// NewHandler constructs a new admin auth [Handler].
func NewHandler(service *Service, policy CookiePolicy) *Handler {
	return &Handler{service: service, policy: policy}
}

// Routes returns a [chi.Router] with the admin login endpoints.
//
// # Endpoints
//   - POST /challenge : Issues a signed-message challenge for a wallet.
//   - POST /verify    : Validates the signature and opens an admin session.
//   - POST /logout    : Clears the admin session cookie.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/challenge", handler.challenge)
	router.Post("/verify", handler.verify)
	router.Post("/logout", handler.logout)

	return router
}

// challengeRequest is the JSON payload for challenge issuance.
type challengeRequest struct {
	Address string `json:"address"`
}

// challenge handles POST /api/v1/auth/admin/challenge requests.
//
// # Returns
//   - Writes HTTP 200 OK with {nonce, timestamp, expiresAt, message}.
//   - Writes HTTP 400 Bad Request for a malformed wallet address.
func (handler *Handler) challenge(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input challengeRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		handler.fail(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	if !sec.IsWalletAddress(input.Address) {
		handler.fail(writer, request, apperr.ValidationError("Invalid wallet address"))
		return
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	issued, err := handler.service.IssueChallenge(input.Address)
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	// ── 4. Cookie + Presentation Output ───────────────────────────────────

	// Setting the cookie replaces any outstanding challenge for this address.
	handler.setNonceCookie(writer, sec.NormalizeWallet(input.Address), issued.CookieValue)

	respond.JSON(writer, http.StatusOK, issued.Challenge)
}

// verifyRequest is the JSON payload for signature verification.
type verifyRequest struct {
	Address   string `json:"address"`
	Message   string `json:"message"`
	Signature string `json:"signature"`
}

// verify handles POST /api/v1/auth/admin/verify requests.
//
// # Returns
//   - Writes HTTP 200 OK with {success:true, wallet} and the session cookie.
//   - Writes HTTP 400 for malformed input, missing/expired/mismatched challenges.
//   - Writes HTTP 401 when the signature does not prove the address.
//   - Writes HTTP 403 for wallets outside the allow-list.
//   - Writes HTTP 429 with {resetAt} when the attempt budget is exhausted.
func (handler *Handler) verify(writer http.ResponseWriter, request *http.Request) {
	// ── 1. Payload Extraction ─────────────────────────────────────────────

	var input verifyRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		handler.fail(writer, request, validate.ErrInvalidJSON)
		return
	}

	// ── 2. Boundary Validation ────────────────────────────────────────────

	if !sec.IsWalletAddress(input.Address) {
		handler.fail(writer, request, apperr.ValidationError("Invalid wallet address"))
		return
	}

	wallet := sec.NormalizeWallet(input.Address)

	// The nonce cookie is optional at this layer; the service decides how
	// its absence is reported.
	var nonceCookie string
	if cookie, err := request.Cookie(constants.AdminNonceCookiePrefix + wallet); err == nil {
		nonceCookie = cookie.Value
	}

	// ── 3. Application Execution ──────────────────────────────────────────

	session, err := handler.service.Verify(request.Context(), VerifyInput{
		Address:     input.Address,
		Message:     input.Message,
		Signature:   input.Signature,
		NonceCookie: nonceCookie,
		ClientIP:    middleware.RealIP(request),
	})
	if err != nil {
		handler.fail(writer, request, err)
		return
	}

	// ── 4. Cookie + Presentation Output ───────────────────────────────────

	// The challenge is single-use. Drop it regardless of cookie age.
	handler.clearNonceCookie(writer, wallet)
	handler.setSessionCookie(writer, session)

	respond.JSON(writer, http.StatusOK, map[string]any{
		constants.FieldSuccess: true,
		constants.FieldWallet:  session.Wallet,
	})
}

// logout handles POST /api/v1/auth/admin/logout requests.
//
// Sessions are stateless, so logout is purely a cookie clear. Always succeeds.
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AdminSessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})

	respond.JSON(writer, http.StatusOK, map[string]any{
		constants.FieldSuccess: true,
	})
}

// # Cookie Helpers

func (handler *Handler) setNonceCookie(writer http.ResponseWriter, wallet, value string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AdminNonceCookiePrefix + wallet,
		Value:    value,
		Path:     "/",
		MaxAge:   int(constants.AdminNonceTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})
}

func (handler *Handler) clearNonceCookie(writer http.ResponseWriter, wallet string) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AdminNonceCookiePrefix + wallet,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})
}

func (handler *Handler) setSessionCookie(writer http.ResponseWriter, session *Session) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.AdminSessionCookieName,
		Value:    session.Token,
		Path:     "/",
		MaxAge:   int(constants.AdminSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !handler.policy.IsDevelopment(),
	})
}

// fail writes the admin-flavored error envelope {success:false, error, ...}.
//
// The admin UI predates the platform-wide ErrorEnvelope and keys off the
// success flag, so these endpoints keep the flat shape. Status mapping and
// logging mirror [respond.Error].
func (handler *Handler) fail(writer http.ResponseWriter, request *http.Request, err error) {
	appError := apperr.As(err)
	if appError == nil {
		appError = apperr.Internal(err)
	}

	if appError.HTTPStatus >= http.StatusInternalServerError {
		logger := ctxutil.GetLogger(request.Context())
		logger.ErrorContext(request.Context(), "admin_auth_internal_error",
			"error", appError.Message,
			"cause", appError.Cause,
		)
	}

	body := map[string]any{
		constants.FieldSuccess: false,
		constants.FieldError:   appError.Message,
		constants.FieldCode:    appError.Code,
	}
	if appError.ResetAt > 0 {
		body[constants.FieldResetAt] = appError.ResetAt
	}

	respond.JSON(writer, appError.HTTPStatus, body)
}
