// Copyright (c) 2026 Atrium. All rights reserved.

package account

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/middleware"
	requestutil "github.com/atriumhq/atrium/internal/platform/request"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/validate"
)

// Handler implements the profile HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new account [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// MeRoutes returns the authenticated self-profile endpoints.
//
// # Endpoints
//   - GET   / : Returns the caller's full profile.
//   - PATCH / : Partially updates the caller's profile.
func (handler *Handler) MeRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Get("/", handler.getMe)
	router.Patch("/", handler.updateMe)

	return router
}

// PublicRoutes returns the public profile lookup endpoints.
func (handler *Handler) PublicRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/{username}", handler.getPublicProfile)

	return router
}

// getMe handles GET /api/v1/users/me requests.
func (handler *Handler) getMe(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.GetProfile(request.Context(), userUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// updateProfileRequest is the JSON payload for partial profile updates.
// Pointer fields distinguish "absent" from "set to empty".
type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Bio         *string `json:"bio"`
}

// updateMe handles PATCH /api/v1/users/me requests.
func (handler *Handler) updateMe(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input updateProfileRequest
	if err := json.NewDecoder(request.Body).Decode(&input); err != nil {
		respond.Error(writer, request, validate.ErrInvalidJSON)
		return
	}

	validator := &validate.Validator{}
	if input.DisplayName != nil {
		validator.MaxLen("display_name", *input.DisplayName, 64)
	}
	if input.Bio != nil {
		validator.MaxLen("bio", *input.Bio, 1000)
	}
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.UpdateProfile(request.Context(), userUID, UpdateProfileInput{
		DisplayName: input.DisplayName,
		AvatarURL:   input.AvatarURL,
		Bio:         input.Bio,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}

// getPublicProfile handles GET /api/v1/users/{username} requests.
func (handler *Handler) getPublicProfile(writer http.ResponseWriter, request *http.Request) {
	username := chi.URLParam(request, "username")

	user, err := handler.service.GetPublicProfile(request.Context(), username)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, user)
}
