// Copyright (c) 2026 Atrium. All rights reserved.

package content

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	"github.com/atriumhq/atrium/internal/platform/middleware"
	requestutil "github.com/atriumhq/atrium/internal/platform/request"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/validate"
	"github.com/atriumhq/atrium/pkg/pagination"
)

// Handler implements the content HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler constructs a new content [Handler].
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the authenticated submission endpoints.
//
// # Endpoints
//   - POST /      : Submits a new post into the moderation queue.
//   - GET  /mine  : Lists the caller's own submissions with their states.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)

	router.Post("/", handler.submit)
	router.Get("/mine", handler.listMine)
	router.Get("/mine/{id}", handler.getMine)

	return router
}

// AdminRoutes returns the moderation endpoints. The caller mounts these
// behind the admin session middleware.
//
// # Endpoints
//   - GET  /pending      : Lists pending submissions, oldest first.
//   - POST /{id}/approve : Publishes a pending submission.
//   - POST /{id}/reject  : Declines a pending submission with a note.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/pending", handler.listPending)
	router.Post("/{id}/approve", handler.approve)
	router.Post("/{id}/reject", handler.reject)

	return router
}

// FeedRoutes returns the public published-content endpoints.
//
// # Endpoints
//   - GET  /           : Paginated published feed, optionally by category.
//   - GET  /{slug}     : Single post lookup; counts a view.
//   - POST /{id}/like  : One like per authenticated user.
func (handler *Handler) FeedRoutes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.feed)
	router.Get("/{slug}", handler.getBySlug)

	router.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth)
		authed.Post("/{id}/like", handler.like)
	})

	return router
}

// submitRequest is the JSON payload for new submissions.
type submitRequest struct {
	Title      string `json:"title"`
	Body       string `json:"body"`
	CategoryID int    `json:"category_id"`
}

// submit handles POST /api/v1/content requests.
func (handler *Handler) submit(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload submitRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	validator := &validate.Validator{}
	validator.Required("title", payload.Title).
		MaxLen("title", payload.Title, MaxTitleLength).
		Required("body", payload.Body).
		MaxLen("body", payload.Body, MaxBodyLength).
		Custom("category_id", payload.CategoryID <= 0, "must be a positive category ID")
	if err := validator.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	submission, err := handler.service.Submit(request.Context(), SubmitInput{
		AuthorUID:  userUID,
		Title:      payload.Title,
		Body:       payload.Body,
		CategoryID: payload.CategoryID,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, submission)
}

// listMine handles GET /api/v1/content/mine requests.
func (handler *Handler) listMine(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)

	submissions, total, err := handler.service.ListMine(request.Context(), userUID, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, submissions, pagination.NewMeta(params.Page, params.Limit, total))
}

// getMine handles GET /api/v1/content/mine/{id} requests.
func (handler *Handler) getMine(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	submission, err := handler.service.GetSubmission(request.Context(), id, userUID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, submission)
}

// listPending handles GET /api/v1/admin/content/pending requests.
func (handler *Handler) listPending(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	submissions, total, err := handler.service.ListPending(request.Context(), params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, submissions, pagination.NewMeta(params.Page, params.Limit, total))
}

// approve handles POST /api/v1/admin/content/{id}/approve requests.
func (handler *Handler) approve(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	published, err := handler.service.Approve(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, published)
}

// rejectRequest is the JSON payload for declining a submission.
type rejectRequest struct {
	Note string `json:"note"`
}

// reject handles POST /api/v1/admin/content/{id}/reject requests.
func (handler *Handler) reject(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload rejectRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Reject(request.Context(), id, payload.Note); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

// feed handles GET /api/v1/feed requests.
func (handler *Handler) feed(writer http.ResponseWriter, request *http.Request) {
	params := pagination.FromRequest(request)

	filter := FeedFilter{}
	if raw := request.URL.Query().Get("category_id"); raw != "" {
		categoryID, err := strconv.Atoi(raw)
		if err != nil || categoryID <= 0 {
			respond.Error(writer, request, apperr.ValidationError("category_id must be a positive integer"))
			return
		}
		filter.CategoryID = categoryID
	}

	posts, total, err := handler.service.Feed(request.Context(), filter, params.Limit, params.Offset())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, posts, pagination.NewMeta(params.Page, params.Limit, total))
}

// getBySlug handles GET /api/v1/feed/{slug} requests.
func (handler *Handler) getBySlug(writer http.ResponseWriter, request *http.Request) {
	slug := requestutil.Param(request, "slug")
	if slug == "" {
		respond.Error(writer, request, apperr.ValidationError("slug is required"))
		return
	}

	published, err := handler.service.GetBySlug(request.Context(), slug)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, published)
}

// like handles POST /api/v1/feed/{id}/like requests.
func (handler *Handler) like(writer http.ResponseWriter, request *http.Request) {
	userUID, err := requestutil.RequiredUserID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Like(request.Context(), id, userUID); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

func pathID(request *http.Request) (int64, error) {
	id, err := strconv.ParseInt(requestutil.Param(request, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError("id must be a positive integer")
	}
	return id, nil
}
