package category

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atriumhq/atrium/internal/platform/apperr"
	requestutil "github.com/atriumhq/atrium/internal/platform/request"
	"github.com/atriumhq/atrium/internal/platform/respond"
	"github.com/atriumhq/atrium/internal/platform/validate"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the public category endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.list)
	router.Get("/{id}", handler.get)
	return router
}

// AdminRoutes returns the category management endpoints. The caller mounts
// these behind the admin session middleware.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", handler.create)
	router.Put("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)
	return router
}

func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	categories, err := handler.service.List(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, categories)
}

func (handler *Handler) get(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	category, err := handler.service.Get(request.Context(), id)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, category)
}

type categoryRequest struct {
	Name      string `json:"name"`
	Slug      string `json:"slug"`
	SortOrder int    `json:"sort_order"`
}

func (payload categoryRequest) validate() error {
	validator := &validate.Validator{}
	validator.Required("name", payload.Name).
		MaxLen("name", payload.Name, 80)
	if payload.Slug != "" {
		validator.Slug("slug", payload.Slug)
	}
	return validator.Err()
}

func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var payload categoryRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	category := &Category{
		Name:      payload.Name,
		Slug:      payload.Slug,
		SortOrder: payload.SortOrder,
	}
	if err := handler.service.Create(request.Context(), category); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, category)
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload categoryRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	category := &Category{
		ID:        id,
		Name:      payload.Name,
		Slug:      payload.Slug,
		SortOrder: payload.SortOrder,
	}
	if err := handler.service.Update(request.Context(), category); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, category)
}

func (handler *Handler) delete(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Delete(request.Context(), id); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.NoContent(writer)
}

func pathID(request *http.Request) (int, error) {
	id, err := strconv.Atoi(requestutil.Param(request, "id"))
	if err != nil || id <= 0 {
		return 0, apperr.ValidationError("id must be a positive integer")
	}
	return id, nil
}
