package banner

import (
	"net/http"
	"strconv"
	"time"

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

// Routes returns the public banner endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listVisible)
	return router
}

// AdminRoutes returns the banner management endpoints. The caller mounts
// these behind the admin session middleware.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listAll)
	router.Post("/", handler.create)
	router.Put("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)
	return router
}

func (handler *Handler) listVisible(writer http.ResponseWriter, request *http.Request) {
	banners, err := handler.service.ListVisible(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, banners)
}

func (handler *Handler) listAll(writer http.ResponseWriter, request *http.Request) {
	banners, err := handler.service.ListAll(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, banners)
}

type bannerRequest struct {
	Title     string     `json:"title"`
	ImageURL  string     `json:"image_url"`
	LinkURL   string     `json:"link_url"`
	SortOrder int        `json:"sort_order"`
	Active    bool       `json:"active"`
	StartsAt  *time.Time `json:"starts_at"`
	EndsAt    *time.Time `json:"ends_at"`
}

func (payload bannerRequest) validate() error {
	validator := &validate.Validator{}
	validator.Required("title", payload.Title).
		MaxLen("title", payload.Title, 160).
		Required("image_url", payload.ImageURL).
		Custom("ends_at",
			payload.StartsAt != nil && payload.EndsAt != nil && payload.EndsAt.Before(*payload.StartsAt),
			"must not be before starts_at")
	return validator.Err()
}

func (payload bannerRequest) toBanner(id int) *Banner {
	return &Banner{
		ID:        id,
		Title:     payload.Title,
		ImageURL:  payload.ImageURL,
		LinkURL:   payload.LinkURL,
		SortOrder: payload.SortOrder,
		Active:    payload.Active,
		StartsAt:  payload.StartsAt,
		EndsAt:    payload.EndsAt,
	}
}

func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var payload bannerRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	banner := payload.toBanner(0)
	if err := handler.service.Create(request.Context(), banner); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, banner)
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload bannerRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	banner := payload.toBanner(id)
	if err := handler.service.Update(request.Context(), banner); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, banner)
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
