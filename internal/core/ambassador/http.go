package ambassador

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

// Routes returns the public ambassador endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listActive)
	return router
}

// AdminRoutes returns the ambassador management endpoints. The caller mounts
// these behind the admin session middleware.
func (handler *Handler) AdminRoutes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.listAll)
	router.Post("/", handler.create)
	router.Put("/{id}", handler.update)
	router.Delete("/{id}", handler.delete)
	return router
}

func (handler *Handler) listActive(writer http.ResponseWriter, request *http.Request) {
	ambassadors, err := handler.service.ListActive(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, ambassadors)
}

func (handler *Handler) listAll(writer http.ResponseWriter, request *http.Request) {
	ambassadors, err := handler.service.ListAll(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, ambassadors)
}

type ambassadorRequest struct {
	Name      string            `json:"name"`
	AvatarURL string            `json:"avatar_url"`
	Bio       string            `json:"bio"`
	Socials   map[string]string `json:"socials"`
	SortOrder int               `json:"sort_order"`
	Active    bool              `json:"active"`
}

func (payload ambassadorRequest) validate() error {
	validator := &validate.Validator{}
	validator.Required("name", payload.Name).
		MaxLen("name", payload.Name, 80).
		MaxLen("bio", payload.Bio, 1000)
	return validator.Err()
}

func (payload ambassadorRequest) toAmbassador(id int) *Ambassador {
	socials := payload.Socials
	if socials == nil {
		socials = map[string]string{}
	}
	return &Ambassador{
		ID:        id,
		Name:      payload.Name,
		AvatarURL: payload.AvatarURL,
		Bio:       payload.Bio,
		Socials:   socials,
		SortOrder: payload.SortOrder,
		Active:    payload.Active,
	}
}

func (handler *Handler) create(writer http.ResponseWriter, request *http.Request) {
	var payload ambassadorRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ambassador := payload.toAmbassador(0)
	if err := handler.service.Create(request.Context(), ambassador); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.Created(writer, ambassador)
}

func (handler *Handler) update(writer http.ResponseWriter, request *http.Request) {
	id, err := pathID(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var payload ambassadorRequest
	if err := requestutil.DecodeJSON(request, &payload); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if err := payload.validate(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ambassador := payload.toAmbassador(id)
	if err := handler.service.Update(request.Context(), ambassador); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, ambassador)
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
