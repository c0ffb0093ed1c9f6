// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/nexusforge/user-service/internal/core"
	"github.com/nexusforge/user-service/internal/middleware"
)

const maxBodyBytes = 1 << 20

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts /users. Registration is public; every other route
// needs an active caller, and delete and verify-email need a superuser.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.Create)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Use(middleware.RequireActive)

			r.Get("/", h.List)
			r.Get("/me", h.GetMe)
			r.Get("/{userID}", h.Get)
			r.Put("/{userID}", h.Update)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireSuperuser)

				r.Delete("/{userID}", h.Delete)
				r.Post("/{userID}/verify-email", h.VerifyEmail)
			})
		})
	})
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	user, err := h.service.Create(r.Context(), req.ToInput())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.Created(w, ToUserResponse(user))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	params := ListParams{
		Skip:  parseIntQuery(r, "skip", 0),
		Limit: parseIntQuery(r, "limit", DefaultListLimit),
	}

	if params.Skip < 0 {
		params.Skip = 0
	}
	if params.Limit < 1 {
		params.Limit = 1
	}
	if params.Limit > MaxListLimit {
		params.Limit = MaxListLimit
	}

	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			core.BadRequest(w, "is_active must be a boolean")
			return
		}
		params.IsActive = &active
	}

	users, total, err := h.service.List(r.Context(), params)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.OK(w, NewUserListResponse(users, total, params.Skip, params.Limit))
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetByID(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

// Update lets users edit themselves; superusers may edit anyone and are the
// only callers allowed to change is_active.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	principal := middleware.GetPrincipal(r.Context())
	if principal == nil {
		core.Unauthorized(w, "authentication required")
		return
	}

	superuser := middleware.IsSuperuser(r.Context())
	if principal.ID != id && !superuser {
		core.Forbidden(w, "not authorized to update this user")
		return
	}

	var req UpdateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	if req.IsActive != nil && !superuser {
		core.Forbidden(w, "only superusers can change is_active")
		return
	}

	user, err := h.service.Update(r.Context(), id, req.ToPatch())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	deleted, err := h.service.SoftDelete(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if !deleted {
		core.NotFound(w, "user")
		return
	}

	core.NoContent(w)
}

func (h *Handler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	id, ok := userIDParam(w, r)
	if !ok {
		return
	}

	user, err := h.service.VerifyEmail(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	core.OK(w, ToUserResponse(user))
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.JSONError(w, core.ValidationError(core.FormatValidationError(err)))
		return false
	}

	return true
}

func writeServiceError(w http.ResponseWriter, err error) {
	var dup *core.DuplicateFieldError

	switch {
	case errors.As(err, &dup):
		core.JSONError(w, core.DuplicateError(dup.Field))
	case errors.Is(err, core.ErrDuplicateKey):
		core.JSONError(w, core.DuplicateError("user"))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}

func userIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || id <= 0 {
		core.BadRequest(w, "invalid user id")
		return 0, false
	}
	return id, true
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return parsed
}
