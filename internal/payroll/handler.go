package payroll

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/crewflow/crewflow-platform/pkg/errors"
	"github.com/crewflow/crewflow-platform/pkg/httputil"
	"github.com/crewflow/crewflow-platform/pkg/logger"
	"github.com/crewflow/crewflow-platform/pkg/permissions"
)

// Handler exposes the payroll run HTTP API
type Handler struct {
	service *Service
	log     *logger.Logger
}

// NewHandler creates a payroll handler
func NewHandler(service *Service, log *logger.Logger) *Handler {
	return &Handler{service: service, log: log}
}

// RegisterRoutes mounts the payroll routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/payroll", func(r chi.Router) {
		r.Get("/current", h.Current)
		r.Post("/save-progress", h.SaveProgress)

		// Mutating run control requires the payroll.process permission
		r.Group(func(r chi.Router) {
			r.Use(requirePermission("payroll.process"))
			r.Post("/start", h.Start)
			r.Post("/advance", h.Advance)
			r.Post("/back", h.Back)
			r.Post("/goto", h.JumpTo)
			r.Post("/restart", h.Restart)
		})
	})
}

// requirePermission checks the permission set forwarded by the gateway
func requirePermission(required string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("X-User-Permissions")
			var perms []string
			if header != "" {
				perms = strings.Split(header, ",")
			}

			if !permissions.HasPermission(perms, required) {
				httputil.Error(w, errors.Forbidden("missing permission: "+required))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Current returns the tenant's current payroll run
func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Current(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

type startRequest struct {
	PayPeriodStart string `json:"pay_period_start" validate:"required"`
	PayPeriodEnd   string `json:"pay_period_end" validate:"required"`
}

// Start begins a new payroll run
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	start, err := time.Parse("2006-01-02", req.PayPeriodStart)
	if err != nil {
		httputil.Error(w, errors.BadRequest("pay_period_start must be YYYY-MM-DD"))
		return
	}
	end, err := time.Parse("2006-01-02", req.PayPeriodEnd)
	if err != nil {
		httputil.Error(w, errors.BadRequest("pay_period_end must be YYYY-MM-DD"))
		return
	}
	if end.Before(start) {
		httputil.Error(w, errors.BadRequest("pay period ends before it starts"))
		return
	}

	view, err := h.service.Start(r.Context(), &start, &end)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.Created(w, view)
}

type saveProgressRequest struct {
	State map[string]interface{} `json:"state" validate:"required"`
}

// SaveProgress merges step input into the run state
func (h *Handler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	var req saveProgressRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.SaveProgress(r.Context(), req.State)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

// Advance runs the current step and moves forward
func (h *Handler) Advance(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Advance(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

// Back moves the run one step backward
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Back(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

type jumpRequest struct {
	Step int `json:"step" validate:"required,gte=1"`
}

// JumpTo revisits an earlier step
func (h *Handler) JumpTo(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	view, err := h.service.JumpTo(r.Context(), req.Step)
	if err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, view)
}

// Restart abandons the current run
func (h *Handler) Restart(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Restart(r.Context()); err != nil {
		httputil.Error(w, err)
		return
	}
	httputil.NoContent(w)
}
