package appointment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/doctorconnect-api/internal/handler"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/service/appointment"
	"github.com/jwalitptl/doctorconnect-api/pkg/httputil"
	"github.com/jwalitptl/doctorconnect-api/pkg/validator"
)

type Handler struct {
	service   *appointment.Service
	validator validator.Validator
}

func NewHandler(service *appointment.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	apt, err := h.service.CreateAppointment(c.Request.Context(), req.DoctorID, req.Date, req.Time, caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, apt)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	view, err := h.service.GetAppointmentDetails(c.Request.Context(), id, caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

// Transition returns a handler moving the appointment into target.
func (h *Handler) Transition(target model.AppointmentStatus) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := handler.Caller(c)
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}
		id, err := handler.ParseID(c, "id")
		if err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		if _, err := h.service.Transition(c.Request.Context(), id, target, caller.ID); err != nil {
			httputil.RespondWithError(c, err)
			return
		}

		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) ListForDoctor(c *gin.Context) {
	h.list(c, model.RoleDoctor)
}

func (h *Handler) ListForPatient(c *gin.Context) {
	h.list(c, model.RolePatient)
}

func (h *Handler) list(c *gin.Context, role model.Role) {
	_, id, err := handler.RequireSelf(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, err := h.service.ListAppointments(c.Request.Context(), id, role)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, views)
}

func (h *Handler) ListIncoming(c *gin.Context) {
	_, id, err := handler.RequireSelf(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, err := h.service.ListIncoming(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, views)
}

func (h *Handler) LastAppointment(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	view, err := h.service.LastAppointment(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, view)
}

func (h *Handler) History(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, err := h.service.History(c.Request.Context(), caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, views)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup, requirePatient gin.HandlerFunc) {
	appointments := r.Group("/appointments")
	{
		appointments.POST("", requirePatient, h.CreateAppointment)
		appointments.GET("/last", h.LastAppointment)
		appointments.GET("/history", h.History)
		appointments.GET("/doctor/:id", h.ListForDoctor)
		appointments.GET("/patient/:id", h.ListForPatient)
		appointments.GET("/incoming/:id", h.ListIncoming)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id/confirm", h.Transition(model.AppointmentStatusConfirmed))
		appointments.PUT("/:id/reject", h.Transition(model.AppointmentStatusRejected))
		appointments.PUT("/:id/cancel", h.Transition(model.AppointmentStatusCancelled))
		appointments.PUT("/:id/complete", h.Transition(model.AppointmentStatusCompleted))
	}
}
