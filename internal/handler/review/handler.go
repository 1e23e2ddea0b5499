package review

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/doctorconnect-api/internal/handler"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/service/review"
	"github.com/jwalitptl/doctorconnect-api/pkg/httputil"
	"github.com/jwalitptl/doctorconnect-api/pkg/validator"
)

type Handler struct {
	service   *review.Service
	validator validator.Validator
}

func NewHandler(service *review.Service, v validator.Validator) *Handler {
	return &Handler{service: service, validator: v}
}

func (h *Handler) SubmitReview(c *gin.Context) {
	caller, err := handler.Caller(c)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	var req model.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.BadRequest(c, "invalid request body")
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	view, err := h.service.SubmitReview(c.Request.Context(), req.AppointmentID, req.Rating, req.Comment, caller.ID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusCreated, view)
}

func (h *Handler) ListDoctorReviews(c *gin.Context) {
	doctorID, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	views, err := h.service.ListReviews(c.Request.Context(), doctorID)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, views)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	reviews := r.Group("/reviews")
	{
		reviews.POST("", h.SubmitReview)
		reviews.GET("/doctor/:id", h.ListDoctorReviews)
	}
}
