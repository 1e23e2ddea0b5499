package doctor

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/doctorconnect-api/internal/handler"
	"github.com/jwalitptl/doctorconnect-api/internal/service/rating"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
	"github.com/jwalitptl/doctorconnect-api/pkg/httputil"
)

type Handler struct {
	ratings *rating.Service
}

func NewHandler(ratings *rating.Service) *Handler {
	return &Handler{ratings: ratings}
}

// TopDoctors serves the public ranking. limit defaults to 3 and is capped.
func (h *Handler) TopDoctors(c *gin.Context) {
	n := rating.DefaultTopN
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			httputil.RespondWithError(c, apperrors.Validation("limit must be a positive integer", err))
			return
		}
		n = v
	}

	doctors, err := h.ratings.TopDoctors(c.Request.Context(), n)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, doctors)
}

func (h *Handler) GetRating(c *gin.Context) {
	id, err := handler.ParseID(c, "id")
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	r, err := h.ratings.GetRating(c.Request.Context(), id)
	if err != nil {
		httputil.RespondWithError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, http.StatusOK, r)
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	doctors := r.Group("/doctors")
	{
		doctors.GET("/top", h.TopDoctors)
		doctors.GET("/:id/rating", h.GetRating)
	}
}
