package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jwalitptl/doctorconnect-api/internal/middleware"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
	apperrors "github.com/jwalitptl/doctorconnect-api/pkg/errors"
)

// ParseID reads a UUID path parameter.
func ParseID(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, apperrors.Validation("invalid "+name, err)
	}
	return id, nil
}

// Caller returns the authenticated principal. Routes using it sit behind
// AuthMiddleware, so a missing principal is a wiring bug.
func Caller(c *gin.Context) (model.Principal, error) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		return model.Principal{}, apperrors.NotAuthorized("not authenticated")
	}
	return p, nil
}

// RequireSelf checks that the path id names the caller.
func RequireSelf(c *gin.Context, name string) (model.Principal, uuid.UUID, error) {
	p, err := Caller(c)
	if err != nil {
		return p, uuid.Nil, err
	}
	id, err := ParseID(c, name)
	if err != nil {
		return p, uuid.Nil, err
	}
	if id != p.ID {
		return p, uuid.Nil, apperrors.NotAuthorized("callers may only list their own appointments")
	}
	return p, id, nil
}
