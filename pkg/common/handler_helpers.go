package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verigrade/verigrade/pkg/logger"
	"go.uber.org/zap"
)

// HandleServiceError writes the error response for err and reports whether it
// did. AppErrors keep their status; anything else becomes a 500 carrying
// fallbackMessage. 5xx errors are attached to the gin context so the error
// tracking middleware forwards them to Sentry.
//
//	alert, err := h.service.GetAlert(ctx, id)
//	if common.HandleServiceError(c, err, "failed to get fraud alert") {
//	    return
//	}
func HandleServiceError(c *gin.Context, err error, fallbackMessage string) bool {
	if err == nil {
		return false
	}

	appErr, ok := AsAppError(err)
	if !ok {
		logger.ErrorContext(c.Request.Context(), fallbackMessage, zap.Error(err))
		appErr = NewInternalError(fallbackMessage, err)
	}
	if appErr.Code >= http.StatusInternalServerError {
		_ = c.Error(err)
	}

	AppErrorResponse(c, appErr)
	return true
}

// ParseUUIDParam reads the path parameter name as a UUID. On failure it writes
// a 400 mentioning label and returns false.
func ParseUUIDParam(c *gin.Context, name, label string) (uuid.UUID, bool) {
	raw := c.Param(name)
	if raw == "" {
		ErrorResponse(c, http.StatusBadRequest, label+" is required")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid "+label)
		return uuid.Nil, false
	}
	return id, true
}

// BindJSON decodes the request body into obj, writing a 400 on failure.
func BindJSON(c *gin.Context, obj interface{}) bool {
	err := c.ShouldBindJSON(obj)
	if err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
	}
	return err == nil
}
