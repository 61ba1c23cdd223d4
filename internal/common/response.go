package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/suPer8Hu/kinfolk/internal/models"
)

func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    0,
		"message": "ok",
		"data":    data,
	})
}

func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// FailErr maps a store error to a status and keeps its details and hint.
func FailErr(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, 50001
	switch {
	case errors.Is(err, models.ErrValidation):
		status, code = http.StatusBadRequest, 40001
	case errors.Is(err, models.ErrNotFound):
		status, code = http.StatusNotFound, 40004
	case errors.Is(err, models.ErrConflict):
		status, code = http.StatusConflict, 40009
	case errors.Is(err, models.ErrTransport):
		status, code = http.StatusBadGateway, 50201
	}

	e, ok := models.AsError(err)
	if !ok {
		Fail(c, status, code, err.Error())
		return
	}
	data := gin.H{}
	if e.Details != "" {
		data["details"] = e.Details
	}
	if e.Hint != "" {
		data["hint"] = e.Hint
	}
	c.JSON(status, gin.H{
		"code":    code,
		"message": e.Message,
		"data":    data,
	})
}
