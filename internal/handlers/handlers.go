package handlers

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/huangang/uptask/internal/services"
	"github.com/huangang/uptask/pkg/response"
)

func init() {
	binding.Validator = services.BindingValidator()
}

// parseID reads a positive numeric path parameter. It writes the error
// response itself and reports whether the handler may continue.
func parseID(c *gin.Context, param, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		response.BadRequest(c, "invalid "+label+" id")
		return 0, false
	}
	return uint(id), true
}

// bindJSON decodes and validates the request body into obj.
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var appErr *response.AppError
		if errors.As(err, &appErr) {
			response.Error(c, appErr)
		} else {
			response.BadRequest(c, "invalid request body")
		}
		return false
	}
	return true
}
