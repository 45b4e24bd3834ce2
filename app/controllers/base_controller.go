package controllers

import (
	"net/http"
	"strconv"

	apperrors "github.com/aihub/wpredisearch/internal/errors"
	"github.com/aihub/wpredisearch/internal/logger"
	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"
)

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	_ = c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// handleError maps application errors to their HTTP status and code.
func (c *BaseController) handleError(err error) {
	appErr := apperrors.GetAppError(err)
	status := appErr.HTTPCode
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Ctx.Request.URL.Path),
			zap.String("code", string(appErr.Code)),
			zap.Error(err))
	}

	body := map[string]interface{}{
		"success": false,
		"error":   appErr.Message,
		"code":    appErr.Code,
	}
	if appErr.Details != nil {
		body["details"] = appErr.Details
	}
	c.JSON(status, body)
}

// uintParam parses a positive route parameter, writing 400 on failure.
func (c *BaseController) uintParam(name string) (uint64, bool) {
	v, err := strconv.ParseUint(c.Ctx.Input.Param(name), 10, 64)
	if err != nil || v == 0 {
		c.JSONError(http.StatusBadRequest, "invalid "+name[1:])
		return 0, false
	}
	return v, true
}

// intQuery reads an integer query parameter, falling back to def.
func (c *BaseController) intQuery(name string, def int) int {
	v, err := c.GetInt(name, def)
	if err != nil {
		return def
	}
	return v
}
