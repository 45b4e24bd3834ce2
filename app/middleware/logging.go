package middleware

import (
	"net/http"
	"time"

	"github.com/beego/beego/v2/server/web"
	beecontext "github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"
)

const requestStartKey = "request_start"

// RequestStart 记录请求开始时间，配合 RequestLogger 计算耗时
func RequestStart() web.FilterFunc {
	return func(ctx *beecontext.Context) {
		ctx.Input.SetData(requestStartKey, time.Now())
	}
}

// RequestLogger 请求完成后按状态码选择日志级别
func RequestLogger(logger *zap.Logger) web.FilterFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx *beecontext.Context) {
		status := ctx.ResponseWriter.Status
		if status == 0 {
			status = http.StatusOK
		}

		fields := []zap.Field{
			zap.String("method", ctx.Input.Method()),
			zap.String("path", ctx.Input.URL()),
			zap.Int("status", status),
			zap.String("remote_addr", remoteHost(ctx.Request.RemoteAddr)),
		}
		if start, ok := ctx.Input.GetData(requestStartKey).(time.Time); ok {
			fields = append(fields, zap.Duration("duration", time.Since(start)))
		}

		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("Request completed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request completed", fields...)
		default:
			logger.Debug("Request completed", fields...)
		}
	}
}

// Audit 记录修改索引或功能开关的操作
func Audit(logger *zap.Logger, resource string) web.FilterFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx *beecontext.Context) {
		if ctx.Input.Method() == http.MethodGet || ctx.Input.Method() == http.MethodOptions {
			return
		}
		id := ctx.Input.Param(":id")
		if id == "" {
			id = ctx.Input.Param(":slug")
		}
		logger.Info("Audit",
			zap.String("resource", resource),
			zap.String("resource_id", id),
			zap.String("action", ctx.Input.Method()+" "+ctx.Input.URL()),
			zap.Int("status", ctx.ResponseWriter.Status),
			zap.String("remote_addr", remoteHost(ctx.Request.RemoteAddr)),
			zap.String("user_agent", ctx.Input.UserAgent()),
		)
	}
}
