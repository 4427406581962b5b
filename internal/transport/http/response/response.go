package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posto-admin/internal/core/validate"
	"posto-admin/internal/domain"
)

type Resp struct {
	Code   int                 `json:"code"`
	Msg    string              `json:"msg"`
	Data   any                 `json:"data"`
	Errors []domain.FieldError `json:"errors,omitempty"`
}

// New 构造函数（保证 data 不为 null）
func New(code int, msg string, data any) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data any) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error 失败响应（可以传自定义 msg 覆盖默认）
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

// FromError 把任意错误翻译成 HTTP 状态和响应体；未知错误一律 500，不带内部信息
func FromError(err error) (int, Resp) {
	if ve, ok := validate.FromError(err); ok {
		err = ve
	}
	var de *domain.Error
	if errors.As(err, &de) {
		status := de.Kind.HTTPStatus()
		r := Error(status, de.Msg)
		r.Errors = de.Fields
		return status, r
	}
	return http.StatusInternalServerError, Error(CodeServerError, "")
}

// Fail 统一错误出口；5xx 记录 cause
func Fail(c *gin.Context, l *zap.Logger, err error) {
	status, body := FromError(err)
	if status >= http.StatusInternalServerError && l != nil {
		l.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, body)
}

// Abort 中间件里直接按状态码中断
func Abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, Error(status, msg))
}
