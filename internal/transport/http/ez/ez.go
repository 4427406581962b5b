// Package ez 把 "绑定入参 -> 调 service -> 统一响应" 压成一行注册
package ez

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"posto-admin/internal/core/validate"
	"posto-admin/internal/domain"
	resp "posto-admin/internal/transport/http/response"
)

// EZ 包一层 RouterGroup，带上用于 5xx 的 logger
type EZ struct {
	g   *gin.RouterGroup
	log *zap.Logger
}

func New(g *gin.RouterGroup, l *zap.Logger) EZ {
	if l == nil {
		l = zap.NewNop()
	}
	return EZ{g: g, log: l}
}

func (e EZ) Group(path string, guards ...gin.HandlerFunc) EZ {
	return EZ{g: e.g.Group(path, guards...), log: e.log}
}

func (e EZ) Log() *zap.Logger { return e.log }

type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param / c.Cookie 取
	// BindJSONOptional 空 body 也接受
	BindJSONOptional Binder = "json?"
)

// Action I 入参，O 出参
type Action[I any, O any] struct {
	Method string // "GET" | "POST" | "PATCH" | "PUT" | "DELETE"
	Path   string
	Binder Binder
	// Status 成功时的 HTTP 状态，默认 200
	Status  int
	Guards  []gin.HandlerFunc
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 错误统一走 response.Fail
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	h := func(c *gin.Context) {
		var in I
		if err := bind(c, a.Binder, &in); err != nil {
			resp.Fail(c, e.log, err)
			return
		}
		out, err := a.Handler(c, &in)
		if err != nil {
			resp.Fail(c, e.log, err)
			return
		}
		status := a.Status
		if status == 0 {
			status = http.StatusOK
		}
		c.JSON(status, resp.OK(out))
	}

	handlers := append(append([]gin.HandlerFunc{}, a.Guards...), h)
	switch strings.ToUpper(a.Method) {
	case http.MethodGet:
		e.g.GET(a.Path, handlers...)
	case http.MethodPut:
		e.g.PUT(a.Path, handlers...)
	case http.MethodPatch:
		e.g.PATCH(a.Path, handlers...)
	case http.MethodDelete:
		e.g.DELETE(a.Path, handlers...)
	default: // 默认 POST
		e.g.POST(a.Path, handlers...)
	}
}

func bind(c *gin.Context, b Binder, in any) error {
	var err error
	switch b {
	case BindJSON:
		err = c.ShouldBindJSON(in)
	case BindJSONOptional:
		if c.Request.ContentLength == 0 {
			return nil
		}
		err = c.ShouldBindJSON(in)
		if errors.Is(err, io.EOF) {
			return nil
		}
	case BindQuery:
		err = c.ShouldBindQuery(in)
	default:
		return nil
	}
	return bindError(err)
}

// bindError 校验失败保留字段信息，其余一律视为请求体格式错误
func bindError(err error) error {
	if err == nil {
		return nil
	}
	if ve, ok := validate.FromError(err); ok {
		return ve
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return &domain.Error{Kind: domain.KindValidation, Msg: "Request body too large"}
	}
	var syn *json.SyntaxError
	var typ *json.UnmarshalTypeError
	switch {
	case errors.As(err, &typ):
		return domain.FieldInvalid(typ.Field, "has the wrong type")
	case errors.As(err, &syn), errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &domain.Error{Kind: domain.KindValidation, Msg: "Malformed request body", Cause: err}
	}
	return &domain.Error{Kind: domain.KindValidation, Msg: "Invalid request", Cause: err}
}

// None 无入参的 action 用
type None struct{}
