// Package validate 基于 go-playground/validator 的统一校验，gin 绑定与 service 层共用一套规则
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"posto-admin/internal/domain"
)

var (
	once sync.Once
	v    *validator.Validate
)

func engine() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.SetTagName("binding")
		// 错误路径使用 json 字段名
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				name = f.Tag.Get("form")
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
	return v
}

// Struct 校验失败返回 domain 的 Validation 错误
func Struct(s any) error {
	if err := engine().Struct(s); err != nil {
		if fe, ok := FromError(err); ok {
			return fe
		}
		return err
	}
	return nil
}

// FromError 把 validator.ValidationErrors 翻译成字段路径 + 提示
func FromError(err error) (*domain.Error, bool) {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil, false
	}
	fields := make([]domain.FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, domain.FieldError{Path: path(fe), Message: message(fe)})
	}
	return &domain.Error{Kind: domain.KindValidation, Msg: "Validation failed", Fields: fields}, true
}

func path(fe validator.FieldError) string {
	ns := fe.Namespace()
	// 去掉顶层结构体名
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "min":
		if isString {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return "must be at least " + fe.Param()
	case "max":
		if isString {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "uuid", "uuid4":
		return "must be a valid id"
	case "url":
		return "must be a valid URL"
	case "dive":
		return "is invalid"
	}
	return "is invalid"
}

type ginValidator struct{}

func (ginValidator) ValidateStruct(obj any) error {
	if obj == nil {
		return nil
	}
	rv := reflect.ValueOf(obj)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	return engine().Struct(obj)
}

func (ginValidator) Engine() any { return engine() }

// UseForGin 让 gin 的 ShouldBind* 使用同一个校验器
func UseForGin() { binding.Validator = ginValidator{} }
