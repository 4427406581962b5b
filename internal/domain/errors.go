package domain

import (
	"errors"
	"net/http"
)

type ErrorKind string

const (
	KindUnauthenticated    ErrorKind = "UNAUTHENTICATED"
	KindForbidden          ErrorKind = "FORBIDDEN"
	KindConflict           ErrorKind = "CONFLICT"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindValidation         ErrorKind = "VALIDATION_ERROR"
	KindInvalidToken       ErrorKind = "INVALID_TOKEN"
	KindDisabled           ErrorKind = "DISABLED"
	KindInvalidCredentials ErrorKind = "INVALID_CREDENTIALS"
)

// HTTPStatus 每类错误对应的 HTTP 状态码
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindUnauthenticated, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden, KindDisabled:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindInvalidToken:
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error 业务错误，由 response.Fail 统一翻译成响应
type Error struct {
	Kind   ErrorKind
	Msg    string
	Fields []FieldError
	Cause  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is 同 Kind 同 Msg 视为相等，便于 errors.Is(err, ErrEmailNotVerified)
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func IsKind(err error, k ErrorKind) bool { return KindOf(err) == k }

func Unauthenticated(msg string) error { return &Error{Kind: KindUnauthenticated, Msg: msg} }
func Forbidden(msg string) error       { return &Error{Kind: KindForbidden, Msg: msg} }
func Conflict(msg string) error        { return &Error{Kind: KindConflict, Msg: msg} }
func NotFound(msg string) error        { return &Error{Kind: KindNotFound, Msg: msg} }
func InvalidToken(msg string) error    { return &Error{Kind: KindInvalidToken, Msg: msg} }
func Disabled(msg string) error        { return &Error{Kind: KindDisabled, Msg: msg} }

func Validation(fields ...FieldError) error {
	return &Error{Kind: KindValidation, Msg: "Validation failed", Fields: fields}
}

func FieldInvalid(path, msg string) error {
	return Validation(FieldError{Path: path, Message: msg})
}

var (
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Msg: "Invalid credentials"}
	ErrEmailNotVerified   = &Error{Kind: KindForbidden, Msg: "Email not verified"}
	ErrAwaitingApproval   = &Error{Kind: KindForbidden, Msg: "Account awaiting approval"}
	ErrAccountInactive    = &Error{Kind: KindForbidden, Msg: "Account inactive"}
	ErrAccountUnavailable = &Error{Kind: KindForbidden, Msg: "Account unavailable"}
)
