package domain

import (
	"errors"
	"strings"
)

// ErrorKind классифицирует ошибки на границе репозитория.
type ErrorKind string

const (
	KindNotAuthenticated  ErrorKind = "not_authenticated"
	KindWrongCredentials  ErrorKind = "wrong_credentials"
	KindEmailUnverified   ErrorKind = "email_unverified"
	KindAlreadyRegistered ErrorKind = "already_registered"
	KindInvalidEmail      ErrorKind = "invalid_email"
	KindWeakPassword      ErrorKind = "weak_password"
	KindValidationFailed  ErrorKind = "validation_failed"
	KindNotFound          ErrorKind = "not_found"
	KindUpload            ErrorKind = "upload"
	KindNetwork           ErrorKind = "network"
	KindUnknown           ErrorKind = "unknown"
)

// Error: типизированная ошибка репозитория.
type Error struct {
	Kind ErrorKind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	} else if e.Err == nil {
		parts = append(parts, string(e.Kind))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is сравнивает ошибку с сентинелом того же вида.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Kind == e.Kind
}

// Сентинелы для errors.Is.
var (
	ErrNotAuthenticated  = &Error{Kind: KindNotAuthenticated}
	ErrWrongCredentials  = &Error{Kind: KindWrongCredentials}
	ErrEmailUnverified   = &Error{Kind: KindEmailUnverified}
	ErrAlreadyRegistered = &Error{Kind: KindAlreadyRegistered}
	ErrInvalidEmail      = &Error{Kind: KindInvalidEmail}
	ErrWeakPassword      = &Error{Kind: KindWeakPassword}
	ErrValidation        = &Error{Kind: KindValidationFailed}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUpload            = &Error{Kind: KindUpload}
	ErrNetwork           = &Error{Kind: KindNetwork}
)

// E создаёт ошибку вида kind для операции op.
func E(kind ErrorKind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Invalid создаёт ошибку валидации с сообщением для пользователя.
func Invalid(op, msg string) *Error {
	return &Error{Kind: KindValidationFailed, Op: op, Msg: msg}
}

// KindOf возвращает вид ошибки. Чужие ошибки считаются unknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnknown
}

// MessageOf возвращает пользовательское сообщение ошибки, если оно задано.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		if de.Msg != "" {
			return de.Msg
		}
		if de.Err != nil {
			return de.Err.Error()
		}
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
