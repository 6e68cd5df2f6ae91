package response

import (
	"errors"

	"go-user-admin/internal/core/apperr"
)

type Resp struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data"`
}

// New keeps data non-null on the wire.
func New(code int, msg string, data interface{}) Resp {
	if data == nil {
		data = struct{}{}
	}
	return Resp{Code: code, Msg: msg, Data: data}
}

func OK(data interface{}) Resp {
	return New(CodeOK, CodeMsgMap[CodeOK], data)
}

// Error builds a failure response; customMsg overrides the default.
func Error(code int, customMsg string) Resp {
	msg := CodeMsgMap[code]
	if customMsg != "" {
		msg = customMsg
	}
	return New(code, msg, struct{}{})
}

// ErrorFrom maps a typed domain failure to its response code. Anything
// unanticipated (including store failures) is surfaced opaquely; callers
// are expected to have logged the context already.
func ErrorFrom(err error) Resp {
	switch apperr.KindOf(err) {
	case apperr.KindExists:
		return Error(CodeConflict, appMsg(err))
	case apperr.KindNotFound:
		return Error(CodeNotFound, appMsg(err))
	case apperr.KindAuthentication:
		return Error(CodeUnauthorized, appMsg(err))
	case apperr.KindInvalidArgument:
		return Error(CodeBadRequest, appMsg(err))
	default:
		return Error(CodeServerError, "")
	}
}

func appMsg(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return ""
}
