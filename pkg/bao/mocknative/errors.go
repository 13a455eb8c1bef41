package mocknative

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

const (
	DbError      = "DbError"
	FileError    = "FileError"
	ParseError   = "ParseError"
	EncodeError  = "EncodeError"
	AuthError    = "AuthError"
	AccessDenied = "AccessDenied"
	ConfigError  = "ConfigError"
	GenericError = "GenericError"
	Timeout      = "Timeout"
)

// Error is the error node reported in the err field of an envelope. It
// serialises as {code, msg, file, line, cause}; a cause that is not an *Error
// serialises as {msg}.
type Error struct {
	Code  string
	Msg   string
	File  string
	Line  int
	Cause error
}

func errorf(code string, cause error, format string, args ...any) *Error {
	e := &Error{Code: code, Msg: fmt.Sprintf(format, args...), Cause: cause}
	if _, file, line, ok := runtime.Caller(1); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func (e *Error) Unwrap() error { return e.Cause }

func (e *Error) MarshalJSON() ([]byte, error) {
	type node struct {
		Code  string `json:"code,omitempty"`
		Msg   string `json:"msg"`
		File  string `json:"file,omitempty"`
		Line  int    `json:"line,omitempty"`
		Cause any    `json:"cause,omitempty"`
	}
	out := node{Code: e.Code, Msg: e.Msg, File: e.File, Line: e.Line}
	var inner *Error
	switch {
	case e.Cause == nil:
	case errors.As(e.Cause, &inner) && inner == e.Cause:
		out.Cause = inner
	default:
		out.Cause = map[string]string{"msg": e.Cause.Error()}
	}
	return json.Marshal(out)
}

// asError promotes any error to an *Error so the envelope always carries a
// structured chain.
func asError(err error) *Error {
	var e *Error
	if errors.As(err, &e) && e == err {
		return e
	}
	return &Error{Code: GenericError, Msg: err.Error()}
}
