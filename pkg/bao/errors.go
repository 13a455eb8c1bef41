package bao

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Error codes reported by the native library. They are informative only; a
// node may carry any string or none at all.
const (
	DbError      = "DbError"
	FileError    = "FileError"
	ParseError   = "ParseError"
	EncodeError  = "EncodeError"
	AuthError    = "AuthError"
	AccessDenied = "AccessDenied"
	NetError     = "NetError"
	ConfigError  = "ConfigError"
	TestError    = "TestError"
	GenericError = "GenericError"
	Timeout      = "Timeout"
)

var (
	// ErrNotOpen is returned by any operation on a wrapper whose handle is zero.
	ErrNotOpen = errors.New("resource not open")

	// ErrDecode wraps failures to parse a successful payload.
	ErrDecode = errors.New("bao: cannot decode payload")

	// ErrLibraryClosed is returned when the library is used after Close.
	ErrLibraryClosed = errors.New("bao: library closed")

	// ErrNilNative is returned by New when no backend is supplied.
	ErrNilNative = errors.New("bao: nil native backend")
)

// WrappedError is one node of the error chain reported by the native library.
// Cause is either another *WrappedError or an opaque error that terminates the
// chain.
type WrappedError struct {
	Code    string
	Message string
	File    string
	Line    int
	Cause   error
}

type wireError struct {
	Code    string          `json:"code"`
	Msg     string          `json:"msg"`
	Message string          `json:"message"`
	File    string          `json:"file"`
	Line    int             `json:"line"`
	Cause   json.RawMessage `json:"cause"`
}

// DecodeError builds a fresh chain from the error text of a Result. Text that
// is not a JSON object becomes a single node carrying it as the message.
func DecodeError(payload string) *WrappedError {
	if e := decodeNode([]byte(payload)); e != nil {
		return e
	}
	return &WrappedError{Message: payload}
}

// decodeNode parses one chain node. It returns nil unless text is a JSON
// object.
func decodeNode(text []byte) *WrappedError {
	trimmed := bytes.TrimSpace(text)
	if !bytes.HasPrefix(trimmed, []byte("{")) {
		return nil
	}
	var w wireError
	if err := json.Unmarshal(trimmed, &w); err != nil {
		return nil
	}
	return w.build()
}

func (w *wireError) build() *WrappedError {
	e := &WrappedError{
		Code:    w.Code,
		Message: cmp.Or(w.Msg, w.Message),
		File:    w.File,
		Line:    w.Line,
	}
	if c := decodeCause(w.Cause); c != nil {
		e.Cause = c
	}
	return e
}

// decodeCause accepts an object or a string holding an object. Anything else
// ends the chain.
func decodeCause(raw json.RawMessage) *WrappedError {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return decodeNode([]byte(s))
	}
	return decodeNode(raw)
}

// Wrap returns err as the root of a chain. A chain already present in err is
// returned as is; any other error becomes a message-only node.
func Wrap(err error) *WrappedError {
	if err == nil {
		return nil
	}
	var we *WrappedError
	if errors.As(err, &we) {
		return we
	}
	return &WrappedError{Message: err.Error()}
}

func (e *WrappedError) Error() string {
	var lines []string
	var cur error = e
	for cur != nil {
		we, ok := cur.(*WrappedError)
		if !ok {
			lines = append(lines, cur.Error())
			break
		}
		lines = append(lines, we.line())
		cur = we.Cause
	}
	return strings.Join(lines, "\n")
}

func (e *WrappedError) line() string {
	parts := make([]string, 0, 3)
	if e.Code != "" {
		parts = append(parts, e.Code)
	}
	if e.File != "" {
		loc := e.File
		if e.Line != 0 {
			loc += ":" + strconv.Itoa(e.Line)
		}
		parts = append(parts, loc)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if len(parts) == 0 {
		return "WrappedError"
	}
	return strings.Join(parts, " - ")
}

func (e *WrappedError) Unwrap() error { return e.Cause }

// Is reports whether target is a *WrappedError with the same non-empty code,
// so errors.Is(err, &WrappedError{Code: bao.AccessDenied}) works.
func (e *WrappedError) Is(target error) bool {
	t, ok := target.(*WrappedError)
	return ok && t.Code != "" && t.Code == e.Code
}

// HasCode walks the chain from e and reports whether any node carries one of
// codes. The walk stops at the first cause that is not a *WrappedError.
func (e *WrappedError) HasCode(codes ...string) bool {
	wanted := make(map[string]struct{}, len(codes))
	for _, c := range codes {
		if c != "" {
			wanted[c] = struct{}{}
		}
	}
	if len(wanted) == 0 {
		return false
	}
	var cur error = e
	for cur != nil {
		we, ok := cur.(*WrappedError)
		if !ok {
			return false
		}
		if _, hit := wanted[we.Code]; hit {
			return true
		}
		cur = we.Cause
	}
	return false
}

// HasCode reports whether err holds a native error chain with one of codes.
func HasCode(err error, codes ...string) bool {
	var we *WrappedError
	if !errors.As(err, &we) {
		return false
	}
	return we.HasCode(codes...)
}
