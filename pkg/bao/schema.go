package bao

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidArgument is returned when an argument fails validation before it
// crosses the boundary.
var ErrInvalidArgument = errors.New("bao: invalid argument")

var validate = validator.New(validator.WithRequiredStructEnabled())

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("field %s: %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}

// checkArg validates v and returns its JSON encoding.
func checkArg(v any) (string, error) {
	if err := validate.Struct(v); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidArgument, describe(err))
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return string(b), nil
}

// checkArgs validates every element of a slice and returns its JSON encoding.
func checkArgs[T any](vs []T) (string, error) {
	if vs == nil {
		vs = []T{}
	}
	if err := validate.Var(vs, "dive"); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidArgument, describe(err))
	}
	b, err := json.Marshal(vs)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return string(b), nil
}

// decodeStruct consumes r into a T and validates it. A payload that decodes
// but violates the schema is a decode error.
func decodeStruct[T any](r *Result) (T, error) {
	var v T
	ok, err := r.JSON(&v)
	if err != nil || !ok {
		return v, err
	}
	if err := validate.Struct(&v); err != nil {
		return v, fmt.Errorf("%w: %s: %s", ErrDecode, r.name(), describe(err))
	}
	return v, nil
}

// decodeList is decodeStruct for list payloads. A missing payload is an empty
// list.
func decodeList[T any](r *Result) ([]T, error) {
	var vs []T
	ok, err := r.JSON(&vs)
	if err != nil || !ok {
		return vs, err
	}
	if err := validate.Var(vs, "dive"); err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrDecode, r.name(), describe(err))
	}
	return vs, nil
}
