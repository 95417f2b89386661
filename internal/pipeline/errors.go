package pipeline

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/Brownie44l1/inference-api/internal/fetcher"
	"github.com/Brownie44l1/inference-api/internal/model"
	"github.com/Brownie44l1/inference-api/internal/preprocess"
	"github.com/Brownie44l1/inference-api/internal/ranker"
)

type Kind string

const (
	KindBadRequest Kind = "BadRequest"
	KindFetch      Kind = "FetchError"
	KindDecode     Kind = "DecodeError"
	KindShape      Kind = "ShapeError"
	KindInference  Kind = "InferenceError"
	KindInternal   Kind = "InternalError"
)

// Error is a request failure with the status it is reported under.
type Error struct {
	Kind   Kind
	Status int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func badRequest(format string, args ...interface{}) *Error {
	return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Err: fmt.Errorf(format, args...)}
}

// classify maps a stage error onto its kind and status.
func classify(err error) *Error {
	var perr *Error
	if errors.As(err, &perr) {
		return perr
	}

	switch {
	case errors.Is(err, fetcher.ErrInvalidURL):
		return &Error{Kind: KindFetch, Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, fetcher.ErrFetch):
		return &Error{Kind: KindFetch, Status: http.StatusBadGateway, Err: err}
	case errors.Is(err, preprocess.ErrDecode):
		return &Error{Kind: KindDecode, Status: http.StatusUnprocessableEntity, Err: err}
	case errors.Is(err, preprocess.ErrShape):
		return &Error{Kind: KindShape, Status: http.StatusUnprocessableEntity, Err: err}
	case errors.Is(err, ranker.ErrTopN):
		return &Error{Kind: KindBadRequest, Status: http.StatusBadRequest, Err: err}
	case errors.Is(err, model.ErrInference), errors.Is(err, ranker.ErrOutput):
		return &Error{Kind: KindInference, Status: http.StatusInternalServerError, Err: err}
	default:
		return &Error{Kind: KindInternal, Status: http.StatusInternalServerError, Err: err}
	}
}
