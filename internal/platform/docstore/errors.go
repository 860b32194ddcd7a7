package docstore

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error classifies store failures by their gRPC status.
type Error struct {
	op          string
	err         error
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.op != "" {
		return fmt.Sprintf("%s: %v", e.op, e.err)
	}
	return e.err.Error()
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.err
}

func newError(op string, err error) *Error {
	e := &Error{op: op, err: err}
	switch status.Code(err) {
	case codes.NotFound:
		e.notFound = true
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		e.conflict = true
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal, codes.DeadlineExceeded:
		e.unavailable = true
	}
	return e
}

// wrapError annotates err with op. Context cancellation is passed through.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr
	}
	return newError(op, err)
}

func NotFoundError(op, path string) error {
	return newError(op, status.Errorf(codes.NotFound, "document %s not found", path))
}

func ConflictError(op, path string) error {
	return newError(op, status.Errorf(codes.AlreadyExists, "document %s already exists", path))
}

func IsNotFound(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.notFound
}

func IsConflict(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.conflict
}

func IsUnavailable(err error) bool {
	var storeErr *Error
	return errors.As(err, &storeErr) && storeErr.unavailable
}
