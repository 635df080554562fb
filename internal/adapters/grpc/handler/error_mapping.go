package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/ogurasousui/codex-employee-directory/internal/core/employee"
	"github.com/ogurasousui/codex-employee-directory/internal/platform/gateway"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func toStatusError(err error) error {
	var apiErr *gateway.StatusError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, employee.ErrInvalidID),
		errors.Is(err, employee.ErrInvalidName),
		errors.Is(err, employee.ErrInvalidAge),
		errors.Is(err, employee.ErrInvalidPage),
		errors.Is(err, employee.ErrInvalidPageSize),
		errors.Is(err, employee.ErrInvalidSortField):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, employee.ErrEmployeeNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, employee.ErrCanceled), errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &apiErr):
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return status.Error(codes.NotFound, err.Error())
		case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
			return status.Error(codes.FailedPrecondition, err.Error())
		default:
			return status.Error(codes.Unavailable, err.Error())
		}
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
