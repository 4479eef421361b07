package httpclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/utafrali/marketplace/pkg/errors"
)

// downstreamError matches the {"error":{"code","message"}} envelope most
// gateways (and this service) answer with.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// ParseResponseError consumes and closes a non-2xx response and converts it
// into an AppError. Structured bodies keep their message.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	message := http.StatusText(resp.StatusCode)
	code := ""
	var parsed downstreamError
	if json.Unmarshal(body, &parsed) == nil && parsed.Error != nil {
		code, message = parsed.Error.Code, parsed.Error.Message
	}
	return mapDownstreamError(resp.StatusCode, code, message, serviceName)
}

func mapDownstreamError(status int, code, message, serviceName string) error {
	qualified := serviceName + ": " + message

	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusTooManyRequests, status >= http.StatusInternalServerError:
		return apperrors.Unavailable(qualified)
	default:
		if code == "" {
			code = "DOWNSTREAM_ERROR"
		}
		return &apperrors.AppError{Code: code, Message: qualified, Status: status}
	}
}

// AsUnavailable converts transport failures, 5xx responses and an open
// breaker into a 503 AppError. AppErrors pass through unchanged.
func AsUnavailable(err error, serviceName string) error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	msg := serviceName + " is unavailable"
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		msg = serviceName + " is temporarily disabled"
	}
	ae := apperrors.Unavailable(msg)
	ae.Err = fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	return ae
}

// IsClientError reports whether status is a 4xx.
func IsClientError(status int) bool {
	return status >= 400 && status < 500
}
