package backend

import (
	"fmt"
	"net/http"

	"github.com/go-faster/errors"
)

// ErrUnavailable is returned while the circuit breaker rejects calls.
var ErrUnavailable = errors.New("ordering backend unavailable")

// StatusError is a non-success response from the ordering backend.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Message)
}

// StoreClosedError is returned when the store does not accept orders.
type StoreClosedError struct {
	Message string
}

func (e *StoreClosedError) Error() string {
	return "store closed: " + e.Message
}

// OutOfStockError is returned when an ordered product cannot be fulfilled.
type OutOfStockError struct {
	Message string
}

func (e *OutOfStockError) Error() string {
	return "out of stock: " + e.Message
}

// ValidationError is returned when the backend rejects the request body.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "invalid order: " + e.Message
}

// statusError maps an unsuccessful response to a typed error.
func statusError(status int, body []byte) error {
	msg := decodeMessage(body)
	switch status {
	case http.StatusConflict:
		return &StoreClosedError{Message: msg}
	case http.StatusUnprocessableEntity:
		return &OutOfStockError{Message: msg}
	case http.StatusBadRequest:
		return &ValidationError{Message: msg}
	default:
		return &StatusError{Status: status, Message: msg}
	}
}

// isClientError reports whether err is a rejection the breaker should not
// count as a failure.
func isClientError(err error) bool {
	var (
		closed     *StoreClosedError
		stock      *OutOfStockError
		validation *ValidationError
		status     *StatusError
	)
	switch {
	case errors.As(err, &closed), errors.As(err, &stock), errors.As(err, &validation):
		return true
	case errors.As(err, &status):
		return status.Status < http.StatusInternalServerError
	default:
		return false
	}
}
