package gateway

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable covers network failures, timeouts, 5xx responses and an
	// open breaker. The call may succeed if retried later.
	ErrUnavailable = errors.New("payment gateway unavailable")
	// ErrInvalidSignature means the callback was not produced by the gateway
	// for this order and payment.
	ErrInvalidSignature = errors.New("payment signature verification failed")
)

// RejectedError is a 4xx answer from the gateway. Retrying the same
// request will not help.
type RejectedError struct {
	Status      int
	Code        string
	Description string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("payment gateway rejected request (%d %s): %s", e.Status, e.Code, e.Description)
}

func (e *RejectedError) alreadyCaptured() bool {
	return strings.Contains(strings.ToLower(e.Description), "already been captured")
}

func IsRejected(err error) bool {
	var rejected *RejectedError
	return errors.As(err, &rejected)
}
