package ec2client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/aws/smithy-go"
)

var (
	// ErrNotFound is returned when an instance ID does not resolve to an instance.
	ErrNotFound = errors.New("instance not found")
	// ErrPermission is returned when the caller lacks rights for an EC2 call.
	ErrPermission = errors.New("permission denied")
	// ErrTransient is returned for throttling, server-side faults and network failures.
	// Callers may retry.
	ErrTransient = errors.New("transient AWS API error")
	// ErrNoAddress is returned when an instance doesn't have the requested address type.
	ErrNoAddress = errors.New("no address found")
	// ErrNoMatches is returned when no instances match the search criteria.
	ErrNoMatches = errors.New("no matching instances found")
	// ErrAmbiguous is returned when a name matches more than one instance.
	ErrAmbiguous = errors.New("ambiguous instance name")
)

var notFoundCodes = []string{
	"InvalidInstanceID.NotFound",
	"InvalidInstanceID.Malformed",
	"InvalidInstanceID",
}

var permissionCodes = []string{
	"UnauthorizedOperation",
	"AuthFailure",
	"OptInRequired",
	"Blocked",
}

var transientCodes = []string{
	"RequestLimitExceeded",
	"Throttling",
	"ThrottlingException",
	"RequestThrottled",
	"ServiceUnavailable",
	"Unavailable",
	"InternalError",
	"InternalFailure",
	"IncorrectInstanceState",
}

// Classify maps an AWS SDK error to one of ErrNotFound, ErrPermission or ErrTransient.
// It returns nil for context cancellation and for errors it cannot classify.
func Classify(err error) error {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()

		switch {
		case containsCode(notFoundCodes, code):
			return ErrNotFound
		case containsCode(permissionCodes, code), strings.HasPrefix(code, "AccessDenied"):
			return ErrPermission
		case containsCode(transientCodes, code), apiErr.ErrorFault() == smithy.FaultServer:
			return ErrTransient
		}

		return nil
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ErrTransient
	}

	return nil
}

func containsCode(codes []string, code string) bool {
	for _, c := range codes {
		if c == code {
			return true
		}
	}

	return false
}

// wrapAPIError prefixes err with its classification so callers can use errors.Is.
func wrapAPIError(op, instanceID string, err error) error {
	if kind := Classify(err); kind != nil {
		return fmt.Errorf("%w: unable to %s %s: %w", kind, op, instanceID, err)
	}

	return fmt.Errorf("unable to %s %s: %w", op, instanceID, err)
}
