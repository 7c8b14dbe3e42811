package threshold

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
)

// Core error taxonomy. Everything leaving the client wraps one of these.
var (
	ErrSignatureNotSet   = errors.New("session key has no wallet signature")
	ErrSignatureRejected = session.ErrSignatureRejected
	ErrThresholdNotMet   = errors.New("threshold not met")
	ErrTimeout           = errors.New("decryption timed out")
	ErrTransientNetwork  = errors.New("transient key server failure")
	ErrPackageMismatch   = errors.New("session key package does not match ciphertext")
	ErrInvalidBackupKey  = errors.New("invalid backup key")
)

// ServerErrorCode is the reason a key server refused or failed a request.
type ServerErrorCode string

const (
	// Access policy denied the approval transaction.
	CodeNoAccess ServerErrorCode = "NoAccess"
	// Approval transaction did not have the required shape.
	CodeInvalidTransaction ServerErrorCode = "InvalidPTB"
	// Session certificate or request signature failed verification.
	CodeInvalidSignature ServerErrorCode = "InvalidSignature"
	CodeExpired          ServerErrorCode = "ExpiredSessionKey"
	CodeInvalidRequest   ServerErrorCode = "InvalidRequest"
	CodeUnavailable      ServerErrorCode = "Unavailable"
	CodeTimeout          ServerErrorCode = "Timeout"
	CodeInternal         ServerErrorCode = "Internal"
)

// Transient reports whether the same request may succeed later.
func (c ServerErrorCode) Transient() bool {
	switch c {
	case CodeUnavailable, CodeTimeout, CodeInternal:
		return true
	}
	return false
}

// ServerError is one key server's typed failure.
type ServerError struct {
	ServerID string
	Code     ServerErrorCode
	Message  string
}

func (e *ServerError) Error() string {
	if e.ServerID == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("key server %s: %s: %s", e.ServerID, e.Code, e.Message)
}

// QuorumError reports that the collected weight stayed below the threshold.
type QuorumError struct {
	Threshold int
	Weight    int
	Failures  []*ServerError
}

func (e *QuorumError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, f.Error())
	}
	return fmt.Sprintf("collected weight %d of threshold %d: [%s]", e.Weight, e.Threshold, strings.Join(parts, "; "))
}

// MapError translates backend errors into the core taxonomy. Policy is
// evaluated against the same chain state by every server, so one NoAccess
// decides the outcome; signature failures come next; otherwise the failure
// is transient.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	for _, core := range []error{ErrSignatureNotSet, ErrSignatureRejected, ErrThresholdNotMet, ErrTimeout, ErrTransientNetwork} {
		if errors.Is(err, core) {
			return err
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var failures []*ServerError
	var qe *QuorumError
	var se *ServerError
	switch {
	case errors.As(err, &qe):
		failures = qe.Failures
	case errors.As(err, &se):
		failures = []*ServerError{se}
	default:
		return err
	}

	has := func(codes ...ServerErrorCode) bool {
		for _, f := range failures {
			for _, c := range codes {
				if f.Code == c {
					return true
				}
			}
		}
		return false
	}
	switch {
	case has(CodeNoAccess, CodeInvalidTransaction):
		return fmt.Errorf("%w: %w", ErrThresholdNotMet, err)
	case has(CodeInvalidSignature, CodeExpired):
		return fmt.Errorf("%w: %w", ErrSignatureRejected, err)
	case has(CodeInvalidRequest):
		return fmt.Errorf("%w: %w", ErrThresholdNotMet, err)
	case len(failures) > 0 && allCode(failures, CodeTimeout):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransientNetwork, err)
	}
}

func allCode(failures []*ServerError, code ServerErrorCode) bool {
	for _, f := range failures {
		if f.Code != code {
			return false
		}
	}
	return true
}
