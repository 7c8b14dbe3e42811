package decryption

import (
	"context"
	"errors"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

var (
	// ErrIntegrityMismatch means the plaintext does not hash to the content
	// hash supplied with the request.
	ErrIntegrityMismatch = errors.New("decrypted content does not match its content hash")
	ErrInvalidRequest    = errors.New("invalid decryption request")
)

// ErrorKind is the failure taxonomy used for retry decisions, batch reports
// and metrics.
type ErrorKind string

const (
	KindInvalidRequest    ErrorKind = "invalid_request"
	KindInvalidIdentity   ErrorKind = "invalid_identity"
	KindMalformed         ErrorKind = "malformed_ciphertext"
	KindNotFound          ErrorKind = "not_found"
	KindSignatureNotSet   ErrorKind = "signature_not_set"
	KindSignatureRejected ErrorKind = "signature_rejected"
	KindThresholdNotMet   ErrorKind = "threshold_not_met"
	KindIntegrity         ErrorKind = "integrity_mismatch"
	KindTimeout           ErrorKind = "timeout"
	KindTransientNetwork  ErrorKind = "transient_network"
	KindCanceled          ErrorKind = "canceled"
	KindUnknown           ErrorKind = "unknown"
)

// Retryable is true only for timeouts and transient network failures;
// a retry cannot change a policy decision.
func (k ErrorKind) Retryable() bool {
	return k == KindTimeout || k == KindTransientNetwork
}

// Classify maps an error from any pipeline stage to its kind.
func Classify(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, identity.ErrInvalidIdentity), errors.Is(err, identity.ErrMalformedIdentity):
		return KindInvalidIdentity
	case errors.Is(err, threshold.ErrMalformedCiphertext), errors.Is(err, threshold.ErrPackageMismatch):
		return KindMalformed
	case errors.Is(err, ErrIntegrityMismatch):
		return KindIntegrity
	case errors.Is(err, threshold.ErrSignatureNotSet):
		return KindSignatureNotSet
	case errors.Is(err, threshold.ErrSignatureRejected):
		return KindSignatureRejected
	case errors.Is(err, threshold.ErrThresholdNotMet):
		return KindThresholdNotMet
	case errors.Is(err, sentinel.ErrNotFound):
		return KindNotFound
	case errors.Is(err, threshold.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, threshold.ErrTransientNetwork), errors.Is(err, sentinel.ErrUnavailable):
		return KindTransientNetwork
	case errors.Is(err, context.Canceled):
		return KindCanceled
	}
	return KindUnknown
}
