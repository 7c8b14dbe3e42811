package testutil

import (
	"net/http"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/requestcontext"
)

// WithCaller marks the request as authenticated for addr, the state the
// auth middleware leaves behind.
func WithCaller(req *http.Request, addr domain.Address) *http.Request {
	return req.WithContext(requestcontext.WithCaller(req.Context(), addr))
}

// WithRequestID sets the correlation id the request middleware would assign.
func WithRequestID(req *http.Request, requestID string) *http.Request {
	return req.WithContext(requestcontext.WithRequestID(req.Context(), requestID))
}
