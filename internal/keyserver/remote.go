package keyserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
)

const maxResponseBytes = 1 << 20

// Remote is a key server reached over HTTP.
type Remote struct {
	id      string
	baseURL string
	client  *http.Client
}

type RemoteOption func(*Remote)

func WithHTTPClient(c *http.Client) RemoteOption {
	return func(r *Remote) { r.client = c }
}

func NewRemote(id, baseURL string, opts ...RemoteOption) *Remote {
	r := &Remote{
		id:      id,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Info fetches the server's public description.
func (r *Remote) Info(ctx context.Context) (ServiceInfo, error) {
	var info ServiceInfo
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/v1/service", nil)
	if err != nil {
		return info, err
	}
	resp, err := r.client.Do(httpReq)
	if err != nil {
		return info, r.transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return info, r.statusError(resp)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&info); err != nil {
		return info, fmt.Errorf("decode service info: %w", err)
	}
	return info, nil
}

func (r *Remote) FetchKey(ctx context.Context, req threshold.KeyRequest) (*threshold.KeyResponse, error) {
	body, err := json.Marshal(FetchKeyRequest{KeyRequest: req})
	if err != nil {
		return nil, fmt.Errorf("encode fetch key request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/fetch_key", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, r.transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, r.statusError(resp)
	}
	var out threshold.KeyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return nil, &threshold.ServerError{ServerID: r.id, Code: threshold.CodeInternal, Message: "undecodable response: " + err.Error()}
	}
	return &out, nil
}

func (r *Remote) transportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &threshold.ServerError{ServerID: r.id, Code: threshold.CodeTimeout, Message: err.Error()}
	}
	return &threshold.ServerError{ServerID: r.id, Code: threshold.CodeUnavailable, Message: err.Error()}
}

func (r *Remote) statusError(resp *http.Response) error {
	var body ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err == nil && knownCode(body.Error) {
		return &threshold.ServerError{ServerID: r.id, Code: body.Error, Message: body.Message}
	}
	code := threshold.CodeInternal
	switch {
	case resp.StatusCode == http.StatusGatewayTimeout:
		code = threshold.CodeTimeout
	case resp.StatusCode >= 500:
		code = threshold.CodeUnavailable
	case resp.StatusCode == http.StatusBadRequest:
		code = threshold.CodeInvalidRequest
	}
	return &threshold.ServerError{ServerID: r.id, Code: code, Message: resp.Status}
}

func knownCode(c threshold.ServerErrorCode) bool {
	switch c {
	case threshold.CodeNoAccess, threshold.CodeInvalidTransaction, threshold.CodeInvalidSignature,
		threshold.CodeExpired, threshold.CodeInvalidRequest, threshold.CodeUnavailable,
		threshold.CodeTimeout, threshold.CodeInternal:
		return true
	}
	return false
}
