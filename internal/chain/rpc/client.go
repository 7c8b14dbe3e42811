// Package rpc implements chain.Client over Sui JSON-RPC.
package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ybbus/jsonrpc/v3"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

// Error is a JSON-RPC error object returned by the node.
type Error = jsonrpc.RPCError

type Client struct {
	endpoint string
	http     *http.Client
	rpc      jsonrpc.RPCClient
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

func New(endpoint string, opts ...Option) *Client {
	c := &Client{endpoint: endpoint, http: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	c.rpc = jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient:         c.http,
		AllowUnknownFields: true,
	})
	return c
}

func (c *Client) call(ctx context.Context, method string, out any, params ...any) error {
	if err := c.rpc.CallFor(ctx, out, method, params...); err != nil {
		var rpcErr *Error
		if errors.As(err, &rpcErr) {
			return rpcErr
		}
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}

type objectResponse struct {
	Data *struct {
		ObjectID string          `json:"objectId"`
		Version  string          `json:"version"`
		Type     string          `json:"type"`
		Owner    json.RawMessage `json:"owner"`
		Content  *struct {
			Fields map[string]json.RawMessage `json:"fields"`
		} `json:"content"`
	} `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
}

type sharedOwner struct {
	Shared *struct {
		InitialSharedVersion json.Number `json:"initial_shared_version"`
	} `json:"Shared"`
}

func (c *Client) getObject(ctx context.Context, id domain.ObjectID) (*objectResponse, error) {
	var out objectResponse
	opts := map[string]bool{"showType": true, "showOwner": true, "showContent": true}
	if err := c.call(ctx, "sui_getObject", &out, id.String(), opts); err != nil {
		return nil, err
	}
	if out.Data == nil {
		code := "unknown"
		if out.Error != nil {
			code = out.Error.Code
		}
		return nil, fmt.Errorf("%w: %s (%s)", chain.ErrObjectNotFound, id, code)
	}
	return &out, nil
}

func (c *Client) GetObject(ctx context.Context, id domain.ObjectID) (*chain.Object, error) {
	out, err := c.getObject(ctx, id)
	if err != nil {
		return nil, err
	}
	obj := &chain.Object{ID: id, Type: out.Data.Type}
	if obj.Version, err = strconv.ParseUint(out.Data.Version, 10, 64); err != nil {
		return nil, fmt.Errorf("parse version of %s: %w", id, err)
	}
	var owner sharedOwner
	if len(out.Data.Owner) > 0 && json.Unmarshal(out.Data.Owner, &owner) == nil && owner.Shared != nil {
		v, err := strconv.ParseUint(owner.Shared.InitialSharedVersion.String(), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse initial shared version of %s: %w", id, err)
		}
		obj.Shared = true
		obj.InitialSharedVersion = v
	}
	return obj, nil
}

type devInspectResponse struct {
	Effects struct {
		Status struct {
			Status string `json:"status"`
			Error  string `json:"error"`
		} `json:"status"`
	} `json:"effects"`
	Error string `json:"error"`
}

func (c *Client) SimulateTransaction(ctx context.Context, sender domain.Address, txKind []byte) (*chain.SimulationResult, error) {
	var out devInspectResponse
	err := c.call(ctx, "sui_devInspectTransactionBlock", &out,
		sender.String(),
		base64.StdEncoding.EncodeToString(txKind),
		nil,
		nil,
	)
	if err != nil {
		return nil, err
	}
	if out.Effects.Status.Status == "success" && out.Error == "" {
		return &chain.SimulationResult{Success: true}, nil
	}
	msg := out.Effects.Status.Error
	if msg == "" {
		msg = out.Error
	}
	return &chain.SimulationResult{Success: false, Error: msg}, nil
}

var errNoTimestamp = errors.New("clock object has no timestamp_ms field")

// Now reads timestamp_ms from the shared clock object.
func (c *Client) Now(ctx context.Context) (time.Time, error) {
	out, err := c.getObject(ctx, domain.ClockObjectID)
	if err != nil {
		return time.Time{}, err
	}
	if out.Data.Content == nil {
		return time.Time{}, errNoTimestamp
	}
	raw, ok := out.Data.Content.Fields["timestamp_ms"]
	if !ok {
		return time.Time{}, errNoTimestamp
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse clock timestamp: %w", err)
	}
	return time.UnixMilli(ms), nil
}

var _ chain.Client = (*Client)(nil)
