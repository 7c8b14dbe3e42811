// Package remote reaches a blob store over HTTP: reads go to an aggregator,
// writes to a publisher.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

const (
	defaultEpochs = 5
	maxBlobBytes  = 16 << 20
)

var ErrNoBlobID = errors.New("publisher response carried no blob id")

type Client struct {
	aggregator string
	publisher  string
	epochs     int
	http       *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithEpochs sets how many storage epochs published blobs are paid for.
func WithEpochs(n int) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.epochs = n
		}
	}
}

func New(aggregatorURL, publisherURL string, opts ...Option) *Client {
	c := &Client{
		aggregator: strings.TrimRight(aggregatorURL, "/"),
		publisher:  strings.TrimRight(publisherURL, "/"),
		epochs:     defaultEpochs,
		http:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Fetch(ctx context.Context, id string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.aggregator+"/v1/blobs/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob %s: %w: %w", id, sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("blob %s: %w", id, sentinel.ErrNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("fetch blob %s: %w: aggregator returned %s", id, sentinel.ErrUnavailable, resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetch blob %s: aggregator returned %s", id, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBlobBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w: %w", id, sentinel.ErrUnavailable, err)
	}
	if len(data) > maxBlobBytes {
		return nil, fmt.Errorf("blob %s exceeds %d bytes", id, maxBlobBytes)
	}
	return data, nil
}

// storeResponse is the publisher's reply: one of the two branches is set.
type storeResponse struct {
	NewlyCreated *struct {
		BlobObject struct {
			BlobID string `json:"blobId"`
		} `json:"blobObject"`
	} `json:"newlyCreated"`
	AlreadyCertified *struct {
		BlobID string `json:"blobId"`
	} `json:"alreadyCertified"`
}

func (r storeResponse) blobID() string {
	switch {
	case r.NewlyCreated != nil:
		return r.NewlyCreated.BlobObject.BlobID
	case r.AlreadyCertified != nil:
		return r.AlreadyCertified.BlobID
	}
	return ""
}

func (c *Client) Put(ctx context.Context, data []byte) (string, error) {
	endpoint := c.publisher + "/v1/blobs?epochs=" + strconv.Itoa(c.epochs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("publish blob: %w: %w", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("publish blob: %w: publisher returned %s", sentinel.ErrUnavailable, resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("publish blob: publisher returned %s", resp.Status)
	}

	var out storeResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return "", fmt.Errorf("decode publisher response: %w", err)
	}
	id := out.blobID()
	if id == "" {
		return "", ErrNoBlobID
	}
	return id, nil
}
