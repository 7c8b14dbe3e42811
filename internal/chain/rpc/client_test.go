package rpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/chain"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

type rpcRequest struct {
	Method string            `json:"method"`
	Params []json.RawMessage `json:"params"`
}

func newServer(t *testing.T, handle func(req rpcRequest) string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,` + handle(req) + `}`))
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestGetObjectShared(t *testing.T) {
	c := newServer(t, func(req rpcRequest) string {
		assert.Equal(t, "sui_getObject", req.Method)
		return `"result":{"data":{"objectId":"0x7e6","version":"12","type":"0xabc::access_registry::Registry",
			"owner":{"Shared":{"initial_shared_version":3}}}}`
	})

	obj, err := c.GetObject(context.Background(), domain.MustParseObjectID("0x7e6"))
	require.NoError(t, err)
	assert.Equal(t, uint64(12), obj.Version)
	assert.True(t, obj.Shared)
	assert.Equal(t, uint64(3), obj.InitialSharedVersion)
}

func TestGetObjectMissing(t *testing.T) {
	c := newServer(t, func(rpcRequest) string {
		return `"result":{"error":{"code":"notExists"}}`
	})
	_, err := c.GetObject(context.Background(), domain.MustParseObjectID("0x1"))
	assert.ErrorIs(t, err, chain.ErrObjectNotFound)
}

func TestSimulateTransaction(t *testing.T) {
	sender := domain.MustParseAddress("0xa11ce")
	kind := []byte{0, 1, 2}

	t.Run("success", func(t *testing.T) {
		c := newServer(t, func(req rpcRequest) string {
			assert.Equal(t, "sui_devInspectTransactionBlock", req.Method)
			var gotSender, gotTx string
			require.NoError(t, json.Unmarshal(req.Params[0], &gotSender))
			require.NoError(t, json.Unmarshal(req.Params[1], &gotTx))
			assert.Equal(t, sender.String(), gotSender)
			assert.Equal(t, base64.StdEncoding.EncodeToString(kind), gotTx)
			return `"result":{"effects":{"status":{"status":"success"}}}`
		})
		res, err := c.SimulateTransaction(context.Background(), sender, kind)
		require.NoError(t, err)
		assert.True(t, res.Success)
	})

	t.Run("abort", func(t *testing.T) {
		c := newServer(t, func(rpcRequest) string {
			return `"result":{"effects":{"status":{"status":"failure","error":"MoveAbort(..., 1)"}}}`
		})
		res, err := c.SimulateTransaction(context.Background(), sender, kind)
		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Contains(t, res.Error, "MoveAbort")
	})

	t.Run("rpc error", func(t *testing.T) {
		c := newServer(t, func(rpcRequest) string {
			return `"error":{"code":-32602,"message":"invalid params"}`
		})
		_, err := c.SimulateTransaction(context.Background(), sender, kind)
		var rpcErr *Error
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, -32602, rpcErr.Code)
	})
}

func TestNowReadsClock(t *testing.T) {
	c := newServer(t, func(req rpcRequest) string {
		var id string
		require.NoError(t, json.Unmarshal(req.Params[0], &id))
		assert.Equal(t, domain.ClockObjectID.String(), id)
		return `"result":{"data":{"objectId":"0x6","version":"99","type":"0x2::clock::Clock",
			"content":{"fields":{"id":{"id":"0x6"},"timestamp_ms":"1767225600000"}}}}`
	})
	now, err := c.Now(context.Background())
	require.NoError(t, err)
	assert.True(t, now.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)))
}
