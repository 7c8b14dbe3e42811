package remote

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/blob"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/platform/sentinel"
)

// fakeStore serves the aggregator and publisher routes from one map.
type fakeStore struct {
	mu     sync.Mutex
	blobs  map[string][]byte
	epochs string
}

func (f *fakeStore) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/blobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		data, ok := f.blobs[chi.URLParam(r, "id")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(data)
	})
	r.Put("/v1/blobs", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		id := blob.ContentID(data)
		f.mu.Lock()
		defer f.mu.Unlock()
		f.epochs = r.URL.Query().Get("epochs")
		if _, ok := f.blobs[id]; ok {
			_, _ = io.WriteString(w, `{"alreadyCertified":{"blobId":"`+id+`","endEpoch":9}}`)
			return
		}
		f.blobs[id] = data
		_, _ = io.WriteString(w, `{"newlyCreated":{"blobObject":{"blobId":"`+id+`","size":1}}}`)
	})
	return r
}

func TestClientRoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := &fakeStore{blobs: map[string][]byte{}}
	srv := httptest.NewServer(fake.router())
	defer srv.Close()
	c := New(srv.URL, srv.URL+"/", WithEpochs(3))

	id, err := c.Put(ctx, []byte("sealed"))
	require.NoError(t, err)
	assert.Equal(t, blob.ContentID([]byte("sealed")), id)
	assert.Equal(t, "3", fake.epochs)

	again, err := c.Put(ctx, []byte("sealed"))
	require.NoError(t, err)
	assert.Equal(t, id, again, "already certified blobs report their id")

	got, err := c.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sealed", string(got))

	_, err = c.Fetch(ctx, "nope")
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestClientErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("server error is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		c := New(srv.URL, srv.URL)

		_, err := c.Fetch(ctx, "x")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		_, err = c.Put(ctx, []byte("x"))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("unreachable is unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		srv.Close()
		_, err := New(srv.URL, srv.URL).Fetch(ctx, "x")
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	})

	t.Run("publisher reply without id", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{}`)
		}))
		defer srv.Close()
		_, err := New(srv.URL, srv.URL).Put(ctx, []byte("x"))
		assert.ErrorIs(t, err, ErrNoBlobID)
	})
}
