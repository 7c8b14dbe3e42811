package keyserver_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/identity"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/keyserver"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
)

func (s *ServerSuite) serve(srv *keyserver.Server) *httptest.Server {
	r := chi.NewRouter()
	keyserver.NewHandler(srv, nil).Register(r)
	ts := httptest.NewServer(r)
	s.T().Cleanup(ts.Close)
	return ts
}

func (s *ServerSuite) TestRemoteRoundTrip() {
	srv := s.sb.KeyServers[0]
	ts := s.serve(srv)
	remote := keyserver.NewRemote("ks-1", ts.URL+"/")

	info, err := remote.Info(s.ctx)
	s.Require().NoError(err)
	s.Equal(srv.Info(), info)

	f := s.fixture(identity.Self(s.owner.Address()), s.owner, "ks-1")
	resp, err := remote.FetchKey(s.ctx, f.req)
	s.Require().NoError(err)
	s.Require().Len(resp.Shares, 1)
	_, err = sealbox.Open(f.enc, resp.Shares[0].Box, threshold.ShareAAD(s.sb.PackageID, f.req.Identity, "ks-1", resp.Shares[0].X))
	s.NoError(err)
}

func (s *ServerSuite) TestRemoteCarriesRefusalCodes() {
	ts := s.serve(s.sb.KeyServers[0])
	remote := keyserver.NewRemote("remote-1", ts.URL)

	f := s.fixture(identity.Self(s.owner.Address()), s.friend, "ks-1")
	_, err := remote.FetchKey(s.ctx, f.req)
	var se *threshold.ServerError
	s.Require().ErrorAs(err, &se)
	s.Equal(threshold.CodeNoAccess, se.Code)
	s.Equal("remote-1", se.ServerID)
}

func (s *ServerSuite) TestHandlerStatusCodes() {
	ts := s.serve(s.sb.KeyServers[0])

	s.Run("invalid json", func() {
		resp, err := http.Post(ts.URL+"/v1/fetch_key", "application/json", strings.NewReader("{"))
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)
	})

	s.Run("missing fields", func() {
		resp, err := http.Post(ts.URL+"/v1/fetch_key", "application/json", strings.NewReader(`{"identity":"AQI="}`))
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusBadRequest, resp.StatusCode)

		var body map[string]string
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
		s.Equal("validation_error", body["error"])
	})

	s.Run("denial is forbidden", func() {
		f := s.fixture(identity.Self(s.owner.Address()), s.friend, "ks-1")
		payload, err := json.Marshal(keyserver.FetchKeyRequest{KeyRequest: f.req})
		s.Require().NoError(err)
		resp, err := http.Post(ts.URL+"/v1/fetch_key", "application/json", strings.NewReader(string(payload)))
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusForbidden, resp.StatusCode)

		var body keyserver.ErrorResponse
		s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
		s.Equal(threshold.CodeNoAccess, body.Error)
	})

	s.Run("expired certificate is unauthorized", func() {
		f := s.fixture(identity.Self(s.owner.Address()), s.owner, "ks-1")
		s.sb.Chain.Advance(time.Hour)
		payload, err := json.Marshal(keyserver.FetchKeyRequest{KeyRequest: f.req})
		s.Require().NoError(err)
		resp, err := http.Post(ts.URL+"/v1/fetch_key", "application/json", strings.NewReader(string(payload)))
		s.Require().NoError(err)
		defer resp.Body.Close()
		s.Equal(http.StatusUnauthorized, resp.StatusCode)
	})
}

func (s *ServerSuite) TestRemoteUnavailable() {
	ts := s.serve(s.sb.KeyServers[0])
	url := ts.URL
	ts.Close()

	f := s.fixture(identity.Self(s.owner.Address()), s.owner, "ks-1")
	_, err := keyserver.NewRemote("ks-1", url).FetchKey(s.ctx, f.req)
	var se *threshold.ServerError
	s.Require().ErrorAs(err, &se)
	s.Equal(threshold.CodeUnavailable, se.Code)
	s.True(se.Code.Transient())
}
