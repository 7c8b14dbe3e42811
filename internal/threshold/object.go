package threshold

import (
	"errors"
	"fmt"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui/bcs"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

const objectVersion = 1

var ErrMalformedCiphertext = errors.New("malformed encrypted object")

// Header is the public part of an encrypted object. It says who may decrypt
// and which servers hold the key, nothing about the plaintext.
type Header struct {
	PackageID domain.ObjectID
	Identity  []byte
	Threshold int
	Servers   []ServerShares
}

// ServerShares is one server's slice of the sharing: one share per unit of weight.
type ServerShares struct {
	ServerID string
	Shares   []SealedShare
}

// SealedShare is a Shamir share sealed to a key server, or resealed by the
// server to a requester.
type SealedShare struct {
	X   byte        `json:"x"`
	Box sealbox.Box `json:"box"`
}

func (h Header) Weight(serverID string) int {
	for _, s := range h.Servers {
		if s.ServerID == serverID {
			return len(s.Shares)
		}
	}
	return 0
}

func (h Header) TotalWeight() int {
	n := 0
	for _, s := range h.Servers {
		n += len(s.Shares)
	}
	return n
}

type headerWire struct {
	Version   uint8
	PackageID domain.ObjectID
	Identity  []byte
	Threshold uint8
	Servers   []serverSharesWire
}

type serverSharesWire struct {
	ServerID string
	Shares   []sealedShareWire
}

type sealedShareWire struct {
	X          uint8
	Ephemeral  []byte
	Ciphertext []byte
}

func (h Header) marshal() []byte {
	w := headerWire{
		Version:   objectVersion,
		PackageID: h.PackageID,
		Identity:  nonNil(h.Identity),
		Threshold: uint8(h.Threshold),
		Servers:   make([]serverSharesWire, len(h.Servers)),
	}
	for i, s := range h.Servers {
		sw := serverSharesWire{ServerID: s.ServerID, Shares: make([]sealedShareWire, len(s.Shares))}
		for j, sh := range s.Shares {
			sw.Shares[j] = sealedShareWire{X: sh.X, Ephemeral: nonNil(sh.Box.Ephemeral), Ciphertext: nonNil(sh.Box.Ciphertext)}
		}
		w.Servers[i] = sw
	}
	return bcs.MustMarshal(w)
}

func parseHeader(b []byte) (Header, error) {
	var w headerWire
	if err := bcs.Unmarshal(b, &w); err != nil {
		return Header{}, err
	}
	if w.Version != objectVersion {
		return Header{}, fmt.Errorf("unsupported version %d", w.Version)
	}
	h := Header{PackageID: w.PackageID, Identity: w.Identity, Threshold: int(w.Threshold)}
	for _, sw := range w.Servers {
		s := ServerShares{ServerID: sw.ServerID}
		for _, sh := range sw.Shares {
			s.Shares = append(s.Shares, SealedShare{X: sh.X, Box: sealbox.Box{Ephemeral: sh.Ephemeral, Ciphertext: sh.Ciphertext}})
		}
		h.Servers = append(h.Servers, s)
	}
	if h.Threshold < 1 || h.Threshold > h.TotalWeight() {
		return h, fmt.Errorf("threshold %d outside 1..%d", h.Threshold, h.TotalWeight())
	}
	return h, nil
}

func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// encryptedObject is header || nonce || DEM ciphertext, BCS framed. The raw
// header bytes are the DEM associated data.
type encryptedObject struct {
	header     Header
	headerRaw  []byte
	nonce      []byte
	ciphertext []byte
}

type objectWire struct {
	Header     []byte
	Nonce      [nonceSize]byte
	Ciphertext []byte
}

func (o encryptedObject) marshal() []byte {
	w := objectWire{Header: o.headerRaw, Ciphertext: nonNil(o.ciphertext)}
	copy(w.Nonce[:], o.nonce)
	return bcs.MustMarshal(w)
}

func parseObject(b []byte) (encryptedObject, error) {
	var w objectWire
	if err := bcs.Unmarshal(b, &w); err != nil {
		return encryptedObject{}, fmt.Errorf("%w: %w", ErrMalformedCiphertext, err)
	}
	o := encryptedObject{headerRaw: w.Header, nonce: w.Nonce[:], ciphertext: w.Ciphertext}
	var err error
	if o.header, err = parseHeader(o.headerRaw); err != nil {
		return o, fmt.Errorf("%w: header: %w", ErrMalformedCiphertext, err)
	}
	return o, nil
}

type shareAADWire struct {
	Domain    string
	PackageID domain.ObjectID
	Identity  []byte
	ServerID  string
	X         uint8
}

// ShareAAD binds a sealed share to its object identity, server and index, so
// a share cannot be replayed under another identity.
func ShareAAD(pkg domain.ObjectID, identity []byte, serverID string, x byte) []byte {
	return bcs.MustMarshal(shareAADWire{
		Domain:    "pdw-share",
		PackageID: pkg,
		Identity:  nonNil(identity),
		ServerID:  serverID,
		X:         x,
	})
}
