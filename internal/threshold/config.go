package threshold

import (
	"errors"
	"fmt"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/sealbox"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/threshold/shamir"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var ErrInvalidConfig = errors.New("invalid threshold config")

// ServerInfo describes one key server of the weighted set.
type ServerInfo struct {
	ID     string `json:"id" yaml:"id"`
	Weight int    `json:"weight" yaml:"weight"`
	// PublicKey is the server's X25519 key that shares are sealed to.
	PublicKey []byte `json:"public_key" yaml:"public_key"`
	// URL is set for servers reached over HTTP.
	URL string `json:"url,omitempty" yaml:"url"`
}

// Config is the server set and threshold used for encryption.
type Config struct {
	PackageID domain.ObjectID
	Servers   []ServerInfo
	Threshold int
}

func (c Config) TotalWeight() int {
	n := 0
	for _, s := range c.Servers {
		n += s.Weight
	}
	return n
}

// Validate enforces 1 <= Threshold <= total weight over a well-formed server set.
func (c Config) Validate() error {
	if c.PackageID.IsZero() {
		return fmt.Errorf("%w: package id is required", ErrInvalidConfig)
	}
	if len(c.Servers) == 0 {
		return fmt.Errorf("%w: at least one key server is required", ErrInvalidConfig)
	}
	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if s.ID == "" {
			return fmt.Errorf("%w: key server id is required", ErrInvalidConfig)
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate key server %q", ErrInvalidConfig, s.ID)
		}
		seen[s.ID] = true
		if s.Weight < 1 {
			return fmt.Errorf("%w: key server %q has weight %d", ErrInvalidConfig, s.ID, s.Weight)
		}
		if len(s.PublicKey) != sealbox.KeySize {
			return fmt.Errorf("%w: key server %q public key must be %d bytes", ErrInvalidConfig, s.ID, sealbox.KeySize)
		}
	}
	total := c.TotalWeight()
	if total > shamir.MaxShares {
		return fmt.Errorf("%w: total weight %d exceeds %d", ErrInvalidConfig, total, shamir.MaxShares)
	}
	if c.Threshold < 1 || c.Threshold > total {
		return fmt.Errorf("%w: threshold %d must be within 1..%d", ErrInvalidConfig, c.Threshold, total)
	}
	return nil
}
