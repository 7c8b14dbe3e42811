package decryption

import (
	"errors"
	"fmt"
	"time"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/session"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/internal/sui"
	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var ErrInvalidConfig = errors.New("invalid decryption config")

// Config is assembled once and validated before the service starts.
type Config struct {
	PackageID   domain.ObjectID
	RegistryRef sui.SharedObjectArg

	MaxConcurrentDecryptions int
	DecryptionTimeout        time.Duration
	MaxRetries               int
	RetryBaseDelay           time.Duration
	CacheTTL                 time.Duration
	SessionTTLMinutes        int
}

// DefaultConfig fills every tunable; PackageID and RegistryRef stay zero.
func DefaultConfig() Config {
	return Config{
		MaxConcurrentDecryptions: 10,
		DecryptionTimeout:        30 * time.Second,
		MaxRetries:               3,
		RetryBaseDelay:           500 * time.Millisecond,
		CacheTTL:                 5 * time.Minute,
		SessionTTLMinutes:        10,
	}
}

func (c Config) Validate() error {
	var errs []error
	if c.PackageID.IsZero() {
		errs = append(errs, errors.New("package id is required"))
	}
	if c.RegistryRef.ID.IsZero() {
		errs = append(errs, errors.New("registry object is required"))
	}
	if c.MaxConcurrentDecryptions < 1 {
		errs = append(errs, fmt.Errorf("max concurrent decryptions must be positive, got %d", c.MaxConcurrentDecryptions))
	}
	if c.DecryptionTimeout <= 0 {
		errs = append(errs, errors.New("decryption timeout must be positive"))
	}
	if c.MaxRetries < 0 {
		errs = append(errs, errors.New("max retries must not be negative"))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, errors.New("retry base delay must not be negative"))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("cache ttl must not be negative"))
	}
	if c.SessionTTLMinutes < 1 || c.SessionTTLMinutes > session.MaxTTLMinutes {
		errs = append(errs, fmt.Errorf("session ttl must be 1..%d minutes, got %d", session.MaxTTLMinutes, c.SessionTTLMinutes))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
