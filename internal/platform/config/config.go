package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/CommandOSSLabs/personal-data-wallet-sub010/pkg/domain"
)

var ErrInvalidConfig = errors.New("invalid config")

const (
	ChainModeSandbox = "sandbox"
	ChainModeRPC     = "rpc"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is assembled once at startup and passed down explicitly.
type Config struct {
	Server     Server     `yaml:"server"`
	Logging    Logging    `yaml:"logging"`
	Chain      Chain      `yaml:"chain"`
	Threshold  Threshold  `yaml:"threshold"`
	Session    Session    `yaml:"session"`
	Decryption Decryption `yaml:"decryption"`
	Redis      Redis      `yaml:"redis"`
	Blob       Blob       `yaml:"blob"`
	Audit      Audit      `yaml:"audit"`
	KeyServer  KeyServer  `yaml:"key_server"`
	Wallet     Wallet     `yaml:"wallet"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// RequireAuth gates decryption endpoints behind caller tokens.
	RequireAuth   bool   `yaml:"require_auth"`
	JWTSigningKey string `yaml:"jwt_signing_key"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`
	// AdminToken enables the operator endpoints when set.
	AdminToken string `yaml:"admin_token"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Chain selects the in-process simulated chain or a Sui full node.
type Chain struct {
	Mode       string `yaml:"mode"`
	RPCURL     string `yaml:"rpc_url"`
	PackageID  string `yaml:"package_id"`
	RegistryID string `yaml:"registry_id"`
}

type Threshold struct {
	Threshold int `yaml:"threshold"`
	// SandboxServers is the size of the in-process key-server set.
	SandboxServers int            `yaml:"sandbox_servers"`
	Servers        []ServerConfig `yaml:"servers"`
}

type ServerConfig struct {
	ID     string `yaml:"id"`
	URL    string `yaml:"url"`
	Weight int    `yaml:"weight"`
	// PublicKey is the hex X25519 key published by the server.
	PublicKey string `yaml:"public_key"`
}

type Session struct {
	Store string `yaml:"store"`
	// Seed is the hex manager seed. Empty means a random seed per process,
	// which invalidates outstanding challenges on restart.
	Seed          string        `yaml:"seed"`
	TTLMinutes    int           `yaml:"ttl_minutes"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	MaxEntries    int           `yaml:"max_entries"`
}

type Decryption struct {
	MaxConcurrent  int           `yaml:"max_concurrent"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay"`
	Cache          string        `yaml:"cache"`
	CacheTTL       time.Duration `yaml:"cache_ttl"`
}

type Redis struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type Blob struct {
	AggregatorURL string `yaml:"aggregator_url"`
	PublisherURL  string `yaml:"publisher_url"`
	Epochs        int    `yaml:"epochs"`
}

type Audit struct {
	// PostgresDSN persists audit events; empty keeps them in memory.
	PostgresDSN string `yaml:"postgres_dsn"`
	Buffer      int    `yaml:"buffer"`
}

// KeyServer configures the standalone key-server process.
type KeyServer struct {
	ID         string `yaml:"id"`
	Addr       string `yaml:"addr"`
	PrivateKey string `yaml:"private_key"`
}

// Wallet lists hex ed25519 seeds the gateway may sign session challenges
// with. Intended for custodial and development deployments.
type Wallet struct {
	Seeds []string `yaml:"seeds"`
}

// Default returns a config that runs the sandbox gateway on :8080.
func Default() *Config {
	return &Config{
		Server: Server{
			Addr:              ":8080",
			ReadHeaderTimeout: 5 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			JWTIssuer:         "pdw-gateway",
			JWTAudience:       "pdw",
		},
		Logging: Logging{Level: "info", Format: "json"},
		Chain:   Chain{Mode: ChainModeSandbox},
		Threshold: Threshold{
			Threshold:      2,
			SandboxServers: 3,
		},
		Session: Session{
			Store:         BackendMemory,
			TTLMinutes:    10,
			SweepInterval: time.Minute,
			MaxEntries:    10000,
		},
		Decryption: Decryption{
			MaxConcurrent:  10,
			Timeout:        30 * time.Second,
			MaxRetries:     3,
			RetryBaseDelay: 500 * time.Millisecond,
			Cache:          BackendMemory,
			CacheTTL:       5 * time.Minute,
		},
		Redis: Redis{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Blob:      Blob{Epochs: 5},
		Audit:     Audit{Buffer: 256},
		KeyServer: KeyServer{ID: "ks-1", Addr: ":8090"},
	}
}

// Load layers defaults, the YAML file at path, the .env file at envFile and
// the process environment, then validates. Either path may be empty; a
// missing .env file is not an error.
func Load(path, envFile string) (*Config, error) {
	c := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, c); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

type envReader struct{ errs []error }

func (r *envReader) str(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(v)
	}
}

func (r *envReader) int(key string, dst *int) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = n
}

func (r *envReader) bool(key string, dst *bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = b
}

func (r *envReader) dur(key string, dst *time.Duration) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: %w", key, err))
		return
	}
	*dst = d
}

func (r *envReader) csv(key string, dst *[]string) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return
	}
	var out []string
	for part := range strings.SplitSeq(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (c *Config) applyEnv() error {
	var r envReader
	r.str("PDW_ADDR", &c.Server.Addr)
	r.bool("PDW_REQUIRE_AUTH", &c.Server.RequireAuth)
	r.str("PDW_JWT_SIGNING_KEY", &c.Server.JWTSigningKey)
	r.str("PDW_ADMIN_TOKEN", &c.Server.AdminToken)

	r.str("PDW_LOG_LEVEL", &c.Logging.Level)
	r.str("PDW_LOG_FORMAT", &c.Logging.Format)

	r.str("PDW_CHAIN_MODE", &c.Chain.Mode)
	r.str("PDW_RPC_URL", &c.Chain.RPCURL)
	r.str("PDW_PACKAGE_ID", &c.Chain.PackageID)
	r.str("PDW_REGISTRY_ID", &c.Chain.RegistryID)

	r.int("PDW_THRESHOLD", &c.Threshold.Threshold)
	r.int("PDW_SANDBOX_SERVERS", &c.Threshold.SandboxServers)

	r.str("PDW_SESSION_STORE", &c.Session.Store)
	r.str("PDW_SESSION_SEED", &c.Session.Seed)
	r.int("PDW_SESSION_TTL_MINUTES", &c.Session.TTLMinutes)
	r.dur("PDW_SESSION_SWEEP_INTERVAL", &c.Session.SweepInterval)

	r.int("PDW_MAX_CONCURRENT_DECRYPTIONS", &c.Decryption.MaxConcurrent)
	r.dur("PDW_DECRYPTION_TIMEOUT", &c.Decryption.Timeout)
	r.int("PDW_MAX_RETRIES", &c.Decryption.MaxRetries)
	r.dur("PDW_RETRY_BASE_DELAY", &c.Decryption.RetryBaseDelay)
	r.str("PDW_CACHE", &c.Decryption.Cache)
	r.dur("PDW_CACHE_TTL", &c.Decryption.CacheTTL)

	r.str("PDW_REDIS_URL", &c.Redis.URL)

	r.str("PDW_BLOB_AGGREGATOR_URL", &c.Blob.AggregatorURL)
	r.str("PDW_BLOB_PUBLISHER_URL", &c.Blob.PublisherURL)

	r.str("PDW_AUDIT_DSN", &c.Audit.PostgresDSN)

	r.str("PDW_KEYSERVER_ID", &c.KeyServer.ID)
	r.str("PDW_KEYSERVER_ADDR", &c.KeyServer.Addr)
	r.str("PDW_KEYSERVER_PRIVATE_KEY", &c.KeyServer.PrivateKey)

	r.csv("PDW_WALLET_SEEDS", &c.Wallet.Seeds)

	if len(r.errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(r.errs...))
	}
	return nil
}

// Validate fails fast on settings the process cannot start with.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }

	if c.Server.Addr == "" {
		add("server.addr is required")
	}
	if c.Server.RequireAuth && len(c.Server.JWTSigningKey) < 32 {
		add("server.jwt_signing_key must be at least 32 bytes when auth is required")
	}

	switch c.Chain.Mode {
	case ChainModeSandbox:
		if c.Threshold.SandboxServers < 1 {
			add("threshold.sandbox_servers must be positive")
		} else if c.Threshold.Threshold > c.Threshold.SandboxServers {
			add("threshold %d exceeds %d sandbox servers", c.Threshold.Threshold, c.Threshold.SandboxServers)
		}
	case ChainModeRPC:
		if c.Chain.RPCURL == "" {
			add("chain.rpc_url is required in rpc mode")
		}
		if _, err := domain.ParseObjectID(c.Chain.PackageID); err != nil {
			add("chain.package_id: %w", err)
		}
		if _, err := domain.ParseObjectID(c.Chain.RegistryID); err != nil {
			add("chain.registry_id: %w", err)
		}
		if len(c.Threshold.Servers) == 0 {
			add("threshold.servers is required in rpc mode")
		}
		total := 0
		for i, s := range c.Threshold.Servers {
			if s.ID == "" || s.URL == "" {
				add("threshold.servers[%d]: id and url are required", i)
			}
			if s.Weight < 1 {
				add("threshold.servers[%d]: weight must be positive", i)
			}
			if k, err := hex.DecodeString(strings.TrimPrefix(s.PublicKey, "0x")); err != nil || len(k) != 32 {
				add("threshold.servers[%d]: public_key must be 32 hex bytes", i)
			}
			total += s.Weight
		}
		if total > 0 && c.Threshold.Threshold > total {
			add("threshold %d exceeds total weight %d", c.Threshold.Threshold, total)
		}
	default:
		add("chain.mode %q must be %s or %s", c.Chain.Mode, ChainModeSandbox, ChainModeRPC)
	}
	if c.Threshold.Threshold < 1 {
		add("threshold.threshold must be positive")
	}

	if c.Session.Seed != "" {
		if _, err := hex.DecodeString(c.Session.Seed); err != nil {
			add("session.seed must be hex: %w", err)
		}
	}
	if c.Session.TTLMinutes < 1 {
		add("session.ttl_minutes must be positive")
	}
	if c.Decryption.MaxConcurrent < 1 {
		add("decryption.max_concurrent must be positive")
	}
	if c.Decryption.Timeout <= 0 {
		add("decryption.timeout must be positive")
	}
	if c.Decryption.MaxRetries < 0 {
		add("decryption.max_retries must not be negative")
	}

	for name, backend := range map[string]string{"session.store": c.Session.Store, "decryption.cache": c.Decryption.Cache} {
		switch backend {
		case BackendMemory:
		case BackendRedis:
			if c.Redis.URL == "" {
				add("%s is redis but redis.url is empty", name)
			}
		default:
			add("%s %q must be %s or %s", name, backend, BackendMemory, BackendRedis)
		}
	}

	if (c.Blob.AggregatorURL == "") != (c.Blob.PublisherURL == "") {
		add("blob.aggregator_url and blob.publisher_url must be set together")
	}
	for i, seed := range c.Wallet.Seeds {
		if b, err := hex.DecodeString(strings.TrimPrefix(seed, "0x")); err != nil || len(b) != 32 {
			add("wallet.seeds[%d] must be 32 hex bytes", i)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
