package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"gopkg.in/yaml.v3"

	"rfqsettle/core/types"
	"rfqsettle/crypto"
)

const (
	// DefaultPassphraseEnv names the variable holding the attestor keystore
	// passphrase when the config does not override it.
	DefaultPassphraseEnv = "RFQ_ATTESTOR_PASSPHRASE"

	defaultMaxFacilitatorBps = 5000
)

type Config struct {
	ServiceName string `toml:"ServiceName" yaml:"ServiceName"`
	DataDir     string `toml:"DataDir" yaml:"DataDir"`
	// StorageBackend is "leveldb" (default) or "bolt".
	StorageBackend        string    `toml:"StorageBackend" yaml:"StorageBackend"`
	AttestorKeystorePath  string    `toml:"AttestorKeystorePath" yaml:"AttestorKeystorePath"`
	AttestorPassphraseEnv string    `toml:"AttestorPassphraseEnv" yaml:"AttestorPassphraseEnv"`
	Registry              Registry  `toml:"registry" yaml:"registry"`
	RPC                   RPC       `toml:"rpc" yaml:"rpc"`
	Logging               Logging   `toml:"logging" yaml:"logging"`
	Telemetry             Telemetry `toml:"telemetry" yaml:"telemetry"`
	Indexer               Indexer   `toml:"indexer" yaml:"indexer"`
}

// Load loads the configuration from the given path. A missing file is
// replaced by a default configuration with a freshly generated attestor key.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if err := decodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)

	if cfg.AttestorKeystorePath != "" && !filepath.IsAbs(cfg.AttestorKeystorePath) {
		cfg.AttestorKeystorePath = filepath.Join(filepath.Dir(path), cfg.AttestorKeystorePath)
	}
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// decodeFile reads TOML, or YAML when the file has a .yaml or .yml extension.
func decodeFile(path string, cfg *Config) error {
	if !isYAML(path) {
		_, err := toml.DecodeFile(path, cfg)
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: decode %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "rfqd"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./rfq-data"
	}
	if cfg.AttestorPassphraseEnv == "" {
		cfg.AttestorPassphraseEnv = DefaultPassphraseEnv
	}
	if cfg.RPC.ListenAddress == "" {
		cfg.RPC.ListenAddress = ":8080"
	}
	if cfg.RPC.ReadHeaderTimeout <= 0 {
		cfg.RPC.ReadHeaderTimeout = 5
	}
	if cfg.RPC.ReadTimeout <= 0 {
		cfg.RPC.ReadTimeout = 15
	}
	if cfg.RPC.WriteTimeout <= 0 {
		cfg.RPC.WriteTimeout = 15
	}
	if cfg.RPC.IdleTimeout <= 0 {
		cfg.RPC.IdleTimeout = 60
	}
	if cfg.RPC.RateLimitPerSec <= 0 {
		cfg.RPC.RateLimitPerSec = 20
	}
	if cfg.RPC.RateLimitBurst <= 0 {
		cfg.RPC.RateLimitBurst = 40
	}
	if strings.TrimSpace(cfg.Logging.Env) == "" {
		cfg.Logging.Env = "dev"
	}
	if cfg.Logging.MaxSizeMB <= 0 {
		cfg.Logging.MaxSizeMB = 100
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	passphrase := os.Getenv(DefaultPassphraseEnv)
	if strings.TrimSpace(passphrase) == "" {
		return nil, fmt.Errorf("config: set %s to create the attestor keystore", DefaultPassphraseEnv)
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
		return nil, err
	}

	attestor := key.PubKey().Address()
	cfg := &Config{
		AttestorKeystorePath: filepath.Base(keystorePath),
		Registry: Registry{
			Admin:             attestor.Hex(),
			SettlementAsset:   derivedAddress("asset/settlement").Hex(),
			TreasuryOwner:     derivedAddress("owner/treasury").Hex(),
			AttestationKey:    attestor.Hex(),
			MaxFacilitatorBps: defaultMaxFacilitatorBps,
		},
		Telemetry: Telemetry{MetricsEnabled: true},
		Indexer:   Indexer{Path: "indexer.db"},
	}
	applyDefaults(cfg)

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.AttestorKeystorePath = keystorePath
	return cfg, nil
}

func derivedAddress(label string) types.Address {
	return types.BytesToAddress(ethcrypto.Keccak256([]byte("rfqsettle/" + label)))
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	if isYAML(path) {
		enc := yaml.NewEncoder(f)
		defer enc.Close()
		return enc.Encode(cfg)
	}
	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, "attestor.keystore")
}

// AttestorKey decrypts the configured attestor keystore. It returns nil
// without error when no keystore is configured.
func (c *Config) AttestorKey(passphrase string) (*crypto.PrivateKey, error) {
	if c.AttestorKeystorePath == "" {
		return nil, nil
	}
	return crypto.LoadFromKeystore(c.AttestorKeystorePath, passphrase)
}

// StatePath is the location of the state database inside DataDir.
func (c *Config) StatePath() string {
	if c.StorageBackend == "bolt" {
		return filepath.Join(c.DataDir, "state.db")
	}
	return filepath.Join(c.DataDir, "state")
}

// ResolvePath places relative paths inside the data directory.
func (c *Config) ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.DataDir, p)
}
