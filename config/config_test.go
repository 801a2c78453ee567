package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRegistry = `
[registry]
Admin = "0x0909090909090909090909090909090909090909090909090909090909090909"
SettlementAsset = "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
TreasuryOwner = "0x0505050505050505050505050505050505050505050505050505050505050505"
AttestationKey = "0x3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29"
MaxFacilitatorBps = 2500
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadParsesSettings(t *testing.T) {
	path := writeConfig(t, `DataDir = "/var/lib/rfq"
StorageBackend = "bolt"
AttestorKeystorePath = "keys/attestor.keystore"

[rpc]
ListenAddress = "127.0.0.1:9000"
RateLimitPerSec = 5.5
RateLimitBurst = 11
EnableLedgerAdmin = true

[logging]
Env = "prod"
File = "/var/log/rfqd.log"

[telemetry]
MetricsEnabled = true
OTLPEndpoint = "otel:4318"

[indexer]
Path = "events.db"
`+testRegistry)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.RPC.ListenAddress != "127.0.0.1:9000" || cfg.RPC.RateLimitPerSec != 5.5 || cfg.RPC.RateLimitBurst != 11 {
		t.Fatalf("unexpected rpc settings: %+v", cfg.RPC)
	}
	if !cfg.RPC.EnableLedgerAdmin {
		t.Fatalf("expected ledger admin to be enabled")
	}
	if cfg.StatePath() != filepath.Join("/var/lib/rfq", "state.db") {
		t.Fatalf("unexpected state path %s", cfg.StatePath())
	}
	if cfg.RPC.ReadHeaderTimeout != 5 || cfg.RPC.IdleTimeout != 60 {
		t.Fatalf("expected timeout defaults, got %+v", cfg.RPC)
	}
	if cfg.Logging.Env != "prod" || cfg.Logging.File != "/var/log/rfqd.log" || cfg.Logging.MaxSizeMB != 100 {
		t.Fatalf("unexpected logging settings: %+v", cfg.Logging)
	}
	if cfg.ServiceName != "rfqd" || cfg.AttestorPassphraseEnv != DefaultPassphraseEnv {
		t.Fatalf("unexpected defaults: %s %s", cfg.ServiceName, cfg.AttestorPassphraseEnv)
	}
	want := filepath.Join(filepath.Dir(path), "keys/attestor.keystore")
	if cfg.AttestorKeystorePath != want {
		t.Fatalf("keystore path not resolved: %s", cfg.AttestorKeystorePath)
	}
	if got := cfg.ResolvePath(cfg.Indexer.Path); got != "/var/lib/rfq/events.db" {
		t.Fatalf("unexpected indexer path: %s", got)
	}

	registry, err := cfg.Registry.Parse()
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	if registry.MaxFacilitatorBps != 2500 || registry.SettlementAsset[0] != 0xa1 || registry.TreasuryOwner[31] != 0x05 {
		t.Fatalf("unexpected registry: %+v", registry)
	}
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node", "config.toml")
	t.Setenv(DefaultPassphraseEnv, "test-passphrase")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("create default: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not persisted: %v", err)
	}
	key, err := cfg.AttestorKey("test-passphrase")
	if err != nil {
		t.Fatalf("load attestor key: %v", err)
	}
	registry, err := cfg.Registry.Parse()
	if err != nil {
		t.Fatalf("parse registry: %v", err)
	}
	if registry.AttestationKey != key.PubKey().Address() {
		t.Fatalf("registry attestation key does not match generated key")
	}

	reloaded, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Registry != cfg.Registry || reloaded.AttestorKeystorePath != cfg.AttestorKeystorePath {
		t.Fatalf("reloaded config differs: %+v vs %+v", reloaded, cfg)
	}
}

func TestLoadRejectsInvalidRegistry(t *testing.T) {
	cases := map[string]struct {
		contents string
		want     string
	}{
		"missing registry": {contents: `DataDir = "x"`, want: "registry.Admin is required"},
		"bad address": {
			contents: strings.Replace(testRegistry, `TreasuryOwner = "0x05`, `TreasuryOwner = "0xzz`, 1),
			want:     "invalid registry.TreasuryOwner",
		},
		"fee ceiling": {
			contents: strings.Replace(testRegistry, "MaxFacilitatorBps = 2500", "MaxFacilitatorBps = 10001", 1),
			want:     "fee ceiling",
		},
		"log env": {
			contents: "[logging]\nEnv = \"verbose\"\n" + testRegistry,
			want:     "unknown env",
		},
		"storage backend": {
			contents: "StorageBackend = \"rocksdb\"\n" + testRegistry,
			want:     "unknown backend",
		},
		"sample ratio": {
			contents: "[telemetry]\nTraceSampleRatio = 1.5\n" + testRegistry,
			want:     "sample ratio",
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.contents))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadDefaultRequiresPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	t.Setenv(DefaultPassphraseEnv, "")
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing passphrase to be rejected")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("config must not be written without a keystore")
	}
}

func TestLoadParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rfqd.yaml")
	contents := `DataDir: /srv/rfq
rpc:
  ListenAddress: "127.0.0.1:9000"
  JWTIssuer: ops
  EnableLedgerAdmin: true
registry:
  Admin: "0x0909090909090909090909090909090909090909090909090909090909090909"
  SettlementAsset: "0xa1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1a1"
  TreasuryOwner: "0x0505050505050505050505050505050505050505050505050505050505050505"
  AttestationKey: "0x3b6a27bcceb6a42d62a3a8d02a6f0d73653215771de243a63ac048a18b59da29"
  MaxFacilitatorBps: 2500
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load yaml: %v", err)
	}
	if cfg.DataDir != "/srv/rfq" || cfg.RPC.ListenAddress != "127.0.0.1:9000" || !cfg.RPC.EnableLedgerAdmin {
		t.Fatalf("unexpected settings: %+v", cfg)
	}
	if cfg.RPC.JWTIssuer != "ops" || cfg.Registry.MaxFacilitatorBps != 2500 {
		t.Fatalf("unexpected rpc or registry: %+v %+v", cfg.RPC, cfg.Registry)
	}

	if err := os.WriteFile(path, []byte(contents+"Unknown: 1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown yaml keys to be rejected")
	}
}
