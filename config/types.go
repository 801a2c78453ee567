package config

// Registry captures the global settlement parameters. Addresses are hex
// strings with an optional 0x prefix.
type Registry struct {
	Admin             string `toml:"Admin" yaml:"Admin"`
	SettlementAsset   string `toml:"SettlementAsset" yaml:"SettlementAsset"`
	TreasuryOwner     string `toml:"TreasuryOwner" yaml:"TreasuryOwner"`
	AttestationKey    string `toml:"AttestationKey" yaml:"AttestationKey"`
	MaxFacilitatorBps uint16 `toml:"MaxFacilitatorBps" yaml:"MaxFacilitatorBps"`
}

// RPC controls the JSON-RPC listener.
type RPC struct {
	ListenAddress     string  `toml:"ListenAddress" yaml:"ListenAddress"`
	ReadHeaderTimeout int     `toml:"ReadHeaderTimeout" yaml:"ReadHeaderTimeout"`
	ReadTimeout       int     `toml:"ReadTimeout" yaml:"ReadTimeout"`
	WriteTimeout      int     `toml:"WriteTimeout" yaml:"WriteTimeout"`
	IdleTimeout       int     `toml:"IdleTimeout" yaml:"IdleTimeout"`
	RateLimitPerSec   float64 `toml:"RateLimitPerSec" yaml:"RateLimitPerSec"`
	RateLimitBurst    int     `toml:"RateLimitBurst" yaml:"RateLimitBurst"`
	// JWTIssuer is required in admin JWTs when set.
	JWTIssuer string `toml:"JWTIssuer" yaml:"JWTIssuer"`
	// EnableLedgerAdmin exposes the ledger deposit and freeze methods.
	EnableLedgerAdmin bool `toml:"EnableLedgerAdmin" yaml:"EnableLedgerAdmin"`
}

// Logging selects the log environment and optional rotated file output.
type Logging struct {
	Env        string `toml:"Env" yaml:"Env"`
	File       string `toml:"File" yaml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB" yaml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups" yaml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays" yaml:"MaxAgeDays"`
}

// Telemetry configures metrics exposure and OTLP export.
type Telemetry struct {
	MetricsEnabled bool   `toml:"MetricsEnabled" yaml:"MetricsEnabled"`
	OTLPEndpoint   string `toml:"OTLPEndpoint" yaml:"OTLPEndpoint"`
	OTLPInsecure   bool   `toml:"OTLPInsecure" yaml:"OTLPInsecure"`
	OTLPHeaders    string `toml:"OTLPHeaders" yaml:"OTLPHeaders"`
	// TraceSampleRatio defaults to sampling every request when unset.
	TraceSampleRatio float64 `toml:"TraceSampleRatio" yaml:"TraceSampleRatio"`
}

// Indexer configures the event index. Path is a SQLite file, relative to
// DataDir, or a postgres:// URL. An empty path disables it.
type Indexer struct {
	Path string `toml:"Path" yaml:"Path"`
}
