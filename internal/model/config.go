package model

import "time"

// Config is the complete finstate configuration
type Config struct {
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Issuer    IssuerConfig    `yaml:"issuer" mapstructure:"issuer"`
	Reference ReferenceConfig `yaml:"reference" mapstructure:"reference"`
	Documents []DocumentSpec  `yaml:"documents" mapstructure:"documents"`
	Pacing    PacingConfig    `yaml:"pacing" mapstructure:"pacing"`
	Fallback  FallbackMode    `yaml:"fallback" mapstructure:"fallback"`
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	HTTP      HTTPConfig      `yaml:"http" mapstructure:"http"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// APIConfig configures the remote conversion service
type APIConfig struct {
	Endpoint     string        `yaml:"endpoint" mapstructure:"endpoint"`
	Token        string        `yaml:"token,omitempty" mapstructure:"token"`
	Timeout      time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent    string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// IssuerConfig holds defaults applied to every document lacking them
type IssuerConfig struct {
	CIK    string `yaml:"cik" mapstructure:"cik"`
	Ticker string `yaml:"ticker" mapstructure:"ticker"`
}

// ReferenceConfig controls legacy reference URL derivation
type ReferenceConfig struct {
	Template string `yaml:"template" mapstructure:"template"`
}

// PacingConfig controls spacing between remote calls
type PacingConfig struct {
	Interval          time.Duration `yaml:"interval" mapstructure:"interval"`                       // Sleep between documents
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second"` // 0 disables the ceiling
}

// FallbackMode selects what happens after the reference strategy fails
type FallbackMode string

const (
	FallbackContent FallbackMode = "content" // Upload the document content
	FallbackNone    FallbackMode = "none"    // Log and skip the document
)

// CacheConfig controls the in-run response memo
type CacheConfig struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `yaml:"ttl" mapstructure:"ttl"`
}

// HTTPConfig holds proxy settings
type HTTPConfig struct {
	HTTPProxy  string `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// OutputConfig controls where combined tables go
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// LogConfig controls logrus setup
type LogConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"`
}

// DefaultReferenceTemplate reproduces the filing URL layout used for the
// issuer's annual reports when only a CIK, ticker and year are known.
const DefaultReferenceTemplate = "https://www.sec.gov/Archives/edgar/data/{{.CIK}}/000032019{{.Year}}000056/{{.Ticker}}-{{.Year}}0327.htm"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Endpoint:     "https://api.sec-api.io/xbrl-to-json",
			Timeout:      2 * time.Minute,
			UserAgent:    "finstate/0.1 (+https://github.com/ppiankov/finstate)",
			MaxBodyBytes: 64 << 20,
		},
		Reference: ReferenceConfig{
			Template: DefaultReferenceTemplate,
		},
		Pacing: PacingConfig{
			Interval: 2 * time.Second,
		},
		Fallback: FallbackContent,
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Hour,
		},
		Output: OutputConfig{
			Dir: ".",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}
