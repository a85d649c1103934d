package config

// ProviderType identifies a capability backend.
type ProviderType string

const (
	// ProviderRules is the deterministic keyword backend. It needs no API
	// key and is the default for local runs and tests.
	ProviderRules  ProviderType = "rules"
	ProviderOpenAI ProviderType = "openai"
)

// EmbeddingProviderType identifies an embedding backend.
type EmbeddingProviderType string

const (
	// EmbeddingHash is the deterministic digest-based embedder.
	EmbeddingHash   EmbeddingProviderType = "hash"
	EmbeddingOpenAI EmbeddingProviderType = "openai"
)

// Config is the top-level triage configuration, corresponding to
// .triage.yml.
type Config struct {
	Provider          ProviderType          `yaml:"provider" koanf:"provider"`
	Model             string                `yaml:"model" koanf:"model"`
	EmbeddingProvider EmbeddingProviderType `yaml:"embedding_provider" koanf:"embedding_provider"`
	EmbeddingModel    string                `yaml:"embedding_model" koanf:"embedding_model"`

	// DataDir holds the SQLite database and the persisted KB index.
	DataDir string `yaml:"data_dir" koanf:"data_dir"`
	// KBDir is the directory of knowledge-base documents.
	KBDir string `yaml:"kb_dir" koanf:"kb_dir"`

	TopK int `yaml:"top_k" koanf:"top_k"`

	Policy PolicyConfig `yaml:"policy" koanf:"policy"`
	Tools  ToolsConfig  `yaml:"tools" koanf:"tools"`
	Server ServerConfig `yaml:"server" koanf:"server"`
}

// PolicyConfig holds the decision thresholds.
type PolicyConfig struct {
	AutoThreshold float64 `yaml:"auto_threshold" koanf:"auto_threshold"`
	SafeThreshold float64 `yaml:"safe_threshold" koanf:"safe_threshold"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	DryRun    bool    `yaml:"dry_run" koanf:"dry_run"`
	RefundCap float64 `yaml:"refund_cap" koanf:"refund_cap"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int      `yaml:"port" koanf:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" koanf:"allowed_origins"`
}
