package config

// DefaultConfig returns a Config with sensible defaults. The rules/hash
// backends make a fresh checkout fully runnable without credentials.
func DefaultConfig() *Config {
	return &Config{
		Provider:          ProviderRules,
		Model:             "gpt-4o-mini",
		EmbeddingProvider: EmbeddingHash,
		EmbeddingModel:    "text-embedding-3-small",
		DataDir:           "data",
		KBDir:             "kb",
		TopK:              5,
		Policy: PolicyConfig{
			AutoThreshold: 0.75,
			SafeThreshold: 0.5,
		},
		Tools: ToolsConfig{
			DryRun:    true,
			RefundCap: 5000,
		},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
	}
}
