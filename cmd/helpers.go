package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/triagehq/triage/internal/audit"
	"github.com/triagehq/triage/internal/capability"
	"github.com/triagehq/triage/internal/config"
	"github.com/triagehq/triage/internal/db"
	"github.com/triagehq/triage/internal/embeddings"
	"github.com/triagehq/triage/internal/engine"
	"github.com/triagehq/triage/internal/kb"
	"github.com/triagehq/triage/internal/llm"
	"github.com/triagehq/triage/internal/memory"
	"github.com/triagehq/triage/internal/policy"
	"github.com/triagehq/triage/internal/retrieval"
	"github.com/triagehq/triage/internal/tools"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// createEmbedderFromConfig creates an embeddings.Embedder based on config.
// Shared by the run, serve, chat and kb commands.
func createEmbedderFromConfig(cfg *config.Config) (embeddings.Embedder, error) {
	switch cfg.EmbeddingProvider {
	case config.EmbeddingOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for OpenAI embeddings")
		}
		return embeddings.NewOpenAIEmbedder(apiKey, embeddings.OpenAIModel(cfg.EmbeddingModel)), nil
	default:
		return embeddings.NewHashEmbedder(), nil
	}
}

// createCapabilitiesFromConfig creates the classifier and resolver pair.
func createCapabilitiesFromConfig(cfg *config.Config) (capability.Classifier, capability.Resolver, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		apiKey := os.Getenv(config.APIKeyEnvVar(config.ProviderOpenAI))
		if apiKey == "" {
			return nil, nil, fmt.Errorf("OPENAI_API_KEY environment variable is required for the openai provider")
		}
		provider := llm.NewOpenAIProvider(apiKey, cfg.Model)
		return capability.NewLLMClassifier(provider, cfg.Model), capability.NewLLMResolver(provider, cfg.Model), nil
	default:
		return capability.NewRuleClassifier(), capability.NewRuleResolver(), nil
	}
}

// createSearcherFromConfig returns the semantic KB index when one has been
// built, falling back to keyword search over the raw documents.
func createSearcherFromConfig(cfg *config.Config, embedder embeddings.Embedder) (kb.Searcher, error) {
	indexPath := filepath.Join(cfg.DataDir, "kb.gob.gz")
	if _, err := os.Stat(indexPath); err == nil {
		searcher, err := kb.NewChromemSearcher(embedder)
		if err != nil {
			return nil, err
		}
		if err := searcher.Load(cfg.DataDir); err != nil {
			return nil, fmt.Errorf("loading kb index: %w", err)
		}
		return searcher, nil
	}
	return kb.NewKeywordSearcher(cfg.KBDir), nil
}

// createEngineFromConfig wires the complete pipeline: database, memory,
// audit, capabilities, retrieval, tools and policy.
func createEngineFromConfig(cfg *config.Config) (*engine.Engine, *audit.Store, *db.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("creating data dir: %w", err)
	}

	database, err := db.Open(filepath.Join(cfg.DataDir, "triage.db"))
	if err != nil {
		return nil, nil, nil, err
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	classifier, resolver, err := createCapabilitiesFromConfig(cfg)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	searcher, err := createSearcherFromConfig(cfg, embedder)
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}

	registry := tools.NewRegistry()
	registry.Register(tools.NewRefund(cfg.Tools.RefundCap, cfg.Tools.DryRun))
	registry.Register(tools.NewAccountLookup())
	registry.Register(tools.NewSendEmail(cfg.Tools.DryRun))

	auditStore := audit.NewStore(database)

	eng, err := engine.New(engine.Deps{
		Memory:     memory.NewStore(database, embedder),
		AuditStore: auditStore,
		Classifier: classifier,
		Resolver:   resolver,
		Policy: policy.New(policy.Config{
			AutoThreshold: cfg.Policy.AutoThreshold,
			SafeThreshold: cfg.Policy.SafeThreshold,
		}),
		Retriever: &retrieval.Retriever{Searcher: searcher, TopK: cfg.TopK},
		Tools:     registry,
		TopK:      cfg.TopK,
	})
	if err != nil {
		database.Close()
		return nil, nil, nil, err
	}
	return eng, auditStore, database, nil
}
