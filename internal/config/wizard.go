package config

import (
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard walks the user through initial configuration and writes the
// result to .triage.yml.
func RunWizard() (*Config, error) {
	cfg := DefaultConfig()

	// 1. Capability backend.
	providerPrompt := promptui.Select{
		Label: "Select capability backend",
		Items: []string{
			"rules  — deterministic keyword rules, no API key",
			"openai — LLM classification and resolution",
		},
	}
	providerIdx, _, err := providerPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("provider selection: %w", err)
	}
	providers := []ProviderType{ProviderRules, ProviderOpenAI}
	cfg.Provider = providers[providerIdx]

	if cfg.Provider == ProviderOpenAI {
		cfg.EmbeddingProvider = EmbeddingOpenAI

		modelPrompt := promptui.Prompt{
			Label:   "Model",
			Default: cfg.Model,
		}
		if cfg.Model, err = modelPrompt.Run(); err != nil {
			return nil, fmt.Errorf("model: %w", err)
		}
	}

	// 2. Knowledge-base directory.
	kbPrompt := promptui.Prompt{
		Label:   "Knowledge-base directory",
		Default: cfg.KBDir,
	}
	if cfg.KBDir, err = kbPrompt.Run(); err != nil {
		return nil, fmt.Errorf("kb dir: %w", err)
	}

	// 3. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory (database and index)",
		Default: cfg.DataDir,
	}
	if cfg.DataDir, err = dataPrompt.Run(); err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 4. Tool execution mode.
	dryRunPrompt := promptui.Select{
		Label: "Tool execution mode",
		Items: []string{
			"dry-run — simulate refunds and emails",
			"live    — execute side effects",
		},
	}
	dryRunIdx, _, err := dryRunPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("execution mode: %w", err)
	}
	cfg.Tools.DryRun = dryRunIdx == 0

	// 5. Refund cap.
	capPrompt := promptui.Prompt{
		Label:   "Maximum auto-refund amount",
		Default: strconv.FormatFloat(cfg.Tools.RefundCap, 'f', -1, 64),
		Validate: func(s string) error {
			_, err := strconv.ParseFloat(s, 64)
			return err
		},
	}
	capStr, err := capPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("refund cap: %w", err)
	}
	cfg.Tools.RefundCap, _ = strconv.ParseFloat(capStr, 64)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(".triage.yml"); err != nil {
		return nil, err
	}

	fmt.Println("Wrote .triage.yml")
	return cfg, nil
}
