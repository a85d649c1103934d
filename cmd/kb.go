package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/kb"
)

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the knowledge-base index",
}

var kbIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the semantic index from the knowledge-base directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return err
		}

		searcher, err := kb.NewChromemSearcher(embedder)
		if err != nil {
			return err
		}

		var bar *progressbar.ProgressBar
		n, err := searcher.IndexDir(cmd.Context(), cfg.KBDir, func(current, total int, path string) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Indexing kb"),
					progressbar.OptionSetWidth(40),
					progressbar.OptionShowCount(),
					progressbar.OptionClearOnFinish(),
				)
			}
			bar.Describe(path)
			_ = bar.Set(current)
		})
		if bar != nil {
			_ = bar.Finish()
		}
		if err != nil {
			return fmt.Errorf("indexing %s: %w", cfg.KBDir, err)
		}

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}
		if err := searcher.Persist(cfg.DataDir); err != nil {
			return fmt.Errorf("persisting index: %w", err)
		}

		fmt.Printf("Indexed %d documents from %s (embedder: %s)\n", n, cfg.KBDir, embedder.Name())
		return nil
	},
}

var kbSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the knowledge base",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return err
		}

		searcher, err := createSearcherFromConfig(cfg, embedder)
		if err != nil {
			return err
		}

		results, err := searcher.Search(cmd.Context(), args[0], cfg.TopK)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No results.")
			return nil
		}

		for _, r := range results {
			fmt.Printf("%.3f  %s\n", r.Score, r.ID)
			if verbose {
				fmt.Printf("       %s\n", r.Text)
			}
		}
		return nil
	},
}

func init() {
	kbCmd.AddCommand(kbIndexCmd)
	kbCmd.AddCommand(kbSearchCmd)
	rootCmd.AddCommand(kbCmd)
}
