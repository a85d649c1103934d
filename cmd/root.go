package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "triage",
	Short: "Support ticket triage workflow engine",
	Long: `Triage runs inbound support tickets through a fixed workflow of
classification, memory lookup, knowledge retrieval, resolution and a
confidence-based decision policy. Every run produces a complete audit
trail; low-confidence or unsafe outcomes escalate to a human agent
with a full handoff summary.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".triage.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
