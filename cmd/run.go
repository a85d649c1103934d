package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/ticket"
)

var (
	runTicketFile string
	runText       string
	runUserID     string
	runUrgency    string
	runPlatform   string
	runExecute    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process one ticket through the triage pipeline",
	Long: `Runs a single ticket through the full pipeline and prints the result
as JSON, including the complete audit trail. The ticket comes either
from a JSON file (--ticket) or from inline flags (--text, --user).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if runExecute {
			cfg.Tools.DryRun = false
		}

		t, err := buildTicket()
		if err != nil {
			return err
		}

		eng, _, database, err := createEngineFromConfig(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		result, err := eng.Run(cmd.Context(), t, "")
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return fmt.Errorf("marshalling result: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func buildTicket() (*ticket.Ticket, error) {
	if runTicketFile != "" {
		data, err := os.ReadFile(runTicketFile)
		if err != nil {
			return nil, fmt.Errorf("reading ticket file: %w", err)
		}
		var t ticket.Ticket
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("parsing ticket file: %w", err)
		}
		if t.ID == "" {
			t.ID = uuid.New().String()
		}
		return &t, nil
	}

	if runText == "" {
		return nil, fmt.Errorf("either --ticket or --text is required")
	}

	t := &ticket.Ticket{
		ID:        uuid.New().String(),
		Platform:  ticket.Platform(runPlatform),
		UserID:    runUserID,
		Text:      runText,
		CreatedAt: time.Now().UTC(),
	}
	if runUrgency != "" {
		t.Metadata = map[string]string{"urgency": runUrgency}
	}
	return t, nil
}

func init() {
	runCmd.Flags().StringVar(&runTicketFile, "ticket", "", "path to a ticket JSON file")
	runCmd.Flags().StringVar(&runText, "text", "", "ticket text (inline ticket)")
	runCmd.Flags().StringVar(&runUserID, "user", "", "user id for an inline ticket")
	runCmd.Flags().StringVar(&runUrgency, "urgency", "", "urgency override (low, medium, high)")
	runCmd.Flags().StringVar(&runPlatform, "platform", "api", "originating platform")
	runCmd.Flags().BoolVar(&runExecute, "execute", false, "execute tool side effects instead of dry-run")
	rootCmd.AddCommand(runCmd)
}
