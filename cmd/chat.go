package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/triagehq/triage/internal/ticket"
)

var chatUserID string

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive triage session in the terminal",
	Long: `Opens a terminal conversation where every message is processed as a
ticket on one shared session. Useful for exercising the pipeline and
inspecting decisions without the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		eng, _, database, err := createEngineFromConfig(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		sessionID := "chat_" + uuid.New().String()
		fmt.Printf("triage chat session %s (ctrl-c or empty line to exit)\n\n", sessionID)

		for {
			prompt := promptui.Prompt{Label: "you"}
			text, err := prompt.Run()
			if err != nil {
				if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
					return nil
				}
				return fmt.Errorf("reading input: %w", err)
			}
			if text == "" {
				return nil
			}

			t := &ticket.Ticket{
				ID:        "chat-" + uuid.New().String(),
				Platform:  ticket.PlatformChat,
				UserID:    chatUserID,
				Text:      text,
				Metadata:  map[string]string{"thread_id": sessionID},
				CreatedAt: time.Now().UTC(),
			}

			result, err := eng.Run(cmd.Context(), t, sessionID)
			if err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}

			fmt.Printf("agent: %s\n", result.Response())
			if result.Decision != nil {
				fmt.Printf("       [%s: %s]\n", result.Decision.Disposition(), result.Decision.Reason)
			}
			fmt.Println()
		}
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatUserID, "user", "user_abc", "user id for the session")
	rootCmd.AddCommand(chatCmd)
}
