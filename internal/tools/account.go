package tools

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// AccountLookup reads and updates customer account records. It is backed by
// an in-memory fixture; a real deployment swaps in the account service
// client behind the same Tool interface.
type AccountLookup struct {
	mu       sync.Mutex
	accounts map[string]map[string]any
}

// NewAccountLookup creates the tool with a small demo account fixture.
func NewAccountLookup() *AccountLookup {
	return &AccountLookup{
		accounts: map[string]map[string]any{
			"user_abc": {
				"email":   "alice@example.com",
				"address": "Old Address 12",
				"orders":  []string{"ORDER123", "ORDER456"},
			},
		},
	}
}

func (t *AccountLookup) Name() string { return "account_lookup" }

func (t *AccountLookup) Execute(_ context.Context, params map[string]any) (Result, error) {
	userID, _ := params["user_id"].(string)
	if userID == "" {
		return Result{"success": false, "error": "missing_params: [user_id]"}, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	acct, ok := t.accounts[userID]
	if !ok {
		return Result{"success": false, "error": "user_not_found"}, nil
	}

	if updates, ok := params["update_fields"].(map[string]any); ok && len(updates) > 0 {
		for k, v := range updates {
			if v == nil {
				continue
			}
			acct[k] = v
		}
		acct["updated_at"] = time.Now().UTC().Format(time.RFC3339)
	}

	// Copy so callers cannot mutate the stored record.
	out := make(map[string]any, len(acct))
	for k, v := range acct {
		out[k] = v
	}
	return Result{"success": true, "account": out}, nil
}

// SendEmail delivers a notification email. Dry-run mode returns a preview
// instead of sending.
type SendEmail struct {
	DryRun bool
}

// NewSendEmail creates the email tool.
func NewSendEmail(dryRun bool) *SendEmail {
	return &SendEmail{DryRun: dryRun}
}

func (t *SendEmail) Name() string { return "send_email" }

func (t *SendEmail) Execute(_ context.Context, params map[string]any) (Result, error) {
	to, _ := params["to"].(string)
	subject, _ := params["subject"].(string)
	body, _ := params["body"].(string)

	if to == "" {
		return Result{"success": false, "error": "missing_params: [to]"}, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if t.DryRun {
		preview := body
		if len(preview) > 400 {
			preview = preview[:400]
		}
		return Result{
			"success": true,
			"dry_run": true,
			"preview": map[string]any{"to": to, "subject": subject, "body": preview, "ts": now},
		}, nil
	}

	// SMTP integration goes here.
	return Result{"success": true, "message_id": fmt.Sprintf("msg-%s", now)}, nil
}
