package tools

import (
	"context"
	"strings"
	"testing"
)

func TestRefundValidation(t *testing.T) {
	refund := NewRefund(1000, true)
	ctx := context.Background()

	tests := []struct {
		name    string
		params  map[string]any
		wantErr string
	}{
		{
			name:    "all params missing",
			params:  map[string]any{},
			wantErr: "missing_params",
		},
		{
			name:    "nil amount counts as missing",
			params:  map[string]any{"user_id": "u1", "order_id": "12345", "amount": nil},
			wantErr: "missing_params",
		},
		{
			name:    "unparseable amount",
			params:  map[string]any{"user_id": "u1", "order_id": "12345", "amount": "lots"},
			wantErr: "invalid_amount",
		},
		{
			name:    "amount above cap",
			params:  map[string]any{"user_id": "u1", "order_id": "12345", "amount": 1500.0},
			wantErr: "amount_above_limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := refund.Execute(ctx, tt.params)
			if err != nil {
				t.Fatalf("Execute returned an error for invalid input: %v", err)
			}
			if result["success"] != false {
				t.Fatalf("expected failure result, got %v", result)
			}
			errMsg, _ := result["error"].(string)
			if !strings.Contains(errMsg, tt.wantErr) {
				t.Errorf("error %q should contain %q", errMsg, tt.wantErr)
			}
		})
	}
}

func TestRefundCapReportsAllowedMax(t *testing.T) {
	refund := NewRefund(100, true)

	result, err := refund.Execute(context.Background(), map[string]any{
		"user_id": "u1", "order_id": "12345", "amount": 250.0,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["allowed_max"] != 100.0 {
		t.Errorf("expected allowed_max 100, got %v", result["allowed_max"])
	}
}

func TestRefundDryRun(t *testing.T) {
	refund := NewRefund(1000, true)

	result, err := refund.Execute(context.Background(), map[string]any{
		"user_id": "u1", "order_id": "12345", "amount": "49.99",
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["success"] != true || result["dry_run"] != true {
		t.Fatalf("expected dry-run success, got %v", result)
	}
	sim, ok := result["sim_tx"].(map[string]any)
	if !ok {
		t.Fatalf("expected sim_tx map, got %v", result["sim_tx"])
	}
	if sim["tx_id"] != "sim-12345" {
		t.Errorf("expected simulated tx id sim-12345, got %v", sim["tx_id"])
	}
	if sim["amount"] != 49.99 {
		t.Errorf("string amount should parse, got %v", sim["amount"])
	}
}

func TestRefundLive(t *testing.T) {
	refund := NewRefund(1000, false)

	result, err := refund.Execute(context.Background(), map[string]any{
		"user_id": "u1", "order_id": "777", "amount": 10,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["dry_run"] != false {
		t.Errorf("expected live result, got %v", result)
	}
	inner, ok := result["result"].(map[string]any)
	if !ok || inner["tx_id"] != "tx-777" {
		t.Errorf("expected tx-777, got %v", result["result"])
	}
}

func TestAccountLookup(t *testing.T) {
	acct := NewAccountLookup()
	ctx := context.Background()

	result, err := acct.Execute(ctx, map[string]any{"user_id": "user_abc"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["success"] != true {
		t.Fatalf("expected success, got %v", result)
	}
	record, ok := result["account"].(map[string]any)
	if !ok {
		t.Fatalf("expected account map, got %v", result["account"])
	}
	if record["email"] != "alice@example.com" {
		t.Errorf("unexpected email %v", record["email"])
	}
}

func TestAccountLookupUpdateFields(t *testing.T) {
	acct := NewAccountLookup()
	ctx := context.Background()

	result, err := acct.Execute(ctx, map[string]any{
		"user_id":       "user_abc",
		"update_fields": map[string]any{"address": "New Street 7", "skipped": nil},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	record := result["account"].(map[string]any)
	if record["address"] != "New Street 7" {
		t.Errorf("address not updated: %v", record["address"])
	}
	if _, ok := record["skipped"]; ok {
		t.Error("nil update values must be ignored")
	}
	if record["updated_at"] == nil {
		t.Error("expected updated_at timestamp")
	}

	// The update persists across lookups.
	again, err := acct.Execute(ctx, map[string]any{"user_id": "user_abc"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if again["account"].(map[string]any)["address"] != "New Street 7" {
		t.Error("update did not persist")
	}
}

func TestAccountLookupUnknownUser(t *testing.T) {
	acct := NewAccountLookup()

	result, err := acct.Execute(context.Background(), map[string]any{"user_id": "ghost"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["success"] != false || result["error"] != "user_not_found" {
		t.Errorf("expected user_not_found, got %v", result)
	}
}

func TestSendEmailDryRunPreview(t *testing.T) {
	email := NewSendEmail(true)

	longBody := strings.Repeat("x", 500)
	result, err := email.Execute(context.Background(), map[string]any{
		"to": "a@example.com", "subject": "hi", "body": longBody,
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	preview := result["preview"].(map[string]any)
	if len(preview["body"].(string)) != 400 {
		t.Errorf("preview body should be capped at 400 chars, got %d", len(preview["body"].(string)))
	}
}

func TestRegistryDispatch(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewRefund(1000, true))

	if _, ok := reg.Get("refund"); !ok {
		t.Fatal("registered tool not found")
	}
	if names := reg.List(); len(names) != 1 || names[0] != "refund" {
		t.Errorf("unexpected tool list %v", names)
	}

	result, err := reg.Execute(context.Background(), "refund", map[string]any{})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result["success"] != false {
		t.Errorf("expected validation failure, got %v", result)
	}
}

func TestRegistryUnknownTool(t *testing.T) {
	reg := NewRegistry()

	result, err := reg.Execute(context.Background(), "teleport", nil)
	if err != nil {
		t.Fatalf("unknown tool must not error: %v", err)
	}
	if result["error"] != "tool_not_implemented" {
		t.Errorf("expected tool_not_implemented, got %v", result)
	}
	if result["tool"] != "teleport" {
		t.Errorf("result should name the missing tool, got %v", result)
	}
}
