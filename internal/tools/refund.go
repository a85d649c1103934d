package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// DefaultRefundCap is the maximum refundable amount when no cap is configured.
const DefaultRefundCap = 5000.0

// Refund validates and (simulates) issuing a refund. In dry-run mode it
// produces a simulated transaction instead of calling the payment backend.
type Refund struct {
	Cap    float64
	DryRun bool
}

// NewRefund creates the refund tool with the given amount cap.
func NewRefund(cap float64, dryRun bool) *Refund {
	if cap <= 0 {
		cap = DefaultRefundCap
	}
	return &Refund{Cap: cap, DryRun: dryRun}
}

func (t *Refund) Name() string { return "refund" }

func (t *Refund) Execute(_ context.Context, params map[string]any) (Result, error) {
	var missing []string
	for _, p := range []string{"user_id", "order_id", "amount"} {
		if v, ok := params[p]; !ok || v == nil {
			missing = append(missing, p)
		}
	}
	if len(missing) > 0 {
		return Result{"success": false, "error": fmt.Sprintf("missing_params: %v", missing)}, nil
	}

	amount, ok := toFloat(params["amount"])
	if !ok {
		return Result{"success": false, "error": "invalid_amount"}, nil
	}
	if amount > t.Cap {
		return Result{"success": false, "error": "amount_above_limit", "allowed_max": t.Cap}, nil
	}

	orderID := fmt.Sprintf("%v", params["order_id"])
	now := time.Now().UTC().Format(time.RFC3339)

	if t.DryRun {
		return Result{
			"success": true,
			"dry_run": true,
			"sim_tx":  map[string]any{"tx_id": "sim-" + orderID, "amount": amount, "ts": now},
		}, nil
	}

	// A real deployment calls the payment service here.
	return Result{
		"success": true,
		"dry_run": false,
		"result":  map[string]any{"tx_id": "tx-" + orderID, "amount": amount, "processed_at": now},
	}, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
