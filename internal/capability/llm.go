package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/triagehq/triage/internal/llm"
	"github.com/triagehq/triage/internal/ticket"
)

const classifierSystemPrompt = `You are a support ticket classifier. Respond with a single JSON object:
{
  "intent": "short_snake_case_label",
  "domain": "support",
  "requires_knowledge": true|false,
  "recommended_tool": ["refund"|"account_lookup"|"send_email", ...],
  "confidence": 0.0-1.0
}
requires_knowledge is true when answering needs documentation or account history.
Recommend only tools from the listed set. Respond with JSON only.`

const resolverSystemPrompt = `You are a support resolution agent. Draft a reply to the customer and
propose tool actions. Respond with a single JSON object:
{
  "response_text": "message to the customer",
  "confidence": 0.0-1.0,
  "actions": [{"tool": "refund", "params": {"user_id": "...", "order_id": null, "amount": null}}],
  "explanation": "one line on how you arrived at this"
}
Use null for parameters you cannot determine. Propose only tools you were told
are allowed. Respond with JSON only.`

// LLMClassifier implements Classifier over an LLM provider using JSON-mode
// extraction.
type LLMClassifier struct {
	provider llm.Provider
	model    string
}

// NewLLMClassifier creates an LLM-backed classifier.
func NewLLMClassifier(provider llm.Provider, model string) *LLMClassifier {
	return &LLMClassifier{provider: provider, model: model}
}

func (c *LLMClassifier) Classify(ctx context.Context, t *ticket.Ticket) (*Classification, error) {
	resp, err := c.provider.Complete(ctx, llm.CompletionRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: classifierSystemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Platform: %s\nUrgency: %s\nTicket:\n%s", t.Platform, t.Urgency(), t.Text)},
		},
		MaxTokens:   512,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("classifier completion: %w", err)
	}

	var out Classification
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &out); err != nil {
		return nil, fmt.Errorf("parsing classifier output: %w", err)
	}
	if out.Intent == "" {
		out.Intent = "unknown"
	}
	if out.Domain == "" {
		out.Domain = "support"
	}
	if out.RecommendedTools == nil {
		out.RecommendedTools = []string{}
	}
	out.Confidence = clamp01(out.Confidence)
	return &out, nil
}

// LLMResolver implements Resolver over an LLM provider. Provider or parse
// failures degrade to a generic low-confidence verdict instead of an error,
// so the engine's fault containment stays a backstop.
type LLMResolver struct {
	provider llm.Provider
	model    string
}

// NewLLMResolver creates an LLM-backed resolver.
func NewLLMResolver(provider llm.Provider, model string) *LLMResolver {
	return &LLMResolver{provider: provider, model: model}
}

func (r *LLMResolver) Resolve(ctx context.Context, in ResolveInput) (*Resolution, error) {
	resp, err := r.provider.Complete(ctx, llm.CompletionRequest{
		Model: r.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: resolverSystemPrompt},
			{Role: llm.RoleUser, Content: buildResolverPrompt(in)},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
		JSONMode:    true,
	})
	if err != nil {
		return fallbackResolution(fmt.Sprintf("provider error: %v", err)), nil
	}

	var out Resolution
	if err := json.Unmarshal([]byte(extractJSON(resp.Content)), &out); err != nil {
		return fallbackResolution(fmt.Sprintf("unparseable resolver output: %v", err)), nil
	}
	if out.Response == "" {
		out.Response = genericFallbackResponse
	}
	out.Confidence = clamp01(out.Confidence)
	out.SourcesUsed = len(in.ContextDocs)
	return &out, nil
}

const genericFallbackResponse = "Thanks for contacting support. A member of our team will follow up with you shortly."

func fallbackResolution(explanation string) *Resolution {
	return &Resolution{
		Response:    genericFallbackResponse,
		Confidence:  0.0,
		Actions:     []Action{},
		Explanation: explanation,
	}
}

func buildResolverPrompt(in ResolveInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Ticket %s from user %s (urgency %s):\n%s\n",
		in.Ticket.ID, in.Ticket.UserID, in.Ticket.Urgency(), in.Ticket.Text)

	if len(in.AllowedTools) > 0 {
		fmt.Fprintf(&b, "\nAllowed tools: %s\n", strings.Join(in.AllowedTools, ", "))
	} else {
		b.WriteString("\nAllowed tools: none\n")
	}

	if len(in.ContextDocs) > 0 {
		b.WriteString("\nRetrieved context:\n")
		for _, d := range in.ContextDocs {
			fmt.Fprintf(&b, "- [%s %s] %s\n", d.Source, d.ID, d.Text)
		}
	}

	if len(in.Messages) > 0 {
		b.WriteString("\nConversation so far:\n")
		for _, m := range in.Messages {
			fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Text)
		}
	}

	if len(in.LongTerm) > 0 {
		b.WriteString("\nRelated past resolutions:\n")
		for _, h := range in.LongTerm {
			fmt.Fprintf(&b, "- (%.2f) %s\n", h.Score, h.Entry.Text)
		}
	}
	return b.String()
}

// extractJSON trims any prose around the outermost JSON object. Some models
// wrap JSON in code fences even in JSON mode.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
