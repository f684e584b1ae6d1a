package mcpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Handlers holds the handler functions for each MCP tool.
type Handlers struct {
	client *Client
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(client *Client) *Handlers {
	return &Handlers{client: client}
}

// HandleQuotePremium previews a premium for a coverage request.
func (h *Handlers) HandleQuotePremium(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coverage := req.GetFloat("coverage_amount", 0)
	if coverage <= 0 {
		return mcp.NewToolResultError("coverage_amount is required and must be positive"), nil
	}
	category := req.GetString("category", "")
	if category == "" {
		return mcp.NewToolResultError("category is required"), nil
	}
	account := req.GetString("account", "")

	raw, err := h.client.QuotePremium(ctx, account, uint64(coverage), category)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get quote: %v", err)), nil
	}

	text, err := formatQuote(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse quote: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCreatePolicy issues a policy for the configured account.
func (h *Handlers) HandleCreatePolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	coverage := req.GetFloat("coverage_amount", 0)
	if coverage <= 0 {
		return mcp.NewToolResultError("coverage_amount is required and must be positive"), nil
	}
	category := req.GetString("category", "")
	if category == "" {
		return mcp.NewToolResultError("category is required"), nil
	}
	evidence := req.GetString("evidence_digest", "")

	raw, err := h.client.CreatePolicy(ctx, uint64(coverage), category, evidence)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create policy: %v", err)), nil
	}

	text, err := formatPolicy(raw, "Policy created.")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse policy: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleSubmitClaim files a claim against a policy.
func (h *Handlers) HandleSubmitClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	policyID := req.GetString("policy_id", "")
	if policyID == "" {
		return mcp.NewToolResultError("policy_id is required"), nil
	}
	amount := req.GetFloat("amount", 0)
	if amount <= 0 {
		return mcp.NewToolResultError("amount is required and must be positive"), nil
	}
	description := req.GetString("description", "")
	evidence := req.GetString("evidence_digest", "")

	raw, err := h.client.SubmitClaim(ctx, policyID, uint64(amount), description, evidence)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to submit claim: %v", err)), nil
	}

	text, err := formatClaim(raw, "Claim submitted. It will be reviewed by an adjuster.")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse claim: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetPolicy looks up a policy by ID.
func (h *Handlers) HandleGetPolicy(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	policyID := req.GetString("policy_id", "")
	if policyID == "" {
		return mcp.NewToolResultError("policy_id is required"), nil
	}

	raw, err := h.client.GetPolicy(ctx, policyID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get policy: %v", err)), nil
	}

	text, err := formatPolicy(raw, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse policy: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetClaim looks up a claim by ID.
func (h *Handlers) HandleGetClaim(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	claimID := req.GetString("claim_id", "")
	if claimID == "" {
		return mcp.NewToolResultError("claim_id is required"), nil
	}

	raw, err := h.client.GetClaim(ctx, claimID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get claim: %v", err)), nil
	}

	text, err := formatClaim(raw, "")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse claim: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCheckProfile returns the risk profile for an account.
func (h *Handlers) HandleCheckProfile(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account := req.GetString("account", "")

	raw, err := h.client.GetProfile(ctx, account)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get profile: %v", err)), nil
	}

	text, err := formatProfile(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse profile: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleCheckBalance returns the custody balance for an account.
func (h *Handlers) HandleCheckBalance(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	account := req.GetString("account", "")

	raw, err := h.client.GetBalance(ctx, account)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to check balance: %v", err)), nil
	}

	text, err := formatBalance(raw)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to parse balance: %v", err)), nil
	}

	return mcp.NewToolResultText(text), nil
}

// HandleGetPlatformStats returns platform parameters.
func (h *Handlers) HandleGetPlatformStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw, err := h.client.GetPlatformInfo(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get platform stats: %v", err)), nil
	}

	return mcp.NewToolResultText(formatJSON(raw)), nil
}

// --- Formatting helpers ---

func formatQuote(raw json.RawMessage) (string, error) {
	q, err := unwrap(raw, "quote")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Premium Quote:\n")
	if v := getString(q, "account"); v != "" {
		fmt.Fprintf(&sb, "  Account: %s\n", v)
	}
	fmt.Fprintf(&sb, "  Category: %s\n", getString(q, "category"))
	if v, ok := getFloat(q, "coverageAmount"); ok {
		fmt.Fprintf(&sb, "  Coverage: %s\n", formatUnits(v))
	}
	if v, ok := getFloat(q, "riskScore"); ok {
		fmt.Fprintf(&sb, "  Risk score: %.0f\n", v)
	}
	if v, ok := getFloat(q, "premium"); ok {
		fmt.Fprintf(&sb, "  Premium: %s\n", formatUnits(v))
	}
	if insurable, ok := getBool(q, "insurable"); ok {
		if insurable {
			sb.WriteString("  Status: Insurable\n")
		} else {
			sb.WriteString("  Status: NOT insurable (risk score too high)\n")
		}
	}
	return sb.String(), nil
}

func formatPolicy(raw json.RawMessage, header string) (string, error) {
	p, err := unwrap(raw, "policy")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if header != "" {
		sb.WriteString(header + "\n\n")
	}
	if v, ok := getFloat(p, "id"); ok {
		fmt.Fprintf(&sb, "Policy #%.0f\n", v)
	}
	if v := getString(p, "holder"); v != "" {
		fmt.Fprintf(&sb, "  Holder: %s\n", v)
	}
	fmt.Fprintf(&sb, "  Category: %s\n", getString(p, "category"))
	if v, ok := getFloat(p, "coverageAmount"); ok {
		fmt.Fprintf(&sb, "  Coverage: %s\n", formatUnits(v))
	}
	if v, ok := getFloat(p, "premium"); ok {
		fmt.Fprintf(&sb, "  Premium paid: %s\n", formatUnits(v))
	}
	if v, ok := getFloat(p, "riskScore"); ok {
		fmt.Fprintf(&sb, "  Risk score: %.0f\n", v)
	}
	start, okStart := getFloat(p, "startBlock")
	end, okEnd := getFloat(p, "endBlock")
	if okStart && okEnd {
		fmt.Fprintf(&sb, "  Term: block %.0f to %.0f\n", start, end)
	}
	if active, ok := getBool(p, "active"); ok {
		if active {
			sb.WriteString("  Status: Active\n")
		} else {
			sb.WriteString("  Status: Inactive\n")
		}
	}
	if v, ok := getFloat(p, "claimsCount"); ok && v > 0 {
		fmt.Fprintf(&sb, "  Claims filed: %.0f\n", v)
	}
	return sb.String(), nil
}

func formatClaim(raw json.RawMessage, header string) (string, error) {
	cl, err := unwrap(raw, "claim")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	if header != "" {
		sb.WriteString(header + "\n\n")
	}
	if v, ok := getFloat(cl, "id"); ok {
		fmt.Fprintf(&sb, "Claim #%.0f\n", v)
	}
	if v, ok := getFloat(cl, "policyId"); ok {
		fmt.Fprintf(&sb, "  Policy: #%.0f\n", v)
	}
	if v := getString(cl, "claimant"); v != "" {
		fmt.Fprintf(&sb, "  Claimant: %s\n", v)
	}
	if v, ok := getFloat(cl, "amount"); ok {
		fmt.Fprintf(&sb, "  Amount: %s\n", formatUnits(v))
	}
	if v := getString(cl, "description"); v != "" {
		fmt.Fprintf(&sb, "  Description: %s\n", v)
	}
	if v, ok := getFloat(cl, "fraudScore"); ok {
		fmt.Fprintf(&sb, "  Fraud score: %.0f\n", v)
	}
	processed, _ := getBool(cl, "processed")
	approved, _ := getBool(cl, "approved")
	switch {
	case processed && approved:
		sb.WriteString("  Status: Approved and paid\n")
	case processed:
		sb.WriteString("  Status: Denied\n")
	default:
		sb.WriteString("  Status: Pending review\n")
	}
	return sb.String(), nil
}

func formatProfile(raw json.RawMessage) (string, error) {
	p, err := unwrap(raw, "profile")
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Risk Profile:\n")
	if v := getString(p, "account"); v != "" {
		fmt.Fprintf(&sb, "  Account: %s\n", v)
	}
	if v, ok := getFloat(p, "reputationScore"); ok {
		fmt.Fprintf(&sb, "  Reputation: %.0f\n", v)
	}
	if v, ok := getFloat(p, "totalPolicies"); ok {
		fmt.Fprintf(&sb, "  Policies held: %.0f\n", v)
	}
	if v, ok := getFloat(p, "claimsHistory"); ok {
		fmt.Fprintf(&sb, "  Claims filed: %.0f\n", v)
	}
	if blacklisted, ok := getBool(p, "blacklisted"); ok && blacklisted {
		sb.WriteString("  Status: BLACKLISTED (cannot purchase coverage)\n")
	}
	return sb.String(), nil
}

func formatBalance(raw json.RawMessage) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("Custody Balance:\n")
	if v := getString(m, "account"); v != "" {
		fmt.Fprintf(&sb, "  Account: %s\n", v)
	}
	if v := getString(m, "formatted"); v != "" {
		fmt.Fprintf(&sb, "  Balance: %s\n", v)
	} else if v, ok := getFloat(m, "balance"); ok {
		fmt.Fprintf(&sb, "  Balance: %s\n", formatUnits(v))
	}
	return sb.String(), nil
}

// unwrap pulls the object nested under key, falling back to the top
// level when the response is not wrapped.
func unwrap(raw json.RawMessage, key string) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if inner, ok := m[key].(map[string]any); ok {
		return inner, nil
	}
	return m, nil
}

// formatUnits renders a micro-unit amount with six decimal places.
func formatUnits(v float64) string {
	return fmt.Sprintf("%.6f", v/1_000_000)
}

func formatJSON(raw json.RawMessage) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return string(raw)
	}
	return pretty.String()
}

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func getFloat(m map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if f, ok := v.(float64); ok {
				return f, true
			}
		}
	}
	return 0, false
}

func getBool(m map[string]any, keys ...string) (bool, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok {
			if b, ok := v.(bool); ok {
				return b, true
			}
		}
	}
	return false, false
}
