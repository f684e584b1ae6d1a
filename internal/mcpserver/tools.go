package mcpserver

import "github.com/mark3labs/mcp-go/mcp"

// Tool definitions for the CoverLedger MCP server.
// Descriptions are what the LLM reads to decide which tool to use.

var ToolQuotePremium = mcp.NewTool("quote_premium",
	mcp.WithDescription(
		"Get a premium quote for an insurance coverage request. "+
			"Returns the assessed risk score, the premium in micro-units (1000000 = 1.00), "+
			"and whether the account is insurable at that risk level. Does not create a policy."),
	mcp.WithNumber("coverage_amount",
		mcp.Required(),
		mcp.Description("Requested coverage amount in micro-units (1000000 = 1.00)")),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Coverage category"),
		mcp.Enum("auto", "health", "property", "other")),
	mcp.WithString("account",
		mcp.Description("Account address to quote for (defaults to your configured account)")),
)

var ToolCreatePolicy = mcp.NewTool("create_policy",
	mcp.WithDescription(
		"Create an insurance policy for your account. "+
			"The premium is assessed from your risk profile and deducted from your custody balance. "+
			"Fails if the risk score is too high or your balance cannot cover the premium. "+
			"Use quote_premium first to preview the cost."),
	mcp.WithNumber("coverage_amount",
		mcp.Required(),
		mcp.Description("Coverage amount in micro-units (1000000 = 1.00)")),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Coverage category"),
		mcp.Enum("auto", "health", "property", "other")),
	mcp.WithString("evidence_digest",
		mcp.Description("Optional hex digest of supporting underwriting documents")),
)

var ToolSubmitClaim = mcp.NewTool("submit_claim",
	mcp.WithDescription(
		"Submit a claim against one of your active policies. "+
			"The claim is screened for fraud signals on submission and waits for an adjuster to process it. "+
			"The claimed amount must not exceed the policy coverage."),
	mcp.WithString("policy_id",
		mcp.Required(),
		mcp.Description("ID of the policy to claim against")),
	mcp.WithNumber("amount",
		mcp.Required(),
		mcp.Description("Claimed amount in micro-units (1000000 = 1.00)")),
	mcp.WithString("description",
		mcp.Description("Short description of the loss event")),
	mcp.WithString("evidence_digest",
		mcp.Description("Optional hex digest of supporting claim evidence")),
)

var ToolGetPolicy = mcp.NewTool("get_policy",
	mcp.WithDescription(
		"Look up an insurance policy by ID. "+
			"Shows coverage, premium, risk score, the block window it covers, "+
			"and how many claims have been filed against it."),
	mcp.WithString("policy_id",
		mcp.Required(),
		mcp.Description("Policy ID")),
)

var ToolGetClaim = mcp.NewTool("get_claim",
	mcp.WithDescription(
		"Look up a claim by ID. "+
			"Shows the claimed amount, fraud score, and whether the claim has been processed and approved."),
	mcp.WithString("claim_id",
		mcp.Required(),
		mcp.Description("Claim ID")),
)

var ToolCheckProfile = mcp.NewTool("check_profile",
	mcp.WithDescription(
		"Check the risk profile of an account: reputation score, policy count, "+
			"claims history, and blacklist status. These feed directly into premium pricing."),
	mcp.WithString("account",
		mcp.Description("Account address (defaults to your configured account)")),
)

var ToolCheckBalance = mcp.NewTool("check_balance",
	mcp.WithDescription(
		"Check the custody balance held for an account. "+
			"Premiums are paid from this balance and approved claim payouts are credited to it."),
	mcp.WithString("account",
		mcp.Description("Account address (defaults to your configured account)")),
)

var ToolGetPlatformStats = mcp.NewTool("get_platform_stats",
	mcp.WithDescription(
		"Get CoverLedger platform parameters: maximum coverage, policy term in blocks, "+
			"block time, and the current block height."),
)
