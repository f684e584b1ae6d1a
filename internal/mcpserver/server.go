// Package mcpserver exposes the CoverLedger platform API as MCP tools
// so assistants can quote premiums, buy coverage, and file claims over
// stdio.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all CoverLedger tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("coverledger", "1.0.0")
	client := NewClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolQuotePremium, h.HandleQuotePremium)
	s.AddTool(ToolCreatePolicy, h.HandleCreatePolicy)
	s.AddTool(ToolSubmitClaim, h.HandleSubmitClaim)
	s.AddTool(ToolGetPolicy, h.HandleGetPolicy)
	s.AddTool(ToolGetClaim, h.HandleGetClaim)
	s.AddTool(ToolCheckProfile, h.HandleCheckProfile)
	s.AddTool(ToolCheckBalance, h.HandleCheckBalance)
	s.AddTool(ToolGetPlatformStats, h.HandleGetPlatformStats)

	return s
}
