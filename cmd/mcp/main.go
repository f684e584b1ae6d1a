// CoverLedger MCP Server - Exposes CoverLedger capabilities as MCP tools for LLMs
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/coverledger/coverledger/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:  envOrDefault("COVERLEDGER_API_URL", "http://localhost:8080"),
		APIKey:  os.Getenv("COVERLEDGER_API_KEY"),
		Account: os.Getenv("COVERLEDGER_ACCOUNT"),
	}

	if cfg.APIKey == "" {
		fmt.Fprintln(os.Stderr, "COVERLEDGER_API_KEY is required")
		os.Exit(1)
	}
	if cfg.Account == "" {
		fmt.Fprintln(os.Stderr, "COVERLEDGER_ACCOUNT is required")
		os.Exit(1)
	}

	s := mcpserver.NewMCPServer(cfg)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "MCP server error: %v\n", err)
		os.Exit(1)
	}
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
