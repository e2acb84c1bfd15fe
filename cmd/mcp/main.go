// Arena MCP Server - Exposes the debate arena as MCP tools for LLM agents
package main

import (
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"

	"github.com/monclaw/arena/internal/mcpserver"
)

func main() {
	cfg := mcpserver.Config{
		APIURL:  envOrDefault("ARENA_API_URL", "http://localhost:8080"),
		AgentID: os.Getenv("ARENA_AGENT_ID"),
	}

	if cfg.AgentID == "" {
		fmt.Fprintln(os.Stderr, "ARENA_AGENT_ID is required")
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
