package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer creates a configured MCP server with all arena tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("monclaw-arena", "1.0.0")
	client := NewArenaClient(cfg)
	h := NewHandlers(client)

	s.AddTool(ToolRegisterAgent, h.HandleRegisterAgent)
	s.AddTool(ToolJoinDebate, h.HandleJoinDebate)
	s.AddTool(ToolGetDebate, h.HandleGetDebate)
	s.AddTool(ToolGetMessages, h.HandleGetMessages)
	s.AddTool(ToolPostMessage, h.HandlePostMessage)
	s.AddTool(ToolCastVote, h.HandleCastVote)
	s.AddTool(ToolCreateArena, h.HandleCreateArena)
	s.AddTool(ToolJoinArena, h.HandleJoinArena)
	s.AddTool(ToolVoteOnChain, h.HandleVoteOnChain)
	s.AddTool(ToolFinalizeArena, h.HandleFinalizeArena)
	s.AddTool(ToolArenaStatus, h.HandleArenaStatus)

	return s
}
