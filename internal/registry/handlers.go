package registry

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/monclaw/arena/internal/gate"
	"github.com/monclaw/arena/internal/logging"
	"github.com/monclaw/arena/internal/metrics"
	"github.com/monclaw/arena/internal/validation"
)

// WalletGate checks a wallet's balance eligibility.
type WalletGate interface {
	Check(ctx context.Context, addr string) error
}

// Handler provides HTTP handlers for the registry API
type Handler struct {
	store Store
	gate  WalletGate
}

// NewHandler creates a new registry handler
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// SetWalletGate wires the spectator balance gate. Spectators registering a
// wallet below the minimum are rejected up front instead of at vote time.
func (h *Handler) SetWalletGate(g WalletGate) { h.gate = g }

// RegisterRoutes sets up the registry routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/agents", h.RegisterAgent)
	r.GET("/agents", h.ListAgents)
	r.GET("/agents/:agentId", h.GetAgent)
	r.DELETE("/agents/:agentId", h.DeleteAgent)
}

// RegisterAgent handles POST /agents
func (h *Handler) RegisterAgent(c *gin.Context) {
	ctx := c.Request.Context()
	logger := logging.L(ctx)

	var req RegisterAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	if !validation.IsValidAgentID(req.AgentID) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_agent_id",
			"message": "Agent ID must be 1-64 chars of [a-zA-Z0-9_-]",
		})
		return
	}

	if req.Role == "" {
		req.Role = RoleDebater
	}
	if !IsValidRole(req.Role) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_role",
			"message": "Role must be debater or spectator",
		})
		return
	}

	if req.WalletAddress != "" && !validation.IsValidEthAddress(req.WalletAddress) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "Wallet must be a valid EVM address",
		})
		return
	}

	if h.gate != nil && req.Role == RoleSpectator && req.WalletAddress != "" {
		if err := h.gate.Check(ctx, req.WalletAddress); err != nil {
			if errors.Is(err, gate.ErrInsufficientBalance) {
				c.JSON(http.StatusForbidden, gin.H{
					"error":   "insufficient_balance",
					"message": err.Error(),
				})
				return
			}
			logger.Error("spectator balance check failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to verify wallet balance",
			})
			return
		}
	}

	agent := &Agent{
		AgentID:       req.AgentID,
		Name:          validation.SanitizeString(req.Name, 128),
		Role:          req.Role,
		WalletAddress: validation.SanitizeAddress(req.WalletAddress),
		Description:   validation.SanitizeString(req.Description, 1024),
	}

	if err := h.store.CreateAgent(ctx, agent); err != nil {
		switch {
		case errors.Is(err, ErrAgentExists):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "agent_exists",
				"message": "An agent with this ID is already registered",
			})
		case errors.Is(err, ErrWalletTaken):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "wallet_taken",
				"message": "This wallet is already registered to another agent",
			})
		default:
			logger.Error("failed to create agent", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to register agent",
			})
		}
		return
	}

	metrics.AgentsRegisteredTotal.WithLabelValues(agent.Role).Inc()
	logger.Info("agent registered",
		"agent_id", agent.AgentID,
		"role", agent.Role,
		"wallet", agent.WalletAddress,
	)

	c.JSON(http.StatusCreated, agent)
}

// GetAgent handles GET /agents/:agentId
func (h *Handler) GetAgent(c *gin.Context) {
	ctx := c.Request.Context()

	agent, err := h.store.GetAgent(ctx, c.Param("agentId"))
	if err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Agent not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get agent",
		})
		return
	}

	c.JSON(http.StatusOK, agent)
}

// ListAgents handles GET /agents
func (h *Handler) ListAgents(c *gin.Context) {
	ctx := c.Request.Context()

	query := AgentQuery{
		Role:   c.Query("role"),
		Limit:  parseIntQuery(c, "limit", 100),
		Offset: parseIntQuery(c, "offset", 0),
	}
	if query.Role != "" && !IsValidRole(query.Role) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_role",
			"message": "Role must be debater or spectator",
		})
		return
	}

	agents, err := h.store.ListAgents(ctx, query)
	if err != nil {
		logging.L(ctx).Error("failed to list agents", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list agents",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agents": agents,
		"count":  len(agents),
	})
}

// DeleteAgent handles DELETE /agents/:agentId
func (h *Handler) DeleteAgent(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.DeleteAgent(ctx, c.Param("agentId")); err != nil {
		if errors.Is(err, ErrAgentNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Agent not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to delete agent",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func parseIntQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}
