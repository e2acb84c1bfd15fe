package arena

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/monclaw/arena/internal/chain"
	"github.com/monclaw/arena/internal/logging"
	"github.com/monclaw/arena/internal/mon"
)

// Handler provides HTTP handlers for the arena API
type Handler struct {
	service *Service
}

// NewHandler creates a new arena handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the arena routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/arena/create", h.CreateArena)
	r.POST("/arena/join", h.JoinArena)
	r.POST("/arena/vote", h.Vote)
	r.POST("/arena/finalize", h.Finalize)
	r.GET("/arena/:groupId/status", h.Status)
}

// CreateArena handles POST /arena/create
func (h *Handler) CreateArena(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateArenaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	arena, err := h.service.CreateArena(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"arenaId":    arena.ArenaID,
		"txHash":     arena.TxHash,
		"stake":      arena.StakeAmount,
		"endTime":    arena.EndTime,
		"explorerTx": h.service.explorer.TxURL(arena.TxHash),
	})
}

// JoinArena handles POST /arena/join
func (h *Handler) JoinArena(c *gin.Context) {
	ctx := c.Request.Context()

	var req JoinArenaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.JoinArena(ctx, req.GroupID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"txHash":     result.TxHash,
		"side":       chain.StanceFromSide(result.Side),
		"explorerTx": h.service.explorer.TxURL(result.TxHash),
	})
}

// Vote handles POST /arena/vote
func (h *Handler) Vote(c *gin.Context) {
	ctx := c.Request.Context()

	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.Vote(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"txHash":     result.TxHash,
		"side":       chain.StanceFromSide(result.Side),
		"stake":      mon.Format(result.Stake),
		"explorerTx": h.service.explorer.TxURL(result.TxHash),
	})
}

// Finalize handles POST /arena/finalize
func (h *Handler) Finalize(c *gin.Context) {
	ctx := c.Request.Context()

	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.Finalize(ctx, req.GroupID)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"txHash":      result.TxHash,
		"winningSide": chain.StanceFromSide(result.WinningSide),
		"winner":      result.Winner,
		"payout":      mon.Format(result.Payout),
		"explorerTx":  h.service.explorer.TxURL(result.TxHash),
	})
}

// Status handles GET /arena/:groupId/status
func (h *Handler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	status, err := h.service.Status(ctx, c.Param("groupId"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// writeError maps mirror and ledger errors to HTTP responses. Ledger errors
// carry the underlying message so a calling agent can decide what to do.
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrGroupNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"error":   "not_found",
			"message": "Group not found",
		})
	case errors.Is(err, ErrArenaNotFound):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "no_arena",
			"message": "No arena exists for this group",
		})
	case errors.Is(err, ErrArenaExists):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "arena_exists",
			"message": "An arena already exists for this group",
		})
	case errors.Is(err, ErrAlreadyFinalized):
		c.JSON(http.StatusConflict, gin.H{
			"error":   "already_finalized",
			"message": "Arena is already finalized",
		})
	case errors.Is(err, ErrInvalidSide):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_side",
			"message": "side must be pro or con",
		})
	case errors.Is(err, ErrInvalidStake):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_stake",
			"message": "stake must be a decimal MON amount",
		})
	case errors.Is(err, chain.ErrNotConfigured):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "chain_unavailable",
			"message": "On-chain features are not configured",
		})
	default:
		logging.L(c.Request.Context()).Error("arena operation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "ledger_error",
			"message": err.Error(),
		})
	}
}
