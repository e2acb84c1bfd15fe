package debate

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/monclaw/arena/internal/gate"
	"github.com/monclaw/arena/internal/logging"
)

// Handler provides HTTP handlers for the debate API
type Handler struct {
	service *Service
}

// NewHandler creates a new debate handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes sets up the debate routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/groups", h.CreateGroup)
	r.GET("/groups", h.ListGroups)
	r.GET("/groups/:groupId", h.GetGroup)
	r.POST("/groups/:groupId/join", h.Join)
	r.GET("/groups/:groupId/messages", h.ListMessages)
	r.POST("/groups/:groupId/messages", h.PostMessage)
	r.POST("/groups/:groupId/vote", h.CastVote)
	r.POST("/groups/:groupId/close", h.Close)
}

// CreateGroup handles POST /groups
func (h *Handler) CreateGroup(c *gin.Context) {
	ctx := c.Request.Context()

	var req CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	group, err := h.service.CreateGroup(ctx, req.GroupID, req.Topic)
	if err != nil {
		if errors.Is(err, ErrGroupExists) {
			c.JSON(http.StatusConflict, gin.H{
				"error":   "group_exists",
				"message": "A group with this ID already exists",
			})
			return
		}
		logging.L(ctx).Error("failed to create group", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to create group",
		})
		return
	}

	c.JSON(http.StatusCreated, group)
}

// ListGroups handles GET /groups
func (h *Handler) ListGroups(c *gin.Context) {
	ctx := c.Request.Context()

	groups, err := h.service.ListGroups(ctx)
	if err != nil {
		logging.L(ctx).Error("failed to list groups", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list groups",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"groups": groups,
		"count":  len(groups),
	})
}

// GetGroup handles GET /groups/:groupId
func (h *Handler) GetGroup(c *gin.Context) {
	ctx := c.Request.Context()

	info, err := h.service.GetGroupInfo(ctx, c.Param("groupId"))
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
			return
		}
		logging.L(ctx).Error("failed to get group", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to get group",
		})
		return
	}

	c.JSON(http.StatusOK, info)
}

// Join handles POST /groups/:groupId/join
func (h *Handler) Join(c *gin.Context) {
	ctx := c.Request.Context()

	var req JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	result, err := h.service.Join(ctx, c.Param("groupId"), req.AgentID)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
		case errors.Is(err, ErrAgentNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "agent_not_found",
				"message": "Agent is not registered",
			})
		case errors.Is(err, ErrStanceTaken):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "stance_taken",
				"message": "Both debater slots are filled",
			})
		case errors.Is(err, ErrArchived):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "archived",
				"message": "Group is archived",
			})
		default:
			logging.L(ctx).Error("failed to join group", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to join group",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully joined group",
		"data":    result,
	})
}

// ListMessages handles GET /groups/:groupId/messages?since=N
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()

	var since int64
	if v := c.Query("since"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_since",
				"message": "since must be a non-negative message ID",
			})
			return
		}
		since = n
	}

	messages, err := h.service.Messages(ctx, c.Param("groupId"), since)
	if err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
			return
		}
		logging.L(ctx).Error("failed to list messages", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to list messages",
		})
		return
	}

	if messages == nil {
		messages = []Message{}
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// PostMessage handles POST /groups/:groupId/messages
func (h *Handler) PostMessage(c *gin.Context) {
	ctx := c.Request.Context()

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	msg, err := h.service.PostMessage(ctx, c.Param("groupId"), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
		case errors.Is(err, ErrAgentNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "agent_not_found",
				"message": "Agent is not registered",
			})
		case errors.Is(err, ErrMessageNotFound):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_reply",
				"message": "replyTo references an unknown message",
			})
		case errors.Is(err, ErrNotMember),
			errors.Is(err, ErrNoStance),
			errors.Is(err, ErrInvalidType),
			errors.Is(err, ErrContentTooLong):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_message",
				"message": err.Error(),
			})
		case errors.Is(err, ErrDebateClosed), errors.Is(err, ErrArchived):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "debate_closed",
				"message": err.Error(),
			})
		case errors.Is(err, ErrArgumentLimit):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "argument_limit",
				"message": err.Error(),
			})
		default:
			logging.L(ctx).Error("failed to post message", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to post message",
			})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": msg})
}

// CastVote handles POST /groups/:groupId/vote
func (h *Handler) CastVote(c *gin.Context) {
	ctx := c.Request.Context()

	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	score, err := h.service.CastVote(ctx, c.Param("groupId"), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrGroupNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
		case errors.Is(err, ErrAgentNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "agent_not_found",
				"message": "Voter is not registered",
			})
		case errors.Is(err, ErrMessageNotFound):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "message_not_found",
				"message": "Message not found",
			})
		case errors.Is(err, ErrAlreadyVoted):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "already_voted",
				"message": "This voter has already voted on this message",
				"score":   score,
			})
		case errors.Is(err, ErrInvalidVote):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_vote",
				"message": "voteType must be upvote or downvote",
			})
		case errors.Is(err, ErrArchived):
			c.JSON(http.StatusConflict, gin.H{
				"error":   "archived",
				"message": "Group is archived",
			})
		case errors.Is(err, gate.ErrInsufficientBalance):
			c.JSON(http.StatusForbidden, gin.H{
				"error":   "insufficient_balance",
				"message": err.Error(),
			})
		default:
			logging.L(ctx).Error("failed to cast vote", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to cast vote",
			})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"score": score})
}

// Close handles POST /groups/:groupId/close
func (h *Handler) Close(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.service.Archive(ctx, c.Param("groupId")); err != nil {
		if errors.Is(err, ErrGroupNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "not_found",
				"message": "Group not found",
			})
			return
		}
		logging.L(ctx).Error("failed to archive group", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to archive group",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"archived": true})
}
