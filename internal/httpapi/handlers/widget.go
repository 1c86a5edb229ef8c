package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/common"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/session"
)

// sessionIDFrom pulls the visitor session id from the X-Session-ID
// header, falling back to the session_id query parameter.
func sessionIDFrom(c *gin.Context) string {
	if sid := c.GetHeader("X-Session-ID"); sid != "" {
		return sid
	}
	return c.Query("session_id")
}

func pageParams(c *gin.Context) (limit int, beforeID uint64) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}
	return limit, beforeID
}

// failConversation maps orchestrator errors onto the response envelope.
func failConversation(c *gin.Context, err error) {
	switch {
	case errors.Is(err, conversation.ErrUnauthorized):
		common.Fail(c, http.StatusUnauthorized, 40102, "session invalid or expired")
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
	case errors.Is(err, conversation.ErrClosed):
		common.Fail(c, http.StatusConflict, 40901, "conversation is resolved")
	case errors.Is(err, conversation.ErrEmptyMessage):
		common.Fail(c, http.StatusBadRequest, 10005, "message required")
	case errors.Is(err, conversation.ErrInvalidStatus):
		common.Fail(c, http.StatusBadRequest, 10006, "invalid status")
	default:
		common.Fail(c, http.StatusInternalServerError, 50001, "internal error")
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"status": "up"})
}

// GetWidgetBootstrap is the widget handshake: it confirms the
// organization exists and returns the widget configuration.
func (h *Handler) GetWidgetBootstrap(c *gin.Context) {
	orgID := c.Param("org_id")

	org, err := h.Tenants.GetOrganization(c.Request.Context(), orgID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "organization not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	resp := gin.H{
		"organization_id": org.ID,
		"name":            org.Name,
		"slug":            org.Slug,
	}
	if ws, err := h.Tenants.GetSettings(c.Request.Context(), org.ID); err == nil {
		resp["greeting_message"] = ws.GreetingMessage
		resp["default_suggestions"] = ws.DefaultSuggestions
	}
	common.OK(c, resp)
}

type createSessionReq struct {
	DisplayName string           `json:"display_name"`
	Email       string           `json:"email"`
	Metadata    session.Metadata `json:"metadata"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	orgID := c.Param("org_id")

	var req createSessionReq
	_ = c.ShouldBindJSON(&req) // all fields optional

	if _, err := h.Tenants.GetOrganization(c.Request.Context(), orgID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40404, "organization not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	sid, err := h.Sessions.Create(c.Request.Context(), orgID, req.DisplayName, req.Email, req.Metadata)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	sess, err := h.Sessions.Get(c.Request.Context(), sid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50001, "failed to create session")
		return
	}

	common.OK(c, gin.H{
		"session_id": sess.SessionID,
		"expires_at": sess.ExpiresAt,
	})
}

// ValidateSession lets a returning widget check a stored session id
// before reusing it.
func (h *Handler) ValidateSession(c *gin.Context) {
	sid := sessionIDFrom(c)
	if sid == "" {
		common.Fail(c, http.StatusBadRequest, 10007, "session_id required")
		return
	}

	res, err := h.Sessions.Validate(c.Request.Context(), sid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}

	resp := gin.H{"valid": res.Valid}
	if !res.Valid {
		resp["reason"] = res.Reason
	} else {
		resp["expires_at"] = res.Session.ExpiresAt
	}
	common.OK(c, resp)
}

type createConversationReq struct {
	OrganizationID string `json:"organization_id" binding:"required"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	sid := sessionIDFrom(c)

	var req createConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	conv, err := h.Convs.CreateConversation(c.Request.Context(), req.OrganizationID, sid)
	if err != nil {
		failConversation(c, err)
		return
	}

	common.OK(c, gin.H{"conversation": conv})
}

func (h *Handler) ListSessionConversations(c *gin.Context) {
	sid := sessionIDFrom(c)
	limit, beforeID := pageParams(c)

	views, err := h.Convs.ListForSession(c.Request.Context(), sid, limit, beforeID)
	if err != nil {
		failConversation(c, err)
		return
	}

	var nextBeforeID uint64
	if len(views) > 0 {
		nextBeforeID = views[len(views)-1].ID
	}
	common.OK(c, gin.H{
		"conversations":  views,
		"next_before_id": nextBeforeID,
	})
}

func (h *Handler) GetVisitorConversation(c *gin.Context) {
	sid := sessionIDFrom(c)

	conv, err := h.Convs.GetForVisitor(c.Request.Context(), c.Param("conversation_id"), sid)
	if err != nil {
		failConversation(c, err)
		return
	}
	common.OK(c, gin.H{"conversation": conv})
}

type visitorMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// SendVisitorMessage appends the visitor turn and, when the
// conversation is AI-owned, runs the agent synchronously. On agent
// failure the turn is already persisted and 202 signals "no reply yet".
func (h *Handler) SendVisitorMessage(c *gin.Context) {
	sid := sessionIDFrom(c)

	var req visitorMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	convID := c.Param("conversation_id")
	if err := h.Convs.SubmitVisitorMessage(c.Request.Context(), convID, sid, req.Message); err != nil {
		if errors.Is(err, conversation.ErrAgentUnavailable) {
			c.JSON(http.StatusAccepted, common.Response{
				Code:    20201,
				Message: "message stored, reply pending",
				Data:    nil,
			})
			return
		}
		failConversation(c, err)
		return
	}

	common.OK(c, gin.H{"conversation_id": convID})
}

func (h *Handler) ListVisitorMessages(c *gin.Context) {
	sid := sessionIDFrom(c)
	limit, beforeID := pageParams(c)

	turns, err := h.Convs.ListVisitorTurns(c.Request.Context(), c.Param("conversation_id"), sid, limit, beforeID)
	if err != nil {
		failConversation(c, err)
		return
	}

	var nextBeforeID uint64
	if len(turns) > 0 {
		nextBeforeID = turns[len(turns)-1].ID
	}
	common.OK(c, gin.H{
		"messages":       turns,
		"next_before_id": nextBeforeID,
	})
}

// StreamVisitorConversation pushes new turns over SSE as they land.
func (h *Handler) StreamVisitorConversation(c *gin.Context) {
	sid := sessionIDFrom(c)

	conv, err := h.Convs.GetForVisitor(c.Request.Context(), c.Param("conversation_id"), sid)
	if err != nil {
		failConversation(c, err)
		return
	}
	h.streamThread(c, conv.ThreadID)
}
