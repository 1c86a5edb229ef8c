package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/agent"
	"github.com/ThunderboltDev/Resound/internal/auth"
	"github.com/ThunderboltDev/Resound/internal/common"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/httpapi/middleware"
)

func operatorScope(c *gin.Context) (operatorID uint64, organizationID string, ok bool) {
	v, ok1 := c.Get(middleware.OperatorIDKey)
	w, ok2 := c.Get(middleware.OrganizationIDKey)
	if !ok1 || !ok2 {
		return 0, "", false
	}
	operatorID, ok1 = v.(uint64)
	organizationID, ok2 = w.(string)
	return operatorID, organizationID, ok1 && ok2
}

type loginReq struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	op, err := h.Tenants.GetOperatorByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 20001, "db error")
		return
	}
	if !auth.CheckPassword(op.PasswordHash, req.Password) {
		common.Fail(c, http.StatusUnauthorized, 40103, "invalid credentials")
		return
	}

	token, err := auth.SignJWT(op.ID, op.OrganizationID, h.Cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 20003, "failed to sign token")
		return
	}

	common.OK(c, gin.H{
		"token":           token,
		"operator_id":     op.ID,
		"organization_id": op.OrganizationID,
		"display_name":    op.DisplayName,
	})
}

func (h *Handler) Me(c *gin.Context) {
	opID, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	common.OK(c, gin.H{
		"operator_id":     opID,
		"organization_id": orgID,
	})
}

func (h *Handler) ListConversations(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var status *conversation.Status
	if v := c.Query("status"); v != "" {
		st := conversation.Status(v)
		if !st.Valid() {
			common.Fail(c, http.StatusBadRequest, 10006, "invalid status")
			return
		}
		status = &st
	}
	limit, beforeID := pageParams(c)

	views, err := h.Convs.ListForOperator(c.Request.Context(), orgID, status, limit, beforeID)
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

func (h *Handler) GetConversation(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	view, err := h.Convs.GetForOperator(c.Request.Context(), orgID, c.Param("conversation_id"))
	if err != nil {
		failConversation(c, err)
		return
	}
	common.OK(c, gin.H{"conversation": view})
}

type operatorMessageReq struct {
	Message string `json:"message" binding:"required"`
}

// SendOperatorMessage escalates (or reopens) the conversation before
// the reply is appended, so the agent never races a human takeover.
func (h *Handler) SendOperatorMessage(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req operatorMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	convID := c.Param("conversation_id")
	if err := h.Convs.SubmitOperatorMessage(c.Request.Context(), orgID, convID, req.Message); err != nil {
		failConversation(c, err)
		return
	}
	common.OK(c, gin.H{"conversation_id": convID})
}

func (h *Handler) ListConversationMessages(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}
	limit, beforeID := pageParams(c)

	turns, err := h.Convs.ListOperatorTurns(c.Request.Context(), orgID, c.Param("conversation_id"), limit, beforeID)
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

type setStatusReq struct {
	Status string `json:"status" binding:"required"`
}

func (h *Handler) SetConversationStatus(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req setStatusReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	convID := c.Param("conversation_id")
	if err := h.Convs.SetStatus(c.Request.Context(), orgID, convID, conversation.Status(req.Status)); err != nil {
		failConversation(c, err)
		return
	}
	common.OK(c, gin.H{
		"conversation_id": convID,
		"status":          req.Status,
	})
}

type enhanceReq struct {
	Draft string `json:"draft" binding:"required"`
}

// EnhanceReply polishes an operator draft without sending it.
func (h *Handler) EnhanceReply(c *gin.Context) {
	if _, _, ok := operatorScope(c); !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req enhanceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	out, err := agent.Enhance(c.Request.Context(), h.Enhancer, req.Draft)
	if err != nil {
		common.Fail(c, http.StatusBadGateway, 50201, "enhancement unavailable")
		return
	}
	common.OK(c, gin.H{"enhanced": out})
}

func (h *Handler) StreamConversation(c *gin.Context) {
	_, orgID, ok := operatorScope(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	view, err := h.Convs.GetForOperator(c.Request.Context(), orgID, c.Param("conversation_id"))
	if err != nil {
		failConversation(c, err)
		return
	}
	h.streamThread(c, view.ThreadID)
}
