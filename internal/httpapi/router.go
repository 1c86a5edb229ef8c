package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ThunderboltDev/Resound/internal/common"
	"github.com/ThunderboltDev/Resound/internal/config"
	"github.com/ThunderboltDev/Resound/internal/conversation"
	"github.com/ThunderboltDev/Resound/internal/httpapi/handlers"
	"github.com/ThunderboltDev/Resound/internal/httpapi/middleware"
	"github.com/ThunderboltDev/Resound/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, bus conversation.EventPublisher) (*gin.Engine, error) {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	h, err := handlers.NewHandler(db, cfg, rds, bus)
	if err != nil {
		return nil, err
	}

	r.GET("/ping", h.Ping)

	// widget surface: public, scoped by session id
	widget := r.Group("/widget")
	widget.GET("/orgs/:org_id", h.GetWidgetBootstrap)
	widget.POST("/orgs/:org_id/sessions", h.CreateSession)
	widget.GET("/sessions/validate", h.ValidateSession)
	widget.GET("/conversations", h.ListSessionConversations)
	widget.POST("/conversations", h.CreateConversation)
	widget.GET("/conversations/:conversation_id", h.GetVisitorConversation)
	widget.POST("/conversations/:conversation_id/messages", h.SendVisitorMessage)
	widget.GET("/conversations/:conversation_id/messages", h.ListVisitorMessages)
	widget.GET("/conversations/:conversation_id/live", h.StreamVisitorConversation)

	// dashboard surface: operator JWT required
	r.POST("/login", h.Login)
	dash := r.Group("/dashboard")
	dash.Use(middleware.AuthRequired(cfg.JWTSecret))
	dash.GET("/me", h.Me)
	dash.GET("/conversations", h.ListConversations)
	dash.GET("/conversations/:conversation_id", h.GetConversation)
	dash.POST("/conversations/:conversation_id/messages", h.SendOperatorMessage)
	dash.GET("/conversations/:conversation_id/messages", h.ListConversationMessages)
	dash.PATCH("/conversations/:conversation_id/status", h.SetConversationStatus)
	dash.GET("/conversations/:conversation_id/live", h.StreamConversation)
	dash.POST("/enhance", h.EnhanceReply)

	return r, nil
}
