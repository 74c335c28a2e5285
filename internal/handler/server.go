package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"courier/internal/logger"
	"courier/internal/ws"
)

// Server wraps the HTTP server serving the messaging API.
type Server struct {
	server *http.Server
}

// NewServer builds the router and wires all routes.
func NewServer(h *Handler) *Server {
	gin.SetMode(h.cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery(), RequestLogging())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.POST("/signup", h.SignUp)
	router.POST("/login", h.Login)

	router.GET("/stats", h.Auth(), h.Stats)
	router.GET("/ws", h.Auth(), func(c *gin.Context) {
		ws.ServeWS(h.hub, currentUserID(c), c)
	})

	api := router.Group("/api", h.Auth())
	{
		api.DELETE("/account", h.DeleteAccount)

		api.POST("/messages", h.SendMessage)
		api.POST("/messages/read", h.MarkMessagesRead)
		api.GET("/messages/unread", h.UnreadMessages)
		api.GET("/messages/unread/count", h.UnreadMessageCount)
		api.POST("/messages/:id/reply", h.ReplyMessage)
		api.PUT("/messages/:id", h.EditMessage)
		api.DELETE("/messages/:id", h.DeleteMessage)
		api.GET("/messages/:id/history", h.MessageHistory)
		api.GET("/messages/:id/thread", h.CachePage(), h.MessageThread)

		api.GET("/conversations", h.CachePage(), h.ListThreadRoots)
		api.GET("/conversations/with/:user_id", h.ListMessages)

		api.GET("/notifications", h.ListNotifications)
		api.GET("/notifications/unread/count", h.UnreadNotificationCount)
		api.POST("/notifications/:id/read", h.MarkNotificationRead)
		api.POST("/notifications/read-all", h.MarkAllNotificationsRead)

		api.POST("/chats", h.CreateChat)
		api.GET("/chats", h.ListChats)
		api.GET("/chats/:id", h.GetChat)
		api.GET("/chats/:id/messages", h.ChatMessages)
		api.POST("/chats/:id/messages", h.SendChatMessage)
		api.POST("/chats/:id/participants", h.AddChatParticipant)
		api.DELETE("/chats/:id/participants/:user_id", h.RemoveChatParticipant)
	}

	addr := fmt.Sprintf("%s:%d", h.cfg.Server.Host, h.cfg.Server.Port)
	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: router,
		},
	}
}

// Start begins serving; it blocks until the server stops.
func (s *Server) Start() error {
	logger.Infof("Starting HTTP server on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
