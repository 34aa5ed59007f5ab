package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/rest/response"
	"todo-assistant/internal/service"
)

// Session exposes chat session state for administration.
type Session struct {
	log      *logrus.Logger
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService, log *logrus.Logger) *Session {
	return &Session{log: log, sessions: sessions}
}

func (h *Session) EnrichRoutes(router *gin.Engine) {
	router.GET("/api/sessions/:phone", h.getAction)
	router.DELETE("/api/sessions/:phone", h.expireAction)
}

func (h *Session) getAction(c *gin.Context) {
	session, err := h.sessions.Active(c.Request.Context(), c.Param("phone"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"active": true, "session": session})
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusOK, gin.H{"active": false})
	default:
		response.HandleError(err, c)
	}
}

func (h *Session) expireAction(c *gin.Context) {
	const op = "handlers.Session.expireAction"
	phone := c.Param("phone")

	if err := h.sessions.Expire(c.Request.Context(), phone); err != nil {
		h.log.WithFields(logrus.Fields{"operation": op, "phone": phone}).WithError(err).Error("failed to expire session")
		response.HandleError(err, c)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Session expired"})
}
