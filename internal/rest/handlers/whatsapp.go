package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"todo-assistant/internal/rest/response"
	"todo-assistant/internal/service"
	"todo-assistant/internal/whatsapp"
)

// Gateway is the administrative surface of the WhatsApp provider.
type Gateway interface {
	Status(ctx context.Context) (map[string]interface{}, error)
	QRCode(ctx context.Context) (string, error)
	ConfigureWebhook(ctx context.Context, url string) error
	Restart(ctx context.Context) error
	Disconnect(ctx context.Context) error
}

// Relay handles one inbound chat message.
type Relay interface {
	Handle(ctx context.Context, msg service.ChatMessage) (service.Outcome, error)
}

// WhatsApp serves the inbound webhook, outbound sends and provider admin.
type WhatsApp struct {
	log       *logrus.Logger
	relay     Relay
	messenger *service.Messenger
	gateway   Gateway
}

func NewWhatsAppHandler(relay Relay, messenger *service.Messenger, gateway Gateway, log *logrus.Logger) *WhatsApp {
	return &WhatsApp{log: log, relay: relay, messenger: messenger, gateway: gateway}
}

func (h *WhatsApp) EnrichRoutes(router *gin.Engine) {
	router.GET("/api/whatsapp/webhook", h.webhookStatusAction)
	router.POST("/api/whatsapp/webhook", h.webhookAction)
	router.GET("/api/whatsapp/config", h.statusAction)
	router.POST("/api/whatsapp/config", h.configAction)
	router.POST("/api/send-message", h.sendMessageAction)
}

func (h *WhatsApp) webhookStatusAction(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "WhatsApp webhook endpoint is active (Z-API)"})
}

func (h *WhatsApp) webhookAction(c *gin.Context) {
	const op = "handlers.WhatsApp.webhookAction"
	log := h.log.WithField("operation", op)

	var in whatsapp.Inbound
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid webhook payload"})
		return
	}

	outcome, err := h.relay.Handle(c.Request.Context(), in.ChatMessage())
	switch {
	case outcome == service.OutcomeAgentUnavailable:
		log.WithError(err).Error("reasoning agent not configured")
		c.JSON(http.StatusOK, gin.H{"success": false, "error": "Agent not configured"})
	case err != nil:
		log.WithError(err).Error("webhook processing failed")
		response.HandleChatError(err, c)
	default:
		c.JSON(http.StatusOK, gin.H{"success": true, "message": outcome.String()})
	}
}

type sendMessageRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

func (h *WhatsApp) sendMessageAction(c *gin.Context) {
	const op = "handlers.WhatsApp.sendMessageAction"

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PhoneNumber) == "" || strings.TrimSpace(req.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "phoneNumber and message are required"})
		return
	}

	if err := h.messenger.Send(c.Request.Context(), req.PhoneNumber, req.Message); err != nil {
		h.log.WithFields(logrus.Fields{"operation": op, "phone": req.PhoneNumber}).WithError(err).Warn("send message failed")
		resolved := response.ResolveError(err)
		status := resolved.Status()
		if status == http.StatusBadGateway || status == http.StatusServiceUnavailable {
			status = http.StatusInternalServerError
		}
		message := resolved.Error()
		if status == http.StatusInternalServerError {
			message = err.Error()
		}
		c.JSON(status, gin.H{"success": false, "error": message})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Message sent successfully"})
}

func (h *WhatsApp) statusAction(c *gin.Context) {
	status, err := h.gateway.Status(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "status": status})
}

type configRequest struct {
	Action     string `json:"action"`
	WebhookURL string `json:"webhookUrl"`
}

func (h *WhatsApp) configAction(c *gin.Context) {
	const op = "handlers.WhatsApp.configAction"
	log := h.log.WithField("operation", op)

	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid action"})
		return
	}
	ctx := c.Request.Context()

	fail := func(err error) {
		log.WithField("action", req.Action).WithError(err).Error("config action failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}

	switch req.Action {
	case "getQR":
		qr, err := h.gateway.QRCode(ctx)
		if err != nil {
			fail(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "qrCode": qr, "message": "QR Code retrieved successfully"})
	case "getStatus":
		status, err := h.gateway.Status(ctx)
		if err != nil {
			fail(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "status": status, "message": "Status retrieved successfully"})
	case "configureWebhook":
		if strings.TrimSpace(req.WebhookURL) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "webhookUrl is required"})
			return
		}
		if err := h.gateway.ConfigureWebhook(ctx, req.WebhookURL); err != nil {
			fail(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Webhook configured successfully"})
	case "restart":
		if err := h.gateway.Restart(ctx); err != nil {
			fail(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Instance restarted successfully"})
	case "disconnect":
		if err := h.gateway.Disconnect(ctx); err != nil {
			fail(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Instance disconnected successfully"})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid action"})
	}
}
