package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/smsflow/app/dto"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// maxInboundMedia caps NumMedia; Twilio sends at most 10 items
const maxInboundMedia = 10

// inboundTimeout covers media downloads and the auto-reply send
const inboundTimeout = 2 * time.Minute

type WebhookHandlerInterface interface {
	HandleIncomingMessage(c fiber.Ctx) error
}

// WebhookHandler receives carrier callbacks
type WebhookHandler struct {
	conversationFlow businessflow.ConversationFlow
	logger           *zap.Logger
}

func NewWebhookHandler(conversationFlow businessflow.ConversationFlow, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		conversationFlow: conversationFlow,
		logger:           logger.Named("webhook"),
	}
}

// HandleIncomingMessage stores an inbound SMS/MMS. The carrier always gets an
// empty TwiML response, failures are only logged.
// @Accept application/x-www-form-urlencoded
// @Produce text/xml
// @Router /webhooks/twilio/message [post]
func (h *WebhookHandler) HandleIncomingMessage(c fiber.Ctx) error {
	req := dto.InboundMessageRequest{
		From: strings.TrimSpace(c.FormValue("From")),
		Body: c.FormValue("Body"),
	}

	numMedia, _ := strconv.Atoi(c.FormValue("NumMedia"))
	numMedia = min(max(numMedia, 0), maxInboundMedia)
	for i := range numMedia {
		idx := strconv.Itoa(i)
		mediaURL := strings.TrimSpace(c.FormValue("MediaUrl" + idx))
		if mediaURL == "" {
			continue
		}
		req.Media = append(req.Media, dto.InboundMedia{
			URL:         mediaURL,
			ContentType: c.FormValue("MediaContentType" + idx),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), inboundTimeout)
	defer cancel()
	ctx = context.WithValue(ctx, utils.EndpointKey, "/webhooks/twilio/message")

	if err := h.conversationFlow.HandleInbound(ctx, &req); err != nil {
		h.logger.Error("failed to handle inbound message",
			zap.String("from", req.From),
			zap.Int("num_media", numMedia),
			zap.Error(err),
		)
	}

	c.Set(fiber.HeaderContentType, "text/xml")
	return c.Status(fiber.StatusOK).SendString(utils.EmptyTwiMLResponse)
}
