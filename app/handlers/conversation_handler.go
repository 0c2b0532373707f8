package handlers

import (
	"strings"

	"github.com/amirphl/smsflow/app/dto"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const attachmentField = "attachment"

// ConversationHandlerInterface defines the contract for conversation handlers
type ConversationHandlerInterface interface {
	ListConversations(c fiber.Ctx) error
	CreateConversation(c fiber.Ctx) error
	GetConversation(c fiber.Ctx) error
	SendMessage(c fiber.Ctx) error
}

// ConversationHandler handles two-way messaging requests
type ConversationHandler struct {
	baseHandler
	conversationFlow businessflow.ConversationFlow
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(conversationFlow businessflow.ConversationFlow, logger *zap.Logger) *ConversationHandler {
	return &ConversationHandler{
		baseHandler:      newBaseHandler(logger.Named("http")),
		conversationFlow: conversationFlow,
	}
}

// @Router /api/v1/conversations [get]
func (h *ConversationHandler) ListConversations(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/conversations")
	defer cancel()

	result, err := h.conversationFlow.ListConversations(ctx)
	if err != nil {
		return h.flowError(c, err, "CONVERSATION_LIST_FAILED", "Failed to list conversations")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Conversations retrieved successfully", result)
}

// CreateConversation opens the conversation with a phone number, reusing an existing one
// @Router /api/v1/conversations [post]
func (h *ConversationHandler) CreateConversation(c fiber.Ctx) error {
	var req dto.CreateConversationRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/conversations")
	defer cancel()

	result, err := h.conversationFlow.CreateConversation(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "CONVERSATION_CREATION_FAILED", "Conversation creation failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Conversation created successfully", result)
}

// @Router /api/v1/conversations/{id} [get]
func (h *ConversationHandler) GetConversation(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid conversation id", "INVALID_CONVERSATION_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/conversations/:id")
	defer cancel()

	result, err := h.conversationFlow.GetConversation(ctx, id)
	if err != nil {
		return h.flowError(c, err, "GET_CONVERSATION_FAILED", "Failed to get conversation")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Conversation retrieved successfully", result)
}

// SendMessage accepts JSON {content} or a multipart form with content and an attachment file
// @Router /api/v1/conversations/{id}/messages [post]
func (h *ConversationHandler) SendMessage(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid conversation id", "INVALID_CONVERSATION_ID", nil)
	}

	var req dto.SendMessageRequest
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		req.Content = c.FormValue("content")
		if fileHeader, err := c.FormFile(attachmentField); err == nil && fileHeader != nil {
			if fileHeader.Size > utils.MaxUploadSize {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "attachment must be at most 10MB", "INVALID_FILE", nil)
			}
			data, err := readFormFile(fileHeader, utils.MaxUploadSize)
			if err != nil {
				return h.ErrorResponse(c, fiber.StatusBadRequest, "invalid attachment", "INVALID_FILE", err.Error())
			}
			req.Attachment = &dto.Attachment{
				Filename:    fileHeader.Filename,
				ContentType: fileHeader.Header.Get(fiber.HeaderContentType),
				Data:        data,
			}
		}
	} else if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/conversations/:id/messages")
	defer cancel()

	result, err := h.conversationFlow.SendMessage(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "MESSAGE_SEND_FAILED", "Failed to send message")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Message sent successfully", result)
}
