package businessflow

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/amirphl/smsflow/app/dto"
	"github.com/amirphl/smsflow/app/services"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/repository"
	"github.com/amirphl/smsflow/utils"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const attachmentsDir = "attachments"

// ConversationFlow handles two-way messaging and the inbound carrier webhook
type ConversationFlow interface {
	ListConversations(ctx context.Context) ([]dto.ConversationResponse, error)
	CreateConversation(ctx context.Context, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error)
	GetConversation(ctx context.Context, id uint) (*dto.ConversationResponse, error)
	SendMessage(ctx context.Context, id uint, req *dto.SendMessageRequest) (*dto.MessageResponse, error)
	// HandleInbound stores an inbound message, correlates it to a campaign contact
	// and sends the keyword auto-reply. Media and auto-reply failures are only logged.
	HandleInbound(ctx context.Context, req *dto.InboundMessageRequest) error
}

// ConversationFlowImpl implements ConversationFlow
type ConversationFlowImpl struct {
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
	replyFlow        ReplyFlow
	smsService       services.SMSService
	storage          services.MediaStorage
	downloader       services.MediaDownloader
	webhookConfig    config.WebhookConfig
	logger           *zap.Logger
}

// NewConversationFlow creates a new conversation flow instance
func NewConversationFlow(
	conversationRepo repository.ConversationRepository,
	messageRepo repository.MessageRepository,
	replyFlow ReplyFlow,
	smsService services.SMSService,
	storage services.MediaStorage,
	downloader services.MediaDownloader,
	webhookConfig config.WebhookConfig,
	logger *zap.Logger,
) ConversationFlow {
	return &ConversationFlowImpl{
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		replyFlow:        replyFlow,
		smsService:       smsService,
		storage:          storage,
		downloader:       downloader,
		webhookConfig:    webhookConfig,
		logger:           logger.Named("webhook"),
	}
}

func (f *ConversationFlowImpl) ListConversations(ctx context.Context) ([]dto.ConversationResponse, error) {
	conversations, err := f.conversationRepo.ByFilter(ctx, models.ConversationFilter{}, "updated_at DESC, id DESC", 0, 0)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_LIST_FAILED", "Failed to list conversations", err)
	}
	out := make([]dto.ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, ToConversationResponse(c, nil))
	}
	return out, nil
}

// CreateConversation opens (or reuses) the conversation with a phone number
func (f *ConversationFlowImpl) CreateConversation(ctx context.Context, req *dto.CreateConversationRequest) (*dto.ConversationResponse, error) {
	phone := utils.NormalizePhone(req.PhoneNumber)
	if phone == "" {
		return nil, NewBusinessError("CONVERSATION_VALIDATION_FAILED", "Conversation validation failed", ErrPhoneNumberRequired)
	}
	if !utils.IsValidPhone(phone) {
		return nil, NewBusinessError("CONVERSATION_VALIDATION_FAILED", "Conversation validation failed", ErrPhoneNumberInvalid)
	}

	conversation, err := f.conversationRepo.FirstOrCreateByPhone(ctx, phone)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_CREATION_FAILED", "Conversation creation failed", err)
	}
	if req.Name != nil {
		if name := strings.TrimSpace(*req.Name); name != "" {
			if err := f.conversationRepo.UpdateName(ctx, conversation.ID, name); err != nil {
				return nil, NewBusinessError("CONVERSATION_CREATION_FAILED", "Conversation creation failed", err)
			}
			conversation.Name = &name
		}
	}

	resp := ToConversationResponse(conversation, nil)
	return &resp, nil
}

// GetConversation returns a conversation with its messages oldest first
func (f *ConversationFlowImpl) GetConversation(ctx context.Context, id uint) (*dto.ConversationResponse, error) {
	conversation, err := f.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}
	messages, err := f.messageRepo.ListByConversation(ctx, id)
	if err != nil {
		return nil, NewBusinessError("MESSAGE_LIST_FAILED", "Failed to load messages", err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}
	resp := ToConversationResponse(conversation, messages)
	return &resp, nil
}

// SendMessage sends content and/or one attachment and stores the outgoing message
func (f *ConversationFlowImpl) SendMessage(ctx context.Context, id uint, req *dto.SendMessageRequest) (*dto.MessageResponse, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" && req.Attachment == nil {
		return nil, NewBusinessError("MESSAGE_VALIDATION_FAILED", "Message validation failed", ErrMessageContentMissing)
	}

	conversation, err := f.loadConversation(ctx, id)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		Content:        content,
		IsOutgoing:     true,
		MediaURLs:      []string{},
		MediaTypes:     []string{},
	}
	if a := req.Attachment; a != nil {
		ext := strings.TrimPrefix(filepath.Ext(a.Filename), ".")
		if ext == "" {
			ext = extensionFromContentType(a.ContentType)
		}
		mediaURL, err := f.storage.Put(ctx, attachmentKey(uuid.NewString(), ext), a.Data)
		if err != nil {
			return nil, NewBusinessError("ATTACHMENT_STORE_FAILED", "Failed to store attachment", err)
		}
		message.MediaURLs = append(message.MediaURLs, mediaURL)
		message.MediaTypes = append(message.MediaTypes, a.ContentType)
	}

	if err := f.smsService.Send(ctx, conversation.PhoneNumber, content, message.MediaURLs); err != nil {
		terr := &TransportError{To: conversation.PhoneNumber, Reason: err.Error(), Err: err}
		return nil, NewBusinessError("MESSAGE_SEND_FAILED", "Failed to send message", terr)
	}

	if err := f.messageRepo.Save(ctx, message); err != nil {
		return nil, NewBusinessError("MESSAGE_STORE_FAILED", "Failed to store message", err)
	}

	resp := ToMessageResponse(message)
	return &resp, nil
}

func (f *ConversationFlowImpl) HandleInbound(ctx context.Context, req *dto.InboundMessageRequest) error {
	phone := utils.NormalizePhone(req.From)
	if phone == "" {
		return NewBusinessError("INBOUND_VALIDATION_FAILED", "Inbound message validation failed", ErrPhoneNumberRequired)
	}

	conversation, err := f.conversationRepo.FirstOrCreateByPhone(ctx, phone)
	if err != nil {
		return NewBusinessError("CONVERSATION_CREATION_FAILED", "Conversation creation failed", err)
	}

	message := &models.Message{
		ConversationID: conversation.ID,
		Content:        req.Body,
		IsOutgoing:     false,
		MediaURLs:      []string{},
		MediaTypes:     []string{},
	}
	for _, media := range req.Media {
		stored, err := f.storeInboundMedia(ctx, media)
		if err != nil {
			f.logger.Warn("failed to store inbound media",
				zap.String("from", phone),
				zap.String("media_url", media.URL),
				zap.Error(err),
			)
			continue
		}
		message.MediaURLs = append(message.MediaURLs, stored)
		message.MediaTypes = append(message.MediaTypes, media.ContentType)
	}

	if err := f.messageRepo.Save(ctx, message); err != nil {
		return NewBusinessError("MESSAGE_STORE_FAILED", "Failed to store message", err)
	}

	if _, err := f.replyFlow.RecordReply(ctx, phone); err != nil {
		return NewBusinessError("REPLY_RECORD_FAILED", "Failed to record reply", err)
	}

	if f.isAutoReplyKeyword(req.Body) {
		f.sendAutoReply(ctx, conversation)
	}
	return nil
}

func (f *ConversationFlowImpl) storeInboundMedia(ctx context.Context, media dto.InboundMedia) (string, error) {
	data, contentType, err := f.downloader.Download(ctx, media.URL)
	if err != nil {
		return "", err
	}
	if media.ContentType != "" {
		contentType = media.ContentType
	}

	basename := "media"
	if u, err := url.Parse(media.URL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		basename = path.Base(u.Path)
	}
	return f.storage.Put(ctx, attachmentKey(basename, extensionFromContentType(contentType)), data)
}

func (f *ConversationFlowImpl) isAutoReplyKeyword(body string) bool {
	normalized := strings.ToLower(strings.TrimSpace(body))
	if normalized == "" {
		return false
	}
	return slices.ContainsFunc(f.webhookConfig.AutoReplyKeywords, func(k string) bool {
		return strings.ToLower(strings.TrimSpace(k)) == normalized
	})
}

func (f *ConversationFlowImpl) sendAutoReply(ctx context.Context, conversation *models.Conversation) {
	body := fmt.Sprintf(utils.AutoReplyTemplate, f.webhookConfig.CalendlyLink)
	if err := f.smsService.Send(ctx, conversation.PhoneNumber, body, nil); err != nil {
		f.logger.Warn("auto-reply failed", zap.String("to", conversation.PhoneNumber), zap.Error(err))
		return
	}
	reply := &models.Message{
		ConversationID: conversation.ID,
		Content:        body,
		IsOutgoing:     true,
		MediaURLs:      []string{},
		MediaTypes:     []string{},
	}
	if err := f.messageRepo.Save(ctx, reply); err != nil {
		f.logger.Warn("failed to store auto-reply", zap.Uint("conversation_id", conversation.ID), zap.Error(err))
	}
}

func (f *ConversationFlowImpl) loadConversation(ctx context.Context, id uint) (*models.Conversation, error) {
	conversation, err := f.conversationRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CONVERSATION_LOOKUP_FAILED", "Failed to lookup conversation", err)
	}
	if conversation == nil {
		return nil, NewBusinessError("CONVERSATION_NOT_FOUND", "Conversation not found", ErrConversationNotFound)
	}
	return conversation, nil
}

func attachmentKey(basename, ext string) string {
	if ext == "" {
		return path.Join(attachmentsDir, basename)
	}
	return path.Join(attachmentsDir, basename+"."+ext)
}

// extensionFromContentType takes the subtype of a MIME type: image/jpeg -> jpeg
func extensionFromContentType(contentType string) string {
	mediaType, _, _ := strings.Cut(contentType, ";")
	_, sub, ok := strings.Cut(strings.TrimSpace(mediaType), "/")
	if !ok {
		return ""
	}
	return strings.ToLower(sub)
}
