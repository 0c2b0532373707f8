// Package businessflow contains the business logic for the application.
package businessflow

import (
	"github.com/amirphl/smsflow/app/dto"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"go.uber.org/zap"
)

// ClientMetadata holds client information attached to flow logs
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

func (cm *ClientMetadata) fields() []zap.Field {
	if cm == nil {
		return nil
	}
	return []zap.Field{
		zap.String("ip", cm.IPAddress),
		zap.String("request_id", cm.RequestID),
	}
}

// ToCampaignResponse converts a campaign model to its API representation
func ToCampaignResponse(c *models.Campaign) dto.CampaignResponse {
	return dto.CampaignResponse{
		ID:              c.ID,
		UUID:            c.UUID.String(),
		Name:            c.Name,
		MessageTemplate: c.MessageTemplate,
		FieldMapping:    c.FieldMapping,
		Status:          c.Status.String(),
		ScheduledAt:     c.ScheduledAt,
		Timezone:        c.Timezone,
		TotalContacts:   c.TotalContacts,
		SentCount:       c.SentCount,
		FailedCount:     c.FailedCount,
		RepliedCount:    c.RepliedCount,
		StartedAt:       c.StartedAt,
		CompletedAt:     c.CompletedAt,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
	}
}

// ComputeCampaignStats derives progress and rates from the campaign counters.
// Every figure is 0 when the campaign has no contacts.
func ComputeCampaignStats(c *models.Campaign) dto.CampaignStats {
	total := c.TotalContacts
	pending := c.PendingCount()
	return dto.CampaignStats{
		Total:         total,
		Sent:          c.SentCount,
		Failed:        c.FailedCount,
		Replied:       c.RepliedCount,
		Pending:       pending,
		Progress:      utils.Percent(c.SentCount+c.FailedCount, total, 0),
		SentRate:      utils.Percent(c.SentCount, total, 1),
		ScheduledRate: utils.Percent(pending, total, 1),
		ReplyRate:     utils.Percent(c.RepliedCount, total, 1),
	}
}

// ToContactResponse converts a campaign contact to its API representation
func ToContactResponse(c *models.CampaignContact) dto.ContactResponse {
	return dto.ContactResponse{
		ID:           c.ID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		PhoneNumber:  c.PhoneNumber,
		Email:        c.Email,
		CustomFields: c.CustomFields,
		Status:       c.Status.String(),
		SentAt:       c.SentAt,
		RepliedAt:    c.RepliedAt,
		ErrorMessage: c.ErrorMessage,
	}
}

// ToMessageResponse converts a message to its API representation
func ToMessageResponse(m *models.Message) dto.MessageResponse {
	files := make([]dto.MediaFileResponse, 0, len(m.MediaURLs))
	for _, f := range m.Files() {
		files = append(files, dto.MediaFileResponse{URL: f.URL, Type: f.Type})
	}
	return dto.MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Content:        m.Content,
		IsOutgoing:     m.IsOutgoing,
		Files:          files,
		CreatedAt:      m.CreatedAt,
	}
}

// ToConversationResponse converts a conversation and its messages to the API representation
func ToConversationResponse(c *models.Conversation, messages []*models.Message) dto.ConversationResponse {
	resp := dto.ConversationResponse{
		ID:          c.ID,
		PhoneNumber: c.PhoneNumber,
		Name:        c.Name,
	}
	if messages != nil {
		resp.Messages = make([]dto.MessageResponse, 0, len(messages))
		for _, m := range messages {
			resp.Messages = append(resp.Messages, ToMessageResponse(m))
		}
	}
	return resp
}
