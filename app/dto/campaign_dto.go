package dto

import (
	"time"
)

// CreateCampaignRequest represents the request to create a new campaign
type CreateCampaignRequest struct {
	Name            string `json:"name" validate:"required,max=255"`
	MessageTemplate string `json:"message_template" validate:"required"`
}

// UpdateCampaignRequest changes name and/or message template
type UpdateCampaignRequest struct {
	Name            *string `json:"name,omitempty" validate:"omitempty,min=1,max=255"`
	MessageTemplate *string `json:"message_template,omitempty" validate:"omitempty,min=1"`
}

// CampaignResponse is the public representation of a campaign
type CampaignResponse struct {
	ID              uint              `json:"id"`
	UUID            string            `json:"uuid"`
	Name            string            `json:"name"`
	MessageTemplate string            `json:"message_template"`
	FieldMapping    map[string]string `json:"field_mapping,omitempty"`
	Status          string            `json:"status"`
	ScheduledAt     *time.Time        `json:"scheduled_at,omitempty"`
	Timezone        string            `json:"timezone"`
	TotalContacts   int64             `json:"total_contacts"`
	SentCount       int64             `json:"sent_count"`
	FailedCount     int64             `json:"failed_count"`
	RepliedCount    int64             `json:"replied_count"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// CampaignStats holds derived delivery figures for a campaign
type CampaignStats struct {
	Total         int64   `json:"total"`
	Sent          int64   `json:"sent"`
	Failed        int64   `json:"failed"`
	Replied       int64   `json:"replied"`
	Pending       int64   `json:"pending"`
	Progress      float64 `json:"progress"`
	SentRate      float64 `json:"sent_rate"`
	ScheduledRate float64 `json:"scheduled_rate"`
	ReplyRate     float64 `json:"reply_rate"`
}

// CampaignDetailResponse is a campaign with its stats
type CampaignDetailResponse struct {
	Campaign CampaignResponse `json:"campaign"`
	Stats    CampaignStats    `json:"stats"`
}

// ListCampaignsRequest represents paging and filters for campaign listing
type ListCampaignsRequest struct {
	Page   int     `json:"page" validate:"min=1"`
	Limit  int     `json:"limit" validate:"min=1,max=100"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=draft scheduled running completed failed"`
	Name   *string `json:"name,omitempty"`
}

// ListCampaignsResponse represents a page of campaigns
type ListCampaignsResponse struct {
	Items      []CampaignResponse `json:"items"`
	Pagination Pagination         `json:"pagination"`
}

// DashboardTotals counts campaigns per lifecycle state
type DashboardTotals struct {
	Campaigns int64 `json:"campaigns"`
	Scheduled int64 `json:"scheduled"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
}

// DashboardRates are percentages rounded to one decimal
type DashboardRates struct {
	Sent      float64 `json:"sent"`
	Scheduled float64 `json:"scheduled"`
	Replied   float64 `json:"replied"`
}

// DashboardResponse summarizes every campaign
type DashboardResponse struct {
	Totals        DashboardTotals `json:"totals"`
	ContactsTotal int64           `json:"contacts_total"`
	SentTotal     int64           `json:"sent_total"`
	RepliedTotal  int64           `json:"replied_total"`
	Rates         DashboardRates  `json:"rates"`
}

// UploadContactsRequest carries a contact file and its field mapping
type UploadContactsRequest struct {
	Filename     string            `json:"-"`
	Content      []byte            `json:"-"`
	FieldMapping map[string]string `json:"field_mapping" validate:"required"`
}

// UploadContactsResponse summarizes a contact upload
type UploadContactsResponse struct {
	Success        int      `json:"success"`
	Errors         []string `json:"errors"`
	TotalProcessed int      `json:"total_processed"`
}

// CSVHeadersResponse lists the header tokens of a contact file
type CSVHeadersResponse struct {
	Headers []string `json:"headers"`
}

// ScheduleCampaignRequest represents the request to schedule a campaign
type ScheduleCampaignRequest struct {
	ScheduledAt string `json:"scheduled_at" validate:"required"`
	Timezone    string `json:"timezone"`
}

// ScheduleCampaignResponse represents the result of scheduling
type ScheduleCampaignResponse struct {
	Message     string    `json:"message"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Timezone    string    `json:"timezone"`
}

// StartCampaignResponse represents the result of starting a campaign
type StartCampaignResponse struct {
	Message string `json:"message"`
	Pending int64  `json:"pending"`
}

// AvailableVariablesResponse maps placeholders to descriptions
type AvailableVariablesResponse struct {
	Variables map[string]string `json:"variables"`
}

// TimezonesResponse lists IANA timezone identifiers
type TimezonesResponse struct {
	Timezones []string `json:"timezones"`
}

// ListContactsRequest represents paging and filters for contacts of a campaign
type ListContactsRequest struct {
	Page   int     `json:"page" validate:"min=1"`
	Limit  int     `json:"limit" validate:"min=1,max=500"`
	Status *string `json:"status,omitempty" validate:"omitempty,oneof=pending sent failed"`
}

// ContactResponse is the public representation of a campaign contact
type ContactResponse struct {
	ID           uint              `json:"id"`
	FirstName    *string           `json:"first_name,omitempty"`
	LastName     *string           `json:"last_name,omitempty"`
	PhoneNumber  string            `json:"phone_number"`
	Email        *string           `json:"email,omitempty"`
	CustomFields map[string]string `json:"custom_fields,omitempty"`
	Status       string            `json:"status"`
	SentAt       *time.Time        `json:"sent_at,omitempty"`
	RepliedAt    *time.Time        `json:"replied_at,omitempty"`
	ErrorMessage *string           `json:"error_message,omitempty"`
}

// ListContactsResponse represents a page of contacts
type ListContactsResponse struct {
	Items      []ContactResponse `json:"items"`
	Pagination Pagination        `json:"pagination"`
}
