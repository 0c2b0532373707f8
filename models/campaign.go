// Package models contains the domain entities persisted by the repositories
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CampaignStatus represents the lifecycle state of a campaign
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusRunning   CampaignStatus = "running"
	CampaignStatusCompleted CampaignStatus = "completed"
	CampaignStatusFailed    CampaignStatus = "failed"
)

// String returns the string representation of the status
func (s CampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusScheduled, CampaignStatusRunning,
		CampaignStatusCompleted, CampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for CampaignStatus
func (s *CampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = CampaignStatus(v)
	case []byte:
		*s = CampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into CampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for CampaignStatus
func (s CampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid CampaignStatus: %s", s)
	}
	return string(s), nil
}

// FieldMapping maps a system field name (phone_number, first_name, ...) to a CSV column name
type FieldMapping map[string]string

// Value implements the driver.Valuer interface for FieldMapping
func (m FieldMapping) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for FieldMapping
func (m *FieldMapping) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into FieldMapping", value)
	}

	return json.Unmarshal(bytes, m)
}

// Campaign is a bulk SMS operation with one message template and many contacts.
// DispatchCursor is the id of the last contact handed to the queue; DispatchedAt
// is set once every pending contact was enqueued.
type Campaign struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	UUID            uuid.UUID      `gorm:"type:uuid;not null;uniqueIndex:uk_campaigns_uuid" json:"uuid"`
	Name            string         `gorm:"size:255;not null" json:"name"`
	MessageTemplate string         `gorm:"type:text;not null" json:"message_template"`
	FieldMapping    FieldMapping   `gorm:"type:jsonb" json:"field_mapping,omitempty"`
	Status          CampaignStatus `gorm:"type:campaign_status;not null;default:'draft';index:idx_campaigns_status_scheduled_at,priority:1" json:"status"`
	ScheduledAt     *time.Time     `gorm:"index:idx_campaigns_status_scheduled_at,priority:2" json:"scheduled_at,omitempty"`
	Timezone        string         `gorm:"size:64;not null;default:'UTC'" json:"timezone"`
	TotalContacts   int64          `gorm:"not null;default:0" json:"total_contacts"`
	SentCount       int64          `gorm:"not null;default:0" json:"sent_count"`
	FailedCount     int64          `gorm:"not null;default:0" json:"failed_count"`
	RepliedCount    int64          `gorm:"not null;default:0" json:"replied_count"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	CompletedAt     *time.Time     `json:"completed_at,omitempty"`
	DispatchCursor  uint           `gorm:"not null;default:0" json:"-"`
	DispatchedAt    *time.Time     `json:"dispatched_at,omitempty"`
	CreatedAt       time.Time      `gorm:"not null;index:idx_campaigns_created_at" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null" json:"updated_at"`
}

// TableName returns the table name for the model
func (Campaign) TableName() string {
	return "campaigns"
}

// BeforeCreate is called before creating a new record
func (c *Campaign) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = CampaignStatusDraft
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	return nil
}

// PendingCount is the number of contacts not yet processed, never negative
func (c *Campaign) PendingCount() int64 {
	return max(0, c.TotalContacts-c.SentCount-c.FailedCount)
}

// IsTerminal reports whether every contact has reached a terminal state
func (c *Campaign) IsTerminal() bool {
	return c.SentCount+c.FailedCount >= c.TotalContacts
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *Campaign) CanTransitionTo(newStatus CampaignStatus) bool {
	switch c.Status {
	case CampaignStatusDraft:
		return newStatus == CampaignStatusScheduled || newStatus == CampaignStatusRunning
	case CampaignStatusScheduled:
		return newStatus == CampaignStatusScheduled || newStatus == CampaignStatusRunning
	case CampaignStatusRunning:
		return newStatus == CampaignStatusCompleted || newStatus == CampaignStatusFailed
	default:
		return false
	}
}

// CampaignFilter represents filter criteria for campaigns
type CampaignFilter struct {
	ID             *uint           `json:"id,omitempty"`
	UUID           *uuid.UUID      `json:"uuid,omitempty"`
	Status         *CampaignStatus `json:"status,omitempty"`
	Name           *string         `json:"name,omitempty"`
	ScheduledUntil *time.Time      `json:"scheduled_until,omitempty"`
	CreatedAfter   *time.Time      `json:"created_after,omitempty"`
	CreatedBefore  *time.Time      `json:"created_before,omitempty"`
}

// CampaignTotals aggregates counters across all campaigns
type CampaignTotals struct {
	Campaigns    int64 `json:"campaigns"`
	Scheduled    int64 `json:"scheduled"`
	Running      int64 `json:"running"`
	Completed    int64 `json:"completed"`
	ContactTotal int64 `json:"contacts_total"`
	SentTotal    int64 `json:"sent_total"`
	RepliedTotal int64 `json:"replied_total"`
}
