package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ContactStatus represents the delivery state of a campaign contact
type ContactStatus string

const (
	ContactStatusPending ContactStatus = "pending"
	ContactStatusSent    ContactStatus = "sent"
	ContactStatusFailed  ContactStatus = "failed"
)

// String returns the string representation of the status
func (s ContactStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusPending, ContactStatusSent, ContactStatusFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further delivery transition is possible
func (s ContactStatus) IsTerminal() bool {
	return s == ContactStatusSent || s == ContactStatusFailed
}

// Scan implements the sql.Scanner interface for ContactStatus
func (s *ContactStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = ContactStatus(v)
	case []byte:
		*s = ContactStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into ContactStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for ContactStatus
func (s ContactStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid ContactStatus: %s", s)
	}
	return string(s), nil
}

// CustomFields holds CSV columns outside the fixed contact schema
type CustomFields map[string]string

// Value implements the driver.Valuer interface for CustomFields
func (f CustomFields) Value() (driver.Value, error) {
	if len(f) == 0 {
		return nil, nil
	}
	return json.Marshal(f)
}

// Scan implements the sql.Scanner interface for CustomFields
func (f *CustomFields) Scan(value any) error {
	if value == nil {
		*f = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into CustomFields", value)
	}

	return json.Unmarshal(bytes, f)
}

// CampaignContact is one recipient of a campaign with its delivery and reply state
type CampaignContact struct {
	ID           uint          `gorm:"primaryKey" json:"id"`
	CampaignID   uint          `gorm:"not null;index:idx_campaign_contacts_dispatch,priority:1" json:"campaign_id"`
	FirstName    *string       `gorm:"size:255" json:"first_name,omitempty"`
	LastName     *string       `gorm:"size:255" json:"last_name,omitempty"`
	PhoneNumber  string        `gorm:"size:32;not null;index:idx_campaign_contacts_phone_replied,priority:1" json:"phone_number"`
	Email        *string       `gorm:"size:255" json:"email,omitempty"`
	CustomFields CustomFields  `gorm:"type:jsonb" json:"custom_fields,omitempty"`
	Status       ContactStatus `gorm:"type:campaign_contact_status;not null;default:'pending';index:idx_campaign_contacts_dispatch,priority:2" json:"status"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	RepliedAt    *time.Time    `gorm:"index:idx_campaign_contacts_phone_replied,priority:2" json:"replied_at,omitempty"`
	ErrorMessage *string       `gorm:"type:text" json:"error_message,omitempty"`
	Attempts     int           `gorm:"not null;default:0" json:"attempts"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`

	// Relations
	Campaign *Campaign `gorm:"foreignKey:CampaignID;references:ID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for the model
func (CampaignContact) TableName() string {
	return "campaign_contacts"
}

// FullName joins first and last name, falling back to the phone number when both are blank
func (c *CampaignContact) FullName() string {
	var first, last string
	if c.FirstName != nil {
		first = *c.FirstName
	}
	if c.LastName != nil {
		last = *c.LastName
	}
	full := strings.TrimSpace(first + " " + last)
	if full == "" {
		return c.PhoneNumber
	}
	return full
}

// CampaignContactFilter represents filter criteria for campaign contacts
type CampaignContactFilter struct {
	CampaignID  *uint          `json:"campaign_id,omitempty"`
	Status      *ContactStatus `json:"status,omitempty"`
	PhoneNumber *string        `json:"phone_number,omitempty"`
	Replied     *bool          `json:"replied,omitempty"`
}
