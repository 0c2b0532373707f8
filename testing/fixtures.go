package testing

import (
	"fmt"
	"time"

	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/utils"
	"github.com/google/uuid"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestCampaign creates a campaign in the given status
func (tf *TestFixtures) CreateTestCampaign(status models.CampaignStatus) (*models.Campaign, error) {
	campaign := &models.Campaign{
		UUID:            uuid.New(),
		Name:            "Test campaign " + uuid.NewString()[:8],
		MessageTemplate: "Hi {{first_name}}, reply STOP to opt out",
		Status:          status,
		Timezone:        "UTC",
	}
	if status == models.CampaignStatusRunning {
		campaign.StartedAt = utils.ToPtr(utils.UTCNow())
	}

	if err := tf.DB.DB.Create(campaign).Error; err != nil {
		return nil, fmt.Errorf("failed to create test campaign: %w", err)
	}
	return campaign, nil
}

// CreateTestScheduledCampaign creates a scheduled campaign due at the given time
func (tf *TestFixtures) CreateTestScheduledCampaign(at time.Time) (*models.Campaign, error) {
	campaign, err := tf.CreateTestCampaign(models.CampaignStatusScheduled)
	if err != nil {
		return nil, err
	}
	at = at.UTC()
	if err := tf.DB.DB.Model(campaign).Update("scheduled_at", at).Error; err != nil {
		return nil, fmt.Errorf("failed to schedule test campaign: %w", err)
	}
	campaign.ScheduledAt = &at
	return campaign, nil
}

// CreateTestContacts adds n pending contacts to campaign and sets its total.
// Phone numbers are +1415555NNNN starting at offset.
func (tf *TestFixtures) CreateTestContacts(campaign *models.Campaign, n, offset int) ([]*models.CampaignContact, error) {
	contacts := make([]*models.CampaignContact, 0, n)
	for i := range n {
		contacts = append(contacts, &models.CampaignContact{
			CampaignID:  campaign.ID,
			FirstName:   utils.ToPtr(fmt.Sprintf("Contact%d", offset+i)),
			PhoneNumber: fmt.Sprintf("+1415555%04d", offset+i),
			Status:      models.ContactStatusPending,
		})
	}
	if n == 0 {
		return contacts, nil
	}

	if err := tf.DB.DB.CreateInBatches(contacts, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to create test contacts: %w", err)
	}
	if err := tf.DB.DB.Model(campaign).Update("total_contacts", int64(n)).Error; err != nil {
		return nil, fmt.Errorf("failed to set contact total: %w", err)
	}
	campaign.TotalContacts = int64(n)
	return contacts, nil
}

// CreateTestConversation creates a conversation with a phone number
func (tf *TestFixtures) CreateTestConversation(phone string) (*models.Conversation, error) {
	conversation := &models.Conversation{PhoneNumber: phone}
	if err := tf.DB.DB.Create(conversation).Error; err != nil {
		return nil, fmt.Errorf("failed to create test conversation: %w", err)
	}
	return conversation, nil
}
