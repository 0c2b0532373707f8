package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/smsflow/app/services"
	"github.com/amirphl/smsflow/config"
	"github.com/amirphl/smsflow/models"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type harness struct {
	store         *memStore
	campaignRepo  *fakeCampaignRepo
	contactRepo   *fakeContactRepo
	publisher     *recordingPublisher
	sms           *services.MockSMSService
	storage       *fakeStorage
	downloader    *fakeDownloader
	locker        *KeyedLocker
	dispatcher    Dispatcher
	campaignFlow  CampaignFlow
	sendFlow      SendFlow
	replyFlow     ReplyFlow
	conversations ConversationFlow
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zap.NewNop()
	store := newMemStore()
	h := &harness{
		store:        store,
		campaignRepo: &fakeCampaignRepo{s: store},
		contactRepo:  &fakeContactRepo{s: store},
		publisher:    &recordingPublisher{},
		sms:          services.NewMockSMSService(),
		storage:      newFakeStorage(),
		downloader:   &fakeDownloader{media: map[string][]byte{}},
		locker:       NewKeyedLocker(nil, "test:", 0),
	}
	h.dispatcher = NewDispatcher(h.campaignRepo, h.contactRepo, h.publisher, h.locker, 100, logger)
	t.Cleanup(h.dispatcher.Close)

	h.campaignFlow = NewCampaignFlow(h.campaignRepo, h.contactRepo, fakeTransactor{}, h.dispatcher, logger)
	h.sendFlow = NewSendFlow(h.campaignRepo, h.contactRepo, fakeTransactor{}, h.sms, logger)
	h.replyFlow = NewReplyFlow(h.campaignRepo, h.contactRepo, fakeTransactor{}, logger)
	h.conversations = NewConversationFlow(
		&fakeConversationRepo{s: store},
		&fakeMessageRepo{s: store},
		h.replyFlow,
		h.sms,
		h.storage,
		h.downloader,
		config.WebhookConfig{
			AutoReplyKeywords: []string{"appointment", "schedule", "book", "meeting", "calendly"},
			CalendlyLink:      "https://calendly.com/test",
		},
		logger,
	)
	return h
}

// seedCampaign stores a campaign in status with one pending contact per phone
func (h *harness) seedCampaign(t *testing.T, status models.CampaignStatus, template string, phones ...string) *models.Campaign {
	t.Helper()
	ctx := context.Background()
	campaign := &models.Campaign{
		Name:            "Spring promo",
		MessageTemplate: template,
		Status:          status,
		Timezone:        "UTC",
		TotalContacts:   int64(len(phones)),
	}
	require.NoError(t, h.campaignRepo.Save(ctx, campaign))

	contacts := make([]*models.CampaignContact, 0, len(phones))
	for _, p := range phones {
		contacts = append(contacts, &models.CampaignContact{
			CampaignID:  campaign.ID,
			PhoneNumber: p,
			Status:      models.ContactStatusPending,
		})
	}
	require.NoError(t, h.contactRepo.SaveBatch(ctx, contacts))
	return campaign
}

func phoneList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "+1415555" + leftPad(i, 4)
	}
	return out
}

func leftPad(n, width int) string {
	s := []byte("0000000000")
	for i := len(s) - 1; n > 0 && i >= 0; i-- {
		s[i] = byte('0' + n%10)
		n /= 10
	}
	return string(s[len(s)-width:])
}

func (h *harness) setCounters(id uint, sent, failed, replied int64) {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	c := h.store.campaigns[id]
	c.SentCount, c.FailedCount, c.RepliedCount = sent, failed, replied
}
