package businessflow

import (
	"context"
	"testing"

	"github.com/amirphl/smsflow/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordReply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	c := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", "+14155550100")

	matched, err := h.replyFlow.RecordReply(ctx, "+1 (415) 555-0100")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, c.ID, matched.CampaignID)
	assert.NotNil(t, matched.RepliedAt)
	assert.Equal(t, int64(1), h.store.campaign(c.ID).RepliedCount)

	// A second reply from the same number has nothing left to attribute.
	matched, err = h.replyFlow.RecordReply(ctx, "+14155550100")
	require.NoError(t, err)
	assert.Nil(t, matched)
	assert.Equal(t, int64(1), h.store.campaign(c.ID).RepliedCount)
}

func TestRecordReply_NoMatch(t *testing.T) {
	h := newHarness(t)
	draft := h.seedCampaign(t, models.CampaignStatusDraft, "Hi", "+14155550100")

	matched, err := h.replyFlow.RecordReply(context.Background(), "+14155550100")
	require.NoError(t, err)
	assert.Nil(t, matched)
	assert.Equal(t, int64(0), h.store.campaign(draft.ID).RepliedCount)

	matched, err = h.replyFlow.RecordReply(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, matched)
}

func TestRecordReply_LatestContactWins(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	older := h.seedCampaign(t, models.CampaignStatusCompleted, "Hi", "+14155550100")
	newer := h.seedCampaign(t, models.CampaignStatusRunning, "Hi", "+14155550100")

	matched, err := h.replyFlow.RecordReply(ctx, "+14155550100")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, newer.ID, matched.CampaignID)

	matched, err = h.replyFlow.RecordReply(ctx, "+14155550100")
	require.NoError(t, err)
	require.NotNil(t, matched)
	assert.Equal(t, older.ID, matched.CampaignID)

	assert.Equal(t, int64(1), h.store.campaign(older.ID).RepliedCount)
	assert.Equal(t, int64(1), h.store.campaign(newer.ID).RepliedCount)
}
