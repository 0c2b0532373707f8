package businessflow

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/amirphl/smsflow/app/queue"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/repository"
	"github.com/google/uuid"
)

var fakeEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// memStore backs every fake repository; one mutex makes each call atomic
type memStore struct {
	mu            sync.Mutex
	nextID        uint
	campaigns     map[uint]*models.Campaign
	contacts      map[uint]*models.CampaignContact
	conversations map[uint]*models.Conversation
	messages      map[uint]*models.Message
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:     map[uint]*models.Campaign{},
		contacts:      map[uint]*models.CampaignContact{},
		conversations: map[uint]*models.Conversation{},
		messages:      map[uint]*models.Message{},
	}
}

func (s *memStore) id() (uint, time.Time) {
	s.nextID++
	return s.nextID, fakeEpoch.Add(time.Duration(s.nextID) * time.Second)
}

func (s *memStore) campaign(id uint) *models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil
	}
	cp := *c
	return &cp
}

func (s *memStore) contactsOf(campaignID uint) []*models.CampaignContact {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.CampaignContact
	for _, c := range s.contacts {
		if c.CampaignID == campaignID {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.CampaignContact) int { return int(a.ID) - int(b.ID) })
	return out
}

// fakeTransactor runs fn directly; atomicity of each step comes from memStore.
// Like a real BEGIN it refuses to start on a finished context.
type fakeTransactor struct{}

func (fakeTransactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

type fakeCampaignRepo struct{ s *memStore }

var _ repository.CampaignRepository = (*fakeCampaignRepo)(nil)

func (r *fakeCampaignRepo) ByID(_ context.Context, id uint) (*models.Campaign, error) {
	return r.s.campaign(id), nil
}

func (r *fakeCampaignRepo) matches(c *models.Campaign, f models.CampaignFilter) bool {
	if f.ID != nil && c.ID != *f.ID {
		return false
	}
	if f.Status != nil && c.Status != *f.Status {
		return false
	}
	if f.Name != nil && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(*f.Name)) {
		return false
	}
	return true
}

func (r *fakeCampaignRepo) ByFilter(_ context.Context, f models.CampaignFilter, _ string, limit, offset int) ([]*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.s.campaigns {
		if r.matches(c, f) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Campaign) int { return int(b.ID) - int(a.ID) })
	if offset >= len(out) {
		return []*models.Campaign{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) Count(ctx context.Context, f models.CampaignFilter) (int64, error) {
	all, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(all)), nil
}

func (r *fakeCampaignRepo) Save(_ context.Context, c *models.Campaign) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID, c.CreatedAt = r.s.id()
	c.UpdatedAt = c.CreatedAt
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	cp := *c
	r.s.campaigns[c.ID] = &cp
	return nil
}

func (r *fakeCampaignRepo) SaveBatch(ctx context.Context, cs []*models.Campaign) error {
	for _, c := range cs {
		_ = r.Save(ctx, c)
	}
	return nil
}

func (r *fakeCampaignRepo) ByUUID(_ context.Context, id string) (*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.campaigns {
		if c.UUID.String() == id {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeCampaignRepo) ExistsByID(_ context.Context, id uint) (bool, error) {
	return r.s.campaign(id) != nil, nil
}

func (r *fakeCampaignRepo) UpdateContent(_ context.Context, id uint, name, tmpl *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[id]; ok {
		if name != nil {
			c.Name = *name
		}
		if tmpl != nil {
			c.MessageTemplate = *tmpl
		}
	}
	return nil
}

func (r *fakeCampaignRepo) Delete(_ context.Context, id uint) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.campaigns[id]; !ok {
		return false, nil
	}
	delete(r.s.campaigns, id)
	for cid, c := range r.s.contacts {
		if c.CampaignID == id {
			delete(r.s.contacts, cid)
		}
	}
	return true, nil
}

func (r *fakeCampaignRepo) TransitionStatus(_ context.Context, id uint, from []models.CampaignStatus, to models.CampaignStatus, fields map[string]any) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	for k, v := range fields {
		switch k {
		case "started_at":
			t := v.(time.Time)
			c.StartedAt = &t
		case "scheduled_at":
			t := v.(time.Time)
			c.ScheduledAt = &t
		case "timezone":
			c.Timezone = v.(string)
		}
	}
	return true, nil
}

func (r *fakeCampaignRepo) SetContactTotals(_ context.Context, id uint, total int64, mapping models.FieldMapping) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[id]; ok {
		c.TotalContacts = total
		c.FieldMapping = mapping
	}
	return nil
}

func (r *fakeCampaignRepo) bump(id uint, fn func(c *models.Campaign)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.campaigns[id]; ok {
		fn(c)
	}
	return nil
}

func (r *fakeCampaignRepo) IncrementSent(_ context.Context, id uint) error {
	return r.bump(id, func(c *models.Campaign) { c.SentCount++ })
}

func (r *fakeCampaignRepo) IncrementFailed(_ context.Context, id uint) error {
	return r.bump(id, func(c *models.Campaign) { c.FailedCount++ })
}

func (r *fakeCampaignRepo) IncrementReplied(_ context.Context, id uint) error {
	return r.bump(id, func(c *models.Campaign) { c.RepliedCount++ })
}

func (r *fakeCampaignRepo) CompleteIfFinished(_ context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusRunning || !c.IsTerminal() {
		return false, nil
	}
	c.Status = models.CampaignStatusCompleted
	c.CompletedAt = &at
	return true, nil
}

func (r *fakeCampaignRepo) SaveDispatchProgress(_ context.Context, id uint, cursor uint, finishedAt *time.Time) error {
	return r.bump(id, func(c *models.Campaign) {
		c.DispatchCursor = max(c.DispatchCursor, cursor)
		if finishedAt != nil {
			at := *finishedAt
			c.DispatchedAt = &at
		}
	})
}

func (r *fakeCampaignRepo) ResetDispatchProgress(_ context.Context, id uint) error {
	return r.bump(id, func(c *models.Campaign) {
		c.DispatchCursor = 0
		c.DispatchedAt = nil
	})
}

func (r *fakeCampaignRepo) ListDueScheduled(_ context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range r.s.campaigns {
		if c.Status == models.CampaignStatusScheduled && c.ScheduledAt != nil && !c.ScheduledAt.After(now) {
			cp := *c
			out = append(out, &cp)
		}
	}
	slices.SortFunc(out, func(a, b *models.Campaign) int { return a.ScheduledAt.Compare(*b.ScheduledAt) })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeCampaignRepo) ListByStatus(ctx context.Context, status models.CampaignStatus) ([]*models.Campaign, error) {
	return r.ByFilter(ctx, models.CampaignFilter{Status: &status}, "", 0, 0)
}

func (r *fakeCampaignRepo) Totals(_ context.Context) (*models.CampaignTotals, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t := &models.CampaignTotals{}
	for _, c := range r.s.campaigns {
		t.Campaigns++
		switch c.Status {
		case models.CampaignStatusScheduled:
			t.Scheduled++
		case models.CampaignStatusRunning:
			t.Running++
		case models.CampaignStatusCompleted:
			t.Completed++
		}
		t.ContactTotal += c.TotalContacts
		t.SentTotal += c.SentCount
		t.RepliedTotal += c.RepliedCount
	}
	return t, nil
}

type fakeContactRepo struct{ s *memStore }

var _ repository.CampaignContactRepository = (*fakeContactRepo)(nil)

func (r *fakeContactRepo) ByID(_ context.Context, id uint) (*models.CampaignContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContactRepo) ByFilter(_ context.Context, f models.CampaignContactFilter, _ string, limit, offset int) ([]*models.CampaignContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.CampaignContact
	for _, c := range r.s.contacts {
		if f.CampaignID != nil && c.CampaignID != *f.CampaignID {
			continue
		}
		if f.Status != nil && c.Status != *f.Status {
			continue
		}
		if f.PhoneNumber != nil && c.PhoneNumber != *f.PhoneNumber {
			continue
		}
		if f.Replied != nil && (c.RepliedAt != nil) != *f.Replied {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.CampaignContact) int { return int(a.ID) - int(b.ID) })
	if offset >= len(out) {
		return []*models.CampaignContact{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeContactRepo) Count(ctx context.Context, f models.CampaignContactFilter) (int64, error) {
	all, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(all)), nil
}

func (r *fakeContactRepo) Save(_ context.Context, c *models.CampaignContact) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID, c.CreatedAt = r.s.id()
	c.UpdatedAt = c.CreatedAt
	if c.Status == "" {
		c.Status = models.ContactStatusPending
	}
	cp := *c
	r.s.contacts[c.ID] = &cp
	return nil
}

func (r *fakeContactRepo) SaveBatch(ctx context.Context, cs []*models.CampaignContact) error {
	for _, c := range cs {
		_ = r.Save(ctx, c)
	}
	return nil
}

func (r *fakeContactRepo) DeleteByCampaign(_ context.Context, campaignID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.contacts {
		if c.CampaignID == campaignID {
			delete(r.s.contacts, id)
		}
	}
	return nil
}

func (r *fakeContactRepo) PendingBatch(ctx context.Context, campaignID, afterID uint, limit int) ([]*models.CampaignContact, error) {
	status := models.ContactStatusPending
	all, _ := r.ByFilter(ctx, models.CampaignContactFilter{CampaignID: &campaignID, Status: &status}, "", 0, 0)
	out := make([]*models.CampaignContact, 0, limit)
	for _, c := range all {
		if c.ID > afterID && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeContactRepo) CountPending(ctx context.Context, campaignID uint) (int64, error) {
	status := models.ContactStatusPending
	return r.Count(ctx, models.CampaignContactFilter{CampaignID: &campaignID, Status: &status})
}

func (r *fakeContactRepo) finish(id uint, fn func(c *models.CampaignContact)) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok || c.Status != models.ContactStatusPending {
		return false, nil
	}
	fn(c)
	return true, nil
}

func (r *fakeContactRepo) MarkSent(_ context.Context, id uint, at time.Time) (bool, error) {
	return r.finish(id, func(c *models.CampaignContact) {
		c.Status = models.ContactStatusSent
		c.SentAt = &at
	})
}

func (r *fakeContactRepo) MarkFailed(_ context.Context, id uint, reason string) (bool, error) {
	return r.finish(id, func(c *models.CampaignContact) {
		c.Status = models.ContactStatusFailed
		c.ErrorMessage = &reason
	})
}

func (r *fakeContactRepo) IncrementAttempts(_ context.Context, id uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.contacts[id]; ok {
		c.Attempts++
	}
	return nil
}

func (r *fakeContactRepo) LatestUnrepliedByPhone(_ context.Context, phone string) (*models.CampaignContact, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var best *models.CampaignContact
	for _, c := range r.s.contacts {
		if c.PhoneNumber != phone || c.RepliedAt != nil {
			continue
		}
		owner, ok := r.s.campaigns[c.CampaignID]
		if !ok || (owner.Status != models.CampaignStatusRunning && owner.Status != models.CampaignStatusCompleted) {
			continue
		}
		if best == nil || c.CreatedAt.After(best.CreatedAt) || (c.CreatedAt.Equal(best.CreatedAt) && c.ID > best.ID) {
			best = c
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (r *fakeContactRepo) MarkReplied(_ context.Context, id uint, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.contacts[id]
	if !ok || c.RepliedAt != nil {
		return false, nil
	}
	c.RepliedAt = &at
	return true, nil
}

type fakeConversationRepo struct{ s *memStore }

var _ repository.ConversationRepository = (*fakeConversationRepo)(nil)

func (r *fakeConversationRepo) ByID(_ context.Context, id uint) (*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeConversationRepo) ByFilter(_ context.Context, f models.ConversationFilter, _ string, _, _ int) ([]*models.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Conversation
	for _, c := range r.s.conversations {
		if f.PhoneNumber != nil && c.PhoneNumber != *f.PhoneNumber {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Conversation) int { return int(b.ID) - int(a.ID) })
	return out, nil
}

func (r *fakeConversationRepo) Count(ctx context.Context, f models.ConversationFilter) (int64, error) {
	all, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(all)), nil
}

func (r *fakeConversationRepo) Save(_ context.Context, c *models.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c.ID, c.CreatedAt = r.s.id()
	c.UpdatedAt = c.CreatedAt
	cp := *c
	r.s.conversations[c.ID] = &cp
	return nil
}

func (r *fakeConversationRepo) SaveBatch(ctx context.Context, cs []*models.Conversation) error {
	for _, c := range cs {
		_ = r.Save(ctx, c)
	}
	return nil
}

func (r *fakeConversationRepo) ByPhoneNumber(ctx context.Context, phone string) (*models.Conversation, error) {
	all, _ := r.ByFilter(ctx, models.ConversationFilter{PhoneNumber: &phone}, "", 0, 0)
	if len(all) == 0 {
		return nil, nil
	}
	return all[0], nil
}

func (r *fakeConversationRepo) FirstOrCreateByPhone(ctx context.Context, phone string) (*models.Conversation, error) {
	if c, _ := r.ByPhoneNumber(ctx, phone); c != nil {
		return c, nil
	}
	c := &models.Conversation{PhoneNumber: phone}
	_ = r.Save(ctx, c)
	return c, nil
}

func (r *fakeConversationRepo) UpdateName(_ context.Context, id uint, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c, ok := r.s.conversations[id]; ok {
		c.Name = &name
	}
	return nil
}

type fakeMessageRepo struct{ s *memStore }

var _ repository.MessageRepository = (*fakeMessageRepo)(nil)

func (r *fakeMessageRepo) ByID(_ context.Context, id uint) (*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.messages[id]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMessageRepo) ByFilter(_ context.Context, f models.MessageFilter, _ string, _, _ int) ([]*models.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*models.Message
	for _, m := range r.s.messages {
		if f.ConversationID != nil && m.ConversationID != *f.ConversationID {
			continue
		}
		if f.IsOutgoing != nil && m.IsOutgoing != *f.IsOutgoing {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	slices.SortFunc(out, func(a, b *models.Message) int { return int(a.ID) - int(b.ID) })
	return out, nil
}

func (r *fakeMessageRepo) Count(ctx context.Context, f models.MessageFilter) (int64, error) {
	all, _ := r.ByFilter(ctx, f, "", 0, 0)
	return int64(len(all)), nil
}

func (r *fakeMessageRepo) Save(_ context.Context, m *models.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID, m.CreatedAt = r.s.id()
	cp := *m
	r.s.messages[m.ID] = &cp
	return nil
}

func (r *fakeMessageRepo) SaveBatch(ctx context.Context, ms []*models.Message) error {
	for _, m := range ms {
		_ = r.Save(ctx, m)
	}
	return nil
}

func (r *fakeMessageRepo) ListByConversation(ctx context.Context, conversationID uint) ([]*models.Message, error) {
	return r.ByFilter(ctx, models.MessageFilter{ConversationID: &conversationID}, "", 0, 0)
}

// recordingPublisher keeps every enqueued task
type recordingPublisher struct {
	mu    sync.Mutex
	tasks []queue.SendTask
	err   error
	// onEnqueue runs after a task is recorded
	onEnqueue func(task queue.SendTask)
}

func (p *recordingPublisher) Enqueue(ctx context.Context, task queue.SendTask) error {
	if p.err != nil {
		return p.err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	p.tasks = append(p.tasks, task)
	hook := p.onEnqueue
	p.mu.Unlock()
	if hook != nil {
		hook(task)
	}
	return nil
}

func (p *recordingPublisher) Tasks() []queue.SendTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.tasks)
}

// fakeStorage keeps blobs in memory
type fakeStorage struct {
	mu    sync.Mutex
	blobs map[string][]byte
	err   error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{blobs: map[string][]byte{}}
}

func (s *fakeStorage) Put(_ context.Context, key string, data []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = data
	return "https://files.test/" + key, nil
}

// fakeDownloader serves canned media by url
type fakeDownloader struct {
	media map[string][]byte
	err   error
}

func (d *fakeDownloader) Download(_ context.Context, url string) ([]byte, string, error) {
	if d.err != nil {
		return nil, "", d.err
	}
	data, ok := d.media[url]
	if !ok {
		return nil, "", context.DeadlineExceeded
	}
	return data, "application/octet-stream", nil
}
