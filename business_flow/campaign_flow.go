// Package businessflow contains the core business logic and use cases for campaign workflows
package businessflow

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/amirphl/smsflow/app/dto"
	"github.com/amirphl/smsflow/models"
	"github.com/amirphl/smsflow/repository"
	"github.com/amirphl/smsflow/utils"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const (
	maxCampaignNameLength = 255
	reportPageSize        = 1000
)

// CampaignFlow handles the campaign business logic
type CampaignFlow interface {
	CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error)
	UpdateCampaign(ctx context.Context, id uint, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error)
	DeleteCampaign(ctx context.Context, id uint, metadata *ClientMetadata) error
	GetCampaign(ctx context.Context, id uint) (*dto.CampaignDetailResponse, error)
	ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error)
	GetDashboard(ctx context.Context) (*dto.DashboardResponse, error)
	UploadContacts(ctx context.Context, id uint, req *dto.UploadContactsRequest, metadata *ClientMetadata) (*dto.UploadContactsResponse, error)
	ReadContactHeaders(ctx context.Context, filename string, content []byte) (*dto.CSVHeadersResponse, error)
	ScheduleCampaign(ctx context.Context, id uint, req *dto.ScheduleCampaignRequest, metadata *ClientMetadata) (*dto.ScheduleCampaignResponse, error)
	StartCampaign(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.StartCampaignResponse, error)
	// TriggerScheduled starts a due scheduled campaign. It reports false when the
	// campaign was no longer scheduled.
	TriggerScheduled(ctx context.Context, id uint) (bool, error)
	// RecoverRunning re-dispatches running campaigns that still have pending contacts.
	// With requeue the queue lost its tasks, so every pending contact is enqueued again;
	// otherwise only interrupted dispatches are resumed from their cursor.
	RecoverRunning(ctx context.Context, requeue bool) (int, error)
	ListContacts(ctx context.Context, id uint, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error)
	ExportReport(ctx context.Context, id uint) (string, []byte, error)
	AvailableVariables() *dto.AvailableVariablesResponse
	Timezones() *dto.TimezonesResponse
}

// CampaignFlowImpl implements the campaign business flow
type CampaignFlowImpl struct {
	campaignRepo repository.CampaignRepository
	contactRepo  repository.CampaignContactRepository
	tx           repository.Transactor
	dispatcher   Dispatcher
	logger       *zap.Logger
}

// NewCampaignFlow creates a new campaign flow instance
func NewCampaignFlow(
	campaignRepo repository.CampaignRepository,
	contactRepo repository.CampaignContactRepository,
	tx repository.Transactor,
	dispatcher Dispatcher,
	logger *zap.Logger,
) CampaignFlow {
	return &CampaignFlowImpl{
		campaignRepo: campaignRepo,
		contactRepo:  contactRepo,
		tx:           tx,
		dispatcher:   dispatcher,
		logger:       logger.Named("campaign"),
	}
}

// CreateCampaign creates a draft campaign
func (s *CampaignFlowImpl) CreateCampaign(ctx context.Context, req *dto.CreateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error) {
	name := strings.TrimSpace(req.Name)
	if err := validateCampaignName(name); err != nil {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", err)
	}
	if strings.TrimSpace(req.MessageTemplate) == "" {
		return nil, NewBusinessError("CAMPAIGN_VALIDATION_FAILED", "Campaign validation failed", ErrCampaignTemplateRequired)
	}

	campaign := &models.Campaign{
		Name:            name,
		MessageTemplate: req.MessageTemplate,
		Status:          models.CampaignStatusDraft,
		Timezone:        "UTC",
	}
	if err := s.campaignRepo.Save(ctx, campaign); err != nil {
		return nil, NewBusinessError("CAMPAIGN_CREATION_FAILED", "Campaign creation failed", err)
	}

	s.logger.Info("campaign created", append(metadata.fields(), zap.Uint("campaign_id", campaign.ID))...)

	resp := ToCampaignResponse(campaign)
	return &resp, nil
}

// UpdateCampaign changes name and/or message template
func (s *CampaignFlowImpl) UpdateCampaign(ctx context.Context, id uint, req *dto.UpdateCampaignRequest, metadata *ClientMetadata) (*dto.CampaignResponse, error) {
	if req.Name == nil && req.MessageTemplate == nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_VALIDATION_FAILED", "Campaign update validation failed", ErrCampaignUpdateRequired)
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if err := validateCampaignName(name); err != nil {
			return nil, NewBusinessError("CAMPAIGN_UPDATE_VALIDATION_FAILED", "Campaign update validation failed", err)
		}
		req.Name = &name
	}
	if req.MessageTemplate != nil && strings.TrimSpace(*req.MessageTemplate) == "" {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_VALIDATION_FAILED", "Campaign update validation failed", ErrCampaignTemplateRequired)
	}

	if _, err := s.loadCampaign(ctx, id); err != nil {
		return nil, err
	}
	if err := s.campaignRepo.UpdateContent(ctx, id, req.Name, req.MessageTemplate); err != nil {
		return nil, NewBusinessError("CAMPAIGN_UPDATE_FAILED", "Campaign update failed", err)
	}

	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign updated", append(metadata.fields(), zap.Uint("campaign_id", id))...)

	resp := ToCampaignResponse(campaign)
	return &resp, nil
}

// DeleteCampaign removes a campaign and its contacts. A running dispatch stops
// at its next batch and queued tasks fail fast.
func (s *CampaignFlowImpl) DeleteCampaign(ctx context.Context, id uint, metadata *ClientMetadata) error {
	deleted, err := s.campaignRepo.Delete(ctx, id)
	if err != nil {
		return NewBusinessError("CAMPAIGN_DELETE_FAILED", "Campaign deletion failed", err)
	}
	if !deleted {
		return NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}

	s.logger.Info("campaign deleted", append(metadata.fields(), zap.Uint("campaign_id", id))...)
	return nil
}

// GetCampaign returns a campaign with its stats
func (s *CampaignFlowImpl) GetCampaign(ctx context.Context, id uint) (*dto.CampaignDetailResponse, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.CampaignDetailResponse{
		Campaign: ToCampaignResponse(campaign),
		Stats:    ComputeCampaignStats(campaign),
	}, nil
}

// ListCampaigns returns a page of campaigns, newest first
func (s *CampaignFlowImpl) ListCampaigns(ctx context.Context, req *dto.ListCampaignsRequest) (*dto.ListCampaignsResponse, error) {
	page := max(req.Page, 1)
	limit := req.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	filter := models.CampaignFilter{Name: req.Name}
	if req.Status != nil {
		status := models.CampaignStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("CAMPAIGN_LIST_VALIDATION_FAILED", "Invalid status filter",
				fmt.Errorf("%w: unknown campaign status %q", ErrValidation, *req.Status))
		}
		filter.Status = &status
	}

	total, err := s.campaignRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}
	campaigns, err := s.campaignRepo.ByFilter(ctx, filter, "created_at DESC, id DESC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LIST_FAILED", "Failed to list campaigns", err)
	}

	items := make([]dto.CampaignResponse, 0, len(campaigns))
	for _, c := range campaigns {
		items = append(items, ToCampaignResponse(c))
	}
	return &dto.ListCampaignsResponse{
		Items:      items,
		Pagination: dto.NewPagination(page, limit, total),
	}, nil
}

// GetDashboard aggregates counters across every campaign
func (s *CampaignFlowImpl) GetDashboard(ctx context.Context) (*dto.DashboardResponse, error) {
	totals, err := s.campaignRepo.Totals(ctx)
	if err != nil {
		return nil, NewBusinessError("DASHBOARD_FAILED", "Failed to load dashboard", err)
	}

	return &dto.DashboardResponse{
		Totals: dto.DashboardTotals{
			Campaigns: totals.Campaigns,
			Scheduled: totals.Scheduled,
			Running:   totals.Running,
			Completed: totals.Completed,
		},
		ContactsTotal: totals.ContactTotal,
		SentTotal:     totals.SentTotal,
		RepliedTotal:  totals.RepliedTotal,
		Rates: dto.DashboardRates{
			Sent:      utils.Percent(totals.SentTotal, totals.ContactTotal, 1),
			Scheduled: utils.Percent(totals.Scheduled, totals.Campaigns, 1),
			Replied:   utils.Percent(totals.RepliedTotal, totals.ContactTotal, 1),
		},
	}, nil
}

// UploadContacts parses a contact file and replaces the contacts of a draft campaign.
// An upload without a single valid contact leaves the campaign untouched.
func (s *CampaignFlowImpl) UploadContacts(ctx context.Context, id uint, req *dto.UploadContactsRequest, metadata *ClientMetadata) (*dto.UploadContactsResponse, error) {
	mapping := models.FieldMapping{}
	for field, column := range req.FieldMapping {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		mapping[field] = strings.TrimSpace(column)
	}
	if mapping[FieldPhoneNumber] == "" {
		return nil, NewBusinessError("CONTACT_UPLOAD_VALIDATION_FAILED", "Field mapping is invalid", ErrPhoneMappingRequired)
	}
	if len(req.Content) == 0 {
		return nil, NewBusinessError("CONTACT_UPLOAD_VALIDATION_FAILED", "Contact file is empty", ErrContactFileEmpty)
	}

	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Campaign is not editable", ErrCampaignNotEditable)
	}

	table, err := parseContactFile(req.Filename, req.Content)
	if err != nil {
		return nil, NewBusinessError("CONTACT_FILE_INVALID", "Contact file could not be read", err)
	}
	result := buildContacts(campaign.ID, table, mapping)

	if len(result.Contacts) > 0 {
		err = s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
			// Guard against a concurrent start: the row stays locked until commit.
			stillDraft, err := s.campaignRepo.TransitionStatus(txCtx, campaign.ID,
				[]models.CampaignStatus{models.CampaignStatusDraft}, models.CampaignStatusDraft, nil)
			if err != nil {
				return err
			}
			if !stillDraft {
				return ErrCampaignNotEditable
			}
			if err := s.contactRepo.DeleteByCampaign(txCtx, campaign.ID); err != nil {
				return err
			}
			if err := s.contactRepo.SaveBatch(txCtx, result.Contacts); err != nil {
				return err
			}
			return s.campaignRepo.SetContactTotals(txCtx, campaign.ID, int64(len(result.Contacts)), mapping)
		})
		if err != nil {
			if IsStateError(err) {
				return nil, NewBusinessError("CAMPAIGN_NOT_EDITABLE", "Campaign is not editable", err)
			}
			return nil, NewBusinessError("CONTACT_UPLOAD_FAILED", "Failed to store contacts", err)
		}
	}

	s.logger.Info("contacts uploaded", append(metadata.fields(),
		zap.Uint("campaign_id", campaign.ID),
		zap.Int("valid", len(result.Contacts)),
		zap.Int("invalid", len(result.Errors)),
		zap.Int("processed", result.TotalProcessed),
	)...)

	return &dto.UploadContactsResponse{
		Success:        len(result.Contacts),
		Errors:         result.Errors,
		TotalProcessed: result.TotalProcessed,
	}, nil
}

// ReadContactHeaders returns the header tokens of a contact file
func (s *CampaignFlowImpl) ReadContactHeaders(ctx context.Context, filename string, content []byte) (*dto.CSVHeadersResponse, error) {
	if len(content) == 0 {
		return nil, NewBusinessError("CONTACT_FILE_INVALID", "Contact file is empty", ErrContactFileEmpty)
	}
	headers, err := ReadContactHeaders(filename, content)
	if err != nil {
		return nil, NewBusinessError("CONTACT_FILE_INVALID", "Contact file could not be read", err)
	}
	return &dto.CSVHeadersResponse{Headers: headers}, nil
}

// ScheduleCampaign arms a draft or scheduled campaign to start at a future instant
func (s *CampaignFlowImpl) ScheduleCampaign(ctx context.Context, id uint, req *dto.ScheduleCampaignRequest, metadata *ClientMetadata) (*dto.ScheduleCampaignResponse, error) {
	if strings.TrimSpace(req.ScheduledAt) == "" {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrScheduleTimeRequired)
	}
	zone := strings.TrimSpace(req.Timezone)
	if zone == "" {
		zone = "UTC"
	}
	if _, err := time.LoadLocation(zone); err != nil {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrTimezoneInvalid)
	}
	at, _, err := utils.ParseInZone(req.ScheduledAt, zone)
	if err != nil {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrScheduleTimeInvalid)
	}
	if !utils.IsFuture(at) {
		return nil, NewBusinessError("SCHEDULE_VALIDATION_FAILED", "Schedule validation failed", ErrScheduleTimeInPast)
	}

	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if !campaign.CanTransitionTo(models.CampaignStatusScheduled) {
		return nil, NewBusinessError("CAMPAIGN_NOT_SCHEDULABLE", "Campaign cannot be scheduled", ErrCampaignNotSchedulable)
	}

	applied, err := s.campaignRepo.TransitionStatus(ctx, id,
		[]models.CampaignStatus{models.CampaignStatusDraft, models.CampaignStatusScheduled},
		models.CampaignStatusScheduled,
		map[string]any{"scheduled_at": at, "timezone": zone},
	)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed", err)
	}
	if !applied {
		return nil, NewBusinessError("CAMPAIGN_NOT_SCHEDULABLE", "Campaign cannot be scheduled", ErrCampaignNotSchedulable)
	}

	s.logger.Info("campaign scheduled", append(metadata.fields(),
		zap.Uint("campaign_id", id),
		zap.Time("scheduled_at", at),
		zap.String("timezone", zone),
	)...)

	return &dto.ScheduleCampaignResponse{
		Message:     "Campaign scheduled successfully",
		ScheduledAt: at,
		Timezone:    zone,
	}, nil
}

// StartCampaign moves a draft campaign to running and dispatches its contacts
func (s *CampaignFlowImpl) StartCampaign(ctx context.Context, id uint, metadata *ClientMetadata) (*dto.StartCampaignResponse, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusDraft {
		return nil, NewBusinessError("CAMPAIGN_NOT_DRAFT", ErrorMessage(ErrCampaignNotDraft), ErrCampaignNotDraft)
	}

	pending, started, err := s.start(ctx, id, models.CampaignStatusDraft, triggerManual)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_START_FAILED", "Campaign start failed", err)
	}
	if !started {
		return nil, NewBusinessError("CAMPAIGN_NOT_DRAFT", ErrorMessage(ErrCampaignNotDraft), ErrCampaignNotDraft)
	}

	s.logger.Info("campaign started", append(metadata.fields(),
		zap.Uint("campaign_id", id),
		zap.Int64("pending", pending),
	)...)

	return &dto.StartCampaignResponse{
		Message: "Campaign started successfully",
		Pending: pending,
	}, nil
}

func (s *CampaignFlowImpl) TriggerScheduled(ctx context.Context, id uint) (bool, error) {
	pending, started, err := s.start(ctx, id, models.CampaignStatusScheduled, triggerScheduled)
	if err != nil {
		return false, err
	}
	if started {
		s.logger.Info("scheduled campaign started", zap.Uint("campaign_id", id), zap.Int64("pending", pending))
	}
	return started, nil
}

// start moves the campaign from `from` to running. A campaign without pending
// contacts is completed in the same transaction; otherwise dispatch runs in the background.
func (s *CampaignFlowImpl) start(ctx context.Context, id uint, from models.CampaignStatus, trigger string) (int64, bool, error) {
	var (
		pending int64
		started bool
	)
	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		now := utils.UTCNow()
		applied, err := s.campaignRepo.TransitionStatus(txCtx, id,
			[]models.CampaignStatus{from}, models.CampaignStatusRunning,
			map[string]any{"started_at": now},
		)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		started = true

		pending, err = s.contactRepo.CountPending(txCtx, id)
		if err != nil {
			return err
		}
		if pending == 0 {
			_, err = s.campaignRepo.CompleteIfFinished(txCtx, id, now)
		}
		return err
	})
	if err != nil || !started {
		return 0, false, err
	}

	campaignsStarted.WithLabelValues(trigger).Inc()
	if pending > 0 {
		s.dispatcher.DispatchAsync(id)
	}
	return pending, true, nil
}

func (s *CampaignFlowImpl) RecoverRunning(ctx context.Context, requeue bool) (int, error) {
	campaigns, err := s.campaignRepo.ListByStatus(ctx, models.CampaignStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("failed to list running campaigns: %w", err)
	}

	recovered := 0
	for _, c := range campaigns {
		pending, err := s.contactRepo.CountPending(ctx, c.ID)
		if err != nil {
			return recovered, fmt.Errorf("failed to count pending contacts: %w", err)
		}
		if pending == 0 {
			if _, err := s.campaignRepo.CompleteIfFinished(ctx, c.ID, utils.UTCNow()); err != nil {
				return recovered, fmt.Errorf("failed to complete campaign: %w", err)
			}
			continue
		}
		if requeue {
			if err := s.campaignRepo.ResetDispatchProgress(ctx, c.ID); err != nil {
				return recovered, err
			}
		} else if c.DispatchedAt != nil {
			// every pending contact already has a task in the queue
			continue
		}
		s.dispatcher.DispatchAsync(c.ID)
		campaignsStarted.WithLabelValues(triggerRecovery).Inc()
		recovered++
		s.logger.Info("re-dispatching running campaign",
			zap.Uint("campaign_id", c.ID),
			zap.Int64("pending", pending),
			zap.Uint("resume_after", c.DispatchCursor),
			zap.Bool("requeue", requeue),
		)
	}
	return recovered, nil
}

// ListContacts returns a page of contacts of a campaign in upload order
func (s *CampaignFlowImpl) ListContacts(ctx context.Context, id uint, req *dto.ListContactsRequest) (*dto.ListContactsResponse, error) {
	if _, err := s.loadCampaign(ctx, id); err != nil {
		return nil, err
	}

	page := max(req.Page, 1)
	limit := req.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	filter := models.CampaignContactFilter{CampaignID: &id}
	if req.Status != nil {
		status := models.ContactStatus(*req.Status)
		if !status.Valid() {
			return nil, NewBusinessError("CONTACT_LIST_VALIDATION_FAILED", "Invalid status filter",
				fmt.Errorf("%w: unknown contact status %q", ErrValidation, *req.Status))
		}
		filter.Status = &status
	}

	total, err := s.contactRepo.Count(ctx, filter)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}
	contacts, err := s.contactRepo.ByFilter(ctx, filter, "id ASC", limit, (page-1)*limit)
	if err != nil {
		return nil, NewBusinessError("CONTACT_LIST_FAILED", "Failed to list contacts", err)
	}

	items := make([]dto.ContactResponse, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, ToContactResponse(c))
	}
	return &dto.ListContactsResponse{
		Items:      items,
		Pagination: dto.NewPagination(page, limit, total),
	}, nil
}

// ExportReport builds an xlsx workbook with a summary sheet and one row per contact
func (s *CampaignFlowImpl) ExportReport(ctx context.Context, id uint) (string, []byte, error) {
	campaign, err := s.loadCampaign(ctx, id)
	if err != nil {
		return "", nil, err
	}
	stats := ComputeCampaignStats(campaign)

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	const summarySheet, contactsSheet = "Summary", "Contacts"
	xl.SetSheetName(xl.GetSheetName(0), summarySheet)
	summary := [][]any{
		{"Campaign", campaign.Name},
		{"Status", campaign.Status.String()},
		{"Total", stats.Total},
		{"Sent", stats.Sent},
		{"Failed", stats.Failed},
		{"Replied", stats.Replied},
		{"Pending", stats.Pending},
		{"Progress %", stats.Progress},
		{"Sent rate %", stats.SentRate},
		{"Reply rate %", stats.ReplyRate},
	}
	for i, row := range summary {
		cellRef, _ := excelize.CoordinatesToCellName(1, i+1)
		_ = xl.SetSheetRow(summarySheet, cellRef, &row)
	}

	if _, err := xl.NewSheet(contactsSheet); err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	header := []string{"id", "name", "phone_number", "email", "status", "sent_at", "replied_at", "error_message"}
	_ = xl.SetSheetRow(contactsSheet, "A1", &header)

	filter := models.CampaignContactFilter{CampaignID: &campaign.ID}
	row := 2
	for offset := 0; ; offset += reportPageSize {
		contacts, err := s.contactRepo.ByFilter(ctx, filter, "id ASC", reportPageSize, offset)
		if err != nil {
			return "", nil, NewBusinessError("REPORT_EXPORT_FAILED", "Failed to load contacts", err)
		}
		for _, c := range contacts {
			record := []string{
				strconv.FormatUint(uint64(c.ID), 10),
				c.FullName(),
				c.PhoneNumber,
				utils.Deref(c.Email),
				c.Status.String(),
				formatReportTime(c.SentAt),
				formatReportTime(c.RepliedAt),
				utils.Deref(c.ErrorMessage),
			}
			cellRef, _ := excelize.CoordinatesToCellName(1, row)
			_ = xl.SetSheetRow(contactsSheet, cellRef, &record)
			row++
		}
		if len(contacts) < reportPageSize {
			break
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("campaign_%d_report.xlsx", campaign.ID)
	return filename, buf.Bytes(), nil
}

// AvailableVariables lists the built-in template placeholders
func (s *CampaignFlowImpl) AvailableVariables() *dto.AvailableVariablesResponse {
	vars := make(map[string]string, len(BuiltinTemplateVariables))
	for _, v := range BuiltinTemplateVariables {
		vars[v.Placeholder] = v.Description
	}
	return &dto.AvailableVariablesResponse{Variables: vars}
}

func (s *CampaignFlowImpl) Timezones() *dto.TimezonesResponse {
	return &dto.TimezonesResponse{Timezones: utils.Timezones()}
}

func (s *CampaignFlowImpl) loadCampaign(ctx context.Context, id uint) (*models.Campaign, error) {
	campaign, err := s.campaignRepo.ByID(ctx, id)
	if err != nil {
		return nil, NewBusinessError("CAMPAIGN_LOOKUP_FAILED", "Failed to lookup campaign", err)
	}
	if campaign == nil {
		return nil, NewBusinessError("CAMPAIGN_NOT_FOUND", "Campaign not found", ErrCampaignNotFound)
	}
	return campaign, nil
}

func validateCampaignName(name string) error {
	if name == "" {
		return ErrCampaignNameRequired
	}
	if utf8.RuneCountInString(name) > maxCampaignNameLength {
		return ErrCampaignNameTooLong
	}
	return nil
}

func formatReportTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
