package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"slices"
	"strings"

	"github.com/amirphl/smsflow/app/dto"
	businessflow "github.com/amirphl/smsflow/business_flow"
	"github.com/amirphl/smsflow/utils"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const contactFileField = "csv_file"

var contactFileExtensions = []string{".csv", ".txt", ".xlsx"}

// CampaignHandlerInterface defines the contract for campaign handlers
type CampaignHandlerInterface interface {
	CreateCampaign(c fiber.Ctx) error
	ListCampaigns(c fiber.Ctx) error
	GetCampaign(c fiber.Ctx) error
	UpdateCampaign(c fiber.Ctx) error
	DeleteCampaign(c fiber.Ctx) error
	Dashboard(c fiber.Ctx) error
	UploadContacts(c fiber.Ctx) error
	ContactFileHeaders(c fiber.Ctx) error
	AvailableVariables(c fiber.Ctx) error
	Timezones(c fiber.Ctx) error
	ScheduleCampaign(c fiber.Ctx) error
	StartCampaign(c fiber.Ctx) error
	ListContacts(c fiber.Ctx) error
	ExportReport(c fiber.Ctx) error
}

// CampaignHandler handles campaign-related HTTP requests
type CampaignHandler struct {
	baseHandler
	campaignFlow businessflow.CampaignFlow
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaignFlow businessflow.CampaignFlow, logger *zap.Logger) *CampaignHandler {
	return &CampaignHandler{
		baseHandler:  newBaseHandler(logger.Named("http")),
		campaignFlow: campaignFlow,
	}
}

// CreateCampaign handles the campaign creation process
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.CreateCampaign(ctx, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "CAMPAIGN_CREATION_FAILED", "Campaign creation failed")
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Campaign created successfully", result)
}

// ListCampaigns returns campaigns newest first
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c fiber.Ctx) error {
	req := dto.ListCampaignsRequest{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 20),
		Status: queryString(c, "status"),
		Name:   queryString(c, "name"),
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns")
	defer cancel()

	result, err := h.campaignFlow.ListCampaigns(ctx, &req)
	if err != nil {
		return h.flowError(c, err, "LIST_CAMPAIGNS_FAILED", "Failed to list campaigns")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaigns retrieved successfully", result)
}

// GetCampaign returns one campaign with its delivery stats
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	result, err := h.campaignFlow.GetCampaign(ctx, id)
	if err != nil {
		return h.flowError(c, err, "GET_CAMPAIGN_FAILED", "Failed to get campaign")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign retrieved successfully", result)
}

// UpdateCampaign changes the name and/or message template
// @Router /api/v1/campaigns/{id} [put]
func (h *CampaignHandler) UpdateCampaign(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.UpdateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	result, err := h.campaignFlow.UpdateCampaign(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "CAMPAIGN_UPDATE_FAILED", "Campaign update failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign updated successfully", result)
}

// @Router /api/v1/campaigns/{id} [delete]
func (h *CampaignHandler) DeleteCampaign(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id")
	defer cancel()

	if err := h.campaignFlow.DeleteCampaign(ctx, id, h.clientMetadata(c)); err != nil {
		return h.flowError(c, err, "CAMPAIGN_DELETE_FAILED", "Campaign deletion failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Campaign deleted successfully", nil)
}

// Dashboard aggregates counters over every campaign
// @Router /api/v1/campaigns/dashboard [get]
func (h *CampaignHandler) Dashboard(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/dashboard")
	defer cancel()

	result, err := h.campaignFlow.GetDashboard(ctx)
	if err != nil {
		return h.flowError(c, err, "DASHBOARD_FAILED", "Failed to load dashboard")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Dashboard retrieved successfully", result)
}

// UploadContacts imports a csv/txt/xlsx file into a draft campaign.
// field_mapping is either a JSON object or a set of field_mapping[field] form values.
// @Accept multipart/form-data
// @Router /api/v1/campaigns/{id}/upload-contacts [post]
func (h *CampaignHandler) UploadContacts(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	filename, content, err := readContactFile(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILE", nil)
	}
	mapping, err := parseFieldMapping(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid field_mapping", "INVALID_FIELD_MAPPING", err.Error())
	}

	req := dto.UploadContactsRequest{
		Filename:     filename,
		Content:      content,
		FieldMapping: mapping,
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id/upload-contacts")
	defer cancel()

	result, err := h.campaignFlow.UploadContacts(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "CONTACT_UPLOAD_FAILED", "Contact upload failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Contacts uploaded", result)
}

// ContactFileHeaders returns the header row of an uploaded contact file
// @Accept multipart/form-data
// @Router /api/v1/campaigns/csv-headers [post]
func (h *CampaignHandler) ContactFileHeaders(c fiber.Ctx) error {
	filename, content, err := readContactFile(c)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, err.Error(), "INVALID_FILE", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/csv-headers")
	defer cancel()

	result, err := h.campaignFlow.ReadContactHeaders(ctx, filename, content)
	if err != nil {
		return h.flowError(c, err, "CONTACT_FILE_INVALID", "Failed to read headers")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Headers retrieved successfully", result)
}

// @Router /api/v1/campaigns/available-variables [get]
func (h *CampaignHandler) AvailableVariables(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "Variables retrieved successfully", h.campaignFlow.AvailableVariables())
}

// @Router /api/v1/campaigns/timezones [get]
func (h *CampaignHandler) Timezones(c fiber.Ctx) error {
	return h.SuccessResponse(c, fiber.StatusOK, "Timezones retrieved successfully", h.campaignFlow.Timezones())
}

// ScheduleCampaign arms a campaign to start at scheduled_at, read in timezone
// @Router /api/v1/campaigns/{id}/schedule [post]
func (h *CampaignHandler) ScheduleCampaign(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	var req dto.ScheduleCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id/schedule")
	defer cancel()

	result, err := h.campaignFlow.ScheduleCampaign(ctx, id, &req, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "CAMPAIGN_SCHEDULE_FAILED", "Campaign scheduling failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// StartCampaign moves a draft campaign to running and dispatches it
// @Router /api/v1/campaigns/{id}/start [post]
func (h *CampaignHandler) StartCampaign(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id/start")
	defer cancel()

	result, err := h.campaignFlow.StartCampaign(ctx, id, h.clientMetadata(c))
	if err != nil {
		return h.flowError(c, err, "CAMPAIGN_START_FAILED", "Campaign start failed")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}

// @Router /api/v1/campaigns/{id}/contacts [get]
func (h *CampaignHandler) ListContacts(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	req := dto.ListContactsRequest{
		Page:   queryInt(c, "page", 1),
		Limit:  queryInt(c, "limit", 50),
		Status: queryString(c, "status"),
	}
	if errs := h.validate(&req); errs != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", errs)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id/contacts")
	defer cancel()

	result, err := h.campaignFlow.ListContacts(ctx, id, &req)
	if err != nil {
		return h.flowError(c, err, "LIST_CONTACTS_FAILED", "Failed to list contacts")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Contacts retrieved successfully", result)
}

// ExportReport streams the xlsx delivery report of a campaign
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Router /api/v1/campaigns/{id}/report.xlsx [get]
func (h *CampaignHandler) ExportReport(c fiber.Ctx) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid campaign id", "INVALID_CAMPAIGN_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/campaigns/:id/report.xlsx")
	defer cancel()

	filename, data, err := h.campaignFlow.ExportReport(ctx, id)
	if err != nil {
		return h.flowError(c, err, "REPORT_EXPORT_FAILED", "Failed to export report")
	}
	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}

// readContactFile loads the uploaded contact file, enforcing the size and extension limits
func readContactFile(c fiber.Ctx) (string, []byte, error) {
	fileHeader, err := c.FormFile(contactFileField)
	if err != nil || fileHeader == nil {
		return "", nil, fmt.Errorf("%s is required", contactFileField)
	}
	if fileHeader.Size > utils.MaxUploadSize {
		return "", nil, fmt.Errorf("%s must be at most 10MB", contactFileField)
	}
	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if !slices.Contains(contactFileExtensions, ext) {
		return "", nil, fmt.Errorf("%s must be a csv, txt or xlsx file", contactFileField)
	}

	content, err := readFormFile(fileHeader, utils.MaxUploadSize)
	if err != nil {
		return "", nil, fmt.Errorf("invalid file: %w", err)
	}
	return fileHeader.Filename, content, nil
}

func readFormFile(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit))
}

func parseFieldMapping(c fiber.Ctx) (map[string]string, error) {
	if raw := strings.TrimSpace(c.FormValue("field_mapping")); raw != "" {
		var mapping map[string]string
		if err := json.Unmarshal([]byte(raw), &mapping); err != nil {
			return nil, err
		}
		return mapping, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	mapping := make(map[string]string)
	for key, values := range form.Value {
		field, ok := strings.CutPrefix(key, "field_mapping[")
		if !ok || !strings.HasSuffix(field, "]") || len(values) == 0 {
			continue
		}
		mapping[strings.TrimSuffix(field, "]")] = values[0]
	}
	return mapping, nil
}
