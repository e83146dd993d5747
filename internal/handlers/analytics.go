package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"
	"gorm.io/gorm"
)

// AnalyticsHandler handles the analytics sync routes
type AnalyticsHandler struct {
	DB *gorm.DB
}

type postAnalyticsRequest struct {
	RealmCounts        *types.FlexRows[services.RealmCountRow]        `json:"realm_counts"`
	InstallationCounts *types.FlexRows[services.InstallationCountRow] `json:"installation_counts"`
	RealmAuditLogs     *types.FlexRows[services.RealmAuditLogRow]     `json:"realmauditlog_rows"`
	Realms             *types.FlexRows[services.RealmInfo]            `json:"realms"`
	Version            *types.FlexString                              `json:"version"`
}

// Status handles GET /api/v1/remotes/server/analytics/status
// @Summary Report the last ingested remote id per analytics table
// @Description Remote servers call this to resume an interrupted sync
// @Tags Analytics
// @Produce json
// @Security BasicAuth
// @Success 200 {object} services.AnalyticsStatus
// @Failure 401 {object} utils.ErrorResponseStruct
// @Router /server/analytics/status [get]
func (h *AnalyticsHandler) Status(c *fiber.Ctx) error {
	server := serverFromContext(c)

	status, err := services.GetAnalyticsStatus(h.DB, server)
	if err != nil {
		return err
	}
	return utils.JSONSuccess(c, fiber.Map{
		"last_realm_count_id":        status.LastRealmCountID,
		"last_installation_count_id": status.LastInstallationCountID,
		"last_realmauditlog_id":      status.LastRealmAuditLogID,
	})
}

// Post handles POST /api/v1/remotes/server/analytics
// @Summary Ingest a batch of analytics rows from a remote server
// @Description Rows must arrive with strictly increasing ids per table; a stale id fails the whole batch
// @Tags Analytics
// @Accept json
// @Produce json
// @Security BasicAuth
// @Success 200 {object} utils.SuccessResponseStruct
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /server/analytics [post]
func (h *AnalyticsHandler) Post(c *fiber.Ctx) error {
	server := serverFromContext(c)

	var req postAnalyticsRequest
	if err := c.BodyParser(&req); err != nil {
		return types.BadRequest("Malformed JSON body")
	}
	if req.RealmCounts == nil {
		return types.MissingVariable("realm_counts")
	}
	if req.InstallationCounts == nil {
		return types.MissingVariable("installation_counts")
	}

	batch := services.AnalyticsBatch{
		RealmCounts:        req.RealmCounts.Slice(),
		InstallationCounts: req.InstallationCounts.Slice(),
	}
	if req.RealmAuditLogs != nil {
		batch.RealmAuditLogRows = req.RealmAuditLogs.Slice()
		batch.HasAuditLogRows = true
	}
	if req.Realms != nil {
		batch.Realms = req.Realms.Slice()
		batch.HasRealms = true
	}
	if req.Version != nil {
		version := req.Version.String()
		batch.Version = &version
	}

	for _, row := range batch.RealmCounts {
		if row.ID == nil {
			return types.MissingVariable("id")
		}
	}
	for _, row := range batch.InstallationCounts {
		if row.ID == nil {
			return types.MissingVariable("id")
		}
	}
	for _, row := range batch.RealmAuditLogRows {
		if row.ID == nil {
			return types.MissingVariable("id")
		}
	}

	if err := services.PostAnalytics(h.DB, server.ID, batch); err != nil {
		return err
	}
	return utils.JSONSuccess(c, nil)
}
