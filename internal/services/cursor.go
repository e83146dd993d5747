package services

import (
	"database/sql"

	"github.com/localnerve/push-bouncer/internal/models"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// analyticsTable is the per-table policy driving generic batch
// validation: which physical table to scan and whether rows carry a
// count-stat property that must be whitelisted.
type analyticsTable struct {
	name        string
	isCountStat bool
}

var (
	realmCountTable = analyticsTable{
		name:        models.RemoteRealmCount{}.TableName(),
		isCountStat: true,
	}
	installationCountTable = analyticsTable{
		name:        models.RemoteInstallationCount{}.TableName(),
		isCountStat: true,
	}
	realmAuditLogTable = analyticsTable{
		name: models.RemoteRealmAuditLog{}.TableName(),
	}
)

// GetLastRemoteID returns the highest remote_id already ingested for
// (server, table), or 0 when nothing has been ingested yet. Rows with a
// NULL remote_id are managed by the bouncer itself and are not part of
// the sync protocol, so they are excluded.
func GetLastRemoteID(db *gorm.DB, server *models.RemoteServer, table string) (int64, error) {
	var last sql.NullInt64
	err := db.Table(table).
		Clauses(hints.New("MAX_EXECUTION_TIME(10000)")).
		Where("server_id = ? AND remote_id IS NOT NULL", server.ID).
		Select("MAX(remote_id)").
		Scan(&last).Error
	if err != nil {
		return 0, err
	}
	if !last.Valid {
		return 0, nil
	}
	return last.Int64, nil
}

// AnalyticsStatus reports the last ingested remote id per synced table.
type AnalyticsStatus struct {
	LastRealmCountID        int64 `json:"last_realm_count_id"`
	LastInstallationCountID int64 `json:"last_installation_count_id"`
	LastRealmAuditLogID     int64 `json:"last_realmauditlog_id"`
}

// GetAnalyticsStatus answers a remote server's "what have you already
// received" query, which drives its resumable sync.
func GetAnalyticsStatus(db *gorm.DB, server *models.RemoteServer) (AnalyticsStatus, error) {
	var status AnalyticsStatus
	var err error

	if status.LastRealmCountID, err = GetLastRemoteID(db, server, realmCountTable.name); err != nil {
		return status, err
	}
	if status.LastInstallationCountID, err = GetLastRemoteID(db, server, installationCountTable.name); err != nil {
		return status, err
	}
	if status.LastRealmAuditLogID, err = GetLastRemoteID(db, server, realmAuditLogTable.name); err != nil {
		return status, err
	}
	return status, nil
}
